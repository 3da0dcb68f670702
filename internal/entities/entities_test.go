package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/legisync/internal/config"
	"github.com/shaiso/legisync/internal/domain"
	"github.com/shaiso/legisync/internal/pipeline"
	"github.com/shaiso/legisync/internal/source"
	"github.com/shaiso/legisync/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestClassifyCommittee(t *testing.T) {
	tests := []struct {
		name string
		in   CommitteeInfo
		want CommitteeKind
	}{
		{"type abbreviation", CommitteeInfo{TypeAbbreviation: "cpi", Name: "Comissão Permanente"}, CommitteeInquiry},
		{"type description", CommitteeInfo{TypeDescription: "Comissão Permanente"}, CommitteePermanent},
		{"abbreviation prefix", CommitteeInfo{Abbreviation: "CPMI-INSS"}, CommitteeInquiry},
		{"mpv prefix", CommitteeInfo{Abbreviation: "MPV 1185"}, CommitteeJoint},
		{"name keyword with accents", CommitteeInfo{Name: "Comissão Temporária Externa"}, CommitteeTemporary},
		{"name inquiry", CommitteeInfo{Name: "Comissão Parlamentar de Inquérito"}, CommitteeInquiry},
		{"name joint", CommitteeInfo{Name: "Comissão Mista de Orçamento"}, CommitteeJoint},
		{"abbreviation beats name", CommitteeInfo{Abbreviation: "CPI", Name: "Comissão Mista"}, CommitteeInquiry},
		{"fallback", CommitteeInfo{Abbreviation: "CAE", Name: "Assuntos Econômicos"}, CommitteeOther},
		{"empty", CommitteeInfo{}, CommitteeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyCommittee(tt.in))
		})
	}
}

func TestTransformSenator(t *testing.T) {
	item := Item{
		Key: "5012",
		Summary: map[string]any{
			"Mandatos": map[string]any{
				"Mandato": map[string]any{"CodigoMandato": "541", "UfParlamentar": "SP"},
			},
		},
		Detail: map[string]any{
			"IdentificacaoParlamentar": map[string]any{
				"CodigoParlamentar":       "5012",
				"NomeParlamentar":         "Fulano",
				"SiglaPartidoParlamentar": "PT",
				"UfParlamentar":           "SP",
			},
			"DadosBasicosParlamentar": map[string]any{"DataNascimento": "1960-01-02"},
			"Telefones": map[string]any{
				"Telefone": []any{
					map[string]any{"NumeroTelefone": "33035555"},
					map[string]any{"NumeroTelefone": ""},
				},
			},
		},
	}

	docs, err := transformSenator(item)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "senators/5012", doc.Path)
	assert.Equal(t, "Fulano", doc.Payload["name"])
	assert.Equal(t, "PT", doc.Payload["party"])
	assert.Equal(t, "1960-01-02", doc.Payload["birth_date"])
	assert.Equal(t, []string{"33035555"}, doc.Payload["phones"])
	assert.Len(t, doc.Payload["mandates"], 1)

	_, err = transformSenator(Item{Key: "1", Detail: map[string]any{}})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestTransformCommittee(t *testing.T) {
	docs, err := transformCommittee(Item{
		Key: "38",
		Summary: map[string]any{
			"Codigo":             "38",
			"Sigla":              "CAE",
			"Nome":               "Comissão de Assuntos Econômicos",
			"SiglaTipoColegiado": "CP",
			"DataInicio":         "1947-01-01",
		},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "committees/38", docs[0].Path)
	assert.Equal(t, "permanent", docs[0].Payload["kind"])
	assert.Equal(t, true, docs[0].Payload["active"])

	_, err = transformCommittee(Item{Key: "1", Summary: map[string]any{}})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestTransformVotes(t *testing.T) {
	docs, err := transformVotes(Item{
		Key: "5012",
		Detail: []any{
			map[string]any{
				"CodigoSessaoVotacao": "6001",
				"SiglaDescricaoVoto":  "Sim",
				"IdentificacaoMateria": map[string]any{
					"SiglaSubtipoMateria": "PL",
					"NumeroMateria":       "1234",
					"AnoMateria":          "2023",
				},
			},
			map[string]any{
				"SessaoPlenaria":     map[string]any{"CodigoSessao": "7002"},
				"SiglaDescricaoVoto": "Não",
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "senators/5012/votes/6001", docs[0].Path)
	assert.Equal(t, "PL 1234/2023", docs[0].Payload["matter"])
	assert.Equal(t, "senators/5012/votes/7002", docs[1].Path)

	// Сенатор без голосований даёт ноль документов
	docs, err = transformVotes(Item{Key: "5012"})
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = transformVotes(Item{Key: "5012", Detail: map[string]any{"SiglaDescricaoVoto": "Sim"}})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestVotesQueryAndValidation(t *testing.T) {
	cfg := config.Default()
	assert.Empty(t, periodQuery(cfg))
	assert.Len(t, validateVotes(cfg).Warnings, 1)

	cfg.From = "2023-02-01"
	cfg.To = "2023-06-30"
	assert.Equal(t, map[string]string{"dataInicio": "20230201", "dataFim": "20230630"}, periodQuery(cfg))
	assert.Empty(t, validateVotes(cfg).Warnings)
}

func TestMattersValidation(t *testing.T) {
	cfg := config.Default()
	assert.False(t, validateMatters(cfg).HasErrors())

	cfg.Year = 1900
	assert.True(t, validateMatters(cfg).HasErrors())

	cfg.Year = 2023
	assert.False(t, validateMatters(cfg).HasErrors())
	assert.Equal(t, map[string]string{"ano": "2023"}, yearQuery(cfg))

	assert.Equal(t, "77", matterCode(map[string]any{"IdentificacaoMateria": map[string]any{"CodigoMateria": 77.0}}))
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"committees", "matters", "senators", "votes"}, r.Names())

	a, err := r.Adapter("senators", nil)
	require.NoError(t, err)
	assert.Equal(t, "senators", a.Name())

	_, err = r.Get("deputies")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

// senateServer — фейковый API: список из n сенаторов, карточки
// из failing всегда отвечают 500.
func senateServer(t *testing.T, n int, failing map[string]bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var detailCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/senador/lista/legislatura/57", func(w http.ResponseWriter, r *http.Request) {
		list := make([]any, n)
		for i := range list {
			list[i] = map[string]any{
				"IdentificacaoParlamentar": map[string]any{"CodigoParlamentar": fmt.Sprint(i)},
			}
		}
		writeJSON(w, map[string]any{
			"ListaParlamentarLegislatura": map[string]any{
				"Parlamentares": map[string]any{"Parlamentar": list},
			},
		})
	})
	mux.HandleFunc("/senador/", func(w http.ResponseWriter, r *http.Request) {
		detailCalls.Add(1)
		code := strings.TrimPrefix(r.URL.Path, "/senador/")
		if failing[code] {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{
			"DetalheParlamentar": map[string]any{
				"Parlamentar": map[string]any{
					"IdentificacaoParlamentar": map[string]any{
						"CodigoParlamentar": code,
						"NomeParlamentar":   "Senador " + code,
					},
				},
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &detailCalls
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSenatorsRun_PartialExtraction(t *testing.T) {
	srv, detailCalls := senateServer(t, 12, map[string]bool{"4": true, "9": true})

	cfg := config.Default()
	cfg.Limit = 10
	cfg.Concurrency = 3
	cfg.MaxAttempts = 2
	cfg.RetryDelay = time.Millisecond
	cfg.PacingDelay = time.Millisecond
	cfg.APIBaseURL = srv.URL

	backend := store.NewMemoryBackend()
	run := pipeline.NewRun("senators", cfg, pipeline.Options{
		Writer: store.NewBatchWriter(backend, 0),
		Logger: discard,
	})
	client := source.NewClient(source.Config{BaseURL: srv.URL, Logger: discard})
	adapter, err := DefaultRegistry().Adapter("senators", client)
	require.NoError(t, err)

	result, err := pipeline.Execute[Extracted, Transformed](context.Background(), run, adapter)
	require.NoError(t, err)

	assert.Equal(t, domain.StageCounter{Total: 10, Succeeded: 8, Failed: 2}, run.Stats.Extraction)
	assert.Equal(t, domain.StageCounter{Total: 8, Succeeded: 8}, run.Stats.Transformation)
	assert.Equal(t, 8, result.Total)
	assert.Equal(t, 8, result.Processed)
	assert.Equal(t, 8, result.Succeeded)
	assert.Zero(t, result.Failed)

	// 8 успешных карточек + 2 × 2 попытки для падающих
	assert.EqualValues(t, 12, detailCalls.Load())
	assert.Equal(t, 8, backend.Len())
	_, ok := backend.Get("senators/4")
	assert.False(t, ok)

	doc, ok := backend.Get("senators/3")
	require.True(t, ok)
	assert.Equal(t, "Senador 3", doc["name"])
	assert.Equal(t, domain.StatusDone, run.Status())
}

func TestCommitteesRun_ListOnly(t *testing.T) {
	var listCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/comissao/lista/colegiados", func(w http.ResponseWriter, r *http.Request) {
		listCalls.Add(1)
		writeJSON(w, map[string]any{
			"ListaColegiados": map[string]any{
				"Colegiados": map[string]any{
					"Colegiado": []any{
						map[string]any{"Codigo": "38", "Sigla": "CAE", "Nome": "Assuntos Econômicos", "SiglaTipoColegiado": "CP"},
						map[string]any{"Codigo": "2500", "Sigla": "CPIPANDEMIA", "Nome": "CPI da Pandemia"},
						map[string]any{"Sigla": "SEMCODIGO"},
						map[string]any{"Codigo": "38", "Sigla": "CAE"},
					},
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.Default()
	cfg.PacingDelay = time.Millisecond

	backend := store.NewMemoryBackend()
	run := pipeline.NewRun("committees", cfg, pipeline.Options{
		Writer: store.NewBatchWriter(backend, 0),
		Logger: discard,
	})
	adapter := NewAdapter(Committees(), source.NewClient(source.Config{BaseURL: srv.URL, Logger: discard}))

	result, err := pipeline.Execute[Extracted, Transformed](context.Background(), run, adapter)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, domain.StageCounter{Total: 2, Succeeded: 2}, run.Stats.Extraction)
	assert.GreaterOrEqual(t, run.Stats.Warnings, 1)
	// Список приходит целиком одним ответом
	assert.EqualValues(t, 1, listCalls.Load())

	doc, ok := backend.Get("committees/2500")
	require.True(t, ok)
	assert.Equal(t, "inquiry", doc["kind"])
}

func TestExtract_ListFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.MaxAttempts = 2
	cfg.RetryDelay = time.Millisecond
	cfg.PacingDelay = time.Millisecond

	run := pipeline.NewRun("committees", cfg, pipeline.Options{
		Writer: store.NewBatchWriter(store.NewMemoryBackend(), 0),
		Logger: discard,
	})
	adapter := NewAdapter(Committees(), source.NewClient(source.Config{BaseURL: srv.URL, Logger: discard}))

	_, err := pipeline.Execute[Extracted, Transformed](context.Background(), run, adapter)
	require.Error(t, err)
	assert.True(t, pipeline.IsTransientFetch(err))
	assert.Equal(t, domain.StatusFailed, run.Status())
}

func TestTransform_PanicDropsOnlyThatItem(t *testing.T) {
	spec := Committees()
	spec.Transform = func(item Item) ([]store.Document, error) {
		if item.Key == "2" {
			panic("boom")
		}
		return []store.Document{{Path: "committees/" + item.Key, Payload: map[string]any{}}}, nil
	}
	adapter := NewAdapter(spec, nil)
	run := pipeline.NewRun("committees", config.Default(), pipeline.Options{Logger: discard})

	out, err := adapter.Transform(run, Extracted{Items: []Item{{Key: "1"}, {Key: "2"}, {Key: "3"}}})
	require.NoError(t, err)
	assert.Len(t, out.Documents, 2)
	assert.Equal(t, domain.StageCounter{Total: 3, Succeeded: 2, Failed: 1}, run.Stats.Transformation)
	assert.Equal(t, 1, run.Stats.Warnings)
}
