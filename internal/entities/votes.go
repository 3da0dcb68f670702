package entities

import (
	"fmt"

	"github.com/shaiso/legisync/internal/config"
	"github.com/shaiso/legisync/internal/domain"
	"github.com/shaiso/legisync/internal/source"
	"github.com/shaiso/legisync/internal/store"
)

// apiDate — формат дат в строке запроса API.
const apiDate = "20060102"

// Votes — голосования сенаторов легислатуры: senators/{code}/votes/{session}.
// Одна запись списка даёт столько документов, сколько голосований у сенатора.
func Votes() Spec {
	return Spec{
		Name:        "votes",
		Description: "roll-call votes of each senator in the period",
		Collection:  "senators/{code}/votes",
		List:        senatorsList,
		Detail: &DetailSpec{
			Path:     "/senador/{codigo}/votacoes",
			KeyParam: "codigo",
			Query:    periodQuery,
			Selector: "VotacaoParlamentar.Parlamentar.Votacoes.Votacao",
		},
		Transform: transformVotes,
		Validate:  validateVotes,
	}
}

func periodQuery(cfg config.RunConfig) map[string]string {
	q := map[string]string{}
	if from, err := cfg.FromDate(); err == nil && !from.IsZero() {
		q["dataInicio"] = from.Format(apiDate)
	}
	if to, err := cfg.ToDate(); err == nil && !to.IsZero() {
		q["dataFim"] = to.Format(apiDate)
	}
	return q
}

func validateVotes(cfg config.RunConfig) domain.ValidationResult {
	v := validateLegislature(cfg)
	if cfg.From == "" && cfg.To == "" {
		v.AddWarning("votes: no period set, the API default window is used")
	}
	return v
}

func transformVotes(item Item) ([]store.Document, error) {
	votes := source.ToList(item.Detail)
	docs := make([]store.Document, 0, len(votes))

	for _, raw := range votes {
		vote := source.Object(raw)
		session := source.StringAt(vote, "SessaoPlenaria", "CodigoSessao")
		if id := source.StringAt(vote, "CodigoSessaoVotacao"); id != "" {
			session = id
		}
		if session == "" {
			return nil, fmt.Errorf("%w: vote of senator %s has no session code", ErrMissingField, item.Key)
		}

		docs = append(docs, store.Document{
			Path: fmt.Sprintf("senators/%s/votes/%s", item.Key, session),
			Payload: map[string]any{
				"senator_code": item.Key,
				"session_code": session,
				"date":         source.StringAt(vote, "SessaoPlenaria", "DataSessao"),
				"description":  source.StringAt(vote, "DescricaoVotacao"),
				"vote":         source.StringAt(vote, "SiglaDescricaoVoto"),
				"secret":       source.StringAt(vote, "IndicadorVotacaoSecreta") == "Sim",
				"matter_code":  source.StringAt(vote, "IdentificacaoMateria", "CodigoMateria"),
				"matter":       matterLabel(source.Object(source.Dig(vote, "IdentificacaoMateria"))),
			},
		})
	}
	return docs, nil
}

// matterLabel — «PL 1234/2023».
func matterLabel(m map[string]any) string {
	kind := source.StringAt(m, "SiglaSubtipoMateria")
	number := source.StringAt(m, "NumeroMateria")
	year := source.StringAt(m, "AnoMateria")
	if kind == "" || number == "" {
		return ""
	}
	if year == "" {
		return kind + " " + number
	}
	return fmt.Sprintf("%s %s/%s", kind, number, year)
}
