package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/legisync/internal/retry"
)

func TestToList(t *testing.T) {
	if got := ToList(nil); len(got) != 0 {
		t.Errorf("nil: expected empty list, got %v", got)
	}

	single := map[string]any{"Codigo": "1"}
	if got := ToList(single); len(got) != 1 {
		t.Errorf("object: expected 1 element, got %d", len(got))
	}

	list := []any{"a", "b"}
	if got := ToList(list); len(got) != 2 {
		t.Errorf("list: expected 2 elements, got %d", len(got))
	}
}

func TestSelectorList(t *testing.T) {
	payload := map[string]any{
		"ListaColegiados": map[string]any{
			"Colegiados": map[string]any{
				"Colegiado": map[string]any{"Codigo": "38"},
			},
		},
	}

	items := Selector("ListaColegiados.Colegiados.Colegiado").List(payload)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if StringAt(items[0], "Codigo") != "38" {
		t.Errorf("unexpected item: %v", items[0])
	}

	if got := Selector("Missing.Path").List(payload); len(got) != 0 {
		t.Errorf("missing path should yield empty list, got %v", got)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{" 5012 ", "5012"},
		{float64(5012), "5012"},
		{1.5, "1.5"},
		{true, "true"},
		{map[string]any{}, ""},
	}
	for _, tt := range tests {
		if got := String(tt.in); got != tt.want {
			t.Errorf("String(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandPath(t *testing.T) {
	path, err := ExpandPath("/senador/{codigo}/votacoes", map[string]string{"codigo": "a b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/senador/a%20b/votacoes" {
		t.Errorf("unexpected path: %s", path)
	}

	_, err = ExpandPath("/senador/lista/legislatura/{legislatura}", nil)
	if !errors.Is(err, ErrPathTemplate) {
		t.Errorf("expected ErrPathTemplate, got %v", err)
	}
}

func TestClientGet(t *testing.T) {
	var gotQuery, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAgent = r.Header.Get("User-Agent")

		switch r.URL.Path {
		case "/senador/5012":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"DetalheParlamentar":{"Parlamentar":{"Codigo":"5012"}}}`))
		case "/busy":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/broken":
			_, _ = w.Write([]byte(`{not json`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	var observed []int
	c := NewClient(Config{
		BaseURL:   srv.URL,
		UserAgent: "test-agent",
		OnRequest: func(_ string, status int, _ time.Duration) {
			observed = append(observed, status)
		},
	})

	payload, err := c.Get(context.Background(), "/senador/{codigo}", map[string]string{"codigo": "5012"},
		map[string]string{"v": "5", "empty": ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if StringAt(payload, "DetalheParlamentar", "Parlamentar", "Codigo") != "5012" {
		t.Errorf("unexpected payload: %v", payload)
	}
	if gotQuery != "v=5" {
		t.Errorf("empty query values should be dropped, got %q", gotQuery)
	}
	if gotAgent != "test-agent" {
		t.Errorf("unexpected user agent: %q", gotAgent)
	}

	// 5xx — transient, без Permanent
	_, err = c.Get(context.Background(), "/busy", nil, nil)
	var se *StatusError
	if !errors.As(err, &se) || !se.Transient() {
		t.Errorf("expected transient StatusError, got %v", err)
	}
	if retry.IsPermanent(err) {
		t.Error("5xx should be retryable")
	}

	// 404 — Permanent
	_, err = c.Get(context.Background(), "/missing", nil, nil)
	if !IsNotFound(err) || !retry.IsPermanent(err) {
		t.Errorf("expected permanent 404, got %v", err)
	}

	// Невалидный JSON
	_, err = c.Get(context.Background(), "/broken", nil, nil)
	if !errors.Is(err, ErrRequest) {
		t.Errorf("expected ErrRequest, got %v", err)
	}

	want := []int{200, 503, 404, 200}
	if len(observed) != len(want) {
		t.Fatalf("expected %d observed requests, got %v", len(want), observed)
	}
	for i := range want {
		if observed[i] != want[i] {
			t.Errorf("request %d: expected status %d, got %d", i, want[i], observed[i])
		}
	}
}

func TestClientGet_ResponseTooLarge(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"ListaColegiados":{"Colegiados":{"Colegiado":[]}},"padding":"` + strings.Repeat("x", 64) + `"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, MaxResponseBody: 32})

	_, err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 3}, "oversized",
		func(ctx context.Context) (map[string]any, error) {
			return c.Get(ctx, "/comissao/lista/colegiados", nil, nil)
		})
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}
	if !retry.IsPermanent(err) {
		t.Error("oversized response should not be retried")
	}
	if calls != 1 {
		t.Errorf("expected a single request, got %d", calls)
	}

	// Ответ в пределах лимита принимается
	c = NewClient(Config{BaseURL: srv.URL, MaxResponseBody: 1 << 20})
	if _, err := c.Get(context.Background(), "/comissao/lista/colegiados", nil, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
