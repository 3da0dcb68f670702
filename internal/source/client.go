// Package source — HTTP-клиент открытого API законодательных данных.
//
// API отдаёт JSON, полученный конвертацией из XML: одиночный элемент
// приходит объектом, несколько — массивом. Нормализация таких полей
// выполняется через ToList.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shaiso/legisync/internal/retry"
)

// Значения по умолчанию.
const (
	DefaultBaseURL     = "https://legis.senado.leg.br/dadosabertos"
	DefaultUserAgent   = "legisync/1.0"
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxBody     = 10 * 1024 * 1024 // 10 MB
	maxErrorBody       = 200
)

// placeholder — параметр шаблона пути вида {name}.
var placeholder = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Client — клиент API.
//
// Безопасен для конкурентного использования.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	maxBody   int64
	logger    *slog.Logger
	onRequest func(path string, status int, d time.Duration)
}

// Config — конфигурация Client.
type Config struct {
	// BaseURL — корень API (default: DefaultBaseURL).
	BaseURL string

	// Timeout — таймаут одного HTTP-запроса (default: 30s).
	Timeout time.Duration

	// UserAgent (default: DefaultUserAgent).
	UserAgent string

	// HTTPClient — готовый клиент (например, из httptest). Timeout тогда не применяется.
	HTTPClient *http.Client

	// MaxResponseBody — предел размера ответа в байтах (default: 10 MB).
	MaxResponseBody int64

	// OnRequest вызывается после каждого запроса; status = 0 при сетевой ошибке.
	OnRequest func(path string, status int, d time.Duration)

	// Logger
	Logger *slog.Logger
}

// NewClient создаёт новый Client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	maxBody := cfg.MaxResponseBody
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		maxBody:   maxBody,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      httpClient,
		logger:    logger,
		onRequest: cfg.OnRequest,
	}
}

// BaseURL возвращает корень API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get выполняет GET по шаблону пути.
//
// Параметры {name} в pathTemplate подставляются из params (с экранированием),
// query добавляется как строка запроса. Пустые значения query пропускаются.
//
// Ошибки:
//   - ErrPathTemplate — параметр шаблона без значения (Permanent);
//   - *StatusError — HTTP >= 400; не-transient коды помечены Permanent;
//   - ErrResponseTooLarge — ответ больше MaxResponseBody (Permanent);
//   - ErrRequest — сеть, таймаут или невалидный JSON.
func (c *Client) Get(ctx context.Context, pathTemplate string, params, query map[string]string) (map[string]any, error) {
	path, err := ExpandPath(pathTemplate, params)
	if err != nil {
		return nil, retry.Permanent(err)
	}

	u := c.baseURL + path
	if q := encodeQuery(query); q != "" {
		u += "?" + q
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("%w: create request: %v", ErrRequest, err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(pathTemplate, 0, time.Since(start))
		return nil, fmt.Errorf("%w: %s: %w", ErrRequest, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	c.observe(pathTemplate, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrRequest, err)
	}
	if int64(len(body)) > c.maxBody && resp.StatusCode < 400 {
		// повтор вернёт тот же ответ
		return nil, retry.Permanent(fmt.Errorf("%w: %s exceeds %d bytes", ErrResponseTooLarge, path, c.maxBody))
	}

	if resp.StatusCode >= 400 {
		se := &StatusError{
			Method:     http.MethodGet,
			URL:        path,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), maxErrorBody),
		}
		c.logger.Debug("source returned error status",
			"path", path,
			"status", resp.StatusCode,
		)
		if !se.Transient() {
			return nil, retry.Permanent(se)
		}
		return nil, se
	}

	var payload map[string]any
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrRequest, path, err)
	}
	if payload == nil {
		payload = map[string]any{}
	}

	return payload, nil
}

func (c *Client) observe(path string, status int, d time.Duration) {
	if c.onRequest != nil {
		c.onRequest(path, status, d)
	}
}

// ExpandPath подставляет params в шаблон пути.
func ExpandPath(pathTemplate string, params map[string]string) (string, error) {
	var missing []string
	path := placeholder.ReplaceAllStringFunc(pathTemplate, func(m string) string {
		name := m[1 : len(m)-1]
		val, ok := params[name]
		if !ok || val == "" {
			missing = append(missing, name)
			return m
		}
		return url.PathEscape(val)
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s in %q", ErrPathTemplate, strings.Join(missing, ", "), pathTemplate)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path, nil
}

// encodeQuery кодирует query, пропуская пустые значения.
func encodeQuery(query map[string]string) string {
	if len(query) == 0 {
		return ""
	}
	values := url.Values{}
	for k, v := range query {
		if v != "" {
			values.Set(k, v)
		}
	}
	return values.Encode()
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
