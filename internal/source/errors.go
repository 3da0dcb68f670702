package source

import (
	"errors"
	"fmt"
	"net/http"
)

// Ошибки клиента источника.
var (
	// ErrRequest — запрос не удалось выполнить (сеть, таймаут, битый ответ).
	ErrRequest = errors.New("source request failed")

	// ErrResponseTooLarge — ответ превышает допустимый размер.
	ErrResponseTooLarge = errors.New("response too large")

	// ErrPathTemplate — в шаблоне пути есть параметр без значения.
	ErrPathTemplate = errors.New("unresolved path parameter")
)

// StatusError — ответ API с кодом >= 400.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Transient возвращает true для ответов, которые имеет смысл повторить:
// 5xx, 429 и 408.
func (e *StatusError) Transient() bool {
	switch {
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	default:
		return false
	}
}

// IsNotFound проверяет, что err — ответ 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
