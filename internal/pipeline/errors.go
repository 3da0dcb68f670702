package pipeline

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/shaiso/legisync/internal/domain"
)

// Классы ошибок run. Проверяются через errors.Is и переживают любое
// количество обёрток.
var (
	// ErrConfiguration — конфигурация невалидна; run прерван до I/O.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransientFetch — вызов внешнего API не удался после всех попыток.
	ErrTransientFetch = errors.New("transient fetch error")

	// ErrTransform — запись не удалось нормализовать; запись отброшена.
	ErrTransform = errors.New("transform error")

	// ErrCommit — commit batch завершился ошибкой; предыдущие chunk сохранены.
	ErrCommit = errors.New("commit error")

	// ErrNoItems — ни один элемент не удалось выгрузить.
	ErrNoItems = errors.New("no items extracted")

	// ErrRunReused — повторный Execute на том же Run.
	ErrRunReused = errors.New("run has already been executed")
)

// ConfigurationError собирает ошибку из ValidationResult.
func ConfigurationError(v domain.ValidationResult) error {
	err := errors.Newf("invalid configuration: %s", strings.Join(v.Errors, "; "))
	return errors.Mark(err, ErrConfiguration)
}

// MarkConfiguration помечает err как ошибку конфигурации.
func MarkConfiguration(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrConfiguration)
}

// TransientFetchError помечает ошибку вызова API.
func TransientFetchError(err error, label string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, label), ErrTransientFetch)
}

// TransformError помечает ошибку нормализации записи.
func TransformError(err error, key string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, "transform %s", key), ErrTransform)
}

// CommitError помечает ошибку commit и указывает номер chunk.
func CommitError(err error, chunk int) error {
	if err == nil {
		return nil
	}
	wrapped := errors.WithDetailf(errors.Wrapf(err, "chunk %d", chunk), "failed chunk: %d", chunk)
	return errors.WithHint(errors.Mark(wrapped, ErrCommit),
		"documents of earlier chunks are persisted; the run can be repeated safely")
}

// IsConfiguration проверяет класс ошибки.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsCommit проверяет класс ошибки.
func IsCommit(err error) bool { return errors.Is(err, ErrCommit) }

// IsTransform проверяет класс ошибки.
func IsTransform(err error) bool { return errors.Is(err, ErrTransform) }

// IsTransientFetch проверяет класс ошибки.
func IsTransientFetch(err error) bool { return errors.Is(err, ErrTransientFetch) }
