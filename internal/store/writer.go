package store

import (
	"context"
	"fmt"
)

// MaxBatchSize — предельный размер одного write-batch хранилища документов.
const MaxBatchSize = 500

// Entry — одна операция upsert в batch.
type Entry struct {
	Address
	Payload map[string]any
}

// Document — документ, готовый к записи: полный путь + payload.
type Document struct {
	Path    string         `json:"path"`
	Payload map[string]any `json:"payload"`
}

// Backend — хранилище документов.
//
// Commit записывает entries атомарно: либо все, либо ни одного.
type Backend interface {
	// Name — имя хранилища для логов и отчёта.
	Name() string

	// MaxBatchSize — жёсткий предел размера одного Commit.
	MaxBatchSize() int

	// Commit записывает entries одной операцией.
	Commit(ctx context.Context, entries []Entry) error

	// Close освобождает ресурсы.
	Close() error
}

// CommitResult — итог одного CommitAndReset.
type CommitResult struct {
	// Committed — записано документов.
	Committed int

	// Failed — не записано из-за ошибки commit.
	Failed int

	// IDs — полные пути документов chunk в порядке добавления.
	IDs []string
}

// BatchWriter накапливает upsert-операции и сбрасывает их в Backend
// одним commit.
//
// Не безопасен для конкурентного использования: принадлежит одному run.
type BatchWriter struct {
	backend Backend
	limit   int
	entries []Entry
	index   map[Address]int
}

// NewBatchWriter создаёт BatchWriter.
// Лимит = min(size, backend.MaxBatchSize()); size <= 0 — лимит хранилища.
func NewBatchWriter(backend Backend, size int) *BatchWriter {
	limit := backend.MaxBatchSize()
	if limit <= 0 {
		limit = MaxBatchSize
	}
	if size > 0 && size < limit {
		limit = size
	}

	return &BatchWriter{
		backend: backend,
		limit:   limit,
		index:   make(map[Address]int, limit),
	}
}

// Backend возвращает хранилище.
func (w *BatchWriter) Backend() Backend {
	return w.backend
}

// Limit возвращает предельный размер batch.
func (w *BatchWriter) Limit() int {
	return w.limit
}

// Len возвращает число документов в буфере.
func (w *BatchWriter) Len() int {
	return len(w.entries)
}

// Full возвращает true, если следующий новый документ не поместится.
func (w *BatchWriter) Full() bool {
	return len(w.entries) >= w.limit
}

// Set добавляет upsert документа в буфер.
//
// Повторный Set того же адреса заменяет payload и не занимает новое место.
// Новый адрес в заполненном буфере — ErrBatchFull.
func (w *BatchWriter) Set(collectionPath, documentID string, payload map[string]any) error {
	addr, err := NewAddress(collectionPath, documentID)
	if err != nil {
		return err
	}
	return w.set(addr, payload)
}

// SetPath — Set по полному пути документа.
func (w *BatchWriter) SetPath(path string, payload map[string]any) error {
	addr, err := ParsePath(path)
	if err != nil {
		return err
	}
	return w.set(addr, payload)
}

// SetAddress — Set по уже разобранному адресу.
func (w *BatchWriter) SetAddress(addr Address, payload map[string]any) error {
	return w.set(addr, payload)
}

func (w *BatchWriter) set(addr Address, payload map[string]any) error {
	if i, ok := w.index[addr]; ok {
		w.entries[i].Payload = payload
		return nil
	}
	if w.Full() {
		return fmt.Errorf("%w: limit %d reached, %s not staged", ErrBatchFull, w.limit, addr)
	}

	w.index[addr] = len(w.entries)
	w.entries = append(w.entries, Entry{Address: addr, Payload: payload})
	return nil
}

// CommitAndReset записывает буфер одним commit и очищает его.
//
// Буфер очищается и при ошибке: документы неудачного chunk
// учитываются в CommitResult.Failed. Пустой буфер — no-op.
func (w *BatchWriter) CommitAndReset(ctx context.Context) (CommitResult, error) {
	if len(w.entries) == 0 {
		return CommitResult{}, nil
	}

	entries := w.entries
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.String()
	}

	w.entries = nil
	clear(w.index)

	if err := w.backend.Commit(ctx, entries); err != nil {
		return CommitResult{Failed: len(entries), IDs: ids},
			fmt.Errorf("commit %d documents to %s: %w", len(entries), w.backend.Name(), err)
	}

	return CommitResult{Committed: len(entries), IDs: ids}, nil
}
