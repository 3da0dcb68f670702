package store

import (
	"context"
	"maps"
	"sync"
)

// MemoryBackend — хранилище в памяти. Используется для dry-run и в тестах.
type MemoryBackend struct {
	mu      sync.Mutex
	limit   int
	docs    map[string]map[string]any
	commits int

	// FailCommit, если задан, вызывается перед каждым commit с его номером
	// (с нуля). Ненулевая ошибка отклоняет commit целиком.
	FailCommit func(n int) error
}

// NewMemoryBackend создаёт пустой MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		limit: MaxBatchSize,
		docs:  make(map[string]map[string]any),
	}
}

// WithLimit задаёт предел размера batch.
func (m *MemoryBackend) WithLimit(n int) *MemoryBackend {
	m.limit = n
	return m
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) MaxBatchSize() int { return m.limit }

// Commit записывает entries. Payload копируется поверхностно.
func (m *MemoryBackend) Commit(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.commits
	m.commits++
	if m.FailCommit != nil {
		if err := m.FailCommit(n); err != nil {
			return err
		}
	}

	for _, e := range entries {
		m.docs[e.String()] = maps.Clone(e.Payload)
	}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

// Get возвращает документ по полному пути.
func (m *MemoryBackend) Get(path string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[path]
	return doc, ok
}

// Len возвращает число документов.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// Commits возвращает число вызовов Commit.
func (m *MemoryBackend) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Paths возвращает пути всех документов.
func (m *MemoryBackend) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.docs))
	for p := range m.docs {
		paths = append(paths, p)
	}
	return paths
}
