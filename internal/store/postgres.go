package store

import (
	"context"

	"github.com/shaiso/legisync/internal/repo"
)

// documentWriter — часть repo.DocumentRepo, нужная backend.
type documentWriter interface {
	UpsertBatch(ctx context.Context, rows []repo.DocumentRow) error
	Close()
}

// PostgresBackend — боевое хранилище: таблица documents в PostgreSQL.
type PostgresBackend struct {
	repo documentWriter
}

// NewPostgresBackend создаёт PostgresBackend поверх репозитория документов.
func NewPostgresBackend(r documentWriter) *PostgresBackend {
	return &PostgresBackend{repo: r}
}

func (p *PostgresBackend) Name() string { return "live-store" }

func (p *PostgresBackend) MaxBatchSize() int { return MaxBatchSize }

// Commit записывает entries одной транзакцией.
func (p *PostgresBackend) Commit(ctx context.Context, entries []Entry) error {
	rows := make([]repo.DocumentRow, len(entries))
	for i, e := range entries {
		rows[i] = repo.DocumentRow{
			CollectionPath: e.CollectionPath,
			DocumentID:     e.DocumentID,
			Payload:        e.Payload,
		}
	}
	return p.repo.UpsertBatch(ctx, rows)
}

func (p *PostgresBackend) Close() error {
	p.repo.Close()
	return nil
}
