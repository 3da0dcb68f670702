package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema — таблица документов. Адрес документа — пара
// (collection_path, document_id), payload хранится как JSONB.
const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		collection_path TEXT        NOT NULL,
		document_id     TEXT        NOT NULL,
		payload         JSONB       NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection_path, document_id)
	);
	CREATE INDEX IF NOT EXISTS documents_updated_at_idx ON documents (updated_at);
`

const upsertDocument = `
	INSERT INTO documents (collection_path, document_id, payload, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (collection_path, document_id)
	DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
`

// DocumentRow — документ для записи.
type DocumentRow struct {
	CollectionPath string
	DocumentID     string
	Payload        map[string]any
}

// DocumentRepo — репозиторий документов (боевое хранилище).
type DocumentRepo struct {
	pool *pgxpool.Pool
}

// NewDocumentRepo создаёт новый DocumentRepo.
func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

// EnsureSchema создаёт таблицу documents, если её нет.
func (r *DocumentRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure documents schema: %w", err)
	}
	return nil
}

// UpsertBatch записывает документы одной транзакцией.
//
// Либо записываются все документы, либо ни один. Повторная запись
// того же адреса перезаписывает payload.
func (r *DocumentRepo) UpsertBatch(ctx context.Context, rows []DocumentRow) error {
	if len(rows) == 0 {
		return ErrEmptyBatch
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, row := range rows {
		payload, err := json.Marshal(row.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s/%s: %w", row.CollectionPath, row.DocumentID, err)
		}
		batch.Queue(upsertDocument, row.CollectionPath, row.DocumentID, payload, now)
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("upsert %d documents: %w", len(rows), err)
	}
	return nil
}

// Get возвращает payload документа.
func (r *DocumentRepo) Get(ctx context.Context, collectionPath, documentID string) (map[string]any, error) {
	query := `
		SELECT payload
		FROM documents
		WHERE collection_path = $1 AND document_id = $2
	`
	var raw []byte
	err := r.pool.QueryRow(ctx, query, collectionPath, documentID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return payload, nil
}

// Count возвращает число документов в коллекции.
func (r *DocumentRepo) Count(ctx context.Context, collectionPath string) (int64, error) {
	query := `SELECT count(*) FROM documents WHERE collection_path = $1`

	var n int64
	if err := r.pool.QueryRow(ctx, query, collectionPath).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Close закрывает пул подключений.
func (r *DocumentRepo) Close() {
	r.pool.Close()
}
