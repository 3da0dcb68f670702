package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// EmulatorHostEnv — адрес эмулятора хранилища (путь к файлу SQLite
// или ":memory:"). Должен быть задан до создания backend.
const EmulatorHostEnv = "LEGISYNC_STORE_EMULATOR_HOST"

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS documents (
		collection_path TEXT NOT NULL,
		document_id     TEXT NOT NULL,
		payload         TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		PRIMARY KEY (collection_path, document_id)
	);
`

const sqliteUpsert = `
	INSERT INTO documents (collection_path, document_id, payload, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (collection_path, document_id)
	DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
`

// SQLiteBackend — локальный эмулятор хранилища документов на SQLite.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// OpenSQLite открывает базу эмулятора по адресу из EmulatorHostEnv.
func OpenSQLite(ctx context.Context) (*SQLiteBackend, error) {
	path := os.Getenv(EmulatorHostEnv)
	if path == "" {
		return nil, ErrEmulatorHostMissing
	}
	return OpenSQLitePath(ctx, path)
}

// OpenSQLitePath открывает базу эмулятора по пути и создаёт схему.
func OpenSQLitePath(ctx context.Context, path string) (*SQLiteBackend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if path == ":memory:" {
		// каждое подключение к :memory: — отдельная база
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	return &SQLiteBackend{db: db, path: path}, nil
}

func (s *SQLiteBackend) Name() string { return "emulator" }

func (s *SQLiteBackend) MaxBatchSize() int { return MaxBatchSize }

// Path возвращает путь к базе.
func (s *SQLiteBackend) Path() string { return s.path }

// Commit записывает entries одной транзакцией.
func (s *SQLiteBackend) Commit(ctx context.Context, entries []Entry) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, e := range entries {
		payload, mErr := json.Marshal(e.Payload)
		if mErr != nil {
			return fmt.Errorf("marshal %s: %w", e.Address, mErr)
		}
		if _, err = stmt.ExecContext(ctx, e.CollectionPath, e.DocumentID, string(payload), now); err != nil {
			return fmt.Errorf("sqlite: upsert %s: %w", e.Address, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Get возвращает payload документа. Второе значение false, если документа нет.
func (s *SQLiteBackend) Get(ctx context.Context, addr Address) (map[string]any, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM documents WHERE collection_path = ? AND document_id = ?`,
		addr.CollectionPath, addr.DocumentID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: get %s: %w", addr, err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, false, fmt.Errorf("sqlite: decode %s: %w", addr, err)
	}
	return payload, true, nil
}

// Count возвращает число документов в коллекции.
func (s *SQLiteBackend) Count(ctx context.Context, collectionPath string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM documents WHERE collection_path = ?`, collectionPath,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
