package repo

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDSN(t *testing.T) {
	t.Setenv("DB_URL", "")
	assert.Equal(t, DefaultDSN, ResolveDSN(""))
	assert.Equal(t, "postgres://x", ResolveDSN("postgres://x"))

	t.Setenv("DB_URL", "postgres://env")
	assert.Equal(t, "postgres://env", ResolveDSN(""))
}

// testPool подключается к LEGISYNC_TEST_DB_URL; без неё тест пропускается.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("LEGISYNC_TEST_DB_URL")
	if dsn == "" {
		t.Skip("LEGISYNC_TEST_DB_URL is not set")
	}
	pool, err := NewPool(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestDocumentRepo(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	r := &DocumentRepo{pool: pool}
	require.NoError(t, r.EnsureSchema(ctx))

	collection := "test_" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM documents WHERE collection_path = $1", collection)
	})

	assert.ErrorIs(t, r.UpsertBatch(ctx, nil), ErrEmptyBatch)

	require.NoError(t, r.UpsertBatch(ctx, []DocumentRow{
		{CollectionPath: collection, DocumentID: "1", Payload: map[string]any{"name": "A"}},
		{CollectionPath: collection, DocumentID: "2", Payload: map[string]any{"name": "B"}},
	}))

	// Повторная запись перезаписывает payload
	require.NoError(t, r.UpsertBatch(ctx, []DocumentRow{
		{CollectionPath: collection, DocumentID: "1", Payload: map[string]any{"name": "A2"}},
	}))

	doc, err := r.Get(ctx, collection, "1")
	require.NoError(t, err)
	assert.Equal(t, "A2", doc["name"])

	n, err := r.Count(ctx, collection)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = r.Get(ctx, collection, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdvisoryLock(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	key := int64(uuid.New().ID())

	first := NewAdvisoryLock(pool, key)
	second := NewAdvisoryLock(pool, key)

	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// Повторный TryLock держателя не берёт новое соединение
	ok, err = first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Unlock(ctx))
	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock(ctx))
}
