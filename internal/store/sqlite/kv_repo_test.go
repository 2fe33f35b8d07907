package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/store/sqlite"
)

func newRepo(t *testing.T) *sqlite.KVRepo {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	require.NoError(t, sqlite.Migrate(db))
	return sqlite.NewKVRepo(db)
}

func TestKVRepo_GetMissing(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.Get(context.Background(), domain.KeyUser)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKVRepo_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Set(ctx, domain.KeyFinds, `[]`))
	require.NoError(t, repo.Set(ctx, domain.KeyFinds, `[{"id":"f1"}]`))

	v, err := repo.Get(ctx, domain.KeyFinds)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"f1"}]`, v)

	keys, err := repo.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.KeyFinds}, keys)
}

func TestKVRepo_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Set(ctx, domain.KeyUser, `{"id":"u1"}`))
	require.NoError(t, repo.Set(ctx, domain.KeyStores, `[]`))

	require.NoError(t, repo.Delete(ctx, domain.KeyUser))
	_, err := repo.Get(ctx, domain.KeyUser)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.Clear(ctx))
	_, err = repo.Get(ctx, domain.KeyStores)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
