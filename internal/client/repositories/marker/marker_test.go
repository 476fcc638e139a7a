package marker

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/localdb"
	"github.com/dmitrijs2005/gophchat/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, *metadata.SQLiteRepository) {
	t.Helper()
	db, err := localdb.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := metadata.NewSQLiteRepository(db)
	return NewStore(repo), repo
}

func TestLastCleanup_AbsentOnFirstRun(t *testing.T) {
	s, _ := setupStore(t)

	_, ok, err := s.LastCleanup(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetThenGet_MillisecondPrecision(t *testing.T) {
	s, repo := setupStore(t)
	ctx := context.Background()
	at := time.Date(2026, time.October, 15, 9, 30, 0, 123456789, time.UTC)

	require.NoError(t, s.SetLastCleanup(ctx, at))

	got, ok, err := s.LastCleanup(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, at.UnixMilli(), got.UnixMilli())

	raw, _, err := repo.Get(ctx, common.RetentionMarkerKey)
	require.NoError(t, err)
	assert.Equal(t, "1792056600123", raw)
}

func TestLastCleanup_GarbageIsTreatedAsAbsent(t *testing.T) {
	s, repo := setupStore(t)
	ctx := context.Background()

	for _, v := range []string{"yesterday", "", "-5"} {
		require.NoError(t, repo.Set(ctx, common.RetentionMarkerKey, v))
		_, ok, err := s.LastCleanup(ctx)
		require.NoError(t, err)
		assert.False(t, ok, "value %q", v)
	}
}
