package bot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.sqlite")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Subscription{}))
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(nil, newTestDB(t), zap.NewNop())
}

func TestSubscribeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Subscribe(ctx, "u1", "123", "100"))
	require.NoError(t, store.Subscribe(ctx, "u1", "123", "999"))

	subs, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "100", subs[0].LastNotifiedID)
}

func TestUnsubscribeMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Unsubscribe(ctx, "u1", "123"))
}

func TestListScopes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Subscribe(ctx, "u1", "123", ""))
	require.NoError(t, store.Subscribe(ctx, "u1", "456", ""))
	require.NoError(t, store.Subscribe(ctx, "u2", "123", ""))

	byUser, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byArtist, err := store.ListByArtist(ctx, "123")
	require.NoError(t, err)
	assert.Len(t, byArtist, 2)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSetLastNotified(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Subscribe(ctx, "u1", "123", "100"))
	require.NoError(t, store.Subscribe(ctx, "u2", "123", "100"))
	require.NoError(t, store.SetLastNotified(ctx, "u1", "123", "101"))

	subs, err := store.ListByArtist(ctx, "123")
	require.NoError(t, err)
	markers := map[string]string{}
	for _, sub := range subs {
		markers[sub.UserID] = sub.LastNotifiedID
	}
	assert.Equal(t, "101", markers["u1"])
	assert.Equal(t, "100", markers["u2"])
}
