package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

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
	require.NoError(t, db.AutoMigrate(&MonitoredArtist{}))
	return db
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(nil, newTestDB(t), zap.NewNop())
}

func TestStartMonitoringIsIdempotent(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t)

	require.NoError(t, registry.StartMonitoring(ctx, "123", "100", "TestArtist"))
	require.NoError(t, registry.StartMonitoring(ctx, "123", "999", "SomeoneElse"))

	artists, err := registry.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, artists, 1)
	assert.Equal(t, "100", artists[0].LastWorkID)
	assert.Equal(t, "TestArtist", artists[0].ArtistName)
}

func TestRecordObservationAdvancesMarker(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t)

	require.NoError(t, registry.StartMonitoring(ctx, "123", "100", "TestArtist"))
	before, err := registry.Get(ctx, "123")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, registry.RecordObservation(ctx, "123", "101", "RenamedArtist"))

	after, err := registry.Get(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, "101", after.LastWorkID)
	assert.Equal(t, "RenamedArtist", after.ArtistName)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestRefreshNameLeavesUpdatedAtAlone(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t)

	require.NoError(t, registry.StartMonitoring(ctx, "123", "100", "TestArtist"))
	before, err := registry.Get(ctx, "123")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, registry.RefreshName(ctx, "123", "RenamedArtist"))

	after, err := registry.Get(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, "RenamedArtist", after.ArtistName)
	assert.Equal(t, "100", after.LastWorkID)
	assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt))
}

func TestStopMonitoring(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t)

	require.NoError(t, registry.StartMonitoring(ctx, "123", "100", ""))
	require.NoError(t, registry.StopMonitoring(ctx, "123"))

	artist, err := registry.Get(ctx, "123")
	require.NoError(t, err)
	assert.Nil(t, artist)

	// Stopping again is a no-op.
	require.NoError(t, registry.StopMonitoring(ctx, "123"))
}

func TestGetUnknownArtist(t *testing.T) {
	registry := newTestRegistry(t)

	artist, err := registry.Get(context.Background(), "999")
	require.NoError(t, err)
	assert.Nil(t, artist)
}
