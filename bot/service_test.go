package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gensaku/core"
	"gensaku/pixiv"
)

type fakeCoreAPI struct {
	artists map[string]string // artist id -> display name
	works   map[string][]pixiv.Illust

	registered   []string
	deregistered []string
	forced       []string
}

func (f *fakeCoreAPI) ArtistInfo(ctx context.Context, artistID string) (*pixiv.UserDetail, error) {
	name, ok := f.artists[artistID]
	if !ok {
		return nil, fmt.Errorf("artist %s: %w", artistID, pixiv.ErrNotFound)
	}
	return &pixiv.UserDetail{Artist: pixiv.Artist{Name: name}}, nil
}

func (f *fakeCoreAPI) LatestWorks(ctx context.Context, artistID string) ([]pixiv.Illust, error) {
	works, ok := f.works[artistID]
	if !ok {
		return nil, errors.New("feed unavailable")
	}
	return works, nil
}

func (f *fakeCoreAPI) Register(ctx context.Context, artistID, initialMarker, artistName string) error {
	f.registered = append(f.registered, artistID)
	return nil
}

func (f *fakeCoreAPI) Deregister(ctx context.Context, artistID string) error {
	f.deregistered = append(f.deregistered, artistID)
	return nil
}

func (f *fakeCoreAPI) ForceUpdate(ctx context.Context, artistID string) (*core.PollResult, error) {
	f.forced = append(f.forced, artistID)
	return &core.PollResult{CheckedCount: 1}, nil
}

func newTestService(t *testing.T, api CoreAPI) (*Service, *Store) {
	t.Helper()
	store := newTestStore(t)
	return NewService(nil, zap.NewNop(), store, api), store
}

func TestSubscribeSeedsMarkerAndRegisters(t *testing.T) {
	ctx := context.Background()
	api := &fakeCoreAPI{
		artists: map[string]string{"123": "TestArtist"},
		works: map[string][]pixiv.Illust{
			"123": {{ID: 100, Title: "Old Work", Artist: pixiv.Artist{ID: 123, Name: "TestArtist"}}},
		},
	}
	svc, store := newTestService(t, api)

	name, err := svc.Subscribe(ctx, "u1", "123")
	require.NoError(t, err)
	assert.Equal(t, "TestArtist", name)
	assert.Equal(t, []string{"123"}, api.registered)

	subs, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "100", subs[0].LastNotifiedID)
}

func TestSubscribeUnknownArtist(t *testing.T) {
	api := &fakeCoreAPI{artists: map[string]string{}}
	svc, store := newTestService(t, api)

	_, err := svc.Subscribe(context.Background(), "u1", "999")
	require.ErrorIs(t, err, ErrArtistNotFound)

	subs, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.Empty(t, api.registered)
}

func TestSubscribeToleratesMarkerSeedFailure(t *testing.T) {
	ctx := context.Background()
	api := &fakeCoreAPI{artists: map[string]string{"123": "TestArtist"}}
	svc, store := newTestService(t, api)

	_, err := svc.Subscribe(ctx, "u1", "123")
	require.NoError(t, err)

	subs, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Empty(t, subs[0].LastNotifiedID)
}

func TestUnsubscribeDeregistersOnlyLastSubscriber(t *testing.T) {
	ctx := context.Background()
	api := &fakeCoreAPI{
		artists: map[string]string{"123": "TestArtist"},
		works:   map[string][]pixiv.Illust{"123": {}},
	}
	svc, _ := newTestService(t, api)

	_, err := svc.Subscribe(ctx, "u1", "123")
	require.NoError(t, err)
	_, err = svc.Subscribe(ctx, "u2", "123")
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(ctx, "u1", "123"))
	assert.Empty(t, api.deregistered)

	require.NoError(t, svc.Unsubscribe(ctx, "u2", "123"))
	assert.Equal(t, []string{"123"}, api.deregistered)
}

func TestForceRefresh(t *testing.T) {
	api := &fakeCoreAPI{}
	svc, _ := newTestService(t, api)

	result, err := svc.ForceRefresh(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, 1, result.CheckedCount)
	assert.Equal(t, []string{"123"}, api.forced)
}

func TestCleanArtistID(t *testing.T) {
	assert.Equal(t, "12345", CleanArtistID("12345"))
	assert.Equal(t, "12345", CleanArtistID("https://www.pixiv.net/users/12345"))
	assert.Equal(t, "", CleanArtistID("not an id"))
}
