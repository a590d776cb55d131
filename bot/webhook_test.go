package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gensaku/core"
	"gensaku/pixiv"
)

func postEvent(t *testing.T, router http.Handler, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAcceptsNewWorkEvent(t *testing.T) {
	ctx := context.Background()
	delivery := &fakeDelivery{}
	dispatcher, store := newTestDispatcher(t, delivery)
	router := webhookRouter(zap.NewNop(), dispatcher)

	require.NoError(t, store.Subscribe(ctx, "u1", "123", "100"))

	event := core.NewWorkEvent{
		Type:     core.EventNewItem,
		ArtistID: "123",
		Item:     &pixiv.Illust{ID: 101, Title: "New Work 1", Artist: pixiv.Artist{ID: 123, Name: "TestArtist"}},
	}
	body, err := json.Marshal(event)
	require.NoError(t, err)

	rec := postEvent(t, router, body)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"accepted"}`, rec.Body.String())

	// Fan-out runs asynchronously after the response.
	assert.Eventually(t, func() bool {
		subs, err := store.ListByArtist(ctx, "123")
		return err == nil && len(subs) == 1 && subs[0].LastNotifiedID == "101"
	}, time.Second, 10*time.Millisecond)
}

func TestWebhookRejectsUnknownEventType(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, &fakeDelivery{})
	router := webhookRouter(zap.NewNop(), dispatcher)

	rec := postEvent(t, router, []byte(`{"type":"something_else","creator_id":"123"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRejectsMissingItem(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, &fakeDelivery{})
	router := webhookRouter(zap.NewNop(), dispatcher)

	rec := postEvent(t, router, []byte(`{"type":"new_item","creator_id":"123"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRejectsInvalidItem(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, &fakeDelivery{})
	router := webhookRouter(zap.NewNop(), dispatcher)

	rec := postEvent(t, router, []byte(`{"type":"new_item","creator_id":"123","item":{"id":0}}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, &fakeDelivery{})
	router := webhookRouter(zap.NewNop(), dispatcher)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
