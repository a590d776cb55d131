package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"gensaku/config"
	"gensaku/core"
)

// NewWebhookServer exposes the callback the detection service POSTs to when
// it finds a new work. A 2xx response means "accepted for fan-out"; delivery
// itself happens asynchronously.
func NewWebhookServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, dispatcher *Dispatcher) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.Bot.WebhookPort)
	srv := &http.Server{Addr: addr, Handler: webhookRouter(log, dispatcher)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func webhookRouter(log *zap.Logger, dispatcher *Dispatcher) http.Handler {
	h := &webhookHandler{log, dispatcher}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Post("/webhook", h.receive)

	return r
}

type webhookHandler struct {
	log        *zap.Logger
	dispatcher *Dispatcher
}

func (h *webhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	var event core.NewWorkEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	if event.Type != core.EventNewItem {
		http.Error(w, fmt.Sprintf("unknown event type: %s", event.Type), 400)
		return
	}
	if event.Item == nil {
		http.Error(w, "item is required", 400)
		return
	}
	if err := event.Item.Validate(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	h.log.Sugar().Infow("Accepted update for fan-out",
		"artist_id", event.ArtistID, "work_id", event.Item.WorkID())

	// The caller is fire-and-forget; don't make it wait on deliveries.
	go h.dispatcher.Dispatch(context.Background(), event.ArtistID, event.Item)

	h.resolve(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *webhookHandler) resolve(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
