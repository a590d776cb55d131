package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"gensaku/config"
	"gensaku/pixiv"
)

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, registry *Registry, poller *Poller, client *pixiv.Client) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.Core.Port)
	srv := &http.Server{Addr: addr, Handler: router(log, registry, poller, client)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(log *zap.Logger, registry *Registry, poller *Poller, client *pixiv.Client) http.Handler {
	ctrl := &controller{log, registry, poller, client}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/monitored-artists", func(r chi.Router) {
			r.Get("/", ctrl.listMonitored)
			r.Post("/", ctrl.register)
			r.Delete("/{artist_id}", ctrl.deregister)
		})
		r.Post("/force-update", ctrl.forceUpdate)

		r.Route("/user/{artist_id}", func(r chi.Router) {
			r.Get("/", ctrl.artistDetail)
			r.Get("/illusts", ctrl.artistWorks)
		})
		r.Get("/proxy-image", ctrl.proxyImage)
	})

	return r
}

type controller struct {
	log      *zap.Logger
	registry *Registry
	poller   *Poller
	client   *pixiv.Client
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if b, err := json.Marshal(body); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		return
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(b)
	}
}

type registerRequest struct {
	ArtistID      string `json:"artist_id"`
	InitialMarker string `json:"initial_marker"`
	ArtistName    string `json:"artist_name"`
}

func (ctrl *controller) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctrl.reject(w, 400, err)
		return
	}
	if req.ArtistID == "" {
		ctrl.reject(w, 400, errors.New("artist_id is required"))
		return
	}

	if err := ctrl.registry.StartMonitoring(r.Context(), req.ArtistID, req.InitialMarker, req.ArtistName); err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	ctrl.resolve(w, http.StatusCreated, map[string]any{"artist_id": req.ArtistID})
}

func (ctrl *controller) deregister(w http.ResponseWriter, r *http.Request) {
	artistID := chi.URLParam(r, "artist_id")

	if err := ctrl.registry.StopMonitoring(r.Context(), artistID); err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ctrl *controller) listMonitored(w http.ResponseWriter, r *http.Request) {
	artists, err := ctrl.registry.ListAll(r.Context())
	if err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	ctrl.resolve(w, 200, FromMany[MonitoredArtist, MonitoredArtistView](artists))
}

type forceUpdateRequest struct {
	ArtistID string `json:"artist_id"`
}

func (ctrl *controller) forceUpdate(w http.ResponseWriter, r *http.Request) {
	var req forceUpdateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			ctrl.reject(w, 400, err)
			return
		}
	}

	result, err := ctrl.poller.RunCycle(r.Context(), req.ArtistID)
	if errors.Is(err, ErrCycleInFlight) {
		ctrl.reject(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	ctrl.resolve(w, 200, result)
}

func (ctrl *controller) artistDetail(w http.ResponseWriter, r *http.Request) {
	artistID := chi.URLParam(r, "artist_id")

	detail, err := ctrl.client.ArtistInfo(r.Context(), artistID)
	if errors.Is(err, pixiv.ErrNotFound) {
		ctrl.reject(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	ctrl.resolve(w, 200, detail)
}

func (ctrl *controller) artistWorks(w http.ResponseWriter, r *http.Request) {
	artistID := chi.URLParam(r, "artist_id")

	works, err := ctrl.client.LatestWorks(r.Context(), artistID)
	if errors.Is(err, pixiv.ErrNotFound) {
		ctrl.reject(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	ctrl.resolve(w, 200, pixiv.IllustListResponse{Illusts: works})
}

func (ctrl *controller) proxyImage(w http.ResponseWriter, r *http.Request) {
	imageURL := r.URL.Query().Get("url")
	if imageURL == "" {
		ctrl.reject(w, 400, errors.New("url parameter is required"))
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	if err := ctrl.client.FetchImage(r.Context(), imageURL, w); err != nil {
		ctrl.log.Sugar().Warnw("Image proxy fetch failed", "url", imageURL, "err", err)
	}
}
