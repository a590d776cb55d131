package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"gensaku/config"
	"gensaku/pixiv"
)

// ErrCycleInFlight is returned when a detection cycle is requested while
// another one is still running. Cycles are skipped, never queued.
var ErrCycleInFlight = errors.New("a detection cycle is already in flight")

// ContentSource fetches an artist's most recent works, newest first.
type ContentSource interface {
	LatestWorks(ctx context.Context, artistID string) ([]pixiv.Illust, error)
}

// Notifier hands a detected update off for fan-out. Implementations are
// fire-and-forget: delivery outcome never reaches the poller.
type Notifier interface {
	NotifyNewWork(ctx context.Context, artistID string, work *pixiv.Illust)
}

// PollResult summarizes one detection cycle for synchronous callers.
// LastCheckedWorkID reflects whichever artist happened to be visited last.
type PollResult struct {
	CheckedCount      int    `json:"checked_count"`
	UpdatedCount      int    `json:"updated_count"`
	LastCheckedWorkID string `json:"last_checked_item_id,omitempty"`
}

// Poller runs detection cycles over the registry. The mutex is the
// single-flight guard shared by the timer loop and forced updates.
type Poller struct {
	log      *zap.Logger
	registry *Registry
	source   ContentSource
	notifier Notifier
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, registry *Registry, source ContentSource, notifier Notifier) *Poller {
	poller := &Poller{
		log:      log,
		registry: registry,
		source:   source,
		notifier: notifier,
		interval: cfg.PollInterval(),
		done:     make(chan struct{}),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go poller.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop poller")
			poller.Stop()
			return nil
		},
	})

	return poller
}

func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	defer close(p.done)

	p.log.Sugar().Infof("Poller started, interval %s", p.interval)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Sugar().Info("Poller stopped")
			return

		case <-timer.C:
			p.runScheduled()
			// Rescheduling happens after the cycle completes, so a slow
			// cycle pushes the next one out instead of overlapping it.
			timer.Reset(p.interval)
		}
	}
}

// Stop finishes the in-progress cycle, if any, and stops scheduling new ones.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

func (p *Poller) runScheduled() {
	// The scheduled cycle must run to completion once started; shutdown waits
	// for it rather than cancelling in-flight fetches, which are bounded by
	// the upstream client's own timeout.
	result, err := p.RunCycle(context.Background(), "")
	switch {
	case errors.Is(err, ErrCycleInFlight):
		p.log.Sugar().Warn("Skipping scheduled cycle, previous cycle still in flight")
	case err != nil:
		p.log.Sugar().Errorw("Scheduled cycle failed", "err", err)
	default:
		if result.CheckedCount == 0 {
			p.log.Sugar().Info("No artists monitored")
		}
	}
}

// RunCycle performs one detection pass. An empty artistID visits every
// monitored artist; otherwise only the given one. At most one cycle runs at a
// time regardless of scope; a contended call returns ErrCycleInFlight without
// touching the registry.
func (p *Poller) RunCycle(ctx context.Context, artistID string) (PollResult, error) {
	if !p.mu.TryLock() {
		return PollResult{}, ErrCycleInFlight
	}
	defer p.mu.Unlock()

	log := p.log.Sugar().With("cycle_id", uuid.NewString())

	var artists MonitoredArtists
	if artistID != "" {
		artist, err := p.registry.Get(ctx, artistID)
		if err != nil {
			return PollResult{}, err
		}
		if artist == nil {
			return PollResult{}, nil
		}
		artists = MonitoredArtists{*artist}
	} else {
		var err error
		artists, err = p.registry.ListAll(ctx)
		if err != nil {
			return PollResult{}, err
		}
	}

	start := time.Now().UTC()
	var result PollResult
	var errored int
	for i := range artists {
		p.checkArtist(ctx, log, &artists[i], &result, &errored)
	}

	if result.CheckedCount > 0 {
		args := []any{"checked", result.CheckedCount, "elapsed_msecs", int(time.Since(start).Milliseconds())}
		if result.UpdatedCount != 0 {
			args = append(args, "updated", result.UpdatedCount)
		}
		if errored != 0 {
			args = append(args, "errored", errored)
		}
		log.Infow("Detection cycle completed", args...)
	}
	return result, nil
}

func (p *Poller) checkArtist(ctx context.Context, log *zap.SugaredLogger, artist *MonitoredArtist, result *PollResult, errored *int) {
	result.CheckedCount++

	works, err := p.source.LatestWorks(ctx, artist.ArtistID)
	if err != nil {
		// One artist failing must never abort the cycle.
		*errored++
		log.Errorw("Failed to fetch latest works", "artist_id", artist.ArtistID, "err", err)
		return
	}
	if len(works) == 0 {
		return
	}

	newest := &works[0]
	result.LastCheckedWorkID = newest.WorkID()

	if newest.WorkID() == artist.LastWorkID {
		if name := newest.Artist.Name; name != "" && name != artist.ArtistName {
			if err := p.registry.RefreshName(ctx, artist.ArtistID, name); err != nil {
				log.Warnw("Failed to refresh artist name", "artist_id", artist.ArtistID, "err", err)
			}
		}
		return
	}

	log.Infow("New work detected", "artist_id", artist.ArtistID, "work_id", newest.WorkID())

	// Dispatch before committing the marker; the commit never waits on the
	// delivery outcome, so a failed delivery does not re-arm detection.
	p.notifier.NotifyNewWork(ctx, artist.ArtistID, newest)

	if err := p.registry.RecordObservation(ctx, artist.ArtistID, newest.WorkID(), newest.Artist.Name); err != nil {
		*errored++
		log.Errorw("Failed to record observation", "artist_id", artist.ArtistID, "err", err)
		return
	}
	result.UpdatedCount++
}
