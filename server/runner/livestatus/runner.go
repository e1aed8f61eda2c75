package livestatus

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/streamscout/streamscout/store"
)

// Provider fetches the current live state of every tracked channel from
// the platform APIs. Implementations live outside this package; the
// runner only cares about the resulting map.
type Provider interface {
	FetchLiveStatus(ctx context.Context) (map[string]*store.LiveStreamInfo, error)
}

// Runner refreshes the store's live-status cache on a timer. The cache
// TTL is intentionally much longer than the poll interval, so a few
// failed polls in a row degrade to stale data instead of an empty map.
type Runner struct {
	store    *store.Store
	provider Provider
	interval time.Duration

	// limiter caps provider calls across the ticker and manual RunOnce
	// triggers so the platform API budget holds.
	limiter *rate.Limiter
}

const defaultInterval = 15 * time.Minute

func NewRunner(store *store.Store, provider Provider) *Runner {
	return &Runner{
		store:    store,
		provider: provider,
		interval: defaultInterval,
		limiter:  rate.NewLimiter(rate.Every(time.Minute), 2),
	}
}

// Run starts the background task.
func (r *Runner) Run(ctx context.Context) {
	// Poll once on startup so the first page load has live data.
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.refresh(ctx)
		case <-ctx.Done():
			slog.Info("live status runner stopped")
			return
		}
	}
}

// RunOnce polls once (for manual trigger).
func (r *Runner) RunOnce(ctx context.Context) {
	r.refresh(ctx)
}

func (r *Runner) refresh(ctx context.Context) {
	if !r.limiter.Allow() {
		slog.Warn("live status poll skipped, rate limit reached")
		return
	}

	statuses, err := r.provider.FetchLiveStatus(ctx)
	if err != nil {
		// Keep whatever is cached; readers fall back to stale data.
		slog.Error("failed to fetch live status", "error", err)
		return
	}

	r.store.SetLiveStatus(ctx, statuses)

	liveCount := 0
	for _, info := range statuses {
		if info.IsLive {
			liveCount++
		}
	}
	slog.Info("refreshed live status", "channels", len(statuses), "live", liveCount)
}
