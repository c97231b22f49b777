package state

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
)

// SweeperConfig bounds each maintenance pass.
type SweeperConfig struct {
	Interval         time.Duration
	Timeout          time.Duration // hard wall-clock bound per pass
	MetricRetention  time.Duration
	MetricCapPerMint int
	MaxMetricSeries  int
	HoldingTTL       time.Duration
	StuckAfter       time.Duration // pending markers older than this are reclaimed
}

// Sweeper is the background eviction pass over the Store. It is advisory
// cleanup: a pass that overruns its timeout is logged and abandoned, the
// next tick starts clean. The event-processing path is never paused; any
// mint whose lock is held is skipped until the next pass.
type Sweeper struct {
	store  *Store
	cfg    SweeperConfig
	logger *slog.Logger
}

// NewSweeper wires a sweeper over the store.
func NewSweeper(store *Store, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "maintenance")),
	}
}

// Run ticks until the context ends.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("maintenance stopped")
			return nil
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

type sweepResult struct {
	pointsPruned  int
	seriesEvicted int
	deadDropped   int
	holdingsFreed int
	reclaimed     int
	skippedLocked int
}

// Sweep runs one bounded maintenance pass.
func (w *Sweeper) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	start := time.Now()
	var res sweepResult
	w.pruneMetrics(ctx, &res)
	w.pruneDead(ctx, &res)
	w.expireHoldings(ctx, &res)
	w.reclaimStuck(ctx, &res)

	if ctx.Err() != nil {
		w.logger.Warn("sweep hit its time budget, remainder deferred to next pass",
			slog.Duration("elapsed", time.Since(start)))
	}
	w.logger.Debug("sweep complete",
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("points_pruned", res.pointsPruned),
		slog.Int("series_evicted", res.seriesEvicted),
		slog.Int("dead_dropped", res.deadDropped),
		slog.Int("holdings_freed", res.holdingsFreed),
		slog.Int("markers_reclaimed", res.reclaimed),
		slog.Int("skipped_locked", res.skippedLocked),
	)
}

// pruneMetrics trims every price ring to the retention window and per-mint
// cap, then evicts whole series beyond the series cap, oldest and ownerless
// first.
func (w *Sweeper) pruneMetrics(ctx context.Context, res *sweepResult) {
	cutoff := time.Now().Add(-w.cfg.MetricRetention)
	type seriesInfo struct {
		mint string
		last time.Time
	}
	var series []seriesInfo

	w.store.metrics.Range(func(k, v any) bool {
		if ctx.Err() != nil {
			return false
		}
		mint := k.(string)
		r := v.(*metricRing)

		r.mu.Lock()
		kept := r.points[:0]
		for _, p := range r.points {
			if p.At.After(cutoff) {
				kept = append(kept, p)
			}
		}
		res.pointsPruned += len(r.points) - len(kept)
		if w.cfg.MetricCapPerMint > 0 && len(kept) > w.cfg.MetricCapPerMint {
			res.pointsPruned += len(kept) - w.cfg.MetricCapPerMint
			kept = kept[len(kept)-w.cfg.MetricCapPerMint:]
		}
		r.points = kept
		var last time.Time
		if len(kept) > 0 {
			last = kept[len(kept)-1].At
		}
		r.mu.Unlock()

		series = append(series, seriesInfo{mint: mint, last: last})
		return true
	})

	if w.cfg.MaxMetricSeries <= 0 || len(series) <= w.cfg.MaxMetricSeries {
		return
	}
	sort.Slice(series, func(i, j int) bool { return series[i].last.Before(series[j].last) })
	for _, si := range series[:len(series)-w.cfg.MaxMetricSeries] {
		if ctx.Err() != nil {
			return
		}
		if w.mintBusy(si.mint) {
			continue
		}
		release, ok := w.store.TryLock(si.mint)
		if !ok {
			res.skippedLocked++
			continue
		}
		w.store.metrics.Delete(si.mint)
		release()
		res.seriesEvicted++
	}
}

func (w *Sweeper) pruneDead(ctx context.Context, res *sweepResult) {
	now := time.Now()
	w.store.dead.Range(func(k, v any) bool {
		if ctx.Err() != nil {
			return false
		}
		if now.After(v.(time.Time)) {
			w.store.dead.Delete(k)
			res.deadDropped++
		}
		return true
	})
}

// expireHoldings drops holdings unrefreshed past the TTL. Mints with a
// sell intent are left alone; an in-flight build's lock makes the sweep
// skip rather than wait.
func (w *Sweeper) expireHoldings(ctx context.Context, res *sweepResult) {
	if w.cfg.HoldingTTL <= 0 {
		return
	}
	cutoff := time.Now().Add(-w.cfg.HoldingTTL)
	w.store.holdings.Range(func(k, v any) bool {
		if ctx.Err() != nil {
			return false
		}
		mint := k.(string)
		h := v.(domain.Holding)
		if h.UpdatedAt.After(cutoff) {
			return true
		}
		if _, pending := w.store.PendingSell(mint); pending {
			return true
		}
		release, locked := w.store.TryLock(mint)
		if !locked {
			res.skippedLocked++
			return true
		}
		w.store.holdings.Delete(mint)
		release()
		res.holdingsFreed++
		return true
	})
}

// reclaimStuck clears pending markers that exceeded the stuck-operation
// timeout, claimed or not; a claim that old is a dead build.
func (w *Sweeper) reclaimStuck(ctx context.Context, res *sweepResult) {
	if w.cfg.StuckAfter <= 0 {
		return
	}
	cutoff := time.Now().Add(-w.cfg.StuckAfter)
	w.store.pendingSells.Range(func(k, v any) bool {
		if ctx.Err() != nil {
			return false
		}
		m := v.(*sellMarker)
		if m.since.Before(cutoff) {
			w.store.ClearPendingSell(k.(string))
			res.reclaimed++
			w.logger.Warn("reclaimed stuck sell marker",
				slog.String("mint", k.(string)),
				slog.Duration("age", time.Since(m.since)),
				slog.Bool("in_flight", m.inFlight.Load()),
			)
		}
		return true
	})
	w.store.pendingBuys.Range(func(k, v any) bool {
		if ctx.Err() != nil {
			return false
		}
		if v.(time.Time).Before(cutoff) {
			w.store.ClearPendingBuy(k.(string))
			res.reclaimed++
			w.logger.Warn("reclaimed stuck buy marker", slog.String("mint", k.(string)))
		}
		return true
	})
}

func (w *Sweeper) mintBusy(mint string) bool {
	if _, ok := w.store.PendingSell(mint); ok {
		return true
	}
	if _, ok := w.store.holdings.Load(mint); ok {
		return true
	}
	return false
}
