package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/AV1080p/-solana-sniper-bot/internal/state"
)

// StatsSource exposes the store's entry counts. *state.Store satisfies it.
type StatsSource interface {
	Snapshot() state.Stats
}

// Memory watcher defaults. The point watermarks bound the trade-metric
// history, the largest structure the store holds between sweeps.
const (
	DefaultMemInterval    = time.Minute
	DefaultWarnHeapMB     = 512
	DefaultCriticalHeapMB = 1024
	DefaultWarnPoints     = 80_000
	DefaultCriticalPoints = 100_000
)

// pendingBuyWarn flags an improbable pile-up of in-flight entries, which
// usually means marker cleanup is failing somewhere.
const pendingBuyWarn = 50

// MemConfig carries the sampling interval and watermarks.
type MemConfig struct {
	Interval       time.Duration
	WarnHeapMB     uint64
	CriticalHeapMB uint64
	WarnPoints     int
	CriticalPoints int
}

// MemWatcher samples runtime heap usage and store sizes on a fixed
// interval. Warn crossings are logged, critical crossings are also pushed
// to the operator.
type MemWatcher struct {
	cfg    MemConfig
	store  StatsSource
	alert  Alerter
	logger *slog.Logger
}

// NewMemWatcher builds a memory watcher. Zero config fields fall back to
// the defaults; alert may be nil.
func NewMemWatcher(cfg MemConfig, store StatsSource, alert Alerter, logger *slog.Logger) *MemWatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultMemInterval
	}
	if cfg.WarnHeapMB == 0 {
		cfg.WarnHeapMB = DefaultWarnHeapMB
	}
	if cfg.CriticalHeapMB == 0 {
		cfg.CriticalHeapMB = DefaultCriticalHeapMB
	}
	if cfg.WarnPoints == 0 {
		cfg.WarnPoints = DefaultWarnPoints
	}
	if cfg.CriticalPoints == 0 {
		cfg.CriticalPoints = DefaultCriticalPoints
	}
	return &MemWatcher{
		cfg:    cfg,
		store:  store,
		alert:  alert,
		logger: logger.With(slog.String("component", "memory_monitor")),
	}
}

// Run samples every Interval until ctx is cancelled.
func (w *MemWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			w.apply(ctx, ms.HeapAlloc, runtime.NumGoroutine(), w.store.Snapshot())
		}
	}
}

// apply checks one sample against the watermarks. Split from Run so tests
// can feed synthetic samples.
func (w *MemWatcher) apply(ctx context.Context, heapAlloc uint64, goroutines int, st state.Stats) {
	heapMB := heapAlloc >> 20

	w.logger.DebugContext(ctx, "memory sample",
		slog.Uint64("heap_mb", heapMB),
		slog.Int("goroutines", goroutines),
		slog.Int("holdings", st.Holdings),
		slog.Int("pending_buys", st.PendingBuys),
		slog.Int("pending_sells", st.PendingSells),
		slog.Int("dead", st.Dead),
		slog.Int("metric_series", st.MetricSeries),
		slog.Int("metric_points", st.MetricPoints),
	)

	switch {
	case heapMB >= w.cfg.CriticalHeapMB:
		w.logger.ErrorContext(ctx, "heap exceeded critical watermark",
			slog.Uint64("heap_mb", heapMB),
			slog.Uint64("critical_mb", w.cfg.CriticalHeapMB),
		)
		w.notify(ctx, fmt.Sprintf("Heap at %d MB, critical watermark is %d MB", heapMB, w.cfg.CriticalHeapMB))
	case heapMB >= w.cfg.WarnHeapMB:
		w.logger.WarnContext(ctx, "heap approaching critical watermark",
			slog.Uint64("heap_mb", heapMB),
			slog.Uint64("warn_mb", w.cfg.WarnHeapMB),
		)
	}

	switch {
	case st.MetricPoints >= w.cfg.CriticalPoints:
		w.logger.ErrorContext(ctx, "metric points exceeded critical watermark",
			slog.Int("points", st.MetricPoints),
			slog.Int("critical", w.cfg.CriticalPoints),
		)
		w.notify(ctx, fmt.Sprintf("Trade-metric history at %d points, critical watermark is %d", st.MetricPoints, w.cfg.CriticalPoints))
	case st.MetricPoints >= w.cfg.WarnPoints:
		w.logger.WarnContext(ctx, "metric points approaching critical watermark",
			slog.Int("points", st.MetricPoints),
			slog.Int("warn", w.cfg.WarnPoints),
		)
	}

	if st.PendingBuys > pendingBuyWarn {
		w.logger.WarnContext(ctx, "high in-flight buy count",
			slog.Int("pending_buys", st.PendingBuys),
		)
	}
}

func (w *MemWatcher) notify(ctx context.Context, message string) {
	if w.alert == nil {
		return
	}
	if err := w.alert.Notify(ctx, eventSystem, "Memory watermark exceeded", message); err != nil {
		w.logger.ErrorContext(ctx, "memory alert failed", slog.String("error", err.Error()))
	}
}
