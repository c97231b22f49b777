// Package monitor watches the bot's own health. A task registry tracks the
// per-event goroutines the trade loop spawns and reclaims ones stuck past a
// zombie threshold; a memory watcher samples heap usage and store sizes
// against watermarks. Critical findings are pushed to the operator through
// the notifier, everything else is just logged.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Alerter delivers critical findings to the operator. *notify.Notifier
// satisfies it.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// eventSystem tags monitor alerts so operators can filter them apart from
// trade notifications.
const eventSystem = "system"

// Task registry defaults. A trade task that has run for ten minutes is not
// going to finish; its buy or sell window closed long ago.
const (
	DefaultTaskScanInterval = 5 * time.Minute
	DefaultZombieAfter      = 10 * time.Minute
)

// TaskConfig carries the zombie-scan knobs.
type TaskConfig struct {
	ScanInterval time.Duration
	ZombieAfter  time.Duration
}

type taskEntry struct {
	started     time.Time
	description string
}

// Registry tracks spawned trade tasks so the periodic scan can spot ones
// that never called done. Entries are keyed by an opaque per-task ID the
// caller never sees; the done func is the only handle.
type Registry struct {
	cfg    TaskConfig
	alert  Alerter
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]taskEntry
}

// NewRegistry builds a task registry. Zero config fields fall back to the
// defaults; alert may be nil when no notification channel is configured.
func NewRegistry(cfg TaskConfig, alert Alerter, logger *slog.Logger) *Registry {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultTaskScanInterval
	}
	if cfg.ZombieAfter <= 0 {
		cfg.ZombieAfter = DefaultZombieAfter
	}
	return &Registry{
		cfg:    cfg,
		alert:  alert,
		logger: logger.With(slog.String("component", "task_monitor")),
		tasks:  make(map[string]taskEntry),
	}
}

// Track registers a running task and returns the func that marks it
// finished. Calling done more than once is harmless.
func (r *Registry) Track(description string) (done func()) {
	id := uuid.NewString()
	r.mu.Lock()
	r.tasks[id] = taskEntry{started: time.Now(), description: description}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.tasks, id)
			r.mu.Unlock()
		})
	}
}

// ActiveCount reports how many tracked tasks have not yet called done.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Run scans for zombies every ScanInterval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.scan(ctx)
		}
	}
}

// scan reports tasks older than the zombie threshold and reclaims their
// entries. Reclaiming is safe against a late done call: delete of an
// already-deleted key is a no-op.
func (r *Registry) scan(ctx context.Context) int {
	type zombie struct {
		id          string
		description string
		age         time.Duration
	}
	now := time.Now()

	var found []zombie
	r.mu.Lock()
	for id, e := range r.tasks {
		if age := now.Sub(e.started); age > r.cfg.ZombieAfter {
			found = append(found, zombie{id: id, description: e.description, age: age})
			delete(r.tasks, id)
		}
	}
	remaining := len(r.tasks)
	r.mu.Unlock()

	if len(found) == 0 {
		return 0
	}

	for _, z := range found {
		r.logger.WarnContext(ctx, "zombie task reclaimed",
			slog.String("task_id", z.id),
			slog.String("description", z.description),
			slog.Duration("age", z.age.Round(time.Second)),
		)
	}
	r.logger.WarnContext(ctx, "zombie scan complete",
		slog.Int("reclaimed", len(found)),
		slog.Int("remaining", remaining),
	)

	if r.alert != nil {
		msg := fmt.Sprintf("%d task(s) ran past %s and were reclaimed", len(found), r.cfg.ZombieAfter)
		if err := r.alert.Notify(ctx, eventSystem, "Zombie tasks detected", msg); err != nil {
			r.logger.ErrorContext(ctx, "zombie alert failed", slog.String("error", err.Error()))
		}
	}
	return len(found)
}
