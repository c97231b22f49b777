package monitor

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AV1080p/-solana-sniper-bot/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type alertRecorder struct {
	mu    sync.Mutex
	calls []string // "event|title|message"
}

func (a *alertRecorder) Notify(_ context.Context, event, title, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, event+"|"+title+"|"+message)
	return nil
}

func (a *alertRecorder) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func TestTrackDoneRemovesEntry(t *testing.T) {
	r := NewRegistry(TaskConfig{}, nil, testLogger())

	done := r.Track("buy mintA")
	if got := r.ActiveCount(); got != 1 {
		t.Fatalf("active=%d want 1", got)
	}

	done()
	if got := r.ActiveCount(); got != 0 {
		t.Fatalf("active after done=%d want 0", got)
	}

	// Second call must not panic or underflow anything.
	done()
	if got := r.ActiveCount(); got != 0 {
		t.Fatalf("active after double done=%d want 0", got)
	}
}

func TestScanReclaimsOnlyZombies(t *testing.T) {
	rec := &alertRecorder{}
	r := NewRegistry(TaskConfig{ZombieAfter: time.Minute}, rec, testLogger())

	r.mu.Lock()
	r.tasks["old"] = taskEntry{started: time.Now().Add(-time.Hour), description: "sell mintB"}
	r.tasks["fresh"] = taskEntry{started: time.Now(), description: "buy mintC"}
	r.mu.Unlock()

	if got := r.scan(context.Background()); got != 1 {
		t.Fatalf("reclaimed=%d want 1", got)
	}
	if got := r.ActiveCount(); got != 1 {
		t.Fatalf("active after scan=%d want 1", got)
	}
	r.mu.Lock()
	_, freshAlive := r.tasks["fresh"]
	_, oldAlive := r.tasks["old"]
	r.mu.Unlock()
	if !freshAlive || oldAlive {
		t.Fatalf("fresh=%v old=%v want fresh kept, old reclaimed", freshAlive, oldAlive)
	}
	if rec.count() != 1 {
		t.Fatalf("alerts=%d want 1", rec.count())
	}
}

func TestScanQuietWhenNoZombies(t *testing.T) {
	rec := &alertRecorder{}
	r := NewRegistry(TaskConfig{ZombieAfter: time.Minute}, rec, testLogger())
	defer r.Track("live task")()

	if got := r.scan(context.Background()); got != 0 {
		t.Fatalf("reclaimed=%d want 0", got)
	}
	if rec.count() != 0 {
		t.Fatalf("alerts=%d want 0", rec.count())
	}
}

func TestScanLateDoneIsHarmless(t *testing.T) {
	r := NewRegistry(TaskConfig{ZombieAfter: time.Minute}, nil, testLogger())

	done := r.Track("stuck task")
	r.mu.Lock()
	for id, e := range r.tasks {
		e.started = time.Now().Add(-time.Hour)
		r.tasks[id] = e
	}
	r.mu.Unlock()

	if got := r.scan(context.Background()); got != 1 {
		t.Fatalf("reclaimed=%d want 1", got)
	}
	done()
	if got := r.ActiveCount(); got != 0 {
		t.Fatalf("active=%d want 0", got)
	}
}

func TestMemWatcherWatermarks(t *testing.T) {
	const mb = uint64(1) << 20

	tests := []struct {
		name       string
		heapAlloc  uint64
		stats      state.Stats
		wantAlerts int
		wantSubstr string
	}{
		{
			name:       "below all watermarks",
			heapAlloc:  10 * mb,
			stats:      state.Stats{MetricPoints: 5},
			wantAlerts: 0,
		},
		{
			name:       "heap warn only logs",
			heapAlloc:  600 * mb,
			stats:      state.Stats{},
			wantAlerts: 0,
		},
		{
			name:       "heap critical alerts",
			heapAlloc:  2048 * mb,
			stats:      state.Stats{},
			wantAlerts: 1,
			wantSubstr: "Heap at 2048 MB",
		},
		{
			name:       "points critical alerts",
			heapAlloc:  10 * mb,
			stats:      state.Stats{MetricPoints: 150_000},
			wantAlerts: 1,
			wantSubstr: "150000 points",
		},
		{
			name:       "both critical alert twice",
			heapAlloc:  2048 * mb,
			stats:      state.Stats{MetricPoints: 150_000},
			wantAlerts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &alertRecorder{}
			w := NewMemWatcher(MemConfig{}, nil, rec, testLogger())
			w.apply(context.Background(), tt.heapAlloc, 1, tt.stats)

			if rec.count() != tt.wantAlerts {
				t.Fatalf("alerts=%d want %d", rec.count(), tt.wantAlerts)
			}
			if tt.wantSubstr != "" {
				joined := strings.Join(rec.calls, "\n")
				if !strings.Contains(joined, tt.wantSubstr) {
					t.Fatalf("alert %q does not contain %q", joined, tt.wantSubstr)
				}
			}
		})
	}
}

func TestMemWatcherNilAlerterDoesNotPanic(t *testing.T) {
	w := NewMemWatcher(MemConfig{}, nil, nil, testLogger())
	w.apply(context.Background(), 4096<<20, 1, state.Stats{MetricPoints: 200_000})
}
