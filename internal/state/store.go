// Package state holds the in-process token state shared by the execution
// hot path and the maintenance sweep: holdings, pending-operation markers,
// the dead-token list and short per-mint price histories. Everything lives
// in concurrent maps with per-key locking; there is no global mutex, so
// neither side can stall the other system-wide.
package state

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
)

// Store is constructed once at wiring time and handed to every component
// that needs it. Nothing in here touches the network or disk; state is
// rebuilt from the event stream on restart.
type Store struct {
	logger *slog.Logger

	holdings     sync.Map // mint -> domain.Holding
	pendingSells sync.Map // mint -> *sellMarker
	pendingBuys  sync.Map // mint -> time.Time
	dead         sync.Map // mint -> time.Time (expiry)
	metrics      sync.Map // mint -> *metricRing

	// locked is the auxiliary locked-keys set. Both an in-flight build's
	// critical section and the sweep's eviction path acquire a mint's slot
	// non-blockingly; contention means skip, never wait.
	locked sync.Map // mint -> struct{}
}

type sellMarker struct {
	reason   domain.SellReason
	since    time.Time
	inFlight atomic.Bool
}

type metricRing struct {
	mu     sync.Mutex
	points []domain.PricePoint
}

// NewStore returns an empty store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{logger: logger.With(slog.String("component", "state"))}
}

// Holding returns the cached owned quantity for a mint.
func (s *Store) Holding(mint string) (domain.Holding, bool) {
	v, ok := s.holdings.Load(mint)
	if !ok {
		return domain.Holding{}, false
	}
	return v.(domain.Holding), true
}

// SetHolding records the owned quantity for a mint. Only the execution
// path writes holdings; maintenance may delete, never resize.
func (s *Store) SetHolding(h domain.Holding) {
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = time.Now()
	}
	s.holdings.Store(h.Mint, h)
}

// RemoveHolding drops the cached quantity for a mint.
func (s *Store) RemoveHolding(mint string) {
	s.holdings.Delete(mint)
}

// MarkPendingSell inserts the sell-intent marker for a mint. The marker is
// the precondition gate for every sell build. Re-marking a mint whose sell
// is already being built fails with ErrSellInFlight.
func (s *Store) MarkPendingSell(mint string, reason domain.SellReason) error {
	m := &sellMarker{reason: reason, since: time.Now()}
	if prev, loaded := s.pendingSells.LoadOrStore(mint, m); loaded {
		if prev.(*sellMarker).inFlight.Load() {
			return domain.ErrSellInFlight
		}
	}
	return nil
}

// ClaimPendingSell atomically claims the mint's sell marker for one build.
// It fails with ErrNoPendingSell when no marker exists and ErrSellInFlight
// when another build already holds the claim; at most one build per mint
// ever proceeds.
func (s *Store) ClaimPendingSell(mint string) (domain.PendingSell, error) {
	v, ok := s.pendingSells.Load(mint)
	if !ok {
		return domain.PendingSell{}, domain.ErrNoPendingSell
	}
	m := v.(*sellMarker)
	if !m.inFlight.CompareAndSwap(false, true) {
		return domain.PendingSell{}, domain.ErrSellInFlight
	}
	return domain.PendingSell{Mint: mint, Reason: m.reason, Since: m.since, InFlight: true}, nil
}

// ReleasePendingSell returns a claimed marker to its idle state, keeping
// the intent in place. Terminal failures go through here: the next
// observed trade retries the exit, and the sweep reclaims a marker stuck
// past the timeout.
func (s *Store) ReleasePendingSell(mint string) {
	if v, ok := s.pendingSells.Load(mint); ok {
		v.(*sellMarker).inFlight.Store(false)
	}
}

// ClearPendingSell removes the marker entirely, claimed or not.
func (s *Store) ClearPendingSell(mint string) {
	s.pendingSells.Delete(mint)
}

// PendingSell reports the marker for a mint without claiming it.
func (s *Store) PendingSell(mint string) (domain.PendingSell, bool) {
	v, ok := s.pendingSells.Load(mint)
	if !ok {
		return domain.PendingSell{}, false
	}
	m := v.(*sellMarker)
	return domain.PendingSell{Mint: mint, Reason: m.reason, Since: m.since, InFlight: m.inFlight.Load()}, true
}

// MarkPendingBuy inserts the buy-in-progress marker. It reports false when
// a buy for the mint is already underway.
func (s *Store) MarkPendingBuy(mint string) bool {
	_, loaded := s.pendingBuys.LoadOrStore(mint, time.Now())
	return !loaded
}

// ClearPendingBuy removes the buy marker.
func (s *Store) ClearPendingBuy(mint string) {
	s.pendingBuys.Delete(mint)
}

// MarkDead flags a mint as not tradable until the TTL elapses.
func (s *Store) MarkDead(mint string, ttl time.Duration) {
	s.dead.Store(mint, time.Now().Add(ttl))
	s.logger.Debug("mint dead-listed", slog.String("mint", mint), slog.Duration("ttl", ttl))
}

// IsDead reports whether the mint is currently on the dead list. Expired
// entries are dropped lazily here and eagerly by the sweep.
func (s *Store) IsDead(mint string) bool {
	v, ok := s.dead.Load(mint)
	if !ok {
		return false
	}
	if time.Now().After(v.(time.Time)) {
		s.dead.Delete(mint)
		return false
	}
	return true
}

// RecordPrice appends one sample to the mint's price history. Rings are
// bounded by the sweep, not here, to keep the hot path to one append.
func (s *Store) RecordPrice(mint string, price float64, at time.Time) {
	v, _ := s.metrics.LoadOrStore(mint, &metricRing{})
	r := v.(*metricRing)
	r.mu.Lock()
	r.points = append(r.points, domain.PricePoint{Price: price, At: at})
	r.mu.Unlock()
}

// PricePoints returns a copy of the mint's recorded samples.
func (s *Store) PricePoints(mint string) []domain.PricePoint {
	v, ok := s.metrics.Load(mint)
	if !ok {
		return nil
	}
	r := v.(*metricRing)
	r.mu.Lock()
	out := make([]domain.PricePoint, len(r.points))
	copy(out, r.points)
	r.mu.Unlock()
	return out
}

// TryLock acquires the mint's slot in the locked-keys set without
// blocking. The returned release is safe to call more than once. ok=false
// means someone else holds it; callers skip, they never wait.
func (s *Store) TryLock(mint string) (release func(), ok bool) {
	if _, loaded := s.locked.LoadOrStore(mint, struct{}{}); loaded {
		return nil, false
	}
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			s.locked.Delete(mint)
		}
	}, true
}

// ReleaseAfterSell drops the state a confirmed exit leaves behind: the
// holding, both pending markers and the price history, without waiting for
// the sweep. The dead-list entry is kept; a quarantine outlives the
// position.
func (s *Store) ReleaseAfterSell(mint string) {
	s.holdings.Delete(mint)
	s.pendingSells.Delete(mint)
	s.pendingBuys.Delete(mint)
	s.metrics.Delete(mint)
	s.logger.Debug("post-sell state released", slog.String("mint", mint))
}

// Stats reports entry counts for the memory monitor. MetricPoints is the
// total sample count across all series, the number that actually grows
// without bound between sweeps.
type Stats struct {
	Holdings     int
	PendingSells int
	PendingBuys  int
	Dead         int
	MetricSeries int
	MetricPoints int
}

// Snapshot counts the store's entries.
func (s *Store) Snapshot() Stats {
	var st Stats
	s.holdings.Range(func(_, _ any) bool { st.Holdings++; return true })
	s.pendingSells.Range(func(_, _ any) bool { st.PendingSells++; return true })
	s.pendingBuys.Range(func(_, _ any) bool { st.PendingBuys++; return true })
	s.dead.Range(func(_, _ any) bool { st.Dead++; return true })
	s.metrics.Range(func(_, v any) bool {
		st.MetricSeries++
		r := v.(*metricRing)
		r.mu.Lock()
		st.MetricPoints += len(r.points)
		r.mu.Unlock()
		return true
	})
	return st
}
