// Package blockhash keeps the transaction anchors used for signing: a
// periodically refreshed recent blockhash and an on-demand durable nonce
// value. Consumers never talk to the network directly unless the cached
// value is stale or missing.
package blockhash

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/singleflight"

	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
)

// Mode selects which slot a signer draws from.
type Mode int

const (
	// ModeRecent uses the periodically refreshed blockhash; steady-state
	// automated operation.
	ModeRecent Mode = iota
	// ModeDurable uses the nonce account's stored value; survives the
	// periodic feed being interrupted and suits one-off administrative
	// transactions.
	ModeDurable
)

// Fetcher supplies anchor values from the network.
type Fetcher interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	NonceHash(ctx context.Context, account solana.PublicKey) (solana.Hash, error)
}

// Config bounds the periodic slot.
type Config struct {
	RefreshInterval time.Duration // background refresh cadence
	StaleAfter      time.Duration // readers refetch past this age
	NonceAccount    solana.PublicKey
}

// Cache holds the two independent value slots. Both tolerate many readers
// and the background writer; a reader observing a hash up to one refresh
// interval old is fine because validity windows are far larger.
type Cache struct {
	fetcher Fetcher
	cfg     Config
	logger  *slog.Logger

	mu         sync.RWMutex
	recent     solana.Hash
	recentAt   time.Time
	durable    solana.Hash
	hasDurable bool

	group singleflight.Group
}

// New wires a cache over the fetcher. Run must be started for the periodic
// slot to stay fresh; readers still work without it via the synchronous
// fallback.
func New(fetcher Fetcher, cfg Config, logger *slog.Logger) *Cache {
	return &Cache{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "blockhash")),
	}
}

// Run refreshes the periodic slot until the context ends.
func (c *Cache) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("blockhash refresher stopped")
			return nil
		case <-ticker.C:
			if err := c.refreshRecent(ctx); err != nil {
				c.logger.Warn("periodic blockhash refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (c *Cache) refreshRecent(ctx context.Context) error {
	hash, err := c.fetcher.LatestBlockhash(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.recent = hash
	c.recentAt = time.Now()
	c.mu.Unlock()
	return nil
}

// Latest returns the recent blockhash. A stale or empty slot triggers one
// synchronous fetch, deduplicated across concurrent readers, which also
// repopulates the slot.
func (c *Cache) Latest(ctx context.Context) (solana.Hash, error) {
	c.mu.RLock()
	hash, at := c.recent, c.recentAt
	c.mu.RUnlock()

	if !at.IsZero() && time.Since(at) < c.cfg.StaleAfter {
		return hash, nil
	}

	v, err, _ := c.group.Do("recent", func() (any, error) {
		if err := c.refreshRecent(ctx); err != nil {
			return solana.Hash{}, err
		}
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.recent, nil
	})
	if err != nil {
		return solana.Hash{}, fmt.Errorf("blockhash: fallback fetch: %w", err)
	}
	return v.(solana.Hash), nil
}

// Durable returns the nonce account's stored hash, fetching it once and
// caching until InvalidateDurable.
func (c *Cache) Durable(ctx context.Context) (solana.Hash, error) {
	if c.cfg.NonceAccount.IsZero() {
		return solana.Hash{}, fmt.Errorf("blockhash: durable slot: %w", domain.ErrNotConfigured)
	}

	c.mu.RLock()
	hash, ok := c.durable, c.hasDurable
	c.mu.RUnlock()
	if ok {
		return hash, nil
	}

	v, err, _ := c.group.Do("durable", func() (any, error) {
		fetched, err := c.fetcher.NonceHash(ctx, c.cfg.NonceAccount)
		if err != nil {
			return solana.Hash{}, err
		}
		c.mu.Lock()
		c.durable = fetched
		c.hasDurable = true
		c.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return solana.Hash{}, fmt.Errorf("blockhash: durable fetch: %w", err)
	}
	return v.(solana.Hash), nil
}

// InvalidateDurable clears the durable slot; the next Durable call
// refetches. Called after a nonce-anchored transaction lands, since the
// advance consumes the stored value.
func (c *Cache) InvalidateDurable() {
	c.mu.Lock()
	c.hasDurable = false
	c.mu.Unlock()
}

// Hash resolves the anchor for the given mode.
func (c *Cache) Hash(ctx context.Context, mode Mode) (solana.Hash, error) {
	if mode == ModeDurable {
		return c.Durable(ctx)
	}
	return c.Latest(ctx)
}

// NonceAccount exposes the configured durable account for transaction
// assembly (the advance instruction needs it).
func (c *Cache) NonceAccount() solana.PublicKey {
	return c.cfg.NonceAccount
}
