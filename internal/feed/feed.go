// Package feed connects the websocket transaction stream to the decoder
// and hands finished trade events to the engine.
package feed

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/AV1080p/-solana-sniper-bot/internal/decode"
	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
	"github.com/AV1080p/-solana-sniper-bot/internal/platform/solws"
)

// programDataPrefix marks log lines carrying a base64 event payload.
const programDataPrefix = "Program data: "

// TradeHandler is called for each decoded trade event. Handlers must not
// block; slow work belongs on the engine's own goroutines.
type TradeHandler func(ctx context.Context, ev domain.TradeEvent)

// Config selects the stream endpoint and subscription behavior.
type Config struct {
	WsURL            string
	Programs         []string
	Commitment       string        // subscription commitment, empty means processed
	ReconnectBackoff time.Duration // delay before redialing after a drop
}

// DefaultPrograms is the standard watch list: the bonding-curve program
// and the pooled AMM tokens graduate into.
var DefaultPrograms = []string{
	"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
	"pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA",
}

const defaultReconnectBackoff = 2 * time.Second

// TradeFeed subscribes to transactions touching the watched programs,
// extracts their event payloads, and invokes the handler for every decoded
// trade. It reconnects on disconnect.
type TradeFeed struct {
	cfg       Config
	onTrade   TradeHandler
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewTradeFeed creates a feed over the given websocket endpoint watching
// the given program IDs, or DefaultPrograms when none are given.
func NewTradeFeed(cfg Config, onTrade TradeHandler, logger *slog.Logger) *TradeFeed {
	if len(cfg.Programs) == 0 {
		cfg.Programs = DefaultPrograms
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = defaultReconnectBackoff
	}
	return &TradeFeed{
		cfg:     cfg,
		onTrade: onTrade,
		logger:  logger.With(slog.String("component", "trade_feed")),
		done:    make(chan struct{}),
	}
}

// Run connects, subscribes, and runs until ctx is cancelled. Reconnects
// with a delay on disconnect.
func (f *TradeFeed) Run(ctx context.Context) error {
	if len(f.cfg.Programs) == 0 {
		f.logger.Info("no programs to watch, exiting")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}
		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("trade feed disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.cfg.ReconnectBackoff):
		}
	}
}

func (f *TradeFeed) runConnection(ctx context.Context) error {
	client := solws.NewWSClient(f.cfg.WsURL, f.cfg.Commitment)
	defer client.Close()

	client.OnTransaction(func(n solws.TxNotification) {
		f.handleNotification(ctx, n)
	})

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(dialCtx)
	cancel()
	if err != nil {
		return err
	}
	if err := client.Subscribe(ctx, f.cfg.Programs); err != nil {
		return err
	}
	f.logger.Info("trade feed subscribed", slog.Int("programs", len(f.cfg.Programs)))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return nil
	}
}

// handleNotification decodes every event payload in the transaction's logs
// and dispatches the trades. Payloads of unknown shape are routine on a
// shared stream and are skipped silently.
func (f *TradeFeed) handleNotification(ctx context.Context, n solws.TxNotification) {
	if n.Failed || f.onTrade == nil {
		return
	}

	meta := decode.TxMeta{
		Slot:                  n.Slot,
		Signature:             n.Signature,
		Logs:                  n.Logs,
		PostTokenBalanceMints: n.PostTokenBalanceMints,
	}

	for _, line := range n.Logs {
		encoded, ok := strings.CutPrefix(line, programDataPrefix)
		if !ok {
			continue
		}
		payload, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		ev := decode.Decode(payload, meta)
		if ev == nil {
			continue
		}
		f.onTrade(ctx, *ev)
	}
}

// Close stops the feed.
func (f *TradeFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
