package app

import (
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/AV1080p/-solana-sniper-bot/internal/blockhash"
	"github.com/AV1080p/-solana-sniper-bot/internal/builder"
	"github.com/AV1080p/-solana-sniper-bot/internal/config"
	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
	"github.com/AV1080p/-solana-sniper-bot/internal/engine"
	"github.com/AV1080p/-solana-sniper-bot/internal/feed"
	"github.com/AV1080p/-solana-sniper-bot/internal/landing"
	"github.com/AV1080p/-solana-sniper-bot/internal/monitor"
	"github.com/AV1080p/-solana-sniper-bot/internal/notify"
	"github.com/AV1080p/-solana-sniper-bot/internal/platform/coingecko"
	"github.com/AV1080p/-solana-sniper-bot/internal/platform/jupiter"
	"github.com/AV1080p/-solana-sniper-bot/internal/platform/solrpc"
	"github.com/AV1080p/-solana-sniper-bot/internal/state"
	"github.com/AV1080p/-solana-sniper-bot/internal/wallet"
)

const lamportsPerSOL = 1_000_000_000

// Dependencies bundles every component the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Wallet  *wallet.Wallet
	Pool    *solrpc.Pool
	Store   *state.Store
	Sweeper *state.Sweeper
	Hashes  *blockhash.Cache
	Lander  *landing.Engine
	Builder *builder.Builder
	Swapper *jupiter.Swapper
	Seller  *engine.Seller
	Sniper  *engine.Sniper
	Feed    *feed.TradeFeed

	Notifier *notify.Notifier
	Tasks    *monitor.Registry
	MemWatch *monitor.MemWatcher
	Prices   *coingecko.Client
}

// Wire constructs every component from the validated configuration. Nothing
// here performs network I/O; components dial lazily once their Run loops
// start. The returned cleanup releases resources not tied to a Run loop.
func Wire(cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	w, err := wallet.Load(cfg.Wallet.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: wallet: %w", err)
	}
	logger.Info("wallet loaded", slog.String("pubkey", w.PublicKey().String()))

	pool, err := solrpc.NewPool(solrpc.Config{
		Endpoints:      cfg.RPC.Endpoints,
		Commitment:     rpc.CommitmentType(cfg.RPC.Commitment),
		RequestTimeout: cfg.RPC.RequestTimeout.Duration,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: rpc pool: %w", err)
	}

	store := state.NewStore(logger)
	sweeper := state.NewSweeper(store, state.SweeperConfig{
		Interval:         cfg.Maintenance.Interval.Duration,
		Timeout:          cfg.Maintenance.Timeout.Duration,
		MetricRetention:  cfg.Maintenance.MetricRetention.Duration,
		MetricCapPerMint: cfg.Maintenance.MetricCapPerMint,
		MaxMetricSeries:  cfg.Maintenance.MaxMetricSeries,
		HoldingTTL:       cfg.Maintenance.HoldingTTL.Duration,
		StuckAfter:       cfg.Maintenance.StuckAfter.Duration,
	}, logger)

	hashCfg := blockhash.Config{
		RefreshInterval: cfg.Blockhash.RefreshInterval.Duration,
		StaleAfter:      cfg.Blockhash.StaleAfter.Duration,
	}
	if cfg.Nonce.Enabled {
		account, perr := solana.PublicKeyFromBase58(cfg.Nonce.Account)
		if perr != nil {
			return nil, nil, fmt.Errorf("wire: nonce account: %w", perr)
		}
		hashCfg.NonceAccount = account
	}
	hashes := blockhash.New(pool, hashCfg, logger)

	// Delivery channels. Without a relay every submission rides the plain
	// RPC broadcast, and the relay-preferring defaults degrade to direct.
	var (
		relayB  landing.Broadcaster
		tips    landing.TipProvider
		channel = domain.ChannelDirect
	)
	if cfg.Relay.URL != "" {
		relay, rerr := landing.NewRelayClient(landing.RelayConfig{
			URL:         cfg.Relay.URL,
			APIKey:      cfg.Relay.APIKey,
			TipAccounts: cfg.Relay.TipAccounts,
			TipSOL:      cfg.Relay.TipSOL,
		}, logger)
		if rerr != nil {
			return nil, nil, fmt.Errorf("wire: relay: %w", rerr)
		}
		relayB, tips = relay, relay
		channel = domain.ChannelRelay
	} else {
		logger.Info("no relay configured, submitting through direct RPC only")
	}

	lander := landing.New(landing.Config{
		UnitLimit: cfg.Trade.UnitLimit,
		UnitPrice: cfg.Trade.UnitPrice,
	}, w, hashes, pool, relayB, tips, logger)

	builds := builder.New(w.PublicKey(), store, pool, logger)

	jup := jupiter.NewClient(cfg.Jupiter.BaseURL, cfg.Jupiter.RequestTimeout.Duration)
	swapper := jupiter.NewSwapper(jup, w, pool, cfg.Jupiter.SellSlippageBps, logger)

	// Sells anchor on the durable nonce when one is configured, so a queued
	// exit still lands after the recent blockhash horizon has passed. Buys
	// always ride a recent hash; a stale launch entry is worthless anyway.
	sellHash := blockhash.ModeRecent
	if cfg.Nonce.Enabled {
		sellHash = blockhash.ModeDurable
	}
	seller := engine.NewSeller(store, builds, lander, swapper, logger)
	seller.SetLanding(landing.Options{Channel: channel, HashMode: sellHash})

	sniper := engine.NewSniper(engine.Config{
		BuyLamports:     uint64(cfg.Trade.BuyAmountSOL * lamportsPerSOL),
		BuySlippageBps:  cfg.Trade.BuySlippageBps,
		MinLiquiditySOL: cfg.Trade.MinLiquiditySOL,
		DeadTokenTTL:    cfg.Maintenance.DeadTokenTTL.Duration,
		Channel:         channel,
		HashMode:        blockhash.ModeRecent,
		QueueSize:       cfg.Trade.QueueSize,
	}, store, builds, lander, seller, logger)

	var senders []notify.Sender
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
		logger.Info("telegram notifications enabled", slog.String("chat_id", cfg.Telegram.ChatID))
	} else {
		logger.Info("telegram notifications disabled")
	}
	notifier := notify.NewNotifier(senders, cfg.Telegram.Events, logger)

	prices := coingecko.NewClient("", logger)
	sniper.SetAlerter(notify.NewTradeAlerter(notifier, prices, logger))

	tasks := monitor.NewRegistry(monitor.TaskConfig{
		ScanInterval: cfg.Monitor.TaskScanInterval.Duration,
		ZombieAfter:  cfg.Monitor.ZombieAfter.Duration,
	}, notifier, logger)
	sniper.SetTaskTracker(tasks)

	memWatch := monitor.NewMemWatcher(monitor.MemConfig{
		Interval:       cfg.Monitor.MemoryInterval.Duration,
		WarnHeapMB:     cfg.Monitor.WarnHeapMB,
		CriticalHeapMB: cfg.Monitor.CriticalHeapMB,
		WarnPoints:     cfg.Monitor.WarnPoints,
		CriticalPoints: cfg.Monitor.CriticalPoints,
	}, store, notifier, logger)

	tradeFeed := feed.NewTradeFeed(feed.Config{
		WsURL:            cfg.Stream.WsURL,
		Commitment:       cfg.Stream.Commitment,
		ReconnectBackoff: cfg.Stream.ReconnectBackoff.Duration,
	}, sniper.HandleTrade, logger)

	deps := &Dependencies{
		Wallet:   w,
		Pool:     pool,
		Store:    store,
		Sweeper:  sweeper,
		Hashes:   hashes,
		Lander:   lander,
		Builder:  builds,
		Swapper:  swapper,
		Seller:   seller,
		Sniper:   sniper,
		Feed:     tradeFeed,
		Notifier: notifier,
		Tasks:    tasks,
		MemWatch: memWatch,
		Prices:   prices,
	}

	cleanup := func() {
		tradeFeed.Close()
	}
	return deps, cleanup, nil
}
