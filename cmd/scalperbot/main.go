package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"scalper-botv1/config"
	"scalper-botv1/internal/engine"
	"scalper-botv1/internal/exchange"
	"scalper-botv1/internal/gateway"
	"scalper-botv1/internal/logger"
	"scalper-botv1/internal/metrics"
	"scalper-botv1/internal/notification"
	redisstore "scalper-botv1/internal/store/redis"
	sqlitestore "scalper-botv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg := config.Load()
	slogger := logger.Init("scalperbot", logger.ParseLevel(cfg.LogLevel))
	slogger.Info("starting",
		slog.String("pair", cfg.Pair),
		slog.Bool("simulation", cfg.Simulation),
		slog.Duration("cadence", cfg.Cadence))

	// ---- Storage ----
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		log.Fatalf("[main] create data dir: %v", err)
	}
	store, err := sqlitestore.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("[main] open store: %v", err)
	}
	defer store.Close()

	// ---- Exchange client ----
	exch := exchange.New(exchange.Config{
		Pair:       cfg.Pair,
		Market:     cfg.Market,
		Interval:   cfg.Interval,
		APIKey:     cfg.APIKey,
		APISecret:  cfg.APISecret,
		Simulation: cfg.Simulation,
	})

	// ---- Engine ----
	board := engine.NewBoard()
	eng := engine.New(engine.Config{
		Cadence:         cfg.Cadence,
		BucketWidth:     cfg.BucketWidth,
		TradeCapital:    cfg.TradeCapital,
		TrailingStopPct: cfg.TrailingStopPct,
		RSIBuy:          cfg.RSIBuy,
		RSISell:         cfg.RSISell,
		RSIPanicBuy:     cfg.RSIPanicBuy,
		RSIPeriod:       cfg.RSIPeriod,
		BandPeriod:      cfg.BandPeriod,
		BandWidth:       cfg.BandWidth,
		HistoryWindow:   cfg.HistoryWindow,
		WalletRefresh:   cfg.WalletRefresh,
		PruneEvery:      cfg.PruneEvery,
		PruneMaxAge:     cfg.PruneMaxAge,
		QuoteAsset:      cfg.QuoteAsset,
		BaseAsset:       cfg.BaseAsset,
	}, store, exch, board)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	eng.SetMetrics(prom)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	health := metrics.NewHealthStatus()
	health.CheckSQLite(ctx, store.DB())
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Notifications ----
	notifiers := notification.Multi{notification.LogNotifier{}}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhook(cfg.WebhookURL))
	}
	eng.SetNotifier(notifiers)

	// ---- Optional Redis snapshot mirror ----
	var rdb *redisstore.Publisher
	if cfg.RedisAddr != "" {
		rdb, err = redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			slogger.Warn("redis unavailable, continuing without mirror", slog.String("error", err.Error()))
		} else {
			defer rdb.Close()
			eng.AddPublisher(rdb)
		}
	}
	if rdb != nil {
		health.StartLivenessChecker(ctx, rdb.Client(), store.DB(), 15*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, store.DB(), 15*time.Second)
	}

	// ---- Gateway ----
	gw := gateway.NewServer(gateway.Config{
		Addr:       cfg.ListenAddr,
		TOTPSecret: cfg.OperatorTOTPSecret,
	}, board, store, eng)
	eng.AddPublisher(gw.Hub())
	gw.Start()

	// ---- Warm up and run ----
	eng.Warmup(ctx)
	go eng.Run(ctx)
	slogger.Info("engine running")

	// ---- Wait for shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slogger.Info("shutting down", slog.String("signal", sig.String()))
	cancel()

	// Emergency liquidation: if a position is still open, sell it at the last
	// observed price before the process dies.
	snap := board.Read()
	if snap.EntryPrice > 0 && snap.PositionQty > 0 {
		slogger.Warn("open position at shutdown, submitting emergency sell",
			slog.Float64("entry", snap.EntryPrice),
			slog.Float64("qty", snap.PositionQty))
		sellCtx, sellCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := exch.SubmitOrder(sellCtx, "sell", snap.Price, snap.PositionQty); err != nil {
			slogger.Error("emergency sell failed", slog.String("error", err.Error()))
		}
		sellCancel()
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	gw.Stop(stopCtx)
	metricsSrv.Stop(stopCtx)
	slogger.Info("stopped")
}
