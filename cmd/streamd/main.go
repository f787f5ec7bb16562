package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wu-shaobing/quant-platform-stream/internal/config"
	"github.com/wu-shaobing/quant-platform-stream/internal/conn"
	"github.com/wu-shaobing/quant-platform-stream/internal/database"
	"github.com/wu-shaobing/quant-platform-stream/internal/journal"
	"github.com/wu-shaobing/quant-platform-stream/internal/stream"
	"github.com/wu-shaobing/quant-platform-stream/internal/streams"
	"github.com/wu-shaobing/quant-platform-stream/internal/transport"
	"github.com/wu-shaobing/quant-platform-stream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/streamd.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting streamd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"server_url", cfg.Server.URL,
	)

	// Root context, cancelled on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Streaming service over the WebSocket transport
	wsCfg := transport.DefaultWSConfig()
	wsCfg.URL = cfg.Server.URL
	wsCfg.HandshakeTimeout = cfg.Server.HandshakeTimeout
	wsCfg.PingInterval = cfg.Server.PingInterval
	wsCfg.PingTimeout = cfg.Server.PingTimeout
	wsCfg.WriteTimeout = cfg.Server.WriteTimeout
	dialer := transport.NewWSDialer(wsCfg, logger)

	svc := stream.NewService(stream.Config{
		Conn: conn.Config{
			ConnectTimeout:       cfg.Connection.ConnectTimeout,
			ReconnectBaseDelay:   cfg.Connection.ReconnectBaseDelay,
			ReconnectMaxDelay:    cfg.Connection.ReconnectMaxDelay,
			MaxReconnectAttempts: cfg.Connection.MaxReconnectAttempts,
			SendRate:             cfg.Connection.SendRate,
			SendBurst:            cfg.Connection.SendBurst,
			InboundBufferSize:    cfg.Connection.InboundBufferSize,
		},
	}, dialer, nil, logger)
	defer svc.Close()

	svc.OnEvent(func(event conn.Event, err error) {
		if err != nil {
			logger.Warn("connection event", "event", event, "error", err)
			return
		}
		logger.Info("connection event", "event", event)
	})

	// Typed adapters
	market := streams.NewMarket(svc, streams.MarketConfig{
		KlineHistory: cfg.Streams.KlineHistory,
		TickThrottle: cfg.Streams.TickThrottle,
	}, logger)
	defer market.Close()

	trading := streams.NewTrading(svc, streams.TradingConfig{
		OrderHistory: cfg.Streams.OrderHistory,
		TradeHistory: cfg.Streams.TradeHistory,
	}, logger)
	defer trading.Close()

	strategy := streams.NewStrategy(svc, streams.StrategyConfig{
		LogHistory:    cfg.Streams.LogHistory,
		SignalHistory: cfg.Streams.SignalHistory,
	}, logger)
	defer strategy.Close()

	system := streams.NewSystem(svc, streams.SystemConfig{
		NotificationHistory: cfg.Streams.NotificationHistory,
		AlertHistory:        cfg.Streams.AlertHistory,
	}, logger)
	defer system.Close()

	// Optional journal
	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		jrnl = journal.New(journal.Config{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
			BufferSize:    cfg.Journal.BufferSize,
		}, pool, logger)
		if err := jrnl.Start(ctx); err != nil {
			logger.Error("failed to start journal", "error", err)
			os.Exit(1)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			jrnl.Stop(stopCtx)
		}()

		system.SubscribeNotifications(jrnl.RecordNotification)
		system.SubscribeAlerts(jrnl.RecordAlert)
		for _, symbol := range cfg.Journal.Symbols {
			market.SubscribeTicks(symbol, jrnl.RecordTick)
		}

		logger.Info("journal enabled", "symbols", len(cfg.Journal.Symbols))
	}

	// Open the connection; queued subscriptions replay once it is up.
	if err := svc.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(cfg.Health.Path, svc, jrnl),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port, "path", cfg.Health.Path)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	logger.Info("streamd running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d%s", cfg.Health.Port, cfg.Health.Path),
	)

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("streamd stopped")
}

// createHealthHandler serves connection and stream health as JSON.
func createHealthHandler(path string, svc *stream.Service, jrnl *journal.Journal) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		stats := svc.Stats()

		health := struct {
			Status        string         `json:"status"`
			State         string         `json:"state"`
			Subscriptions int            `json:"subscriptions"`
			Router        map[string]any `json:"router"`
			Journal       map[string]any `json:"journal,omitempty"`
			Version       string         `json:"version"`
		}{
			Status:        "healthy",
			State:         stats.State.String(),
			Subscriptions: stats.Subscriptions,
			Router: map[string]any{
				"received":   stats.Router.Received,
				"dispatched": stats.Router.Dispatched,
				"dropped":    stats.Router.Dropped,
			},
			Version: version.String(),
		}

		switch stats.State {
		case conn.StateConnected:
		case conn.StateReconnecting:
			health.Status = "degraded"
		default:
			health.Status = "unhealthy"
		}

		if jrnl != nil {
			js := jrnl.Stats()
			health.Journal = map[string]any{
				"inserts": js.Inserts,
				"errors":  js.Errors,
				"dropped": js.Dropped,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		keys := svc.ActiveSubscriptions()
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":         len(names),
			"subscriptions": names,
		})
	})

	return mux
}
