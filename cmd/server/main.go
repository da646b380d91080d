package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/crewlog/crewlog/internal/config"
	"github.com/crewlog/crewlog/internal/domain/event"
	"github.com/crewlog/crewlog/internal/domain/syncqueue"
	"github.com/crewlog/crewlog/internal/netmon"
	"github.com/crewlog/crewlog/internal/sqlite"
	"github.com/crewlog/crewlog/internal/syncer"
	"github.com/crewlog/crewlog/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		logger.Error("failed to prepare database path", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	eventRepo := sqlite.NewEventRepository(db)
	queueRepo := sqlite.NewQueueRepository(db)

	queue := syncqueue.NewQueue(queueRepo)
	eventSvc := event.NewService(eventRepo, queue, logger)

	monitor := netmon.New()
	deliverer := transport.NewHTTPDeliverer(cfg.Sync.RemoteURL, monitor)
	engine := syncer.New(queueRepo, deliverer, monitor, logger, syncer.Options{
		MaxRetries:  cfg.Sync.MaxRetries,
		Backoff:     cfg.Sync.Backoff(),
		SettleDelay: cfg.Sync.SettleDelay(),
	})
	monitor.OnRestore(func() { go engine.OnNetworkRestore() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go probeConnectivity(ctx, cfg.Sync.RemoteURL, cfg.Sync.ProbeInterval(), monitor, logger)

	router := transport.NewRouter(eventSvc, engine, monitor, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer, cancel)
}

// probeConnectivity drives the monitor from actual reachability of the
// remote store. The probe replaces platform online/offline events, which
// are not trustworthy anyway.
func probeConnectivity(ctx context.Context, remoteURL string, interval time.Duration, monitor *netmon.Monitor, logger *slog.Logger) {
	if remoteURL == "" {
		logger.Warn("no sync remote configured, connectivity probe disabled")
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, remoteURL, nil)
			if err != nil {
				continue
			}
			resp, err := client.Do(req)
			if err != nil {
				monitor.SetOnline(false)
				continue
			}
			resp.Body.Close()
			monitor.SetOnline(true)
		}
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func waitForShutdown(logger *slog.Logger, server *http.Server, cancel context.CancelFunc) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
