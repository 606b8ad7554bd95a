package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parishweb/internal/adapters/backend"
	web "parishweb/internal/adapters/http"
	"parishweb/internal/adapters/perf"
	"parishweb/internal/adapters/storage"
	themeStore "parishweb/internal/adapters/storage/theme"
	"parishweb/internal/config"
)

//go:generate sh -c "GOOS=js GOARCH=wasm go build -o ../../static/page.wasm ../page"
//go:generate sh -c "cp \"$(go env GOROOT)/lib/wasm/wasm_exec.js\" ../../static/"

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server_failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "parishweb.yaml", "path to the YAML config file; missing files fall back to defaults")
	initConfig := flag.Bool("init-config", false, "write a default config file to -config and exit")
	flag.Parse()

	if *initConfig {
		if err := config.WriteDefault(*configPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", *configPath)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	csrfKey, err := loadCSRFKey(cfg)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Performance instrumentation: requests, queries and backend calls share one collector.
	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.Perf.SlowQuery)

	client, err := backend.NewClient(backend.Config{
		BaseURL:         cfg.Backend.BaseURL,
		Resource:        cfg.Backend.Resource,
		Timeout:         cfg.Backend.RequestTimeout,
		BreakerFailures: cfg.Backend.BreakerFailures,
		BreakerCooldown: cfg.Backend.BreakerCooldown,
		UpcomingPath:    cfg.Backend.UpcomingPath,
		Recorder:        collector,
	}, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := web.NewMux(ctx, web.Deps{
		Conflicts:          client,
		Recipients:         backend.NewCachedDirectory(client, cfg.Recipients.CacheTTL),
		Upcoming:           client,
		Themes:             themeStore.NewSQLiteStore(timedDB),
		DB:                 timedDB,
		Perf:               collector,
		BackendBaseURL:     cfg.Backend.BaseURL,
		SessionCookies:     cfg.Backend.SessionCookies,
		StaticDir:          cfg.StaticDir,
		CSRFKey:            csrfKey,
		Production:         cfg.IsProduction(),
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		SlowRequest:        cfg.Perf.SlowRequest,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting", "version", version, "addr", cfg.Addr, "env", cfg.Env, "backend", cfg.Backend.BaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func setupLogging(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// loadCSRFKey decodes the configured key. Outside production a missing key
// is replaced with a random one, so forms do not survive a restart.
func loadCSRFKey(cfg config.Config) ([]byte, error) {
	if cfg.CSRFKey != "" {
		return cfg.CSRFKeyBytes()
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate CSRF key: %w", err)
	}
	slog.Warn("csrf_key_random", "hint", "set PARISHWEB_CSRF_KEY to keep form tokens valid across restarts")
	return key, nil
}
