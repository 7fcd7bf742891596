// The main package for the vacancy scraper daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/daviskyLV/it-darbu-mekletajs/internal/classify"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/clock/system"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/config"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/logging"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/orchestrator"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/server"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/source/cvlv"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/source/nva"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/store/postgres"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/taxonomy"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/vacancy"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file (optional, env vars apply either way)")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tax, err := taxonomy.Load(cfg.Taxonomy.Path)
	if err != nil {
		return fmt.Errorf("load taxonomy: %w", err)
	}

	policy, err := classify.ParseGatePolicy(cfg.Crawl.GatePolicy)
	if err != nil {
		return fmt.Errorf("parse gate policy: %w", err)
	}

	store, err := postgres.New(ctx, postgres.Config{
		DSN:          cfg.DB.DSN,
		MaxConns:     cfg.DB.MaxConns,
		MinConns:     cfg.DB.MinConns,
		ReserveLimit: cfg.Crawl.ReserveBatchLimit,
		MaxBatch:     cfg.Crawl.CommitChunkSize,
	})
	if err != nil {
		return fmt.Errorf("connect to catalog database: %w", err)
	}
	defer store.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}

	adapters := make([]vacancy.SourceAdapter, 0, len(cfg.Sources.Enabled))
	for _, name := range cfg.Sources.Enabled {
		switch name {
		case cvlv.Domain:
			adapters = append(adapters, cvlv.New(cvlv.Config{
				BaseURL: cfg.Sources.CVLVBaseURL,
			}, httpClient, tax, policy, logger))
		case nva.Domain:
			adapters = append(adapters, nva.New(nva.Config{
				BaseURL:    cfg.Sources.NVABaseURL,
				CategoryID: cfg.Sources.NVACategoryID,
			}, httpClient, logger))
		default:
			return fmt.Errorf("unknown source %q in sources.enabled", name)
		}
	}

	orchCfg := orchestrator.Config{
		WebIntervalMin:  cfg.Crawl.WebIntervalMin(),
		WebIntervalMax:  cfg.Crawl.WebIntervalMax(),
		StoreInterval:   cfg.Crawl.StoreInterval(),
		IdleBackoff:     cfg.Crawl.IdleBackoff(),
		CommitChunkSize: cfg.Crawl.CommitChunkSize,
		GatePolicy:      policy,
	}

	clock := system.New()
	var wg sync.WaitGroup
	for _, adapter := range adapters {
		orch := orchestrator.New(adapter, store, tax, clock, orchCfg, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("crawl loop stopped", zap.Error(err))
			}
		}()
	}

	ops := server.New(store, logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           ops.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("ops server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown", zap.Error(err))
	}
	wg.Wait()
	return nil
}
