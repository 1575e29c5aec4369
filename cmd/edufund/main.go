package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"edufund/internal/backend"
	"edufund/internal/cli"
	"edufund/internal/config"
	apphttp "edufund/internal/http"
	"edufund/internal/log"
	"edufund/internal/seed"
	"edufund/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(os.Stdout, cfg, log.ComponentApp)
	cli.ExitOnInvalid(logger, cfg.Validate())

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
	ctx = log.IntoContext(ctx, logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	ledger := services.NewLedgerService(be.Store, be.Publisher)
	accounts := services.NewAccountService(be.Store)
	calibration := services.NewCalibrationService(be.Store)

	if err := seedIfRequested(ctx, cfg, be, accounts, ledger); err != nil {
		return err
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CacheTTL:           cfg.CacheTTL,
		CacheSize:          cfg.CacheSize,
		Logger:             logger,
	}, apphttp.Dependencies{
		Ledger:      ledger,
		Accounts:    accounts,
		Calibration: calibration,
		Ready:       be.Ping,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting edufund server",
			"port", cfg.Port,
			"backend", cfg.StorageBackend,
			"amqp_enabled", be.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func seedIfRequested(ctx context.Context, cfg *config.Config, be *backend.Result, accounts *services.AccountService, ledger *services.LedgerService) error {
	if !cfg.SeedSampleData && cfg.SeedFile == "" {
		return nil
	}
	fx, err := loadFixture(cfg.SeedFile)
	if err != nil {
		return err
	}
	_, err = seed.Seed(ctx, be.Store, accounts, ledger, fx, false)
	return err
}

func loadFixture(path string) (seed.Fixture, error) {
	if path != "" {
		return seed.LoadFile(path)
	}
	return seed.Sample()
}
