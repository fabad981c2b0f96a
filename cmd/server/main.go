package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/clearsats/paymentd/internal/config"
	"github.com/clearsats/paymentd/internal/infrastructure/chain"
	"github.com/clearsats/paymentd/internal/infrastructure/crypto"
	"github.com/clearsats/paymentd/internal/infrastructure/database"
	httpServer "github.com/clearsats/paymentd/internal/infrastructure/http"
	"github.com/clearsats/paymentd/internal/infrastructure/rates"
	"github.com/clearsats/paymentd/internal/infrastructure/sweep"
	"github.com/clearsats/paymentd/internal/infrastructure/wallet"
	"github.com/clearsats/paymentd/internal/logger"
	"github.com/clearsats/paymentd/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		FilePath:    cfg.Log.FilePath,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, zapLogger)

	// Bitcoin network parameters
	netParams, err := wallet.ParseNetwork(cfg.Bitcoin.Network)
	if err != nil {
		zapLogger.Fatal("Invalid bitcoin network", zap.Error(err))
	}

	// Key vault
	vault, err := crypto.NewAESKeyVault(cfg.Service.EncryptionKey)
	if err != nil {
		zapLogger.Fatal("Failed to initialize key vault", zap.Error(err))
	}

	// Chain-side collaborators
	chainClient := chain.NewClient(cfg.Bitcoin.IndexerURL, cfg.Bitcoin.QueryTimeout, zapLogger)
	generator := wallet.NewGenerator(netParams)
	sweeper := sweep.NewSweeper(chainClient, netParams, cfg.Bitcoin.FeeRateSatVB, zapLogger)

	// Exchange-rate oracle with redis-backed cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	rateSource := rates.NewHTTPSource(cfg.Rates.SourceURL, 10*time.Second)
	rateOracle := rates.NewCachedOracle(rateSource, rates.NewRedisStore(redisClient), cfg.Rates.CacheTTL, zapLogger)

	// Usecases
	creditService := usecase.NewCreditService(repos.Credit, zapLogger)
	processor := usecase.NewProcessor(repos.Payment, creditService, chainClient, vault, sweeper,
		usecase.ProcessorConfig{
			RequiredConfirmations: cfg.Bitcoin.RequiredConfirmations,
			OperatorAddress:       cfg.Service.OperatorAddress,
			ChainQueryTimeout:     cfg.Bitcoin.QueryTimeout,
		}, zapLogger)

	packages := make([]usecase.Package, 0, len(cfg.Payment.Packages))
	for _, pkg := range cfg.Payment.Packages {
		fiatAmount, err := decimal.NewFromString(pkg.FiatAmount)
		if err != nil {
			zapLogger.Fatal("Invalid package fiat amount",
				zap.String("package", pkg.ID),
				zap.String("fiat_amount", pkg.FiatAmount),
				zap.Error(err))
		}
		packages = append(packages, usecase.Package{
			ID:         pkg.ID,
			Credits:    pkg.Credits,
			FiatAmount: fiatAmount,
		})
	}

	paymentService := usecase.NewPaymentService(repos.Payment, generator, vault, rateOracle, processor,
		packages,
		usecase.PaymentPolicy{
			Expiry:                cfg.Payment.Expiry,
			FiatCurrency:          cfg.Rates.Currency,
			RequiredConfirmations: cfg.Bitcoin.RequiredConfirmations,
		}, zapLogger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reconciliation scheduler
	scheduler := usecase.NewScheduler(cfg.Payment.ReconcileInterval, repos.Payment, processor, zapLogger)
	scheduler.Start(ctx)

	// HTTP server
	httpSrv := httpServer.NewServer(cfg, zapLogger, paymentService, creditService)
	go func() {
		if err := httpSrv.Start(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down...")

	// The scheduler first so no tick is in flight while connections close.
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	zapLogger.Info("Shutdown complete")
}
