package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"wyckoffEngine/config"
	"wyckoffEngine/internal/adapters/binanceclient"
	"wyckoffEngine/internal/adapters/logger"
	"wyckoffEngine/internal/adapters/sqlite"
	"wyckoffEngine/internal/app"
	"wyckoffEngine/internal/campaign"
	"wyckoffEngine/internal/domain"
	"wyckoffEngine/internal/risk"
	sig "wyckoffEngine/internal/signal"
	"wyckoffEngine/internal/validation"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.New(logger.ParseLevel(cfg.LogLevel))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open repository: %v", err)
	}
	defer repo.Close()

	client, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	if err := client.Ping(ctx); err != nil {
		log.Fatalf("FATAL: Exchange unreachable: %v", err)
	}

	detector, err := sig.NewValidatedDetector(
		&sig.SpringScanner{Window: 20},
		sig.DetectorConfig{LookbackBars: 20},
		nil,
		appLogger,
	)
	if err != nil {
		log.Fatalf("FATAL: Failed to build detector: %v", err)
	}
	chain, err := validation.NewChain(appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to build validation chain: %v", err)
	}
	gate, err := risk.NewGate(appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to build risk gate: %v", err)
	}
	manager, err := campaign.NewManager(campaign.ManagerConfig{
		Positions: repo.Positions(),
		Campaigns: repo.Campaigns(),
		Logger:    appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to build campaign manager: %v", err)
	}

	service, err := app.NewService(app.Config{
		Symbol:          cfg.Symbol,
		Timeframe:       cfg.Timeframe,
		RiskPerTradePct: cfg.RiskPerTradePct,
		StopLossPct:     cfg.StopLossPct,
		TakeProfitPct:   cfg.TakeProfitPct,
		LookbackBars:    cfg.LookbackBars,
	}, app.Deps{
		Detector:  detector,
		Chain:     chain,
		Gate:      gate,
		Manager:   manager,
		Positions: repo.Positions(),
		Logger:    appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to build service: %v", err)
	}

	interval, err := barInterval(cfg.Timeframe)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	// Without a portfolio feed the snapshot is a static paper account.
	equity := decimal.NewFromInt(100_000)
	analyze := func(ctx context.Context, bar *domain.Bar) (app.Analysis, error) {
		return app.Analysis{
			Portfolio: risk.PortfolioState{AccountEquity: equity},
		}, nil
	}

	if err := service.Run(ctx, client, interval, analyze); err != nil && ctx.Err() == nil {
		appLogger.Error(ctx, err, "Live service stopped")
		os.Exit(1)
	}
	appLogger.Info(context.Background(), "Shutdown complete")
}

func barInterval(tf domain.Timeframe) (time.Duration, error) {
	switch tf {
	case domain.Timeframe1m:
		return time.Minute, nil
	case domain.Timeframe5m:
		return 5 * time.Minute, nil
	case domain.Timeframe15m:
		return 15 * time.Minute, nil
	case domain.Timeframe1h:
		return time.Hour, nil
	case domain.Timeframe4h:
		return 4 * time.Hour, nil
	case domain.Timeframe1d:
		return 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unsupported timeframe %q", tf)
}
