package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"wyckoffEngine/config"
	"wyckoffEngine/internal/adapters/logger"
	"wyckoffEngine/internal/backtest"
	"wyckoffEngine/internal/cache"
	"wyckoffEngine/internal/domain"
	sig "wyckoffEngine/internal/signal"
	"wyckoffEngine/internal/utils"

	"github.com/shopspring/decimal"
)

func main() {
	scenarioPath := flag.String("scenarios", "scenarios.yaml", "Path to the scenario YAML file")
	outDir := flag.String("out", "results", "Directory for result JSON files")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.New(logger.ParseLevel(cfg.LogLevel))
	ctx := context.Background()

	scenarios, err := config.LoadScenarios(*scenarioPath)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to load scenarios")
		os.Exit(1)
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		appLogger.Error(ctx, err, "Failed to create output directory")
		os.Exit(1)
	}

	registry, err := backtest.DefaultRegistry()
	if err != nil {
		appLogger.Error(ctx, err, "Failed to build exit strategy registry")
		os.Exit(1)
	}

	costs, err := backtest.NewRealisticCostModel(backtest.RealisticCostConfig{
		CommissionPerShare: decimal.NewFromFloat(0.005),
		MinCommission:      decimal.NewFromInt(1),
		SlippagePct:        decimal.NewFromFloat(0.1),
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to build cost model")
		os.Exit(1)
	}

	// The simulation replays the live rule set: the reference scanner is
	// wrapped in the same validated detector the live engine runs, exposed
	// through its pattern detector port.
	detector, err := sig.NewValidatedDetector(
		&sig.SpringScanner{Window: 20},
		sig.DetectorConfig{LookbackBars: 20},
		nil,
		appLogger,
	)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to build detector")
		os.Exit(1)
	}

	engine, err := backtest.NewEngine(backtest.EngineConfig{
		Detector: detector.PatternDetector(),
		Costs:    costs,
		Registry: registry,
		Logger:   appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to build engine")
		os.Exit(1)
	}

	// Scenarios often replay the same bar file with different parameters;
	// cache the parsed series per path.
	barCache, err := cache.New(cache.Config{MaxEntries: 32, DefaultTTL: time.Hour})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to build bar cache")
		os.Exit(1)
	}

	failed := 0
	for _, scenario := range scenarios.Scenarios {
		if err := runScenario(ctx, engine, barCache, scenario, *outDir); err != nil {
			appLogger.Error(ctx, err, "Scenario failed", map[string]interface{}{"scenario": scenario.Name})
			failed++
			continue
		}
		appLogger.Info(ctx, "Scenario complete", map[string]interface{}{"scenario": scenario.Name})
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func runScenario(ctx context.Context, engine *backtest.Engine, barCache *cache.Cache, scenario config.Scenario, outDir string) error {
	runCfg, err := scenario.ToBacktestConfig()
	if err != nil {
		return err
	}
	bars, err := loadBars(barCache, scenario.BarsCSV)
	if err != nil {
		return fmt.Errorf("failed to load bars for scenario '%s': %w", scenario.Name, err)
	}

	result, err := engine.Run(ctx, bars, runCfg)
	if err != nil {
		return fmt.Errorf("simulation failed for scenario '%s': %w", scenario.Name, err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result for scenario '%s': %w", scenario.Name, err)
	}
	name := strings.ReplaceAll(scenario.Name, " ", "_")
	path := fmt.Sprintf("%s/%s.json", outDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write result for scenario '%s': %w", scenario.Name, err)
	}

	fmt.Printf("%s: trades=%d winRate=%s maxDD=%s sharpe=%.2f biasFree=%v -> %s\n",
		scenario.Name, result.Metrics.TotalTrades, result.Metrics.WinRate,
		result.MaxDrawdown.Drawdown, result.Metrics.SharpeRatio, result.BiasFree, path)
	return nil
}

func loadBars(barCache *cache.Cache, path string) ([]*domain.Bar, error) {
	if cached, ok := barCache.Get(path); ok {
		return cached.([]*domain.Bar), nil
	}
	bars, err := utils.ReadBarsFromCSV(path)
	if err != nil {
		return nil, err
	}
	barCache.Set(path, bars)
	return bars, nil
}
