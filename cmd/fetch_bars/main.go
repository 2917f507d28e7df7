package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"wyckoffEngine/config"
	"wyckoffEngine/internal/adapters/binanceclient"
	"wyckoffEngine/internal/adapters/logger"
	"wyckoffEngine/internal/utils"
)

func main() {
	months := flag.Int("months", 3, "How many months of history to fetch")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.New(logger.ParseLevel(cfg.LogLevel))
	ctx := context.Background()

	client, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	end := time.Now()
	start := end.AddDate(0, -*months, 0)
	appLogger.Info(ctx, "Fetching bars", map[string]interface{}{
		"symbol":    cfg.Symbol,
		"timeframe": string(cfg.Timeframe),
		"start":     start.Format(time.RFC3339),
		"end":       end.Format(time.RFC3339),
	})

	bars, err := client.GetBars(ctx, cfg.Symbol, cfg.Timeframe, start.UnixMilli(), end.UnixMilli(), 0)
	if err != nil {
		appLogger.Error(ctx, err, "Error fetching bars")
		log.Fatalf("Error fetching bars: %v", err)
	}
	appLogger.Info(ctx, "Fetched bars", map[string]interface{}{"count": len(bars)})

	filename := fmt.Sprintf("data/%s_%s_%s_to_%s.csv",
		cfg.Symbol, cfg.Timeframe, start.Format("20060102"), end.Format("20060102"))
	if err := utils.WriteBarsToCSV(bars, filename); err != nil {
		appLogger.Error(ctx, err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(ctx, "Saved bars", map[string]interface{}{"filename": filename})
}
