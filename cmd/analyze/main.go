package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/shopspring/decimal"

	"wyckoffEngine/config"
	"wyckoffEngine/internal/adapters/logger"
	"wyckoffEngine/internal/domain"
	"wyckoffEngine/internal/pipeline"
	"wyckoffEngine/internal/risk"
	sig "wyckoffEngine/internal/signal"
	"wyckoffEngine/internal/utils"
	"wyckoffEngine/internal/validation"
)

// analyze runs the detection, validation, and gate stages once over the final
// bar of a CSV series and prints the full evidence trail. A diagnostic for
// inspecting what the live engine would decide on a given window.
func main() {
	var (
		barsPath      = flag.String("bars", "", "Path to the bar CSV file (required)")
		lookback      = flag.Int("lookback", 20, "Volume baseline window in bars")
		creek         = flag.String("creek", "", "Trading range support level")
		ice           = flag.String("ice", "", "Trading range resistance level")
		jump          = flag.String("jump", "", "Measured-move objective")
		cause         = flag.String("cause", "2", "Cause factor")
		creekStrength = flag.String("creek-strength", "60", "Creek touch strength, 0-100")
		iceStrength   = flag.String("ice-strength", "60", "Ice touch strength, 0-100")
		equity        = flag.String("equity", "100000", "Account equity")
		heat          = flag.String("heat", "0", "Current portfolio heat, percent of equity")
		riskPct       = flag.String("risk", "1", "Proposed trade risk, percent of equity")
	)
	flag.Parse()
	if *barsPath == "" {
		log.Fatal("FATAL: -bars is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.New(logger.ParseLevel(cfg.LogLevel))
	ctx := context.Background()

	equityDec := mustDec("equity", *equity)
	heatDec := mustDec("heat", *heat)
	riskDec := mustDec("risk", *riskPct)

	// The trading range is optional: without it the levels stage reports the
	// missing structure instead of guessing one.
	var tradingRange *domain.TradingRange
	if *creek != "" && *ice != "" && *jump != "" {
		tradingRange = &domain.TradingRange{
			Creek:         mustDec("creek", *creek),
			Ice:           mustDec("ice", *ice),
			Jump:          mustDec("jump", *jump),
			CreekStrength: mustDec("creek-strength", *creekStrength),
			IceStrength:   mustDec("ice-strength", *iceStrength),
			CauseFactor:   mustDec("cause", *cause),
		}
	}

	bars, err := utils.ReadBarsFromCSV(*barsPath)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to load bars")
		os.Exit(1)
	}
	if len(bars) == 0 {
		appLogger.Error(ctx, fmt.Errorf("no bars in %s", *barsPath), "Nothing to analyze")
		os.Exit(1)
	}
	last := bars[len(bars)-1]

	detector, err := sig.NewValidatedDetector(
		&sig.SpringScanner{Window: *lookback},
		sig.DetectorConfig{LookbackBars: *lookback},
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

	build := func(ctx context.Context, input *pipeline.Input, s *sig.Signal) (*validation.Context, error) {
		return &validation.Context{
			Pattern:   s.Pattern,
			Symbol:    input.Symbol,
			Timeframe: input.Timeframe,
			Volume:    s.Volume,
			Phase:     s.Pattern.Phase,
			Range:     tradingRange,
			Portfolio: &validation.PortfolioContext{
				AccountEquity:   equityDec,
				RiskPerTradePct: riskDec,
			},
		}, nil
	}
	state := func(ctx context.Context, symbol string) (risk.PortfolioState, error) {
		return risk.PortfolioState{AccountEquity: equityDec, HeatPct: heatDec}, nil
	}

	coordinator, err := pipeline.NewCoordinator(pipeline.CoordinatorConfig{
		Stages: []pipeline.Stage{
			&pipeline.DetectionStage{Detector: detector},
			&pipeline.ValidationStage{Chain: chain, Build: build},
			&pipeline.GateStage{Gate: gate, State: state, RiskPct: riskDec},
		},
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to build pipeline: %v", err)
	}

	report, err := coordinator.Run(ctx, &pipeline.Input{
		Symbol:    last.Symbol,
		Timeframe: last.Timeframe,
		Bars:      bars,
	})
	if err != nil {
		appLogger.Error(ctx, err, "Pipeline run failed")
		os.Exit(1)
	}

	for _, name := range coordinator.StageNames() {
		fmt.Printf("%-10s %s\n", name, report.Durations[name])
	}
	out := report.Context
	switch {
	case out.Signal == nil:
		fmt.Printf("no signal on the final bar (%s)\n", last.Timestamp)
	case out.Chain != nil && !out.Chain.IsValid:
		fmt.Printf("rejected: %s\n", out.Chain.RejectionReason)
	case out.PreFlight != nil && !out.PreFlight.Passed:
		for _, v := range out.PreFlight.Violations {
			fmt.Printf("blocked: %s %s > %s\n", v.Limit, v.Current, v.Max)
		}
	default:
		fmt.Printf("candidate %s accepted\n", out.Signal.Pattern.Type)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		appLogger.Error(ctx, err, "Failed to encode evidence trail")
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func mustDec(name, value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		log.Fatalf("FATAL: invalid -%s value %q: %v", name, value, err)
	}
	return d
}
