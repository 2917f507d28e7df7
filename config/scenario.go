package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"wyckoffEngine/internal/backtest"
	"wyckoffEngine/internal/domain"
)

// Scenario is one backtest run declared in a YAML file. Decimal fields are
// kept as strings in the document and parsed exactly.
type Scenario struct {
	Name          string `yaml:"name"`
	Symbol        string `yaml:"symbol"`
	Timeframe     string `yaml:"timeframe"`
	Start         string `yaml:"start"` // RFC 3339
	End           string `yaml:"end"`
	InitialFunds  string `yaml:"initial_funds"`
	PositionSize  string `yaml:"position_size"`
	StopLossPct   string `yaml:"stop_loss_pct"`
	TakeProfitPct string `yaml:"take_profit_pct"`
	ExitStrategy  string `yaml:"exit_strategy"`
	BarsCSV       string `yaml:"bars_csv"` // Bar data file for the run
}

// ScenarioFile is the top-level YAML document.
type ScenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios reads and parses a scenario YAML file.
func LoadScenarios(path string) (*ScenarioFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file '%s': %w", path, err)
	}
	var file ScenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file '%s': %w", path, err)
	}
	if len(file.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario file '%s' declares no scenarios", path)
	}
	return &file, nil
}

// ToBacktestConfig converts the scenario into a validated simulation config.
func (s *Scenario) ToBacktestConfig() (backtest.Config, error) {
	var cfg backtest.Config

	if s.Symbol == "" {
		return cfg, fmt.Errorf("scenario '%s': symbol is required", s.Name)
	}
	cfg.Symbol = s.Symbol
	cfg.Timeframe = domain.Timeframe(s.Timeframe)

	start, err := time.Parse(time.RFC3339, s.Start)
	if err != nil {
		return cfg, fmt.Errorf("scenario '%s': invalid start time '%s': %w", s.Name, s.Start, err)
	}
	end, err := time.Parse(time.RFC3339, s.End)
	if err != nil {
		return cfg, fmt.Errorf("scenario '%s': invalid end time '%s': %w", s.Name, s.End, err)
	}
	if !end.After(start) {
		return cfg, fmt.Errorf("scenario '%s': end %s is not after start %s", s.Name, s.End, s.Start)
	}
	cfg.StartTime, cfg.EndTime = start, end

	fields := []struct {
		dst  *decimal.Decimal
		name string
		src  string
	}{
		{&cfg.InitialFunds, "initial_funds", s.InitialFunds},
		{&cfg.PositionSize, "position_size", s.PositionSize},
		{&cfg.StopLossPct, "stop_loss_pct", s.StopLossPct},
		{&cfg.TakeProfitPct, "take_profit_pct", s.TakeProfitPct},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return cfg, fmt.Errorf("scenario '%s': invalid %s '%s': %w", s.Name, f.name, f.src, err)
		}
		*f.dst = d
	}
	cfg.ExitStrategy = s.ExitStrategy
	return cfg, nil
}
