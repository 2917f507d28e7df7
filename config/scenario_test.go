package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wyckoffEngine/internal/domain"
)

const scenarioYAML = `
scenarios:
  - name: spring-hourly
    symbol: BTCUSDT
    timeframe: 1h
    start: 2025-01-01T00:00:00Z
    end: 2025-03-01T00:00:00Z
    initial_funds: "100000"
    position_size: "0.5"
    stop_loss_pct: "0.02"
    take_profit_pct: "0.04"
    exit_strategy: trailing_stop
    bars_csv: data/btcusdt_1h.csv
  - name: daily-no-strategy
    symbol: ETHUSDT
    timeframe: 1d
    start: 2024-01-01T00:00:00Z
    end: 2025-01-01T00:00:00Z
    initial_funds: "50000.50"
    position_size: "2"
    stop_loss_pct: "0.03"
    take_profit_pct: "0.06"
    bars_csv: data/ethusdt_1d.csv
`

func writeScenarioFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenarios(t *testing.T) {
	file, err := LoadScenarios(writeScenarioFile(t, scenarioYAML))
	require.NoError(t, err)
	require.Len(t, file.Scenarios, 2)

	assert.Equal(t, "spring-hourly", file.Scenarios[0].Name)
	assert.Equal(t, "data/btcusdt_1h.csv", file.Scenarios[0].BarsCSV)
	assert.Equal(t, "", file.Scenarios[1].ExitStrategy)
}

func TestLoadScenarios_Errors(t *testing.T) {
	_, err := LoadScenarios(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadScenarios(writeScenarioFile(t, "scenarios: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenarios")

	_, err = LoadScenarios(writeScenarioFile(t, "scenarios: [not, a, mapping"))
	assert.Error(t, err)
}

func TestScenario_ToBacktestConfig(t *testing.T) {
	file, err := LoadScenarios(writeScenarioFile(t, scenarioYAML))
	require.NoError(t, err)

	cfg, err := file.Scenarios[0].ToBacktestConfig()
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, domain.Timeframe1h, cfg.Timeframe)
	assert.True(t, cfg.StartTime.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, cfg.InitialFunds.Equal(decimal.NewFromInt(100000)))
	assert.True(t, cfg.PositionSize.Equal(decimal.NewFromFloat(0.5)))
	assert.Equal(t, "trailing_stop", cfg.ExitStrategy)

	second, err := file.Scenarios[1].ToBacktestConfig()
	require.NoError(t, err)
	assert.True(t, second.InitialFunds.Equal(decimal.RequireFromString("50000.50")), "decimals parse exactly from strings")
}

func TestScenario_ToBacktestConfig_Validation(t *testing.T) {
	base := Scenario{
		Name: "bad", Symbol: "BTCUSDT", Timeframe: "1h",
		Start: "2025-01-01T00:00:00Z", End: "2025-03-01T00:00:00Z",
		InitialFunds: "1000", PositionSize: "1",
		StopLossPct: "0.02", TakeProfitPct: "0.04",
	}

	s := base
	s.Symbol = ""
	_, err := s.ToBacktestConfig()
	assert.Error(t, err)

	s = base
	s.Start = "yesterday"
	_, err = s.ToBacktestConfig()
	assert.Error(t, err)

	s = base
	s.End = s.Start
	_, err = s.ToBacktestConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not after")

	s = base
	s.StopLossPct = "two percent"
	_, err = s.ToBacktestConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid stop_loss_pct")
}
