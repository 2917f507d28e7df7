package validation

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"wyckoffEngine/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testPattern(pt domain.PatternType, phase domain.WyckoffPhase) *domain.Pattern {
	return &domain.Pattern{
		ID:     "pat-1",
		Type:   pt,
		Symbol: "AAPL",
		Price:  dec("100"),
		Phase:  &phase,
	}
}

func volumeCtx(pt domain.PatternType, ratio, closePos string) *Context {
	phase := domain.PhaseC
	return &Context{
		Pattern: testPattern(pt, phase),
		Volume: &VolumeAnalysis{
			Ratio:         dec(ratio),
			AverageVolume: dec("1000"),
			BaselineBars:  20,
			ClosePosition: dec(closePos),
		},
	}
}

func TestVolumeValidator(t *testing.T) {
	tests := []struct {
		name       string
		vc         *Context
		wantStatus Status
	}{
		{"spring under ceiling passes", volumeCtx(domain.PatternSpring, "0.5", "0.8"), StatusPass},
		{"spring at ceiling fails", volumeCtx(domain.PatternSpring, "0.7", "0.8"), StatusFail},
		{"spring above ceiling fails", volumeCtx(domain.PatternSpring, "0.9", "0.8"), StatusFail},
		{"sos above floor passes", volumeCtx(domain.PatternSOS, "1.8", "0.8"), StatusPass},
		{"sos at floor fails", volumeCtx(domain.PatternSOS, "1.5", "0.8"), StatusFail},
		{"utad above floor passes", volumeCtx(domain.PatternUTAD, "1.3", "0.2"), StatusPass},
		{"utad at floor fails", volumeCtx(domain.PatternUTAD, "1.2", "0.2"), StatusFail},
		{"lps quiet pullback passes", volumeCtx(domain.PatternLPS, "0.8", "0.4"), StatusPass},
		{"lps heavy with weak close fails", volumeCtx(domain.PatternLPS, "1.1", "0.4"), StatusFail},
		{"lps absorption exception passes", volumeCtx(domain.PatternLPS, "1.1", "0.8"), StatusPass},
		{"lps absorption ceiling still fails", volumeCtx(domain.PatternLPS, "1.3", "0.9"), StatusFail},
	}
	v := VolumeValidator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(context.Background(), tt.vc)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, "volume", result.Stage)
		})
	}
}

func TestVolumeValidator_NoBaselineFails(t *testing.T) {
	phase := domain.PhaseC
	vc := &Context{Pattern: testPattern(domain.PatternSpring, phase)}

	result := VolumeValidator{}.Validate(context.Background(), vc)

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Reason, "baseline")
}

func TestVolumeValidator_AbsorptionMetadata(t *testing.T) {
	vc := volumeCtx(domain.PatternLPS, "1.1", "0.8")

	result := VolumeValidator{}.Validate(context.Background(), vc)

	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, true, result.Metadata["absorption"])
}

func TestPhaseValidator(t *testing.T) {
	tests := []struct {
		name       string
		pt         domain.PatternType
		phase      domain.WyckoffPhase
		wantStatus Status
	}{
		{"spring in C passes", domain.PatternSpring, domain.PhaseC, StatusPass},
		{"spring in B fails", domain.PatternSpring, domain.PhaseB, StatusFail},
		{"sos in D passes", domain.PatternSOS, domain.PhaseD, StatusPass},
		{"sos in E passes", domain.PatternSOS, domain.PhaseE, StatusPass},
		{"sos in C fails", domain.PatternSOS, domain.PhaseC, StatusFail},
		{"utad in D passes", domain.PatternUTAD, domain.PhaseD, StatusPass},
		{"utad in E fails", domain.PatternUTAD, domain.PhaseE, StatusFail},
	}
	v := PhaseValidator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vc := &Context{Pattern: testPattern(tt.pt, tt.phase)}
			result := v.Validate(context.Background(), vc)
			assert.Equal(t, tt.wantStatus, result.Status)
		})
	}
}

func TestPhaseValidator_MissingPhaseWarns(t *testing.T) {
	vc := &Context{Pattern: &domain.Pattern{Type: domain.PatternSpring, Price: dec("100")}}

	result := PhaseValidator{}.Validate(context.Background(), vc)

	assert.Equal(t, StatusWarn, result.Status)
	assert.Len(t, result.Warnings, 1)
}

func validRange() *domain.TradingRange {
	return &domain.TradingRange{
		Creek:         dec("100"),
		Ice:           dec("110"),
		Jump:          dec("120"),
		CreekStrength: dec("75"),
		IceStrength:   dec("80"),
		CauseFactor:   dec("2"),
	}
}

func TestLevelsValidator(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*domain.TradingRange)
		wantStatus Status
		wantReason string
	}{
		{"healthy structure passes", func(tr *domain.TradingRange) {}, StatusPass, ""},
		{"weak creek fails", func(tr *domain.TradingRange) { tr.CreekStrength = dec("59") }, StatusFail, "creek strength"},
		{"weak ice fails", func(tr *domain.TradingRange) { tr.IceStrength = dec("40") }, StatusFail, "ice strength"},
		{"inverted levels fail", func(tr *domain.TradingRange) { tr.Ice = dec("90") }, StatusFail, "must exceed"},
		{"narrow range fails", func(tr *domain.TradingRange) { tr.Ice = dec("101") }, StatusFail, "below the"},
		{"unrealistic target fails", func(tr *domain.TradingRange) { tr.Jump = dec("145") }, StatusFail, "unrealistic"},
		{"conservative target warns", func(tr *domain.TradingRange) { tr.Jump = dec("110") }, StatusWarn, "conservative"},
	}
	v := LevelsValidator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := validRange()
			tt.mutate(tr)
			result := v.Validate(context.Background(), &Context{Range: tr})
			assert.Equal(t, tt.wantStatus, result.Status)
			if tt.wantReason != "" {
				assert.Contains(t, result.Reason, tt.wantReason)
			}
		})
	}
}

func TestLevelsValidator_NoRangeFails(t *testing.T) {
	result := LevelsValidator{}.Validate(context.Background(), &Context{})

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Reason, "no trading range")
}

func TestRiskValidator(t *testing.T) {
	phase := domain.PhaseC
	pattern := testPattern(domain.PatternSpring, phase)
	pattern.Price = dec("105")

	tests := []struct {
		name       string
		vc         *Context
		wantStatus Status
	}{
		{
			name: "feasible sizing passes",
			vc: &Context{
				Pattern: pattern,
				Range:   validRange(),
				Portfolio: &PortfolioContext{
					AccountEquity:   dec("100000"),
					RiskPerTradePct: dec("1"),
				},
			},
			wantStatus: StatusPass,
		},
		{
			name:       "no portfolio context warns",
			vc:         &Context{Pattern: pattern, Range: validRange()},
			wantStatus: StatusWarn,
		},
		{
			name: "no range fails",
			vc: &Context{
				Pattern:   pattern,
				Portfolio: &PortfolioContext{AccountEquity: dec("100000"), RiskPerTradePct: dec("1")},
			},
			wantStatus: StatusFail,
		},
		{
			name: "risk above ceiling fails",
			vc: &Context{
				Pattern: pattern,
				Range:   validRange(),
				Portfolio: &PortfolioContext{
					AccountEquity:   dec("100000"),
					RiskPerTradePct: dec("2.5"),
				},
			},
			wantStatus: StatusFail,
		},
		{
			name: "tiny account warns on sub-share quantity",
			vc: &Context{
				Pattern: pattern,
				Range:   validRange(),
				Portfolio: &PortfolioContext{
					AccountEquity:   dec("300"),
					RiskPerTradePct: dec("1"),
				},
			},
			wantStatus: StatusWarn,
		},
	}
	v := RiskValidator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(context.Background(), tt.vc)
			assert.Equal(t, tt.wantStatus, result.Status)
		})
	}
}

func TestRiskValidator_StopBelowEntryForUTAD(t *testing.T) {
	phase := domain.PhaseD
	pattern := testPattern(domain.PatternUTAD, phase)
	pattern.Price = dec("112")

	result := RiskValidator{}.Validate(context.Background(), &Context{
		Pattern:   pattern,
		Range:     validRange(),
		Portfolio: &PortfolioContext{AccountEquity: dec("100000"), RiskPerTradePct: dec("1")},
	})

	// Stop distance for a UTAD is measured to the Ice: 112 - 110 = 2.
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "2", result.Metadata["stop_distance"])
}

func TestStrategyValidator(t *testing.T) {
	phase := domain.PhaseD
	tests := []struct {
		name       string
		pt         domain.PatternType
		history    []domain.PatternType
		wantStatus Status
	}{
		{"spring has no prerequisite", domain.PatternSpring, []domain.PatternType{}, StatusPass},
		{"sos after spring passes", domain.PatternSOS, []domain.PatternType{domain.PatternSpring}, StatusPass},
		{"sos after lps passes", domain.PatternSOS, []domain.PatternType{domain.PatternLPS}, StatusPass},
		{"sos without ancestry fails", domain.PatternSOS, []domain.PatternType{}, StatusFail},
		{"lps after sos passes", domain.PatternLPS, []domain.PatternType{domain.PatternSOS}, StatusPass},
		{"lps without sos fails", domain.PatternLPS, []domain.PatternType{domain.PatternSpring}, StatusFail},
		{"nil history warns", domain.PatternSOS, nil, StatusWarn},
	}
	v := StrategyValidator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vc := &Context{Pattern: testPattern(tt.pt, phase), History: tt.history}
			result := v.Validate(context.Background(), vc)
			assert.Equal(t, tt.wantStatus, result.Status)
		})
	}
}
