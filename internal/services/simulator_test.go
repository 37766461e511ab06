package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlab/forex-portfolio-go/internal/models"
)

func day(n int) time.Time {
	return time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func bar(n int, open, high, low, close float64) models.PriceBar {
	return models.PriceBar{
		Symbol: "EURUSD",
		Date:   day(n),
		Open:   decimal.NewFromFloat(open),
		High:   decimal.NewFromFloat(high),
		Low:    decimal.NewFromFloat(low),
		Close:  decimal.NewFromFloat(close),
		Volume: decimal.NewFromInt(1000),
	}
}

func eurusdPick(direction models.TradeDirection) models.Pick {
	return models.Pick{
		ID:         "pick-1",
		Symbol:     "EURUSD",
		Algorithm:  "momentum",
		PickDate:   day(0),
		EntryPrice: decimal.NewFromFloat(1.0800),
		Direction:  direction,
		PipValue:   decimal.NewFromFloat(0.0001),
		Category:   "major",
	}
}

func testConfig() models.PortfolioConfig {
	return models.PortfolioConfig{
		TakeProfitPips:  decimal.NewFromInt(50),
		StopLossPips:    decimal.NewFromInt(30),
		MaxHoldDays:     10,
		InitialCapital:  decimal.NewFromInt(10000),
		Leverage:        10,
		SpreadPips:      decimal.NewFromFloat(1.5),
		PositionSizePct: decimal.NewFromInt(3),
		MaxPositions:    10,
	}
}

func TestSimulateStopLossAfterFavorableDay(t *testing.T) {
	sim := NewTradeSimulator()

	// Day 1 moves 10 pips in favor, below the 50 pip target. Day 2
	// drops 50 pips through the 30 pip stop.
	bars := []models.PriceBar{
		bar(1, 1.0800, 1.0810, 1.0798, 1.0805),
		bar(2, 1.0805, 1.0806, 1.0750, 1.0760),
	}

	trade := sim.Simulate(eurusdPick(models.DirectionLong), bars, testConfig())

	assert.Equal(t, models.ExitStopLoss, trade.ExitReason)
	assert.Equal(t, "1.077", trade.ExitPrice.String())
	assert.Equal(t, "-31.5", trade.PipProfit.String())
	assert.True(t, trade.NetProfit.IsNegative())
	assert.Equal(t, 2, trade.HoldDays)
}

func TestSimulateTakeProfitExactExit(t *testing.T) {
	sim := NewTradeSimulator()

	// Day 1 high crosses the 50 pip target.
	bars := []models.PriceBar{
		bar(1, 1.0800, 1.0860, 1.0795, 1.0850),
	}

	trade := sim.Simulate(eurusdPick(models.DirectionLong), bars, testConfig())

	assert.Equal(t, models.ExitTakeProfit, trade.ExitReason)
	assert.Equal(t, "1.085", trade.ExitPrice.String())
	assert.Equal(t, "48.5", trade.PipProfit.String())
	assert.Equal(t, 1, trade.HoldDays)

	// lot = 10000 * 3% * 10 / 100000 = 0.03; pip value $0.30
	assert.Equal(t, "0.03", trade.LotSize.String())
	assert.Equal(t, "0.45", trade.SpreadCost.String())
	assert.Equal(t, "14.55", trade.NetProfit.String())
	assert.Equal(t, "15", trade.GrossProfit.String())
}

func TestSimulateStopLossPriority(t *testing.T) {
	sim := NewTradeSimulator()

	// Both levels trigger on day 1; the conservative tie-break takes
	// the stop.
	bars := []models.PriceBar{
		bar(1, 1.0800, 1.0860, 1.0750, 1.0800),
	}

	trade := sim.Simulate(eurusdPick(models.DirectionLong), bars, testConfig())

	assert.Equal(t, models.ExitStopLoss, trade.ExitReason)
	assert.Equal(t, "1.077", trade.ExitPrice.String())
}

func TestSimulateShortDirection(t *testing.T) {
	sim := NewTradeSimulator()

	tests := []struct {
		name       string
		bars       []models.PriceBar
		wantReason models.ExitReason
		wantExit   string
		wantPips   string
	}{
		{
			name: "take profit on falling price",
			bars: []models.PriceBar{
				bar(1, 1.0800, 1.0805, 1.0740, 1.0750),
			},
			wantReason: models.ExitTakeProfit,
			wantExit:   "1.075",
			wantPips:   "48.5",
		},
		{
			name: "stop loss on rising price",
			bars: []models.PriceBar{
				bar(1, 1.0800, 1.0840, 1.0795, 1.0835),
			},
			wantReason: models.ExitStopLoss,
			wantExit:   "1.083",
			wantPips:   "-31.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := sim.Simulate(eurusdPick(models.DirectionShort), tt.bars, testConfig())
			assert.Equal(t, tt.wantReason, trade.ExitReason)
			assert.Equal(t, tt.wantExit, trade.ExitPrice.String())
			assert.Equal(t, tt.wantPips, trade.PipProfit.String())
		})
	}
}

func TestSimulateMaxHoldExit(t *testing.T) {
	sim := NewTradeSimulator()

	cfg := testConfig()
	cfg.MaxHoldDays = 2

	// Neither level triggers; exit at day 2 close.
	bars := []models.PriceBar{
		bar(1, 1.0800, 1.0810, 1.0795, 1.0805),
		bar(2, 1.0805, 1.0815, 1.0800, 1.0810),
		bar(3, 1.0810, 1.0820, 1.0805, 1.0815),
	}

	trade := sim.Simulate(eurusdPick(models.DirectionLong), bars, cfg)

	assert.Equal(t, models.ExitMaxHold, trade.ExitReason)
	assert.Equal(t, "1.081", trade.ExitPrice.String())
	assert.Equal(t, 2, trade.HoldDays)
	// 10 raw pips minus 1.5 spread
	assert.Equal(t, "8.5", trade.PipProfit.String())
}

func TestSimulateEndOfDataExit(t *testing.T) {
	sim := NewTradeSimulator()

	// Only one bar available against a 10 day hold.
	bars := []models.PriceBar{
		bar(1, 1.0800, 1.0810, 1.0795, 1.0808),
	}

	trade := sim.Simulate(eurusdPick(models.DirectionLong), bars, testConfig())

	assert.Equal(t, models.ExitEndOfData, trade.ExitReason)
	assert.Equal(t, "1.0808", trade.ExitPrice.String())
	assert.Equal(t, 1, trade.HoldDays)
}

func TestSimulateNoPriceData(t *testing.T) {
	sim := NewTradeSimulator()

	trade := sim.Simulate(eurusdPick(models.DirectionLong), nil, testConfig())

	assert.Equal(t, models.ExitNoPriceData, trade.ExitReason)
	assert.Equal(t, "-1.5", trade.PipProfit.String())
	assert.Equal(t, "-0.45", trade.NetProfit.String())
	assert.True(t, trade.GrossProfit.IsZero())
	assert.Equal(t, 0, trade.HoldDays)
	assert.Equal(t, day(0), trade.ExitDate)
}

func TestSimulateNetPipsAlwaysRawMinusSpread(t *testing.T) {
	sim := NewTradeSimulator()
	cfg := testConfig()

	for _, direction := range []models.TradeDirection{models.DirectionLong, models.DirectionShort} {
		bars := []models.PriceBar{
			bar(1, 1.0800, 1.0815, 1.0790, 1.0810),
			bar(2, 1.0810, 1.0825, 1.0785, 1.0795),
		}
		trade := sim.Simulate(eurusdPick(direction), bars, cfg)

		var raw decimal.Decimal
		if direction == models.DirectionLong {
			raw = trade.ExitPrice.Sub(trade.EntryPrice).Div(decimal.NewFromFloat(0.0001))
		} else {
			raw = trade.EntryPrice.Sub(trade.ExitPrice).Div(decimal.NewFromFloat(0.0001))
		}
		assert.True(t, trade.PipProfit.Equal(raw.Sub(cfg.SpreadPips)), "direction %s", direction)
	}
}

func TestSimulateDisabledLevels(t *testing.T) {
	sim := NewTradeSimulator()

	cfg := testConfig()
	cfg.TakeProfitPips = decimal.NewFromInt(models.DisabledLevelPips)
	cfg.StopLossPips = decimal.NewFromInt(models.DisabledLevelPips)
	cfg.MaxHoldDays = 1

	// A wild bar that would trigger both levels if they were active.
	bars := []models.PriceBar{
		bar(1, 1.0800, 1.1000, 1.0600, 1.0900),
	}

	trade := sim.Simulate(eurusdPick(models.DirectionLong), bars, cfg)

	assert.Equal(t, models.ExitMaxHold, trade.ExitReason)
	assert.Equal(t, "1.09", trade.ExitPrice.String())
}

func TestSimulateLeverageClamped(t *testing.T) {
	sim := NewTradeSimulator()

	cfg := testConfig()
	cfg.Leverage = 500

	bars := []models.PriceBar{
		bar(1, 1.0800, 1.0860, 1.0795, 1.0850),
	}

	trade := sim.Simulate(eurusdPick(models.DirectionLong), bars, cfg)

	// Clamped to 50x: lot = 10000 * 3% * 50 / 100000 = 0.15
	assert.Equal(t, "0.15", trade.LotSize.String())
}

func TestSimulateMicroLotFloor(t *testing.T) {
	sim := NewTradeSimulator()

	cfg := testConfig()
	cfg.InitialCapital = decimal.NewFromInt(100)
	cfg.Leverage = 1

	bars := []models.PriceBar{
		bar(1, 1.0800, 1.0860, 1.0795, 1.0850),
	}

	trade := sim.Simulate(eurusdPick(models.DirectionLong), bars, cfg)

	require.False(t, trade.LotSize.IsZero())
	assert.Equal(t, "0.01", trade.LotSize.String())
}
