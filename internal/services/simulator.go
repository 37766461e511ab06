package services

import (
	"github.com/shopspring/decimal"

	"github.com/fxlab/forex-portfolio-go/internal/models"
)

// holdSafetyMarginDays bounds the bar walk a few days past the
// configured holding period; the max-hold exit fires first under
// normal data, the margin only matters when bars carry gaps.
const holdSafetyMarginDays = 5

// standardLotUnits is the number of base-currency units in one lot.
var standardLotUnits = decimal.NewFromInt(100000)

var (
	hundred    = decimal.NewFromInt(100)
	minLotSize = decimal.NewFromFloat(0.01)
)

// TradeSimulator walks one pick forward through daily bars and decides
// when and why the position exits. It holds no state; a single instance
// is safe for concurrent use.
type TradeSimulator struct{}

// NewTradeSimulator creates a new trade simulator.
func NewTradeSimulator() *TradeSimulator {
	return &TradeSimulator{}
}

// Simulate runs one pick against its price series under the given
// configuration and returns the resulting trade. The config is
// normalized first, so out-of-range leverage is clamped rather than
// rejected. Missing price data produces a NO_PRICE_DATA trade that
// costs exactly the spread; it is never an error.
func (s *TradeSimulator) Simulate(pick models.Pick, bars []models.PriceBar, cfg models.PortfolioConfig) models.Trade {
	cfg = cfg.Normalize()

	lotSize := s.lotSize(cfg)
	pipDollarValue := lotSize.Mul(standardLotUnits).Mul(pick.PipValue)
	spreadCost := cfg.SpreadPips.Mul(pipDollarValue)

	trade := models.Trade{
		Symbol:     pick.Symbol,
		Direction:  pick.Direction,
		Algorithm:  pick.Algorithm,
		EntryDate:  pick.PickDate,
		EntryPrice: pick.EntryPrice,
		LotSize:    lotSize,
		SpreadCost: spreadCost,
	}

	if len(bars) == 0 {
		// Absence of data is an immediate break-even-minus-costs exit.
		trade.ExitDate = pick.PickDate
		trade.ExitPrice = pick.EntryPrice
		trade.PipProfit = cfg.SpreadPips.Neg()
		trade.GrossProfit = decimal.Zero
		trade.NetProfit = spreadCost.Neg()
		trade.ReturnPct = s.returnPct(trade.NetProfit, cfg)
		trade.ExitReason = models.ExitNoPriceData
		trade.HoldDays = 0
		return trade
	}

	exitBar, exitPrice, reason, holdDays := s.walkBars(pick, bars, cfg)

	trade.ExitDate = exitBar.Date
	trade.ExitPrice = exitPrice
	trade.ExitReason = reason
	trade.HoldDays = holdDays

	rawPips := s.rawPips(pick, exitPrice)
	netPips := rawPips.Sub(cfg.SpreadPips)

	trade.PipProfit = netPips
	trade.GrossProfit = rawPips.Mul(pipDollarValue)
	trade.NetProfit = netPips.Mul(pipDollarValue)
	trade.ReturnPct = s.returnPct(trade.NetProfit, cfg)

	return trade
}

// walkBars consumes bars one per day until an exit condition triggers.
// Within a single day stop-loss is checked before take-profit, so a bar
// touching both levels is scored conservatively.
func (s *TradeSimulator) walkBars(pick models.Pick, bars []models.PriceBar, cfg models.PortfolioConfig) (models.PriceBar, decimal.Decimal, models.ExitReason, int) {
	maxBars := cfg.MaxHoldDays + holdSafetyMarginDays
	if maxBars > len(bars) {
		maxBars = len(bars)
	}

	stopLoss := cfg.StopLossPips
	takeProfit := cfg.TakeProfitPips
	pip := pick.PipValue

	for i := 0; i < maxBars; i++ {
		bar := bars[i]
		day := i + 1

		var bestCase, worstCase decimal.Decimal
		switch pick.Direction {
		case models.DirectionShort:
			bestCase = pick.EntryPrice.Sub(bar.Low).Div(pip)
			worstCase = pick.EntryPrice.Sub(bar.High).Div(pip)
		default:
			bestCase = bar.High.Sub(pick.EntryPrice).Div(pip)
			worstCase = bar.Low.Sub(pick.EntryPrice).Div(pip)
		}

		if cfg.StopLossEnabled() && worstCase.LessThanOrEqual(stopLoss.Neg()) {
			return bar, s.offsetPrice(pick, stopLoss.Neg()), models.ExitStopLoss, day
		}

		if cfg.TakeProfitEnabled() && bestCase.GreaterThanOrEqual(takeProfit) {
			return bar, s.offsetPrice(pick, takeProfit), models.ExitTakeProfit, day
		}

		if day >= cfg.MaxHoldDays {
			return bar, bar.Close, models.ExitMaxHold, day
		}
	}

	last := bars[maxBars-1]
	return last, last.Close, models.ExitEndOfData, maxBars
}

// offsetPrice converts a signed pip distance from entry into an exit
// price, flipping the sign for shorts.
func (s *TradeSimulator) offsetPrice(pick models.Pick, pips decimal.Decimal) decimal.Decimal {
	delta := pips.Mul(pick.PipValue)
	if pick.Direction == models.DirectionShort {
		return pick.EntryPrice.Sub(delta)
	}
	return pick.EntryPrice.Add(delta)
}

// rawPips converts the entry/exit price distance into pips before
// spread is deducted.
func (s *TradeSimulator) rawPips(pick models.Pick, exitPrice decimal.Decimal) decimal.Decimal {
	if pick.Direction == models.DirectionShort {
		return pick.EntryPrice.Sub(exitPrice).Div(pick.PipValue)
	}
	return exitPrice.Sub(pick.EntryPrice).Div(pick.PipValue)
}

// lotSize computes the leveraged position size in lots, floored at one
// micro-lot.
func (s *TradeSimulator) lotSize(cfg models.PortfolioConfig) decimal.Decimal {
	positionValue := cfg.InitialCapital.
		Mul(cfg.PositionSizePct.Div(hundred)).
		Mul(decimal.NewFromInt(int64(cfg.Leverage)))

	lot := positionValue.Div(standardLotUnits).Round(4)
	if lot.LessThan(minLotSize) {
		return minLotSize
	}
	return lot
}

// returnPct expresses net profit as a percentage of the capital risked
// on the trade (before leverage).
func (s *TradeSimulator) returnPct(netProfit decimal.Decimal, cfg models.PortfolioConfig) decimal.Decimal {
	risked := cfg.InitialCapital.Mul(cfg.PositionSizePct.Div(hundred))
	if risked.IsZero() {
		return decimal.Zero
	}
	return netProfit.Div(risked).Mul(hundred)
}
