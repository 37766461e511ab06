package services

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/fxlab/forex-portfolio-go/internal/models"
)

// profitFactorSentinel stands in for an undefined profit factor when a
// run has wins and no losses.
var profitFactorSentinel = decimal.NewFromInt(999)

// tradingDaysPerYear annualizes the per-trade return series. Each trade
// is treated as one periodic observation.
const tradingDaysPerYear = 252

// MetricsAggregator folds an ordered sequence of simulated trades into
// portfolio-level statistics. Trades must arrive in pick-date order for
// the running peak and drawdown to be meaningful.
type MetricsAggregator struct{}

// NewMetricsAggregator creates a new metrics aggregator.
func NewMetricsAggregator() *MetricsAggregator {
	return &MetricsAggregator{}
}

// Aggregate produces the portfolio statistics for a run. An empty trade
// list yields a well-formed zero-activity result, never an error.
func (m *MetricsAggregator) Aggregate(trades []models.Trade, initialCapital decimal.Decimal) *models.BacktestResult {
	result := &models.BacktestResult{
		InitialCapital: initialCapital,
		FinalValue:     initialCapital,
		ProfitFactor:   decimal.Zero,
		ByAlgorithm:    make(map[string]models.AlgorithmStats),
	}

	if len(trades) == 0 {
		return result
	}

	capital := initialCapital
	peak := initialCapital
	maxDrawdown := decimal.Zero

	var (
		grossProfit   = decimal.Zero
		grossLoss     = decimal.Zero
		winPips       = decimal.Zero
		lossPips      = decimal.Zero
		bestPips      = trades[0].PipProfit
		worstPips     = trades[0].PipProfit
		spreadCost    = decimal.Zero
		totalHoldDays = 0
		returns       = make([]float64, 0, len(trades))
	)

	result.Trades = trades
	result.TotalTrades = len(trades)
	result.EquityCurve = make([]models.EquityPoint, 0, len(trades))

	for _, trade := range trades {
		capital = capital.Add(trade.NetProfit)
		result.EquityCurve = append(result.EquityCurve, models.EquityPoint{
			Date:   trade.ExitDate,
			Equity: capital,
		})

		if capital.GreaterThan(peak) {
			peak = capital
		}
		if peak.IsPositive() {
			drawdown := peak.Sub(capital).Div(peak).Mul(hundred)
			if drawdown.GreaterThan(maxDrawdown) {
				maxDrawdown = drawdown
			}
		}

		if trade.IsWin() {
			result.WinningTrades++
			grossProfit = grossProfit.Add(trade.NetProfit)
			winPips = winPips.Add(trade.PipProfit)
		} else {
			result.LosingTrades++
			grossLoss = grossLoss.Add(trade.NetProfit.Abs())
			lossPips = lossPips.Add(trade.PipProfit)
		}

		if trade.PipProfit.GreaterThan(bestPips) {
			bestPips = trade.PipProfit
		}
		if trade.PipProfit.LessThan(worstPips) {
			worstPips = trade.PipProfit
		}

		spreadCost = spreadCost.Add(trade.SpreadCost)
		totalHoldDays += trade.HoldDays
		returns = append(returns, trade.ReturnPct.InexactFloat64())

		stats := result.ByAlgorithm[trade.Algorithm]
		stats.Algorithm = trade.Algorithm
		stats.TradeCount++
		if trade.IsWin() {
			stats.Wins++
		}
		stats.AvgPips = stats.AvgPips.Add(trade.PipProfit)
		stats.TotalProfit = stats.TotalProfit.Add(trade.NetProfit)
		result.ByAlgorithm[trade.Algorithm] = stats
	}

	// Per-algorithm averages are accumulated as sums above.
	for name, stats := range result.ByAlgorithm {
		count := decimal.NewFromInt(int64(stats.TradeCount))
		stats.AvgPips = stats.AvgPips.Div(count)
		stats.WinRate = decimal.NewFromInt(int64(stats.Wins)).Div(count).Mul(hundred)
		result.ByAlgorithm[name] = stats
	}

	total := decimal.NewFromInt(int64(result.TotalTrades))

	result.FinalValue = capital
	if initialCapital.IsPositive() {
		result.TotalReturnPct = capital.Sub(initialCapital).Div(initialCapital).Mul(hundred)
	}
	result.WinRate = decimal.NewFromInt(int64(result.WinningTrades)).Div(total).Mul(hundred)
	result.MaxDrawdownPct = maxDrawdown
	result.BestTradePips = bestPips
	result.WorstTradePips = worstPips
	result.TotalSpreadCost = spreadCost
	result.AvgHoldDays = decimal.NewFromInt(int64(totalHoldDays)).Div(total)

	if result.WinningTrades > 0 {
		result.AvgWinPips = winPips.Div(decimal.NewFromInt(int64(result.WinningTrades)))
	}
	if result.LosingTrades > 0 {
		result.AvgLossPips = lossPips.Div(decimal.NewFromInt(int64(result.LosingTrades)))
	}

	result.ProfitFactor = m.profitFactor(grossProfit, grossLoss)
	result.ExpectancyPips = m.expectancy(result)
	result.SharpeRatio = m.sharpeRatio(returns)
	result.SortinoRatio = m.sortinoRatio(returns)

	return result
}

// profitFactor is gross profit over gross loss, with a large sentinel
// when there are wins and no losses.
func (m *MetricsAggregator) profitFactor(grossProfit, grossLoss decimal.Decimal) decimal.Decimal {
	if grossLoss.IsPositive() {
		return grossProfit.Div(grossLoss)
	}
	if grossProfit.IsPositive() {
		return profitFactorSentinel
	}
	return decimal.Zero
}

// expectancy is the probability-weighted average pip outcome per trade.
func (m *MetricsAggregator) expectancy(result *models.BacktestResult) decimal.Decimal {
	if result.TotalTrades == 0 {
		return decimal.Zero
	}
	total := decimal.NewFromInt(int64(result.TotalTrades))
	winFraction := decimal.NewFromInt(int64(result.WinningTrades)).Div(total)
	lossFraction := decimal.NewFromInt(int64(result.LosingTrades)).Div(total)

	// AvgLossPips is negative, so the loss term is subtracted as a
	// positive magnitude.
	return winFraction.Mul(result.AvgWinPips).Sub(lossFraction.Mul(result.AvgLossPips.Abs()))
}

// sharpeRatio computes mean/stddev of the per-trade return series,
// annualized by sqrt(252). Returns 0 with fewer than 2 trades or zero
// deviation.
func (m *MetricsAggregator) sharpeRatio(returns []float64) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}

	mean := meanOf(returns)

	sumSquaredDiff := 0.0
	for _, r := range returns {
		diff := r - mean
		sumSquaredDiff += diff * diff
	}
	stdDev := math.Sqrt(sumSquaredDiff / float64(len(returns)-1))
	if stdDev == 0 {
		return decimal.Zero
	}

	return decimal.NewFromFloat(mean / stdDev * math.Sqrt(tradingDaysPerYear))
}

// sortinoRatio replaces the Sharpe denominator with the deviation of
// only the negative returns.
func (m *MetricsAggregator) sortinoRatio(returns []float64) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}

	mean := meanOf(returns)

	sumSquaredDownside := 0.0
	downsideCount := 0
	for _, r := range returns {
		if r < 0 {
			sumSquaredDownside += r * r
			downsideCount++
		}
	}
	if downsideCount == 0 {
		return decimal.Zero
	}

	downsideDeviation := math.Sqrt(sumSquaredDownside / float64(downsideCount))
	if downsideDeviation == 0 {
		return decimal.Zero
	}

	return decimal.NewFromFloat(mean / downsideDeviation * math.Sqrt(tradingDaysPerYear))
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
