package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DisabledLevelPips is the sentinel threshold for take-profit and
// stop-loss levels. A level at or above this value never triggers.
const DisabledLevelPips = 9999

const (
	MinLeverage = 1
	MaxLeverage = 50
)

// ExitReason explains why a simulated position was closed.
type ExitReason string

const (
	ExitTakeProfit  ExitReason = "TAKE_PROFIT"
	ExitStopLoss    ExitReason = "STOP_LOSS"
	ExitMaxHold     ExitReason = "MAX_HOLD"
	ExitEndOfData   ExitReason = "END_OF_DATA"
	ExitNoPriceData ExitReason = "NO_PRICE_DATA"
)

// PortfolioConfig contains the parameters for a backtest run.
type PortfolioConfig struct {
	TakeProfitPips  decimal.Decimal `json:"take_profit_pips"`
	StopLossPips    decimal.Decimal `json:"stop_loss_pips"`
	MaxHoldDays     int             `json:"max_hold_days"`
	InitialCapital  decimal.Decimal `json:"initial_capital"`
	Leverage        int             `json:"leverage"`
	SpreadPips      decimal.Decimal `json:"spread_pips"`
	PositionSizePct decimal.Decimal `json:"position_size_pct"`
	MaxPositions    int             `json:"max_positions"`
}

// Normalize clamps out-of-range values instead of rejecting them.
// Leverage is bounded to [1, 50] and max_hold_days to at least one day.
func (c PortfolioConfig) Normalize() PortfolioConfig {
	if c.Leverage < MinLeverage {
		c.Leverage = MinLeverage
	}
	if c.Leverage > MaxLeverage {
		c.Leverage = MaxLeverage
	}
	if c.MaxHoldDays < 1 {
		c.MaxHoldDays = 1
	}
	if c.SpreadPips.IsNegative() {
		c.SpreadPips = decimal.Zero
	}
	return c
}

// TakeProfitEnabled reports whether the take-profit level is active.
func (c PortfolioConfig) TakeProfitEnabled() bool {
	return c.TakeProfitPips.IsPositive() && c.TakeProfitPips.LessThan(decimal.NewFromInt(DisabledLevelPips))
}

// StopLossEnabled reports whether the stop-loss level is active.
func (c PortfolioConfig) StopLossEnabled() bool {
	return c.StopLossPips.IsPositive() && c.StopLossPips.LessThan(decimal.NewFromInt(DisabledLevelPips))
}

// Trade is the immutable outcome of simulating a single pick.
type Trade struct {
	Symbol      string          `json:"symbol"`
	Direction   TradeDirection  `json:"direction"`
	Algorithm   string          `json:"algorithm"`
	EntryDate   time.Time       `json:"entry_date"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	ExitDate    time.Time       `json:"exit_date"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	LotSize     decimal.Decimal `json:"lot_size"`
	PipProfit   decimal.Decimal `json:"pip_profit"` // net of spread
	SpreadCost  decimal.Decimal `json:"spread_cost"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
	NetProfit   decimal.Decimal `json:"net_profit"`
	ReturnPct   decimal.Decimal `json:"return_pct"`
	ExitReason  ExitReason      `json:"exit_reason"`
	HoldDays    int             `json:"hold_days"`
}

// IsWin reports whether the trade finished with a positive net profit.
func (t Trade) IsWin() bool {
	return t.NetProfit.IsPositive()
}

// AlgorithmStats is the per-algorithm slice of a backtest result.
type AlgorithmStats struct {
	Algorithm   string          `json:"algorithm"`
	TradeCount  int             `json:"trade_count"`
	Wins        int             `json:"wins"`
	WinRate     decimal.Decimal `json:"win_rate"`
	AvgPips     decimal.Decimal `json:"avg_pips"`
	TotalProfit decimal.Decimal `json:"total_profit"`
}

// EquityPoint records portfolio value after a trade closed.
type EquityPoint struct {
	Date   time.Time       `json:"date"`
	Equity decimal.Decimal `json:"equity"`
}

// BacktestResult aggregates the simulated trades of one run into
// portfolio-level statistics.
type BacktestResult struct {
	RunID           string                    `json:"run_id"`
	Config          PortfolioConfig           `json:"config"`
	InitialCapital  decimal.Decimal           `json:"initial_capital"`
	FinalValue      decimal.Decimal           `json:"final_value"`
	TotalReturnPct  decimal.Decimal           `json:"total_return_pct"`
	TotalTrades     int                       `json:"total_trades"`
	WinningTrades   int                       `json:"winning_trades"`
	LosingTrades    int                       `json:"losing_trades"`
	WinRate         decimal.Decimal           `json:"win_rate"`
	AvgWinPips      decimal.Decimal           `json:"avg_win_pips"`
	AvgLossPips     decimal.Decimal           `json:"avg_loss_pips"`
	BestTradePips   decimal.Decimal           `json:"best_trade_pips"`
	WorstTradePips  decimal.Decimal           `json:"worst_trade_pips"`
	MaxDrawdownPct  decimal.Decimal           `json:"max_drawdown_pct"`
	TotalSpreadCost decimal.Decimal           `json:"total_spread_cost"`
	SharpeRatio     decimal.Decimal           `json:"sharpe_ratio"`
	SortinoRatio    decimal.Decimal           `json:"sortino_ratio"`
	ProfitFactor    decimal.Decimal           `json:"profit_factor"`
	ExpectancyPips  decimal.Decimal           `json:"expectancy_pips"`
	AvgHoldDays     decimal.Decimal           `json:"avg_hold_days"`
	Trades          []Trade                   `json:"trades,omitempty"`
	EquityCurve     []EquityPoint             `json:"equity_curve,omitempty"`
	ByAlgorithm     map[string]AlgorithmStats `json:"by_algorithm"`
	StartedAt       time.Time                 `json:"started_at"`
	CompletedAt     time.Time                 `json:"completed_at"`
}

// BacktestSummary is the compact view used for scenario ranking.
type BacktestSummary struct {
	FinalValue     decimal.Decimal `json:"final_value"`
	TotalReturnPct decimal.Decimal `json:"total_return_pct"`
	TotalTrades    int             `json:"total_trades"`
	WinRate        decimal.Decimal `json:"win_rate"`
	MaxDrawdownPct decimal.Decimal `json:"max_drawdown_pct"`
	ProfitFactor   decimal.Decimal `json:"profit_factor"`
	ExpectancyPips decimal.Decimal `json:"expectancy_pips"`
	SharpeRatio    decimal.Decimal `json:"sharpe_ratio"`
}

// Summary returns the compact view of the result.
func (r *BacktestResult) Summary() BacktestSummary {
	return BacktestSummary{
		FinalValue:     r.FinalValue,
		TotalReturnPct: r.TotalReturnPct,
		TotalTrades:    r.TotalTrades,
		WinRate:        r.WinRate,
		MaxDrawdownPct: r.MaxDrawdownPct,
		ProfitFactor:   r.ProfitFactor,
		ExpectancyPips: r.ExpectancyPips,
		SharpeRatio:    r.SharpeRatio,
	}
}

// Scenario is a named take-profit / stop-loss / holding-period preset.
type Scenario struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	TakeProfitPips decimal.Decimal `json:"take_profit_pips"`
	StopLossPips   decimal.Decimal `json:"stop_loss_pips"`
	MaxHoldDays    int             `json:"max_hold_days"`
}

// ScenarioResult pairs a scenario (or algorithm) name with the summary
// it produced.
type ScenarioResult struct {
	Name     string          `json:"name"`
	Scenario Scenario        `json:"scenario"`
	Summary  BacktestSummary `json:"summary"`
}

// ParameterGrids defines the search space for the optimizer.
type ParameterGrids struct {
	TakeProfits []decimal.Decimal `json:"take_profits"`
	StopLosses  []decimal.Decimal `json:"stop_losses"`
	HoldDays    []int             `json:"hold_days"`
}

// Combinations returns the size of the Cartesian product.
func (g ParameterGrids) Combinations() int {
	return len(g.TakeProfits) * len(g.StopLosses) * len(g.HoldDays)
}

// OptimizationVerdict classifies an algorithm's grid-search outcome.
type OptimizationVerdict string

const (
	VerdictProfitableParamsExist    OptimizationVerdict = "PROFITABLE_PARAMS_EXIST"
	VerdictImprovableButStillLosing OptimizationVerdict = "IMPROVABLE_BUT_STILL_LOSING"
	VerdictNoProfitableParamsFound  OptimizationVerdict = "NO_PROFITABLE_PARAMS_FOUND"
)

// ParameterSet is one point of the optimization grid.
type ParameterSet struct {
	TakeProfitPips decimal.Decimal `json:"take_profit_pips"`
	StopLossPips   decimal.Decimal `json:"stop_loss_pips"`
	MaxHoldDays    int             `json:"max_hold_days"`
}

// OptimizationResult is the per-algorithm outcome of a grid search.
type OptimizationResult struct {
	Algorithm         string              `json:"algorithm"`
	BestParams        ParameterSet        `json:"best_params"`
	BestReturnPct     decimal.Decimal     `json:"best_return_pct"`
	BaselineReturnPct decimal.Decimal     `json:"baseline_return_pct"`
	ProfitableCombos  int                 `json:"profitable_combos"`
	TestedCombos      int                 `json:"tested_combos"`
	TradeCount        int                 `json:"trade_count"`
	Verdict           OptimizationVerdict `json:"verdict"`
}

// PermutationOutcome is one grid point of the landscape scan.
type PermutationOutcome struct {
	Params      ParameterSet    `json:"params"`
	ReturnPct   decimal.Decimal `json:"return_pct"`
	TotalTrades int             `json:"total_trades"`
	WinRate     decimal.Decimal `json:"win_rate"`
}

// PermutationScanResult is the diagnostic view of the whole parameter
// landscape, without per-algorithm partitioning.
type PermutationScanResult struct {
	Top                []PermutationOutcome `json:"top"`
	Bottom             []PermutationOutcome `json:"bottom"`
	TestedCombos       int                  `json:"tested_combos"`
	ProfitableCombos   int                  `json:"profitable_combos"`
	ProfitableFraction decimal.Decimal      `json:"profitable_fraction"`
}
