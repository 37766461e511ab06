package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fxlab/forex-portfolio-go/internal/models"
	"github.com/fxlab/forex-portfolio-go/internal/telemetry"
)

const bottomOutcomeCount = 5

// ParameterOptimizer searches the Cartesian product of take-profit,
// stop-loss and holding-period grids for the best-performing settings,
// per algorithm. A grid of a few hundred combinations means as many
// full simulation passes, so combos run on a worker pool and the search
// honours context cancellation.
type ParameterOptimizer struct {
	svc     *BacktestService
	workers int
	topN    int
}

// NewParameterOptimizer creates a new optimizer on top of the backtest
// service. topN bounds the permutation-scan leader board.
func NewParameterOptimizer(svc *BacktestService, workers, topN int) *ParameterOptimizer {
	if workers < 1 {
		workers = 1
	}
	if topN < 1 {
		topN = 10
	}
	return &ParameterOptimizer{svc: svc, workers: workers, topN: topN}
}

// GridsFromConfig converts configured float grids into decimal
// parameter grids.
func GridsFromConfig(takeProfits, stopLosses []float64, holdDays []int) models.ParameterGrids {
	grids := models.ParameterGrids{HoldDays: holdDays}
	for _, tp := range takeProfits {
		grids.TakeProfits = append(grids.TakeProfits, decimal.NewFromFloat(tp))
	}
	for _, sl := range stopLosses {
		grids.StopLosses = append(grids.StopLosses, decimal.NewFromFloat(sl))
	}
	return grids
}

// enumerate expands the grids into the full combination list in a fixed
// order (take-profit outermost), which keeps results deterministic.
func enumerate(grids models.ParameterGrids) []models.ParameterSet {
	combos := make([]models.ParameterSet, 0, grids.Combinations())
	for _, tp := range grids.TakeProfits {
		for _, sl := range grids.StopLosses {
			for _, hold := range grids.HoldDays {
				combos = append(combos, models.ParameterSet{
					TakeProfitPips: tp,
					StopLossPips:   sl,
					MaxHoldDays:    hold,
				})
			}
		}
	}
	return combos
}

// applyParams overlays one grid point on the base config.
func applyParams(base models.PortfolioConfig, params models.ParameterSet) models.PortfolioConfig {
	cfg := base
	cfg.TakeProfitPips = params.TakeProfitPips
	cfg.StopLossPips = params.StopLossPips
	cfg.MaxHoldDays = params.MaxHoldDays
	return cfg.Normalize()
}

// Optimize grid-searches every distinct algorithm in the pick set and
// classifies each one's profitability. An empty pick set returns an
// empty map.
func (o *ParameterOptimizer) Optimize(ctx context.Context, picks []models.Pick, base models.PortfolioConfig, grids models.ParameterGrids) (map[string]models.OptimizationResult, error) {
	results := make(map[string]models.OptimizationResult)
	if len(picks) == 0 {
		return results, nil
	}

	base = base.Normalize()

	series, err := o.svc.fetchSeries(ctx, picks)
	if err != nil {
		telemetry.CaptureError(err, "price_fetch")
		return nil, fmt.Errorf("failed to fetch price data: %w", err)
	}

	combos := enumerate(grids)

	for _, algorithm := range algorithmsOf(picks) {
		algoPicks := picksFor(picks, algorithm)

		baseline, err := o.svc.runWithSeries(ctx, algoPicks, series, base)
		if err != nil {
			return nil, err
		}

		outcomes, err := o.scanCombos(ctx, algoPicks, series, base, combos)
		if err != nil {
			return nil, err
		}

		result := models.OptimizationResult{
			Algorithm:         algorithm,
			BaselineReturnPct: baseline.TotalReturnPct,
			TradeCount:        baseline.TotalTrades,
		}

		for i, outcome := range outcomes {
			if outcome.TotalTrades == 0 {
				continue
			}
			result.TestedCombos++
			if outcome.ReturnPct.IsPositive() {
				result.ProfitableCombos++
			}
			// Strictly-greater keeps the earliest grid point on ties,
			// so repeated runs pick identical best params.
			if result.TestedCombos == 1 || outcome.ReturnPct.GreaterThan(result.BestReturnPct) {
				result.BestReturnPct = outcome.ReturnPct
				result.BestParams = combos[i]
			}
		}

		result.Verdict = classify(result)
		results[algorithm] = result

		logrus.WithFields(logrus.Fields{
			"algorithm":  algorithm,
			"tested":     result.TestedCombos,
			"profitable": result.ProfitableCombos,
			"verdict":    result.Verdict,
		}).Info("Algorithm optimization completed")
	}

	return results, nil
}

// PermutationScan runs the grid over the whole pick set without
// per-algorithm partitioning and reports the extremes of the parameter
// landscape. algorithms optionally restricts the pick set.
func (o *ParameterOptimizer) PermutationScan(ctx context.Context, picks []models.Pick, base models.PortfolioConfig, grids models.ParameterGrids, algorithms []string) (*models.PermutationScanResult, error) {
	scan := &models.PermutationScanResult{}

	if len(algorithms) > 0 {
		allowed := make(map[string]struct{}, len(algorithms))
		for _, algorithm := range algorithms {
			allowed[algorithm] = struct{}{}
		}
		var filtered []models.Pick
		for _, pick := range picks {
			if _, ok := allowed[pick.Algorithm]; ok {
				filtered = append(filtered, pick)
			}
		}
		picks = filtered
	}

	if len(picks) == 0 {
		return scan, nil
	}

	base = base.Normalize()

	series, err := o.svc.fetchSeries(ctx, picks)
	if err != nil {
		telemetry.CaptureError(err, "price_fetch")
		return nil, fmt.Errorf("failed to fetch price data: %w", err)
	}

	combos := enumerate(grids)
	outcomes, err := o.scanCombos(ctx, picks, series, base, combos)
	if err != nil {
		return nil, err
	}

	ranked := make([]models.PermutationOutcome, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.TotalTrades == 0 {
			continue
		}
		ranked = append(ranked, outcome)
		if outcome.ReturnPct.IsPositive() {
			scan.ProfitableCombos++
		}
	}
	scan.TestedCombos = len(ranked)
	if scan.TestedCombos > 0 {
		scan.ProfitableFraction = decimal.NewFromInt(int64(scan.ProfitableCombos)).
			Div(decimal.NewFromInt(int64(scan.TestedCombos)))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ReturnPct.GreaterThan(ranked[j].ReturnPct)
	})

	top := o.topN
	if top > len(ranked) {
		top = len(ranked)
	}
	scan.Top = append(scan.Top, ranked[:top]...)

	bottom := bottomOutcomeCount
	if bottom > len(ranked) {
		bottom = len(ranked)
	}
	// Worst first.
	for i := 0; i < bottom; i++ {
		scan.Bottom = append(scan.Bottom, ranked[len(ranked)-1-i])
	}

	return scan, nil
}

// scanCombos evaluates every grid point against the pick set on the
// worker pool. The returned slice is indexed like combos, so callers
// can rank deterministically regardless of worker scheduling.
func (o *ParameterOptimizer) scanCombos(ctx context.Context, picks []models.Pick, series priceSeries, base models.PortfolioConfig, combos []models.ParameterSet) ([]models.PermutationOutcome, error) {
	outcomes := make([]models.PermutationOutcome, len(combos))

	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				result, err := o.svc.runWithSeries(ctx, picks, series, applyParams(base, combos[i]))
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				outcomes[i] = models.PermutationOutcome{
					Params:      combos[i],
					ReturnPct:   result.TotalReturnPct,
					TotalTrades: result.TotalTrades,
					WinRate:     result.WinRate,
				}
			}
		}()
	}

dispatch:
	for i := range combos {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return outcomes, nil
}

// classify turns a grid-search outcome into a verdict.
func classify(result models.OptimizationResult) models.OptimizationVerdict {
	switch {
	case result.BestReturnPct.IsPositive():
		return models.VerdictProfitableParamsExist
	case result.BestReturnPct.GreaterThan(result.BaselineReturnPct):
		return models.VerdictImprovableButStillLosing
	default:
		return models.VerdictNoProfitableParamsFound
	}
}
