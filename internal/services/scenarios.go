package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fxlab/forex-portfolio-go/internal/models"
)

// DefaultScenarios returns the fixed catalog of named exit presets.
// Take-profit / stop-loss / holding-period come from the preset; all
// other fields are held from the base configuration.
func DefaultScenarios() []models.Scenario {
	return []models.Scenario{
		{Name: "scalp", Description: "Tight targets, out same or next day", TakeProfitPips: decimal.NewFromInt(15), StopLossPips: decimal.NewFromInt(10), MaxHoldDays: 1},
		{Name: "day_trade", Description: "Small intraday-style swings held up to two days", TakeProfitPips: decimal.NewFromInt(30), StopLossPips: decimal.NewFromInt(20), MaxHoldDays: 2},
		{Name: "conservative", Description: "Modest targets with a tight stop", TakeProfitPips: decimal.NewFromInt(25), StopLossPips: decimal.NewFromInt(15), MaxHoldDays: 3},
		{Name: "swing", Description: "Classic swing trade over a week", TakeProfitPips: decimal.NewFromInt(50), StopLossPips: decimal.NewFromInt(30), MaxHoldDays: 5},
		{Name: "aggressive", Description: "Wider targets, looser stop", TakeProfitPips: decimal.NewFromInt(75), StopLossPips: decimal.NewFromInt(40), MaxHoldDays: 7},
		{Name: "position", Description: "Two-week position trade", TakeProfitPips: decimal.NewFromInt(100), StopLossPips: decimal.NewFromInt(50), MaxHoldDays: 10},
		{Name: "trend", Description: "Ride a trend for three weeks", TakeProfitPips: decimal.NewFromInt(150), StopLossPips: decimal.NewFromInt(75), MaxHoldDays: 15},
		{Name: "carry", Description: "Long hold with wide levels", TakeProfitPips: decimal.NewFromInt(200), StopLossPips: decimal.NewFromInt(100), MaxHoldDays: 20},
	}
}

// ScenarioRunner replays the same pick set under every preset of a
// scenario catalog and ranks the outcomes.
type ScenarioRunner struct {
	svc *BacktestService
}

// NewScenarioRunner creates a new scenario runner on top of the
// backtest service.
func NewScenarioRunner(svc *BacktestService) *ScenarioRunner {
	return &ScenarioRunner{svc: svc}
}

// CompareScenarios runs every scenario in the catalog over the full
// pick set and returns the results sorted descending by total return.
// The sort is stable, so presets with equal returns keep catalog order.
func (r *ScenarioRunner) CompareScenarios(ctx context.Context, picks []models.Pick, base models.PortfolioConfig, catalog []models.Scenario) ([]models.ScenarioResult, error) {
	series, err := r.svc.fetchSeries(ctx, picks)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price data: %w", err)
	}

	results := make([]models.ScenarioResult, 0, len(catalog))
	for _, scenario := range catalog {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cfg := applyScenario(base, scenario)
		result, err := r.svc.runWithSeries(ctx, picks, series, cfg)
		if err != nil {
			return nil, err
		}

		results = append(results, models.ScenarioResult{
			Name:     scenario.Name,
			Scenario: scenario,
			Summary:  result.Summary(),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Summary.TotalReturnPct.GreaterThan(results[j].Summary.TotalReturnPct)
	})

	logrus.WithFields(logrus.Fields{
		"scenarios": len(catalog),
		"picks":     len(picks),
	}).Info("Scenario comparison completed")

	return results, nil
}

// CompareAlgorithms holds one scenario's parameters fixed and replays
// the pick set once per distinct algorithm, ranking the algorithms by
// total return.
func (r *ScenarioRunner) CompareAlgorithms(ctx context.Context, picks []models.Pick, base models.PortfolioConfig, scenario models.Scenario) ([]models.ScenarioResult, error) {
	series, err := r.svc.fetchSeries(ctx, picks)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price data: %w", err)
	}

	cfg := applyScenario(base, scenario)

	algorithms := algorithmsOf(picks)
	results := make([]models.ScenarioResult, 0, len(algorithms))
	for _, algorithm := range algorithms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := r.svc.runWithSeries(ctx, picksFor(picks, algorithm), series, cfg)
		if err != nil {
			return nil, err
		}

		results = append(results, models.ScenarioResult{
			Name:     algorithm,
			Scenario: scenario,
			Summary:  result.Summary(),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Summary.TotalReturnPct.GreaterThan(results[j].Summary.TotalReturnPct)
	})

	return results, nil
}

// applyScenario overlays a preset's exit parameters on the base config.
func applyScenario(base models.PortfolioConfig, scenario models.Scenario) models.PortfolioConfig {
	cfg := base
	cfg.TakeProfitPips = scenario.TakeProfitPips
	cfg.StopLossPips = scenario.StopLossPips
	cfg.MaxHoldDays = scenario.MaxHoldDays
	return cfg.Normalize()
}
