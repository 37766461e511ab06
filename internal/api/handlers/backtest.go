package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/fxlab/forex-portfolio-go/internal/config"
	"github.com/fxlab/forex-portfolio-go/internal/models"
	"github.com/fxlab/forex-portfolio-go/internal/services"
	"github.com/fxlab/forex-portfolio-go/internal/utils"
	"github.com/fxlab/forex-portfolio-go/pkg/interfaces"
)

// BacktestHandler exposes the engine's three entry points plus the
// scenario catalog over HTTP.
type BacktestHandler struct {
	picks     interfaces.PickSource
	svc       *services.BacktestService
	runner    *services.ScenarioRunner
	optimizer *services.ParameterOptimizer
	defaults  config.BacktestConfig
	grids     config.OptimizerConfig
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(
	picks interfaces.PickSource,
	svc *services.BacktestService,
	runner *services.ScenarioRunner,
	optimizer *services.ParameterOptimizer,
	defaults config.BacktestConfig,
	grids config.OptimizerConfig,
) *BacktestHandler {
	return &BacktestHandler{
		picks:     picks,
		svc:       svc,
		runner:    runner,
		optimizer: optimizer,
		defaults:  defaults,
		grids:     grids,
	}
}

// ConfigOverrides carries the optional per-request portfolio settings.
// Unset fields fall back to the configured defaults.
type ConfigOverrides struct {
	TakeProfitPips  *float64 `json:"take_profit_pips,omitempty"`
	StopLossPips    *float64 `json:"stop_loss_pips,omitempty"`
	MaxHoldDays     *int     `json:"max_hold_days,omitempty"`
	InitialCapital  *float64 `json:"initial_capital,omitempty"`
	Leverage        *int     `json:"leverage,omitempty"`
	SpreadPips      *float64 `json:"spread_pips,omitempty"`
	PositionSizePct *float64 `json:"position_size_pct,omitempty"`
}

// BacktestRequest is the body of POST /backtest/run.
type BacktestRequest struct {
	Algorithm string          `json:"algorithm,omitempty"`
	Config    ConfigOverrides `json:"config"`
}

// ScenarioCompareRequest is the body of POST /backtest/scenarios.
type ScenarioCompareRequest struct {
	Algorithm string          `json:"algorithm,omitempty"`
	Config    ConfigOverrides `json:"config"`
}

// AlgorithmCompareRequest is the body of POST /backtest/algorithms.
type AlgorithmCompareRequest struct {
	Scenario string          `json:"scenario"`
	Config   ConfigOverrides `json:"config"`
}

// OptimizeRequest is the body of POST /backtest/optimize and
// /backtest/permutations.
type OptimizeRequest struct {
	Algorithms []string        `json:"algorithms,omitempty"`
	Config     ConfigOverrides `json:"config"`
}

// RunBacktest handles POST /api/v1/backtest/run
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cfg := h.portfolioConfig(req.Config)
	if err := validateConfig(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid configuration", "details": err.Error()})
		return
	}

	picks, err := h.picks.GetPicks(c.Request.Context(), req.Algorithm)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch picks", "details": err.Error()})
		return
	}

	result, err := h.svc.RunBacktest(c.Request.Context(), picks, cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Backtest failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// CompareScenarios handles POST /api/v1/backtest/scenarios
func (h *BacktestHandler) CompareScenarios(c *gin.Context) {
	var req ScenarioCompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cfg := h.portfolioConfig(req.Config)
	if err := validateConfig(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid configuration", "details": err.Error()})
		return
	}

	picks, err := h.picks.GetPicks(c.Request.Context(), req.Algorithm)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch picks", "details": err.Error()})
		return
	}

	results, err := h.runner.CompareScenarios(c.Request.Context(), picks, cfg, services.DefaultScenarios())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Scenario comparison failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results":   results,
		"picks":     len(picks),
		"timestamp": time.Now(),
	})
}

// CompareAlgorithms handles POST /api/v1/backtest/algorithms
func (h *BacktestHandler) CompareAlgorithms(c *gin.Context) {
	var req AlgorithmCompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	scenario, ok := findScenario(req.Scenario)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown scenario", "details": req.Scenario})
		return
	}

	cfg := h.portfolioConfig(req.Config)
	if err := validateConfig(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid configuration", "details": err.Error()})
		return
	}

	picks, err := h.picks.GetPicks(c.Request.Context(), "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch picks", "details": err.Error()})
		return
	}

	results, err := h.runner.CompareAlgorithms(c.Request.Context(), picks, cfg, scenario)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Algorithm comparison failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scenario":  scenario.Name,
		"results":   results,
		"timestamp": time.Now(),
	})
}

// Optimize handles POST /api/v1/backtest/optimize
func (h *BacktestHandler) Optimize(c *gin.Context) {
	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cfg := h.portfolioConfig(req.Config)
	if err := validateConfig(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid configuration", "details": err.Error()})
		return
	}

	picks, err := h.fetchPicks(c, req.Algorithms)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch picks", "details": err.Error()})
		return
	}

	grids := services.GridsFromConfig(h.grids.TakeProfitGrid, h.grids.StopLossGrid, h.grids.HoldDaysGrid)
	results, err := h.optimizer.Optimize(c.Request.Context(), picks, cfg, grids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Optimization failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results":      results,
		"combinations": grids.Combinations(),
		"timestamp":    time.Now(),
	})
}

// PermutationScan handles POST /api/v1/backtest/permutations
func (h *BacktestHandler) PermutationScan(c *gin.Context) {
	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cfg := h.portfolioConfig(req.Config)
	if err := validateConfig(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid configuration", "details": err.Error()})
		return
	}

	picks, err := h.picks.GetPicks(c.Request.Context(), "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch picks", "details": err.Error()})
		return
	}

	grids := services.GridsFromConfig(h.grids.TakeProfitGrid, h.grids.StopLossGrid, h.grids.HoldDaysGrid)
	scan, err := h.optimizer.PermutationScan(c.Request.Context(), picks, cfg, grids, req.Algorithms)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Permutation scan failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, scan)
}

// GetScenarioCatalog handles GET /api/v1/backtest/scenario-catalog
func (h *BacktestHandler) GetScenarioCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"scenarios": services.DefaultScenarios()})
}

// fetchPicks returns all picks, or the union for an explicit algorithm
// subset.
func (h *BacktestHandler) fetchPicks(c *gin.Context, algorithms []string) ([]models.Pick, error) {
	if len(algorithms) == 0 {
		return h.picks.GetPicks(c.Request.Context(), "")
	}

	var picks []models.Pick
	for _, algorithm := range algorithms {
		batch, err := h.picks.GetPicks(c.Request.Context(), algorithm)
		if err != nil {
			return nil, err
		}
		picks = append(picks, batch...)
	}
	return picks, nil
}

// portfolioConfig merges request overrides onto the configured defaults.
func (h *BacktestHandler) portfolioConfig(overrides ConfigOverrides) models.PortfolioConfig {
	cfg := models.PortfolioConfig{
		TakeProfitPips:  decimal.NewFromFloat(h.defaults.TakeProfitPips),
		StopLossPips:    decimal.NewFromFloat(h.defaults.StopLossPips),
		MaxHoldDays:     h.defaults.MaxHoldDays,
		InitialCapital:  decimal.NewFromFloat(h.defaults.InitialCapital),
		Leverage:        h.defaults.Leverage,
		SpreadPips:      decimal.NewFromFloat(h.defaults.SpreadPips),
		PositionSizePct: decimal.NewFromFloat(h.defaults.PositionSizePct),
		MaxPositions:    h.defaults.MaxPositions,
	}

	if overrides.TakeProfitPips != nil {
		cfg.TakeProfitPips = decimal.NewFromFloat(*overrides.TakeProfitPips)
	}
	if overrides.StopLossPips != nil {
		cfg.StopLossPips = decimal.NewFromFloat(*overrides.StopLossPips)
	}
	if overrides.MaxHoldDays != nil {
		cfg.MaxHoldDays = *overrides.MaxHoldDays
	}
	if overrides.InitialCapital != nil {
		cfg.InitialCapital = decimal.NewFromFloat(*overrides.InitialCapital)
	}
	if overrides.Leverage != nil {
		cfg.Leverage = *overrides.Leverage
	}
	if overrides.SpreadPips != nil {
		cfg.SpreadPips = decimal.NewFromFloat(*overrides.SpreadPips)
	}
	if overrides.PositionSizePct != nil {
		cfg.PositionSizePct = decimal.NewFromFloat(*overrides.PositionSizePct)
	}

	return cfg.Normalize()
}

// validateConfig rejects the few values clamping cannot repair.
func validateConfig(cfg models.PortfolioConfig) error {
	if !cfg.InitialCapital.IsPositive() {
		return utils.NewValidationError("initial_capital must be positive")
	}
	if !cfg.PositionSizePct.IsPositive() {
		return utils.NewValidationError("position_size_pct must be positive")
	}
	if cfg.TakeProfitPips.IsNegative() || cfg.StopLossPips.IsNegative() {
		return utils.NewValidationError("take_profit_pips and stop_loss_pips must not be negative")
	}
	return nil
}

// findScenario looks a preset up by name in the fixed catalog.
func findScenario(name string) (models.Scenario, bool) {
	for _, scenario := range services.DefaultScenarios() {
		if scenario.Name == name {
			return scenario, true
		}
	}
	return models.Scenario{}, false
}
