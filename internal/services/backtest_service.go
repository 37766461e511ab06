package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fxlab/forex-portfolio-go/internal/models"
	"github.com/fxlab/forex-portfolio-go/internal/telemetry"
	"github.com/fxlab/forex-portfolio-go/pkg/interfaces"
)

// BacktestService is the entry point into the engine. It wires the
// price provider to the simulator and aggregator and fans simulations
// out across a worker pool. Workers share nothing; trades are merged
// and re-sorted into pick-date order before aggregation so that the
// running peak and drawdown remain meaningful.
type BacktestService struct {
	prices     interfaces.PriceSeriesProvider
	simulator  *TradeSimulator
	aggregator *MetricsAggregator
	workers    int
}

// NewBacktestService creates a new backtest service. workers bounds the
// number of concurrent pick simulations; values below 1 mean serial.
func NewBacktestService(prices interfaces.PriceSeriesProvider, workers int) *BacktestService {
	if workers < 1 {
		workers = 1
	}
	return &BacktestService{
		prices:     prices,
		simulator:  NewTradeSimulator(),
		aggregator: NewMetricsAggregator(),
		workers:    workers,
	}
}

// priceSeries holds the prefetched bars for a batch of picks, keyed by
// symbol and start date. Fetching once up front keeps the optimizer's
// repeated passes free of I/O.
type priceSeries map[string][]models.PriceBar

func seriesKey(symbol string, from time.Time) string {
	return symbol + ":" + from.Format("2006-01-02")
}

// RunBacktest simulates every pick under the given configuration and
// aggregates the outcome. An empty pick set yields a zero-activity
// result. Picks without price data produce NO_PRICE_DATA trades and
// the batch continues.
func (s *BacktestService) RunBacktest(ctx context.Context, picks []models.Pick, cfg models.PortfolioConfig) (*models.BacktestResult, error) {
	startedAt := time.Now()
	cfg = cfg.Normalize()

	series, err := s.fetchSeries(ctx, picks)
	if err != nil {
		telemetry.CaptureError(err, "price_fetch")
		return nil, fmt.Errorf("failed to fetch price data: %w", err)
	}

	trades, err := s.simulateAll(ctx, picks, series, cfg)
	if err != nil {
		return nil, err
	}

	result := s.aggregator.Aggregate(trades, cfg.InitialCapital)
	result.RunID = uuid.New().String()
	result.Config = cfg
	result.StartedAt = startedAt
	result.CompletedAt = time.Now()

	logrus.WithFields(logrus.Fields{
		"run_id":      result.RunID,
		"picks":       len(picks),
		"trades":      result.TotalTrades,
		"duration_ms": result.CompletedAt.Sub(startedAt).Milliseconds(),
	}).Info("Backtest completed")

	return result, nil
}

// fetchSeries loads the bar history for every distinct (symbol, date)
// pair in the pick set.
func (s *BacktestService) fetchSeries(ctx context.Context, picks []models.Pick) (priceSeries, error) {
	series := make(priceSeries)
	for _, pick := range picks {
		key := seriesKey(pick.Symbol, pick.PickDate)
		if _, ok := series[key]; ok {
			continue
		}
		bars, err := s.prices.GetBars(ctx, pick.Symbol, pick.PickDate)
		if err != nil {
			return nil, fmt.Errorf("get bars for %s: %w", pick.Symbol, err)
		}
		series[key] = bars
	}
	return series, nil
}

// simulateAll runs one simulation per pick across the worker pool and
// returns the trades re-sorted into entry-date order.
func (s *BacktestService) simulateAll(ctx context.Context, picks []models.Pick, series priceSeries, cfg models.PortfolioConfig) ([]models.Trade, error) {
	if len(picks) == 0 {
		return nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trades := make([]models.Trade, len(picks))

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				pick := picks[i]
				bars := series[seriesKey(pick.Symbol, pick.PickDate)]
				trades[i] = s.simulator.Simulate(pick, bars, cfg)
			}
		}()
	}

	for i := range picks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Each worker wrote only its own slots; sort restores pick-date
	// order for the aggregation fold.
	sort.SliceStable(trades, func(i, j int) bool {
		if trades[i].EntryDate.Equal(trades[j].EntryDate) {
			return trades[i].Symbol < trades[j].Symbol
		}
		return trades[i].EntryDate.Before(trades[j].EntryDate)
	})

	return trades, nil
}

// runWithSeries is the shared simulate+aggregate pipeline used by the
// scenario runner and the optimizer once bars are in memory.
func (s *BacktestService) runWithSeries(ctx context.Context, picks []models.Pick, series priceSeries, cfg models.PortfolioConfig) (*models.BacktestResult, error) {
	trades, err := s.simulateAll(ctx, picks, series, cfg)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Aggregate(trades, cfg.InitialCapital), nil
}

// algorithmsOf returns the distinct algorithm names present in the pick
// set, in first-seen order.
func algorithmsOf(picks []models.Pick) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, pick := range picks {
		if _, ok := seen[pick.Algorithm]; ok {
			continue
		}
		seen[pick.Algorithm] = struct{}{}
		names = append(names, pick.Algorithm)
	}
	return names
}

// picksFor filters the pick set down to one algorithm.
func picksFor(picks []models.Pick, algorithm string) []models.Pick {
	var filtered []models.Pick
	for _, pick := range picks {
		if pick.Algorithm == algorithm {
			filtered = append(filtered, pick)
		}
	}
	return filtered
}
