package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlab/forex-portfolio-go/internal/models"
)

// stubPriceProvider serves canned bars keyed by symbol. Safe for the
// worker pools that hit it concurrently.
type stubPriceProvider struct {
	mu    sync.Mutex
	bars  map[string][]models.PriceBar
	err   error
	calls int
}

func (p *stubPriceProvider) GetBars(_ context.Context, symbol string, _ time.Time) ([]models.PriceBar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.bars[symbol], nil
}

func pickAt(n int, symbol, algorithm string) models.Pick {
	return models.Pick{
		ID:         symbol + "-" + algorithm,
		Symbol:     symbol,
		Algorithm:  algorithm,
		PickDate:   day(n),
		EntryPrice: decimal.NewFromFloat(1.0800),
		Direction:  models.DirectionLong,
		PipValue:   decimal.NewFromFloat(0.0001),
	}
}

func TestRunBacktestEmptyPicks(t *testing.T) {
	svc := NewBacktestService(&stubPriceProvider{}, 4)

	result, err := svc.RunBacktest(context.Background(), nil, testConfig())

	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 0, result.TotalTrades)
	assert.Equal(t, "10000", result.FinalValue.String())
	assert.False(t, result.CompletedAt.Before(result.StartedAt))
}

func TestRunBacktestSortsTradesByEntryDate(t *testing.T) {
	rising := []models.PriceBar{bar(1, 1.0800, 1.0860, 1.0795, 1.0850)}
	provider := &stubPriceProvider{bars: map[string][]models.PriceBar{
		"EURUSD": rising,
		"GBPUSD": rising,
		"USDCHF": rising,
		"AUDUSD": rising,
	}}
	svc := NewBacktestService(provider, 4)

	// Deliberately out of order, with a same-day tie.
	picks := []models.Pick{
		pickAt(3, "GBPUSD", "momentum"),
		pickAt(1, "EURUSD", "momentum"),
		pickAt(2, "USDCHF", "momentum"),
		pickAt(1, "AUDUSD", "momentum"),
	}

	result, err := svc.RunBacktest(context.Background(), picks, testConfig())

	require.NoError(t, err)
	require.Len(t, result.Trades, 4)

	var symbols []string
	for _, trade := range result.Trades {
		symbols = append(symbols, trade.Symbol)
	}
	assert.Equal(t, []string{"AUDUSD", "EURUSD", "USDCHF", "GBPUSD"}, symbols)
}

func TestRunBacktestMissingSeriesContinues(t *testing.T) {
	provider := &stubPriceProvider{bars: map[string][]models.PriceBar{
		"EURUSD": {bar(1, 1.0800, 1.0860, 1.0795, 1.0850)},
	}}
	svc := NewBacktestService(provider, 2)

	picks := []models.Pick{
		pickAt(1, "EURUSD", "momentum"),
		pickAt(1, "GBPUSD", "momentum"),
	}

	result, err := svc.RunBacktest(context.Background(), picks, testConfig())

	require.NoError(t, err)
	require.Equal(t, 2, result.TotalTrades)

	var reasons []models.ExitReason
	for _, trade := range result.Trades {
		reasons = append(reasons, trade.ExitReason)
	}
	assert.Contains(t, reasons, models.ExitTakeProfit)
	assert.Contains(t, reasons, models.ExitNoPriceData)
}

func TestRunBacktestProviderError(t *testing.T) {
	wantErr := errors.New("connection refused")
	svc := NewBacktestService(&stubPriceProvider{err: wantErr}, 2)

	picks := []models.Pick{pickAt(1, "EURUSD", "momentum")}

	result, err := svc.RunBacktest(context.Background(), picks, testConfig())

	assert.Nil(t, result)
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	assert.Contains(t, err.Error(), "failed to fetch price data")
}

func TestFetchSeriesDeduplicates(t *testing.T) {
	provider := &stubPriceProvider{bars: map[string][]models.PriceBar{
		"EURUSD": {bar(1, 1.0800, 1.0860, 1.0795, 1.0850)},
	}}
	svc := NewBacktestService(provider, 2)

	picks := []models.Pick{
		pickAt(1, "EURUSD", "momentum"),
		pickAt(1, "EURUSD", "breakout"),
		pickAt(2, "EURUSD", "momentum"),
	}

	series, err := svc.fetchSeries(context.Background(), picks)

	require.NoError(t, err)
	// Same symbol on two distinct dates: two fetches, not three.
	assert.Equal(t, 2, provider.calls)
	assert.Len(t, series, 2)
}

func TestRunBacktestCancelledContext(t *testing.T) {
	provider := &stubPriceProvider{bars: map[string][]models.PriceBar{
		"EURUSD": {bar(1, 1.0800, 1.0860, 1.0795, 1.0850)},
	}}
	svc := NewBacktestService(provider, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.RunBacktest(ctx, []models.Pick{pickAt(1, "EURUSD", "momentum")}, testConfig())

	assert.ErrorIs(t, err, context.Canceled)
}
