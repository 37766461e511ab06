package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlab/forex-portfolio-go/internal/models"
)

type countingProvider struct {
	bars  []models.PriceBar
	err   error
	calls int
}

func (p *countingProvider) GetBars(_ context.Context, _ string, _ time.Time) ([]models.PriceBar, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.bars, nil
}

func testBars() []models.PriceBar {
	return []models.PriceBar{
		{
			Symbol: "EURUSD",
			Date:   time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			Open:   decimal.NewFromFloat(1.0800),
			High:   decimal.NewFromFloat(1.0815),
			Low:    decimal.NewFromFloat(1.0795),
			Close:  decimal.NewFromFloat(1.0810),
			Volume: decimal.NewFromInt(12000),
		},
	}
}

func newTestCache(t *testing.T, provider *countingProvider, ttl time.Duration) (*CachedPriceProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedPriceProvider(provider, client, ttl), mr
}

func TestGetBarsReadThrough(t *testing.T) {
	provider := &countingProvider{bars: testBars()}
	cached, _ := newTestCache(t, provider, time.Minute)

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	first, err := cached.GetBars(context.Background(), "EURUSD", from)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, provider.calls)

	// Second read comes from Redis, not the provider.
	second, err := cached.GetBars(context.Background(), "EURUSD", from)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 1, provider.calls)
	assert.True(t, first[0].Close.Equal(second[0].Close))

	hits, misses, sets := cached.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, int64(1), sets)
}

func TestGetBarsDistinctKeys(t *testing.T) {
	provider := &countingProvider{bars: testBars()}
	cached, _ := newTestCache(t, provider, time.Minute)

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	_, err := cached.GetBars(context.Background(), "EURUSD", from)
	require.NoError(t, err)
	_, err = cached.GetBars(context.Background(), "GBPUSD", from)
	require.NoError(t, err)
	_, err = cached.GetBars(context.Background(), "EURUSD", from.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, 3, provider.calls)
}

func TestGetBarsExpiredEntryRefetches(t *testing.T) {
	provider := &countingProvider{bars: testBars()}
	cached, mr := newTestCache(t, provider, time.Minute)

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	_, err := cached.GetBars(context.Background(), "EURUSD", from)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cached.GetBars(context.Background(), "EURUSD", from)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestGetBarsCorruptEntryFallsThrough(t *testing.T) {
	provider := &countingProvider{bars: testBars()}
	cached, mr := newTestCache(t, provider, time.Minute)

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	require.NoError(t, mr.Set("price_series:EURUSD:2024-03-04", "{not json"))

	bars, err := cached.GetBars(context.Background(), "EURUSD", from)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 1, provider.calls)
}

func TestGetBarsRedisDownFallsThrough(t *testing.T) {
	provider := &countingProvider{bars: testBars()}
	cached, mr := newTestCache(t, provider, time.Minute)
	mr.Close()

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	bars, err := cached.GetBars(context.Background(), "EURUSD", from)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 1, provider.calls)
}

func TestGetBarsProviderError(t *testing.T) {
	wantErr := errors.New("db down")
	provider := &countingProvider{err: wantErr}
	cached, _ := newTestCache(t, provider, time.Minute)

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	bars, err := cached.GetBars(context.Background(), "EURUSD", from)
	assert.Nil(t, bars)
	assert.ErrorIs(t, err, wantErr)
}
