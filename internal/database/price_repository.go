package database

import (
	"context"
	"fmt"
	"time"

	"github.com/fxlab/forex-portfolio-go/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

// Querier is the subset of the pgx pool used by the repositories. It is
// satisfied by *pgxpool.Pool and by pgxmock in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PriceRepository reads daily price bars from the daily_prices table.
// It is the Postgres implementation of interfaces.PriceSeriesProvider.
type PriceRepository struct {
	db Querier
}

// NewPriceRepository creates a new price repository.
func NewPriceRepository(db Querier) *PriceRepository {
	return &PriceRepository{db: db}
}

// GetBars returns the daily bars for a symbol from the given date
// onward, ascending by date. Rows that fail to scan are skipped with a
// warning rather than aborting the batch.
func (r *PriceRepository) GetBars(ctx context.Context, symbol string, from time.Time) ([]models.PriceBar, error) {
	query := `
		SELECT symbol, date, open, high, low, close, volume
		FROM daily_prices
		WHERE symbol = $1 AND date >= $2
		ORDER BY date ASC
	`

	rows, err := r.db.Query(ctx, query, symbol, from)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var bars []models.PriceBar
	for rows.Next() {
		var bar models.PriceBar
		err := rows.Scan(
			&bar.Symbol, &bar.Date,
			&bar.Open, &bar.High, &bar.Low, &bar.Close,
			&bar.Volume,
		)
		if err != nil {
			logrus.WithError(err).WithField("symbol", symbol).Warn("Failed to scan price bar")
			continue
		}
		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	return bars, nil
}
