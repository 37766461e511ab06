package interfaces

import (
	"context"
	"time"

	"github.com/fxlab/forex-portfolio-go/internal/models"
)

// PriceSeriesProvider supplies ordered daily price history. Bars are
// returned ascending by date, trading days only, starting at from.
type PriceSeriesProvider interface {
	GetBars(ctx context.Context, symbol string, from time.Time) ([]models.PriceBar, error)
}

// PickSource supplies the pending picks to simulate, ordered by pick
// date then symbol. An empty algorithmFilter returns all picks.
type PickSource interface {
	GetPicks(ctx context.Context, algorithmFilter string) ([]models.Pick, error)
}
