package database

import (
	"context"
	"fmt"

	"github.com/fxlab/forex-portfolio-go/internal/models"
	"github.com/sirupsen/logrus"
)

// PickRepository reads pending picks from the picks table. It is the
// Postgres implementation of interfaces.PickSource.
type PickRepository struct {
	db Querier
}

// NewPickRepository creates a new pick repository.
func NewPickRepository(db Querier) *PickRepository {
	return &PickRepository{db: db}
}

// GetPicks returns pending picks ordered by pick date then symbol. An
// empty algorithmFilter returns picks for all algorithms.
func (r *PickRepository) GetPicks(ctx context.Context, algorithmFilter string) ([]models.Pick, error) {
	query := `
		SELECT id, symbol, algorithm, pick_date, entry_price, direction, pip_value, category
		FROM picks
		WHERE status = 'PENDING'
		  AND ($1 = '' OR algorithm = $1)
		ORDER BY pick_date ASC, symbol ASC
	`

	rows, err := r.db.Query(ctx, query, algorithmFilter)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var picks []models.Pick
	for rows.Next() {
		var pick models.Pick
		err := rows.Scan(
			&pick.ID, &pick.Symbol, &pick.Algorithm, &pick.PickDate,
			&pick.EntryPrice, &pick.Direction, &pick.PipValue, &pick.Category,
		)
		if err != nil {
			logrus.WithError(err).Warn("Failed to scan pick")
			continue
		}
		picks = append(picks, pick)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	return picks, nil
}
