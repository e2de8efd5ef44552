package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

// PostgresAnalyticsRepository stores storefront interaction events.
type PostgresAnalyticsRepository struct {
	DB *sql.DB
}

// NewPostgresAnalyticsRepository creates a PostgresAnalyticsRepository using db.
func NewPostgresAnalyticsRepository(db *sql.DB) *PostgresAnalyticsRepository {
	return &PostgresAnalyticsRepository{DB: db}
}

// RecordEvent stores one interaction. An unknown product yields ErrNotFound.
func (r *PostgresAnalyticsRepository) RecordEvent(ctx context.Context, productID string, kind models.EventKind) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO product_events (product_id, kind) VALUES ($1, $2)`, productID, string(kind))
	if err != nil {
		return fmt.Errorf("RecordEvent: %w", classify(err))
	}
	return nil
}

// ProductStats aggregates events per product since the given instant.
func (r *PostgresAnalyticsRepository) ProductStats(ctx context.Context, since time.Time) ([]models.ProductStats, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT p.id, p.name,
		       COUNT(*) FILTER (WHERE e.kind = 'view'),
		       COUNT(*) FILTER (WHERE e.kind = 'buy_click'),
		       COUNT(*) FILTER (WHERE e.kind = 'homepage_buy_click')
		FROM product_events e
		JOIN products p ON p.id = e.product_id
		WHERE e.created_at >= $1
		GROUP BY p.id, p.name
	`, since)
	if err != nil {
		return nil, fmt.Errorf("ProductStats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.ProductStats, 0)
	for rows.Next() {
		var s models.ProductStats
		if err := rows.Scan(&s.ProductID, &s.Name, &s.Views, &s.Clicks, &s.HomepageClicks); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		s.TotalInteractions = s.Views + s.Clicks + s.HomepageClicks
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
