package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

// PostgresFavoriteRepository implements favorite persistence against PostgreSQL.
type PostgresFavoriteRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresFavoriteRepository creates a PostgresFavoriteRepository using db.
func NewPostgresFavoriteRepository(db *sql.DB) *PostgresFavoriteRepository {
	return &PostgresFavoriteRepository{DB: db}
}

// ListFavoriteIDs returns the ids of the products favorited by userID.
func (r *PostgresFavoriteRepository) ListFavoriteIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT product_id FROM favorites WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListFavoriteIDs: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListFavoriteProducts returns the products favorited by userID, most
// recently favorited first.
func (r *PostgresFavoriteRepository) ListFavoriteProducts(ctx context.Context, userID string) ([]models.Product, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT p.id, p.name, p.price, p.image_url, p.images, p.purchase_url, p.description,
		       p.discount, p.favorites_count, p.tags, p.created_at
		FROM favorites f
		JOIN products p ON p.id = f.product_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListFavoriteProducts: %w", err)
	}
	return collectProducts(rows)
}

// AddFavorite records that userID favorited productID and bumps the product
// counter in the same transaction. A duplicate pair yields ErrConflict and a
// missing product ErrNotFound.
func (r *PostgresFavoriteRepository) AddFavorite(ctx context.Context, userID, productID string) (models.Favorite, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Favorite{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	fav := models.Favorite{ID: uuid.NewString(), UserID: userID, ProductID: productID}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO favorites (id, user_id, product_id) VALUES ($1, $2, $3)
		RETURNING created_at
	`, fav.ID, userID, productID).Scan(&fav.CreatedAt)
	if err != nil {
		return models.Favorite{}, fmt.Errorf("insert favorite: %w", classify(err))
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE products SET favorites_count = favorites_count + 1 WHERE id = $1`, productID); err != nil {
		return models.Favorite{}, fmt.Errorf("bump favorites count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Favorite{}, fmt.Errorf("commit: %w", err)
	}
	return fav, nil
}

// RemoveFavorite deletes the (userID, productID) favorite and decrements the
// product counter. It returns ErrNotFound when no such favorite exists.
func (r *PostgresFavoriteRepository) RemoveFavorite(ctx context.Context, userID, productID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("delete favorite: %w", ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE products SET favorites_count = GREATEST(favorites_count - 1, 0) WHERE id = $1`, productID); err != nil {
		return fmt.Errorf("drop favorites count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
