package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

const productColumns = `id, name, price, image_url, images, purchase_url, description, discount, favorites_count, tags, created_at`

// PostgresProductRepository implements catalog persistence against PostgreSQL.
type PostgresProductRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresProductRepository creates a PostgresProductRepository using db.
func NewPostgresProductRepository(db *sql.DB) *PostgresProductRepository {
	return &PostgresProductRepository{DB: db}
}

func scanProduct(s scanner) (models.Product, error) {
	var (
		p      models.Product
		images pq.StringArray
		tags   pq.StringArray
		desc   sql.NullString
		disc   decimal.NullDecimal
	)
	err := s.Scan(&p.ID, &p.Name, &p.Price, &p.ImageURL, &images, &p.PurchaseURL,
		&desc, &disc, &p.FavoritesCount, &tags, &p.CreatedAt)
	if err != nil {
		return models.Product{}, err
	}
	p.Images = []string(images)
	p.Tags = []string(tags)
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if desc.Valid {
		p.Description = &desc.String
	}
	if disc.Valid {
		p.Discount = &disc.Decimal
	}
	return p, nil
}

func collectProducts(rows *sql.Rows) ([]models.Product, error) {
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func nullDiscount(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ListProducts returns every product, newest first.
func (r *PostgresProductRepository) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ListProducts: %w", err)
	}
	return collectProducts(rows)
}

// GetProduct fetches a product by id. It returns ErrNotFound when absent.
func (r *PostgresProductRepository) GetProduct(ctx context.Context, id string) (models.Product, error) {
	p, err := scanProduct(r.DB.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return models.Product{}, fmt.Errorf("GetProduct: %w", classify(err))
	}
	return p, nil
}

// CreateProduct inserts a new product and returns the stored row.
func (r *PostgresProductRepository) CreateProduct(ctx context.Context, in models.ProductInput) (models.Product, error) {
	p, err := scanProduct(r.DB.QueryRowContext(ctx, `
		INSERT INTO products (id, name, price, image_url, images, purchase_url, description, discount, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+productColumns,
		uuid.NewString(), in.Name, in.Price, in.ImageURL, pq.Array(nonNil(in.Images)), in.PurchaseURL,
		nullString(in.Description), nullDiscount(in.Discount), pq.Array(nonNil(in.Tags)),
	))
	if err != nil {
		return models.Product{}, fmt.Errorf("CreateProduct: %w", classify(err))
	}
	return p, nil
}

// UpdateProduct overwrites the editable fields of product id.
func (r *PostgresProductRepository) UpdateProduct(ctx context.Context, id string, in models.ProductInput) (models.Product, error) {
	p, err := scanProduct(r.DB.QueryRowContext(ctx, `
		UPDATE products SET
			name = $2, price = $3, image_url = $4, images = $5, purchase_url = $6,
			description = $7, discount = $8, tags = $9
		WHERE id = $1
		RETURNING `+productColumns,
		id, in.Name, in.Price, in.ImageURL, pq.Array(nonNil(in.Images)), in.PurchaseURL,
		nullString(in.Description), nullDiscount(in.Discount), pq.Array(nonNil(in.Tags)),
	))
	if err != nil {
		return models.Product{}, fmt.Errorf("UpdateProduct: %w", classify(err))
	}
	return p, nil
}

// DeleteProduct removes product id and returns the deleted row so that its
// assets can be cleaned up.
func (r *PostgresProductRepository) DeleteProduct(ctx context.Context, id string) (models.Product, error) {
	p, err := scanProduct(r.DB.QueryRowContext(ctx, `DELETE FROM products WHERE id = $1 RETURNING `+productColumns, id))
	if err != nil {
		return models.Product{}, fmt.Errorf("DeleteProduct: %w", classify(err))
	}
	return p, nil
}

// AddTagToAll appends tag to every product that lacks it and returns the
// number of products changed.
func (r *PostgresProductRepository) AddTagToAll(ctx context.Context, tag string) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE products SET tags = array_append(tags, $1) WHERE NOT ($1 = ANY(tags))`, tag)
	if err != nil {
		return 0, fmt.Errorf("AddTagToAll: %w", err)
	}
	return res.RowsAffected()
}

// RemoveTagFromAll strips tag from every product and returns the number of
// products changed.
func (r *PostgresProductRepository) RemoveTagFromAll(ctx context.Context, tag string) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE products SET tags = array_remove(tags, $1) WHERE $1 = ANY(tags)`, tag)
	if err != nil {
		return 0, fmt.Errorf("RemoveTagFromAll: %w", err)
	}
	return res.RowsAffected()
}

// ListProductRefs returns id and name of every product, newest first.
func (r *PostgresProductRepository) ListProductRefs(ctx context.Context) ([]models.ProductRef, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ListProductRefs: %w", err)
	}
	defer rows.Close()

	var refs []models.ProductRef
	for rows.Next() {
		var ref models.ProductRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
