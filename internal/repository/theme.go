package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

const themeColumns = `id, site_title, primary_color, primary_hover_color, secondary_color, accent_color, icon, favicon_url, site_url, is_active`

// PostgresThemeRepository persists the site theme.
type PostgresThemeRepository struct {
	DB *sql.DB
}

// NewPostgresThemeRepository creates a PostgresThemeRepository using db.
func NewPostgresThemeRepository(db *sql.DB) *PostgresThemeRepository {
	return &PostgresThemeRepository{DB: db}
}

func scanTheme(s scanner) (models.ThemeSettings, error) {
	var t models.ThemeSettings
	err := s.Scan(&t.ID, &t.SiteTitle, &t.PrimaryColor, &t.PrimaryHoverColor, &t.SecondaryColor,
		&t.AccentColor, &t.Icon, &t.FaviconURL, &t.SiteURL, &t.IsActive)
	return t, err
}

// GetActiveTheme returns the active theme record, or ErrNotFound.
func (r *PostgresThemeRepository) GetActiveTheme(ctx context.Context) (models.ThemeSettings, error) {
	t, err := scanTheme(r.DB.QueryRowContext(ctx,
		`SELECT `+themeColumns+` FROM theme_settings WHERE is_active LIMIT 1`))
	if err != nil {
		return models.ThemeSettings{}, fmt.Errorf("GetActiveTheme: %w", classify(err))
	}
	return t, nil
}

// CreateTheme inserts t as the active theme. A second active record is
// rejected by the schema with ErrConflict.
func (r *PostgresThemeRepository) CreateTheme(ctx context.Context, t models.ThemeSettings) (models.ThemeSettings, error) {
	created, err := scanTheme(r.DB.QueryRowContext(ctx, `
		INSERT INTO theme_settings (id, site_title, primary_color, primary_hover_color, secondary_color,
			accent_color, icon, favicon_url, site_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
		RETURNING `+themeColumns,
		uuid.NewString(), t.SiteTitle, t.PrimaryColor, t.PrimaryHoverColor, t.SecondaryColor,
		t.AccentColor, t.Icon, t.FaviconURL, t.SiteURL,
	))
	if err != nil {
		return models.ThemeSettings{}, fmt.Errorf("CreateTheme: %w", classify(err))
	}
	return created, nil
}

// UpdateTheme overwrites the theme record t.ID.
func (r *PostgresThemeRepository) UpdateTheme(ctx context.Context, t models.ThemeSettings) (models.ThemeSettings, error) {
	updated, err := scanTheme(r.DB.QueryRowContext(ctx, `
		UPDATE theme_settings SET
			site_title = $2, primary_color = $3, primary_hover_color = $4, secondary_color = $5,
			accent_color = $6, icon = $7, favicon_url = $8, site_url = $9
		WHERE id = $1
		RETURNING `+themeColumns,
		t.ID, t.SiteTitle, t.PrimaryColor, t.PrimaryHoverColor, t.SecondaryColor,
		t.AccentColor, t.Icon, t.FaviconURL, t.SiteURL,
	))
	if err != nil {
		return models.ThemeSettings{}, fmt.Errorf("UpdateTheme: %w", classify(err))
	}
	return updated, nil
}
