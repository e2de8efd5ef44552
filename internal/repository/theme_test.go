package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

var themeRowColumns = []string{
	"id", "site_title", "primary_color", "primary_hover_color", "secondary_color",
	"accent_color", "icon", "favicon_url", "site_url", "is_active",
}

func setupThemeMock(t *testing.T) (*PostgresThemeRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	return NewPostgresThemeRepository(db), mock, func() { db.Close() }
}

func TestGetActiveTheme(t *testing.T) {
	repo, mock, cleanup := setupThemeMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM theme_settings WHERE is_active LIMIT 1`)).
		WillReturnRows(sqlmock.NewRows(themeRowColumns).
			AddRow("t1", "Mes Bons Plans", "#111111", "#222222", "#333333", "#444444", "", "", "https://bp.example", true))

	theme, err := repo.GetActiveTheme(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if theme.SiteTitle != "Mes Bons Plans" || theme.PrimaryHoverColor != "#222222" || !theme.IsActive {
		t.Errorf("unexpected theme: %+v", theme)
	}
}

func TestGetActiveTheme_None(t *testing.T) {
	repo, mock, cleanup := setupThemeMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM theme_settings`)).
		WillReturnRows(sqlmock.NewRows(themeRowColumns))

	if _, err := repo.GetActiveTheme(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateTheme_SecondActive(t *testing.T) {
	repo, mock, cleanup := setupThemeMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO theme_settings`)).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.CreateTheme(context.Background(), models.ThemeSettings{SiteTitle: "x"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestUpdateTheme(t *testing.T) {
	repo, mock, cleanup := setupThemeMock(t)
	defer cleanup()

	in := models.ThemeSettings{
		ID: "t1", SiteTitle: "Nouveau", PrimaryColor: "#000000", PrimaryHoverColor: "#010101",
		SecondaryColor: "#020202", AccentColor: "#030303", SiteURL: "https://new.example",
	}
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE theme_settings SET`)).
		WithArgs("t1", "Nouveau", "#000000", "#010101", "#020202", "#030303", "", "", "https://new.example").
		WillReturnRows(sqlmock.NewRows(themeRowColumns).
			AddRow("t1", "Nouveau", "#000000", "#010101", "#020202", "#030303", "", "", "https://new.example", true))

	out, err := repo.UpdateTheme(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SiteURL != "https://new.example" {
		t.Errorf("site_url = %q", out.SiteURL)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
