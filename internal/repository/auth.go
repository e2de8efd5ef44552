package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

// PostgresAuthRepository implements account, role and session persistence
// using a PostgreSQL database.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a PostgresAuthRepository with the given database connection.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

// CreateUser inserts a user and its role row atomically. An already
// registered email yields ErrConflict.
func (r *PostgresAuthRepository) CreateUser(ctx context.Context, email string, passwordHash []byte, role models.Role) (models.User, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.User{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	u := models.User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)
		RETURNING created_at
	`, u.ID, email, passwordHash).Scan(&u.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", classify(err))
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, u.ID, string(role)); err != nil {
		return models.User{}, fmt.Errorf("insert role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.User{}, fmt.Errorf("commit: %w", err)
	}
	return u, nil
}

// GetUserByEmail fetches the account registered under email.
func (r *PostgresAuthRepository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("GetUserByEmail: %w", classify(err))
	}
	return u, nil
}

// UpdatePassword replaces the password hash of userID.
func (r *PostgresAuthRepository) UpdatePassword(ctx context.Context, userID string, passwordHash []byte) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("UpdatePassword: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("UpdatePassword: %w", ErrNotFound)
	}
	return nil
}

// GetRole returns the role of userID, or ErrNotFound when no role row exists.
func (r *PostgresAuthRepository) GetRole(ctx context.Context, userID string) (models.Role, error) {
	var role string
	err := r.DB.QueryRowContext(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID).Scan(&role)
	if err != nil {
		return "", fmt.Errorf("GetRole: %w", classify(err))
	}
	return models.Role(role), nil
}

// SetRole assigns role to userID, replacing any previous role.
func (r *PostgresAuthRepository) SetRole(ctx context.Context, userID string, role models.Role) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role
	`, userID, string(role))
	if err != nil {
		return fmt.Errorf("SetRole: %w", classify(err))
	}
	return nil
}

// CreateSession stores a new sign-in session.
func (r *PostgresAuthRepository) CreateSession(ctx context.Context, s models.Session) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at) VALUES ($1, $2, $3)`, s.ID, s.UserID, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("CreateSession: %w", classify(err))
	}
	return nil
}

// GetSession fetches an unexpired session with its user's email.
func (r *PostgresAuthRepository) GetSession(ctx context.Context, id string) (models.Session, error) {
	var s models.Session
	err := r.DB.QueryRowContext(ctx, `
		SELECT s.id, s.user_id, u.email, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1 AND s.expires_at > now()
	`, id).Scan(&s.ID, &s.UserID, &s.Email, &s.ExpiresAt)
	if err != nil {
		return models.Session{}, fmt.Errorf("GetSession: %w", classify(err))
	}
	return s, nil
}

// DeleteSession removes session id. Deleting a missing session is not an error.
func (r *PostgresAuthRepository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("DeleteSession: %w", err)
	}
	return nil
}
