// Package service holds the storefront and back-office business logic,
// delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/repository"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// User-facing auth messages.
const (
	MsgPasswordTooShort   = "Le mot de passe doit contenir au moins 6 caractères"
	MsgPasswordMismatch   = "Les mots de passe ne correspondent pas"
	MsgInvalidEmail       = "Adresse email invalide"
	MsgEmailTaken         = "Un compte existe déjà avec cette adresse email"
	MsgInvalidCredentials = "Email ou mot de passe incorrect"
)

// AuthRepository defines the persistence operations
// required by the authentication service.
type AuthRepository interface {
	CreateUser(ctx context.Context, email string, passwordHash []byte, role models.Role) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdatePassword(ctx context.Context, userID string, passwordHash []byte) error
	GetRole(ctx context.Context, userID string) (models.Role, error)
	SetRole(ctx context.Context, userID string, role models.Role) error
	CreateSession(ctx context.Context, s models.Session) error
	GetSession(ctx context.Context, id string) (models.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// SignedIn is the result of a successful sign-up or sign-in.
type SignedIn struct {
	Token     string           `json:"token"`
	Session   models.Session   `json:"session"`
	Principal models.Principal `json:"principal"`
}

// AuthService implements email/password accounts with server-side sessions
// referenced by signed tokens.
type AuthService struct {
	repo   AuthRepository
	secret []byte
	ttl    time.Duration
	log    *zap.Logger

	now  func() time.Time
	cost int
}

// NewAuthService constructs an AuthService. Tokens are signed with secret
// and sessions last ttl.
func NewAuthService(repo AuthRepository, secret string, ttl time.Duration, log *zap.Logger) *AuthService {
	return &AuthService{
		repo:   repo,
		secret: []byte(secret),
		ttl:    ttl,
		log:    log,
		now:    time.Now,
		cost:   bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email", MsgInvalidEmail)
	}
	return email, nil
}

func validatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return invalid("password", MsgPasswordTooShort)
	}
	return nil
}

// SignUp registers a regular user and signs it in. Input is validated before
// any storage call.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (SignedIn, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return SignedIn{}, err
	}
	if err := validatePassword(password); err != nil {
		return SignedIn{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return SignedIn{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.repo.CreateUser(ctx, email, hash, models.RoleUser)
	if errors.Is(err, repository.ErrConflict) {
		return SignedIn{}, invalid("email", MsgEmailTaken)
	}
	if err != nil {
		return SignedIn{}, remote("sign up", err)
	}
	return s.issue(ctx, u)
}

// SignIn checks credentials and opens a new session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (SignedIn, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return SignedIn{}, err
	}
	if err := validatePassword(password); err != nil {
		return SignedIn{}, err
	}

	u, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return SignedIn{}, fmt.Errorf("%s: %w", MsgInvalidCredentials, ErrUnauthenticated)
	}
	if err != nil {
		return SignedIn{}, remote("sign in", err)
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return SignedIn{}, fmt.Errorf("%s: %w", MsgInvalidCredentials, ErrUnauthenticated)
	}
	return s.issue(ctx, u)
}

func (s *AuthService) issue(ctx context.Context, u models.User) (SignedIn, error) {
	now := s.now()
	sess := models.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Email:     u.Email,
		ExpiresAt: now.Add(s.ttl).UTC(),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return SignedIn{}, remote("create session", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   u.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return SignedIn{}, fmt.Errorf("sign token: %w", err)
	}

	return SignedIn{Token: signed, Session: sess, Principal: s.Classify(ctx, &sess)}, nil
}

// Session resolves a token to its live session. Invalid, expired or revoked
// tokens yield ErrUnauthenticated.
func (s *AuthService) Session(ctx context.Context, token string) (models.Session, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return models.Session{}, fmt.Errorf("parse token: %w: %w", ErrUnauthenticated, err)
	}

	sess, err := s.repo.GetSession(ctx, claims.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Session{}, fmt.Errorf("session revoked: %w", ErrUnauthenticated)
	}
	if err != nil {
		return models.Session{}, remote("get session", err)
	}
	if sess.UserID != claims.Subject {
		return models.Session{}, fmt.Errorf("session subject mismatch: %w", ErrUnauthenticated)
	}
	return sess, nil
}

// SignOut revokes sessionID.
func (s *AuthService) SignOut(ctx context.Context, sessionID string) error {
	return remote("sign out", s.repo.DeleteSession(ctx, sessionID))
}

// UpdatePassword replaces the password of userID after checking that the
// confirmation matches and the length policy holds.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, password, confirm string) error {
	if password != confirm {
		return invalid("confirm", MsgPasswordMismatch)
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return remote("update password", s.repo.UpdatePassword(ctx, userID, hash))
}

// Classify resolves the principal of sess. It fails closed: no session, a
// missing role row or a lookup error all yield the anonymous principal.
// Administrators are never also regular users.
func (s *AuthService) Classify(ctx context.Context, sess *models.Session) models.Principal {
	if sess == nil {
		return models.AnonymousPrincipal
	}

	role, err := s.repo.GetRole(ctx, sess.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("role lookup failed", zap.String("user_id", sess.UserID), zap.Error(err))
		}
		return models.AnonymousPrincipal
	}

	p := models.Principal{UserID: sess.UserID, Email: sess.Email, SessionID: sess.ID}
	switch role {
	case models.RoleAdmin:
		p.Kind = models.Administrator
	case models.RoleUser:
		p.Kind = models.Customer
	default:
		return models.AnonymousPrincipal
	}
	return p
}

// EnsureAdmin makes sure an administrator account exists for email. An
// existing account is promoted; its password is left untouched.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	u, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return remote("promote admin", s.repo.SetRole(ctx, u.ID, models.RoleAdmin))
	case !errors.Is(err, repository.ErrNotFound):
		return remote("lookup admin", err)
	}

	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.repo.CreateUser(ctx, email, hash, models.RoleAdmin); err != nil {
		return remote("create admin", err)
	}
	s.log.Info("administrator account created", zap.String("email", email))
	return nil
}
