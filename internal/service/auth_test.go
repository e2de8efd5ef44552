package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/craquetonbudget/bonsplans/internal/models"
	"github.com/craquetonbudget/bonsplans/internal/repository"
)

type mockAuthRepo struct {
	CreateUserFunc     func(ctx context.Context, email string, hash []byte, role models.Role) (models.User, error)
	GetUserByEmailFunc func(ctx context.Context, email string) (models.User, error)
	UpdatePasswordFunc func(ctx context.Context, userID string, hash []byte) error
	GetRoleFunc        func(ctx context.Context, userID string) (models.Role, error)
	SetRoleFunc        func(ctx context.Context, userID string, role models.Role) error
	CreateSessionFunc  func(ctx context.Context, s models.Session) error
	GetSessionFunc     func(ctx context.Context, id string) (models.Session, error)
	DeleteSessionFunc  func(ctx context.Context, id string) error

	calls int
}

func (m *mockAuthRepo) CreateUser(ctx context.Context, email string, hash []byte, role models.Role) (models.User, error) {
	m.calls++
	return m.CreateUserFunc(ctx, email, hash, role)
}
func (m *mockAuthRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	m.calls++
	return m.GetUserByEmailFunc(ctx, email)
}
func (m *mockAuthRepo) UpdatePassword(ctx context.Context, userID string, hash []byte) error {
	m.calls++
	return m.UpdatePasswordFunc(ctx, userID, hash)
}
func (m *mockAuthRepo) GetRole(ctx context.Context, userID string) (models.Role, error) {
	m.calls++
	return m.GetRoleFunc(ctx, userID)
}
func (m *mockAuthRepo) SetRole(ctx context.Context, userID string, role models.Role) error {
	m.calls++
	return m.SetRoleFunc(ctx, userID, role)
}
func (m *mockAuthRepo) CreateSession(ctx context.Context, s models.Session) error {
	m.calls++
	return m.CreateSessionFunc(ctx, s)
}
func (m *mockAuthRepo) GetSession(ctx context.Context, id string) (models.Session, error) {
	m.calls++
	return m.GetSessionFunc(ctx, id)
}
func (m *mockAuthRepo) DeleteSession(ctx context.Context, id string) error {
	m.calls++
	return m.DeleteSessionFunc(ctx, id)
}

// memAuthRepo wires a mockAuthRepo to in-memory maps.
func memAuthRepo() *mockAuthRepo {
	users := map[string]models.User{}
	roles := map[string]models.Role{}
	sessions := map[string]models.Session{}

	return &mockAuthRepo{
		CreateUserFunc: func(_ context.Context, email string, hash []byte, role models.Role) (models.User, error) {
			if _, ok := users[email]; ok {
				return models.User{}, repository.ErrConflict
			}
			u := models.User{ID: "u-" + email, Email: email, PasswordHash: hash, CreatedAt: time.Now()}
			users[email] = u
			roles[u.ID] = role
			return u, nil
		},
		GetUserByEmailFunc: func(_ context.Context, email string) (models.User, error) {
			u, ok := users[email]
			if !ok {
				return models.User{}, repository.ErrNotFound
			}
			return u, nil
		},
		UpdatePasswordFunc: func(_ context.Context, userID string, hash []byte) error {
			for email, u := range users {
				if u.ID == userID {
					u.PasswordHash = hash
					users[email] = u
					return nil
				}
			}
			return repository.ErrNotFound
		},
		GetRoleFunc: func(_ context.Context, userID string) (models.Role, error) {
			r, ok := roles[userID]
			if !ok {
				return "", repository.ErrNotFound
			}
			return r, nil
		},
		SetRoleFunc: func(_ context.Context, userID string, role models.Role) error {
			roles[userID] = role
			return nil
		},
		CreateSessionFunc: func(_ context.Context, s models.Session) error {
			sessions[s.ID] = s
			return nil
		},
		GetSessionFunc: func(_ context.Context, id string) (models.Session, error) {
			s, ok := sessions[id]
			if !ok {
				return models.Session{}, repository.ErrNotFound
			}
			return s, nil
		},
		DeleteSessionFunc: func(_ context.Context, id string) error {
			delete(sessions, id)
			return nil
		},
	}
}

func newTestAuthService(repo AuthRepository) *AuthService {
	s := NewAuthService(repo, "test-secret", time.Hour, zap.NewNop())
	s.cost = bcrypt.MinCost
	return s
}

func TestSignUp_ValidatesBeforeStorage(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		field    string
	}{
		{"short password", "ada@example.com", "12345", "password"},
		{"bad email", "not-an-email", "secret123", "email"},
		{"display name form", "Ada <ada@example.com>", "secret123", "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := memAuthRepo()
			svc := newTestAuthService(repo)

			_, err := svc.SignUp(context.Background(), tt.email, tt.password)
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.Zero(t, repo.calls, "no storage call expected")
		})
	}
}

func TestSignUp_CreatesUserAndSession(t *testing.T) {
	repo := memAuthRepo()
	svc := newTestAuthService(repo)

	res, err := svc.SignUp(context.Background(), "  Ada@Example.com ", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "ada@example.com", res.Session.Email)
	assert.True(t, res.Principal.IsUser())
	assert.False(t, res.Principal.IsAdmin())

	sess, err := svc.Session(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID, sess.ID)

	_, err = svc.SignUp(context.Background(), "ada@example.com", "another1")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSignIn(t *testing.T) {
	repo := memAuthRepo()
	svc := newTestAuthService(repo)
	_, err := svc.SignUp(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)

	_, err = svc.SignIn(context.Background(), "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.SignIn(context.Background(), "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	res, err := svc.SignIn(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)
	assert.True(t, res.Principal.IsUser())
}

func TestSignIn_ShortPasswordNeverTouchesStorage(t *testing.T) {
	repo := memAuthRepo()
	svc := newTestAuthService(repo)

	for _, pw := range []string{"", "a", "abc12"} {
		_, err := svc.SignIn(context.Background(), "ada@example.com", pw)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "password", ve.Field)
	}
	assert.Zero(t, repo.calls)
}

func TestSignIn_RemoteFailure(t *testing.T) {
	repo := memAuthRepo()
	repo.GetUserByEmailFunc = func(context.Context, string) (models.User, error) {
		return models.User{}, errors.New("connection refused")
	}
	svc := newTestAuthService(repo)

	_, err := svc.SignIn(context.Background(), "ada@example.com", "secret123")
	assert.ErrorIs(t, err, ErrRemote)
}

func TestSession_RejectsBadTokens(t *testing.T) {
	repo := memAuthRepo()
	svc := newTestAuthService(repo)
	res, err := svc.SignUp(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)

	_, err = svc.Session(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	other := newTestAuthService(repo)
	other.secret = []byte("another-secret")
	_, err = other.Session(context.Background(), res.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated, "foreign signature")

	expired := newTestAuthService(repo)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.Session(context.Background(), res.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated, "expired token")

	require.NoError(t, svc.SignOut(context.Background(), res.Session.ID))
	_, err = svc.Session(context.Background(), res.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated, "revoked session")
}

func TestUpdatePassword(t *testing.T) {
	repo := memAuthRepo()
	svc := newTestAuthService(repo)
	res, err := svc.SignUp(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)
	userID := res.Session.UserID

	err = svc.UpdatePassword(context.Background(), userID, "newpass1", "newpass2")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, MsgPasswordMismatch, ve.Message)

	err = svc.UpdatePassword(context.Background(), userID, "abc", "abc")
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, MsgPasswordTooShort, ve.Message)

	require.NoError(t, svc.UpdatePassword(context.Background(), userID, "newpass1", "newpass1"))
	_, err = svc.SignIn(context.Background(), "ada@example.com", "newpass1")
	assert.NoError(t, err)
}

func TestClassify(t *testing.T) {
	sess := &models.Session{ID: "s1", UserID: "u1", Email: "ada@example.com"}

	tests := []struct {
		name    string
		sess    *models.Session
		role    models.Role
		roleErr error
		want    models.PrincipalKind
	}{
		{name: "no session", sess: nil, want: models.Anonymous},
		{name: "admin", sess: sess, role: models.RoleAdmin, want: models.Administrator},
		{name: "user", sess: sess, role: models.RoleUser, want: models.Customer},
		{name: "no role row", sess: sess, roleErr: repository.ErrNotFound, want: models.Anonymous},
		{name: "lookup failure", sess: sess, roleErr: errors.New("timeout"), want: models.Anonymous},
		{name: "unknown role", sess: sess, role: models.Role("editor"), want: models.Anonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockAuthRepo{
				GetRoleFunc: func(context.Context, string) (models.Role, error) {
					return tt.role, tt.roleErr
				},
			}
			p := newTestAuthService(repo).Classify(context.Background(), tt.sess)
			assert.Equal(t, tt.want, p.Kind)
			assert.False(t, p.IsAdmin() && p.IsUser(), "admin and user are exclusive")
			if tt.want == models.Anonymous {
				assert.Equal(t, models.AnonymousPrincipal, p)
			}
		})
	}
}

func TestEnsureAdmin(t *testing.T) {
	repo := memAuthRepo()
	svc := newTestAuthService(repo)

	require.NoError(t, svc.EnsureAdmin(context.Background(), "admin@example.com", "adminpass"))
	res, err := svc.SignIn(context.Background(), "admin@example.com", "adminpass")
	require.NoError(t, err)
	assert.True(t, res.Principal.IsAdmin())

	_, err = svc.SignUp(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, svc.EnsureAdmin(context.Background(), "ada@example.com", ""))
	res, err = svc.SignIn(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)
	assert.True(t, res.Principal.IsAdmin(), "existing account is promoted")
	assert.False(t, res.Principal.IsUser())
}
