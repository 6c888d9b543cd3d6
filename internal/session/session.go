// Package session keeps track of the signed-in user between runs. Logins are
// simulated: any email is accepted and LINE login always yields the same
// demo account.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pmsync/internal/models"
)

// Key names the stored session entry.
const Key = "pmsync_auth_user"

var (
	ErrNoSession    = errors.New("no session")
	ErrInvalidEmail = errors.New("email must not be empty")
)

// Backend persists one user per key.
type Backend interface {
	Save(ctx context.Context, key string, user models.User) error
	// Load returns ErrNoSession when nothing is stored under key.
	Load(ctx context.Context, key string) (models.User, error)
	Delete(ctx context.Context, key string) error
}

type demoAccount struct {
	email    string
	password string
	name     string
	avatar   string
}

var demoAccounts = []demoAccount{
	{
		email:    "demo@example.com",
		password: "demo123",
		name:     "Demo User",
		avatar:   "https://ui-avatars.com/api/?name=Demo+User&background=3b82f6&color=fff",
	},
}

const (
	lineEmail  = "line.user@line.me"
	lineName   = "LINE User"
	lineAvatar = "https://ui-avatars.com/api/?name=LINE+User&background=00B900&color=fff"
)

// Manager logs users in and out and answers who is signed in.
type Manager struct {
	backend Backend
	logger  *zap.Logger
}

func NewManager(backend Backend, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{backend: backend, logger: logger.Named("session")}
}

func newUserID() string {
	return "user-" + uuid.NewString()
}

func avatarURL(name, background string) string {
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=%s&color=fff", url.QueryEscape(name), background)
}

// LoginWithEmail signs in with the demo account when the credentials match
// it, and otherwise with a user derived from the email address.
func (m *Manager) LoginWithEmail(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}

	user := models.User{ID: newUserID(), Email: email, LoginMethod: models.LoginEmail}
	matched := false
	for _, acct := range demoAccounts {
		if acct.email == email && acct.password == password {
			user.Name = acct.name
			user.Avatar = acct.avatar
			matched = true
			break
		}
	}
	if !matched {
		user.Name, _, _ = strings.Cut(email, "@")
		user.Avatar = avatarURL(user.Name, "3b82f6")
	}

	if err := m.backend.Save(ctx, Key, user); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.logger.Info("signed in", zap.String("email", user.Email), zap.Bool("demo", matched))
	return &user, nil
}

// LoginWithLine signs in with the LINE demo account.
func (m *Manager) LoginWithLine(ctx context.Context) (*models.User, error) {
	user := models.User{
		ID:          newUserID(),
		Email:       lineEmail,
		Name:        lineName,
		Avatar:      lineAvatar,
		LoginMethod: models.LoginLine,
	}
	if err := m.backend.Save(ctx, Key, user); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.logger.Info("signed in", zap.String("email", user.Email), zap.String("method", string(user.LoginMethod)))
	return &user, nil
}

// Logout forgets the stored user. Logging out twice is fine.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.backend.Delete(ctx, Key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.logger.Info("signed out")
	return nil
}

// CurrentUser returns the stored user, or nil when nobody is signed in or
// the stored entry cannot be read.
func (m *Manager) CurrentUser(ctx context.Context) *models.User {
	user, err := m.backend.Load(ctx, Key)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		m.logger.Warn("ignoring unreadable session", zap.Error(err))
		return nil
	}
	return &user
}

// LoggedIn reports whether a user is signed in.
func (m *Manager) LoggedIn(ctx context.Context) bool {
	return m.CurrentUser(ctx) != nil
}
