// Package session owns the login state of the device.
//
// A Session is created on successful login and destroyed on logout. Its
// persistent form is mirrored into the metadata key-value store:
//
//	isLoggedIn    "true" while a session exists, absent otherwise
//	loggedInUser  JSON snapshot of the user row (no password material)
//	sessionToken  HS256 JWT binding the session id to the user id
//	sessionSecret device-local signing key, created on first use and kept
//	              across logouts
//
// Load restores the session on relaunch by verifying the token against the
// snapshot; it does not consult the users table (the service does).
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const secretLen = 32

// Session is the authenticated state handed to the presentation layer.
type Session struct {
	ID        string
	User      *models.User
	Token     string
	CreatedAt time.Time
	// ExpiresAt is zero when sessions do not expire.
	ExpiresAt time.Time
}

// Claims is the payload of the session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"uid"`
}

// Manager creates, loads and destroys the device session.
type Manager struct {
	db  *sql.DB
	ttl time.Duration
	log logging.Logger
	now func() time.Time
}

// NewManager returns a Manager storing state in db. A ttl of 0 issues
// tokens without expiry.
func NewManager(db *sql.DB, ttl time.Duration, log logging.Logger) *Manager {
	return &Manager{db: db, ttl: ttl, log: log.With("component", "session"), now: time.Now}
}

func (m *Manager) getRepo(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

// Create starts a session for user and writes the flag, snapshot and token
// in one transaction. The session holds a copy of user without the password
// hash.
func (m *Manager) Create(ctx context.Context, user *models.User) (*Session, error) {
	user = user.WithoutPassword()

	snapshot, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encode user snapshot: %w", err)
	}

	s := &Session{
		ID:        uuid.NewString(),
		User:      user,
		CreatedAt: m.now().Truncate(time.Second),
	}
	if m.ttl > 0 {
		s.ExpiresAt = s.CreatedAt.Add(m.ttl)
	}

	err = dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.getRepo(tx)

		secret, err := m.secret(ctx, repo)
		if err != nil {
			return err
		}

		s.Token, err = m.sign(s, secret)
		if err != nil {
			return err
		}

		if err := repo.Set(ctx, common.KeyIsLoggedIn, []byte(common.LoggedInValue)); err != nil {
			return err
		}
		if err := repo.Set(ctx, common.KeyLoggedInUser, snapshot); err != nil {
			return err
		}
		return repo.Set(ctx, common.KeySessionToken, []byte(s.Token))
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	m.log.Debug(ctx, "session created", "session_id", s.ID, "user_id", user.ID)
	return s, nil
}

// Destroy removes the session flag, snapshot and token. Removing an absent
// session is not an error.
func (m *Manager) Destroy(ctx context.Context) error {
	err := m.getRepo(m.db).Delete(ctx, common.KeyIsLoggedIn, common.KeyLoggedInUser, common.KeySessionToken)
	if err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// IsLoggedIn reads the session flag.
func (m *Manager) IsLoggedIn(ctx context.Context) (bool, error) {
	v, err := m.getRepo(m.db).Get(ctx, common.KeyIsLoggedIn)
	if err != nil {
		return false, err
	}
	return string(v) == common.LoggedInValue, nil
}

// CachedUser returns the user snapshot written at login, or nil when there
// is none.
func (m *Manager) CachedUser(ctx context.Context) (*models.User, error) {
	raw, err := m.getRepo(m.db).Get(ctx, common.KeyLoggedInUser)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	u := &models.User{}
	if err := json.Unmarshal(raw, u); err != nil {
		return nil, fmt.Errorf("decode user snapshot: %w", err)
	}
	return u, nil
}

// Refresh replaces the cached snapshot with user when a session for the same
// user exists. It reports whether the snapshot was written.
func (m *Manager) Refresh(ctx context.Context, user *models.User) (bool, error) {
	cached, err := m.CachedUser(ctx)
	if err != nil {
		return false, err
	}
	if cached == nil || cached.ID != user.ID {
		return false, nil
	}

	snapshot, err := json.Marshal(user)
	if err != nil {
		return false, fmt.Errorf("encode user snapshot: %w", err)
	}
	if err := m.getRepo(m.db).Set(ctx, common.KeyLoggedInUser, snapshot); err != nil {
		return false, err
	}
	return true, nil
}

// Load rebuilds the persisted session. It returns (nil, nil) when nobody is
// logged in and an error wrapping common.ErrInvalidToken when the stored
// token is missing, forged, expired or does not match the snapshot.
func (m *Manager) Load(ctx context.Context) (*Session, error) {
	loggedIn, err := m.IsLoggedIn(ctx)
	if err != nil {
		return nil, err
	}
	if !loggedIn {
		return nil, nil
	}

	repo := m.getRepo(m.db)

	token, err := repo.Get(ctx, common.KeySessionToken)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("load session: %w: no token", common.ErrInvalidToken)
	}

	secret, err := repo.Get(ctx, common.KeySessionSecret)
	if err != nil {
		return nil, err
	}
	if secret == nil {
		return nil, fmt.Errorf("load session: %w: no signing secret", common.ErrInvalidToken)
	}

	claims, err := m.verify(string(token), secret)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	user, err := m.CachedUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil || user.ID != claims.UserID {
		return nil, fmt.Errorf("load session: %w: snapshot does not match token", common.ErrInvalidToken)
	}

	s := &Session{
		ID:    claims.ID,
		User:  user,
		Token: string(token),
	}
	if claims.IssuedAt != nil {
		s.CreatedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

func (m *Manager) secret(ctx context.Context, repo metadata.Repository) ([]byte, error) {
	secret, err := repo.Get(ctx, common.KeySessionSecret)
	if err != nil {
		return nil, err
	}
	if secret != nil {
		return secret, nil
	}

	secret = common.GenerateRandByteArray(secretLen)
	if err := repo.Set(ctx, common.KeySessionSecret, secret); err != nil {
		return nil, err
	}
	return secret, nil
}

func (m *Manager) sign(s *Session, secret []byte) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       s.ID,
			Subject:  s.User.Username,
			IssuedAt: jwt.NewNumericDate(s.CreatedAt),
		},
		UserID: s.User.ID,
	}
	if !s.ExpiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(s.ExpiresAt)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

func (m *Manager) verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, errors.Join(common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
