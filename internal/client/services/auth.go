// Package services contains application services for the gophauth client.
// This file defines the authentication service: registration, login,
// profile maintenance, account deletion and the session lifecycle on top
// of the local user store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/database"
	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/client/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/client/session"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Init: create the schema if absent; safe to call repeatedly.
//   - Register: insert a new user, returning its id.
//   - Login: verify credentials and start a session; wrong credentials
//     yield (nil, nil).
//   - Logout: end the session; failures are logged, never returned.
//   - RestoreSession: revive the persisted session on relaunch.
//
// All methods honor context cancellation/timeouts.
type AuthService interface {
	Init(ctx context.Context) error
	Register(ctx context.Context, reg models.Registration) (int64, error)
	Login(ctx context.Context, username string, password []byte) (*session.Session, error)
	UpdateProfile(ctx context.Context, id int64, p models.Profile) error
	ChangeProfilePicture(ctx context.Context, id int64, picture string) (*models.User, error)
	DeleteAccount(ctx context.Context, id int64) error
	Logout(ctx context.Context)
	ListUsers(ctx context.Context) ([]*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	LoggedInUser(ctx context.Context) (*models.User, error)
	RestoreSession(ctx context.Context) (*session.Session, error)
	RefreshSession(ctx context.Context, id int64) error
	Reset(ctx context.Context) error
	Close() error
}

// authService is the concrete AuthService backed by a local SQL database.
type authService struct {
	db       *sql.DB
	sessions *session.Manager
	log      logging.Logger
	timeout  time.Duration

	// dummyHash is verified against when the username is unknown so that
	// both paths cost one argon2 derivation.
	dummyHash string
}

// NewAuthService constructs an AuthService bound to db. A timeout of 0
// leaves operation deadlines to the caller's context.
func NewAuthService(db *sql.DB, sessions *session.Manager, log logging.Logger, timeout time.Duration) AuthService {
	dummy, err := cryptox.HashPassword(common.GenerateRandByteArray(16))
	if err != nil {
		panic(err)
	}
	return &authService{
		db:        db,
		sessions:  sessions,
		log:       log.With("component", "auth"),
		timeout:   timeout,
		dummyHash: dummy,
	}
}

func (a *authService) getUsersRepo() users.Repository {
	return users.NewSQLiteRepository(a.db)
}

func (a *authService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}

// storageErr logs err when it is a storage fault and returns it unchanged.
func (a *authService) storageErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, common.ErrStorageUnavailable) {
		a.log.Error(ctx, op+" failed", "error", err)
	}
	return err
}

// Init applies the embedded migrations.
func (a *authService) Init(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	return a.storageErr(ctx, "init", database.Migrate(ctx, a.db, a.log))
}

// Register validates reg, hashes its password and inserts the user.
// Duplicates surface as *common.DuplicateError; session state is untouched.
func (a *authService) Register(ctx context.Context, reg models.Registration) (int64, error) {
	if err := reg.Validate(); err != nil {
		return 0, err
	}

	hash, err := cryptox.HashPassword(reg.Password)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{Username: reg.Username, PasswordHash: hash}
	user.ApplyProfile(reg.Profile)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	created, err := a.getUsersRepo().Create(ctx, user)
	if err != nil {
		var dup *common.DuplicateError
		if errors.As(err, &dup) {
			a.log.Info(ctx, "registration rejected", "username", reg.Username, "field", dup.Field)
			return 0, err
		}
		return 0, a.storageErr(ctx, "register", err)
	}

	a.log.Info(ctx, "user registered", "id", created.ID, "username", created.Username)
	return created.ID, nil
}

// Login checks the credentials and, on a match, starts a session mirrored
// into the cache. A wrong password or unknown user returns (nil, nil).
func (a *authService) Login(ctx context.Context, username string, password []byte) (*session.Session, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	user, err := a.getUsersRepo().GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, a.storageErr(ctx, "login", err)
	}

	hash := a.dummyHash
	if user != nil {
		hash = user.PasswordHash
	}

	ok, err := cryptox.VerifyPassword(hash, password)
	if err != nil {
		// unreadable stored hash counts as a mismatch
		a.log.Warn(ctx, "stored password hash is malformed", "username", username, "error", err)
		ok = false
	}
	if user == nil || !ok {
		a.log.Info(ctx, "login rejected", "username", username)
		return nil, nil
	}

	s, err := a.sessions.Create(ctx, user)
	if err != nil {
		return nil, a.storageErr(ctx, "login", err)
	}

	a.log.Info(ctx, "user logged in", "id", user.ID, "username", user.Username)
	return s, nil
}

// UpdateProfile overwrites the profile fields of user id. An unknown id is
// a no-op. The session snapshot is left as is; see RefreshSession.
func (a *authService) UpdateProfile(ctx context.Context, id int64, p models.Profile) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	n, err := a.getUsersRepo().UpdateProfile(ctx, id, p)
	if err != nil {
		return a.storageErr(ctx, "update profile", err)
	}
	if n == 0 {
		a.log.Warn(ctx, "profile update matched no user", "id", id)
		return nil
	}

	a.log.Info(ctx, "profile updated", "id", id)
	return nil
}

// ChangeProfilePicture replaces only the picture of user id and returns the
// updated row, or common.ErrorNotFound when id does not exist.
func (a *authService) ChangeProfilePicture(ctx context.Context, id int64, picture string) (*models.User, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	repo := a.getUsersRepo()

	user, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, a.storageErr(ctx, "change picture", err)
	}

	p := user.Profile()
	p.ProfilePicture = picture

	if _, err := repo.UpdateProfile(ctx, id, p); err != nil {
		return nil, a.storageErr(ctx, "change picture", err)
	}
	user.ApplyProfile(p)

	a.log.Info(ctx, "profile picture changed", "id", id)
	return user.WithoutPassword(), nil
}

// DeleteAccount removes user id permanently. Deleting an absent user is not
// an error. The session cache is not touched.
func (a *authService) DeleteAccount(ctx context.Context, id int64) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	n, err := a.getUsersRepo().Delete(ctx, id)
	if err != nil {
		return a.storageErr(ctx, "delete account", err)
	}

	if n > 0 {
		a.log.Info(ctx, "user deleted", "id", id)
	}
	return nil
}

// Logout destroys the session. It is idempotent.
func (a *authService) Logout(ctx context.Context) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.sessions.Destroy(ctx); err != nil {
		a.log.Error(ctx, "logout failed", "error", err)
		return
	}
	a.log.Info(ctx, "logged out")
}

// ListUsers returns every user ordered by id.
func (a *authService) ListUsers(ctx context.Context) ([]*models.User, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	list, err := a.getUsersRepo().List(ctx)
	if err != nil {
		return nil, a.storageErr(ctx, "list users", err)
	}
	return list, nil
}

// GetUserByUsername returns (nil, nil) when no such user exists.
func (a *authService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	user, err := a.getUsersRepo().GetByUsername(ctx, username)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, a.storageErr(ctx, "get user", err)
	}
	return user, nil
}

// LoggedInUser returns the cached snapshot of the logged-in user without
// reading the users table, or nil when nobody is logged in.
func (a *authService) LoggedInUser(ctx context.Context) (*models.User, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	loggedIn, err := a.sessions.IsLoggedIn(ctx)
	if err != nil {
		return nil, a.storageErr(ctx, "logged in user", err)
	}
	if !loggedIn {
		return nil, nil
	}

	user, err := a.sessions.CachedUser(ctx)
	if err != nil {
		return nil, a.storageErr(ctx, "logged in user", err)
	}
	return user, nil
}

// RestoreSession revives the session persisted by a previous run. A stale
// session (bad token, deleted user) is destroyed and reported as (nil, nil).
func (a *authService) RestoreSession(ctx context.Context) (*session.Session, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	s, err := a.sessions.Load(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrInvalidToken) {
			return nil, a.storageErr(ctx, "restore session", err)
		}
		a.log.Warn(ctx, "discarding invalid session", "error", err)
		return nil, a.discard(ctx)
	}
	if s == nil {
		return nil, nil
	}

	user, err := a.getUsersRepo().GetByID(ctx, s.User.ID)
	if errors.Is(err, common.ErrorNotFound) {
		a.log.Warn(ctx, "discarding session of deleted user", "id", s.User.ID)
		return nil, a.discard(ctx)
	}
	if err != nil {
		return nil, a.storageErr(ctx, "restore session", err)
	}

	s.User = user.WithoutPassword()
	if _, err := a.sessions.Refresh(ctx, s.User); err != nil {
		return nil, a.storageErr(ctx, "restore session", err)
	}

	a.log.Info(ctx, "session restored", "id", user.ID, "username", user.Username)
	return s, nil
}

func (a *authService) discard(ctx context.Context) error {
	if err := a.sessions.Destroy(ctx); err != nil {
		return a.storageErr(ctx, "discard session", err)
	}
	return nil
}

// RefreshSession re-reads user id and rewrites the cached snapshot when id
// is the logged-in user.
func (a *authService) RefreshSession(ctx context.Context, id int64) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	user, err := a.getUsersRepo().GetByID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return a.storageErr(ctx, "refresh session", err)
	}

	if _, err := a.sessions.Refresh(ctx, user); err != nil {
		return a.storageErr(ctx, "refresh session", err)
	}
	return nil
}

// Reset drops and recreates all tables, which also ends any session.
func (a *authService) Reset(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := database.Reset(ctx, a.db, a.log); err != nil {
		return a.storageErr(ctx, "reset", err)
	}
	return nil
}

// Close releases the database handle.
func (a *authService) Close() error {
	return a.db.Close()
}
