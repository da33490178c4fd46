package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/client/database"
	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/client/session"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "auth.db"), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newService(t *testing.T, db *sql.DB, log logging.Logger) AuthService {
	t.Helper()
	return NewAuthService(db, session.NewManager(db, 0, log), log, 0)
}

func bufferLogger() (logging.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	h := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return logging.NewSlogLogger(slog.New(h)), buf
}

func getMeta(t *testing.T, db *sql.DB, k string) []byte {
	t.Helper()
	var v []byte
	err := db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, k).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	require.NoError(t, err)
	return v
}

func countUsers(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	return n
}

func registration(username, email string) models.Registration {
	return models.Registration{
		Username: username,
		Password: []byte("s3cret"),
		Profile: models.Profile{
			FirstName:      "Alice",
			LastName:       "Liddell",
			Email:          email,
			ContactNumber:  "555-0100",
			Address:        "1 Rabbit Hole",
			ProfilePicture: "/pics/alice.png",
		},
	}
}

// ---- registration ----

func TestRegister_ThenFind(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	id, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)
	assert.Positive(t, id)

	u, err := svc.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u)

	want := &models.User{
		ID:             id,
		Username:       "alice",
		FirstName:      "Alice",
		LastName:       "Liddell",
		Email:          "a@x.com",
		ContactNumber:  "555-0100",
		Address:        "1 Rabbit Hole",
		ProfilePicture: "/pics/alice.png",
	}
	if diff := cmp.Diff(want, u, cmpopts.IgnoreFields(models.User{}, "PasswordHash")); diff != "" {
		t.Errorf("user mismatch (-want +got):\n%s", diff)
	}

	assert.NotEqual(t, "s3cret", u.PasswordHash, "password must be stored hashed")
	assert.Contains(t, u.PasswordHash, "$argon2id$")

	assert.Nil(t, getMeta(t, db, common.KeyIsLoggedIn), "registration must not log in")
}

func TestRegister_DuplicateUsername(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	_, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, registration("alice", "other@x.com"))
	require.ErrorIs(t, err, common.ErrDuplicateCredential)

	var dup *common.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, common.FieldUsername, dup.Field)
	assert.Equal(t, 1, countUsers(t, db))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	_, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, registration("bob", "a@x.com"))
	require.ErrorIs(t, err, common.ErrDuplicateCredential)

	var dup *common.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, common.FieldEmail, dup.Field)
	assert.Equal(t, 1, countUsers(t, db))
}

func TestRegister_Validation(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())

	reg := registration("alice", "a@x.com")
	reg.Address = ""
	reg.Password = nil

	_, err := svc.Register(context.Background(), reg)
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, err.Error(), "password")
	assert.Contains(t, err.Error(), "address")
	assert.Equal(t, 0, countUsers(t, db))
}

func TestRegister_StorageUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(errors.New("disk I/O error"))

	log, buf := bufferLogger()
	svc := newService(t, db, log)

	_, err = svc.Register(context.Background(), registration("alice", "a@x.com"))
	require.ErrorIs(t, err, common.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, common.ErrDuplicateCredential)
	assert.Contains(t, buf.String(), "register failed")
	require.NoError(t, mock.ExpectationsWereMet())
}

// ---- login / logout ----

func TestLogin_Success_SetsSession(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	id, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)

	s, err := svc.Login(ctx, "alice", []byte("s3cret"))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, id, s.User.ID)
	assert.NotEmpty(t, s.Token)
	assert.Empty(t, s.User.PasswordHash, "session handed to the caller must not carry the hash")

	assert.Equal(t, []byte("true"), getMeta(t, db, common.KeyIsLoggedIn))

	cached, err := svc.LoggedInUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "alice", cached.Username)
	assert.Empty(t, cached.PasswordHash)
}

func TestLogin_WrongPassword(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	_, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)

	s, err := svc.Login(ctx, "alice", []byte("wrong"))
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Nil(t, getMeta(t, db, common.KeyIsLoggedIn))
}

func TestLogin_UnknownUser(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())

	s, err := svc.Login(context.Background(), "nobody", []byte("x"))
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Nil(t, getMeta(t, db, common.KeyIsLoggedIn))
}

func TestLogin_UsernameIsCaseSensitive(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	_, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)

	s, err := svc.Login(ctx, "Alice", []byte("s3cret"))
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestLogin_MalformedStoredHash(t *testing.T) {
	hashes := map[string]string{
		"plaintext":   "plaintext",
		"empty key":   "$argon2id$v=19$m=8,t=1,p=1$c2FsdHNhbHQ$",
		"zero time":   "$argon2id$v=19$m=8,t=0,p=1$c2FsdA$a2V5",
		"zero thread": "$argon2id$v=19$m=8,t=1,p=0$c2FsdA$a2V5",
	}

	for name, hash := range hashes {
		t.Run(name, func(t *testing.T) {
			db := setupDB(t)
			svc := newService(t, db, logging.Nop())
			ctx := context.Background()

			_, err := db.Exec(`INSERT INTO users (username, password, firstName, lastName, email, contactNumber, address, profilePicture)
				VALUES ('legacy', ?, 'L', 'L', 'l@x.com', '1', 'a', 'p')`, hash)
			require.NoError(t, err)

			var s *session.Session
			require.NotPanics(t, func() { s, err = svc.Login(ctx, "legacy", []byte("plaintext")) })
			require.NoError(t, err)
			assert.Nil(t, s)
		})
	}
}

func TestLogin_StorageUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = ?")).
		WillReturnError(errors.New("database is locked"))

	svc := newService(t, db, logging.Nop())

	s, err := svc.Login(context.Background(), "alice", []byte("x"))
	require.ErrorIs(t, err, common.ErrStorageUnavailable)
	assert.Nil(t, s)
}

func TestLogout_ClearsAndIsIdempotent(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	_, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice", []byte("s3cret"))
	require.NoError(t, err)

	svc.Logout(ctx)
	svc.Logout(ctx)

	assert.Nil(t, getMeta(t, db, common.KeyIsLoggedIn))
	assert.Nil(t, getMeta(t, db, common.KeyLoggedInUser))
	assert.Nil(t, getMeta(t, db, common.KeySessionToken))

	u, err := svc.LoggedInUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestLogout_LogsStorageFailure(t *testing.T) {
	db := setupDB(t)
	log, buf := bufferLogger()
	svc := newService(t, db, log)
	require.NoError(t, db.Close())

	assert.NotPanics(t, func() { svc.Logout(context.Background()) })
	assert.Contains(t, buf.String(), "logout failed")
}

func TestEndToEnd_RegisterLoginLogoutLogin(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	require.NoError(t, svc.Init(ctx))

	id, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)

	first, err := svc.Login(ctx, "alice", []byte("s3cret"))
	require.NoError(t, err)
	require.NotNil(t, first)

	svc.Logout(ctx)
	assert.Nil(t, getMeta(t, db, common.KeyIsLoggedIn))

	second, err := svc.Login(ctx, "alice", []byte("s3cret"))
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, id, second.User.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []byte("true"), getMeta(t, db, common.KeyIsLoggedIn))
}

// ---- profile ----

func TestUpdateProfile_OnlyProfileFields(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	id, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)
	before, err := svc.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)

	p := models.Profile{
		FirstName:      "Al",
		LastName:       "Ice",
		Email:          "al@x.com",
		ContactNumber:  "555-0199",
		Address:        "2 Looking Glass",
		ProfilePicture: "https://pics.example/al.png",
	}
	require.NoError(t, svc.UpdateProfile(ctx, id, p))

	after, err := svc.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.Username, after.Username)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	assert.Equal(t, p, after.Profile())

	s, err := svc.Login(ctx, "alice", []byte("s3cret"))
	require.NoError(t, err)
	require.NotNil(t, s, "password must survive a profile update")
}

func TestUpdateProfile_UnknownIDIsNoop(t *testing.T) {
	db := setupDB(t)
	log, buf := bufferLogger()
	svc := newService(t, db, log)

	err := svc.UpdateProfile(context.Background(), 999, models.Profile{FirstName: "x"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "profile update matched no user")
	assert.Equal(t, 0, countUsers(t, db))
}

func TestUpdateProfile_EmailCollision(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	_, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)
	bobID, err := svc.Register(ctx, registration("bob", "b@x.com"))
	require.NoError(t, err)

	p := registration("bob", "a@x.com").Profile
	err = svc.UpdateProfile(ctx, bobID, p)

	var dup *common.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, common.FieldEmail, dup.Field)
}

func TestChangeProfilePicture(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	id, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)

	u, err := svc.ChangeProfilePicture(ctx, id, "/pics/new.png")
	require.NoError(t, err)
	assert.Equal(t, "/pics/new.png", u.ProfilePicture)
	assert.Equal(t, "Alice", u.FirstName)
	assert.Empty(t, u.PasswordHash)

	stored, err := svc.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "/pics/new.png", stored.ProfilePicture)
	assert.Equal(t, "a@x.com", stored.Email)

	_, err = svc.ChangeProfilePicture(ctx, 999, "/x.png")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRefreshSession_UpdatesSnapshot(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	id, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice", []byte("s3cret"))
	require.NoError(t, err)

	p := registration("alice", "a@x.com").Profile
	p.FirstName = "Alicia"
	require.NoError(t, svc.UpdateProfile(ctx, id, p))

	cached, err := svc.LoggedInUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", cached.FirstName, "update alone leaves the snapshot stale")

	require.NoError(t, svc.RefreshSession(ctx, id))

	cached, err = svc.LoggedInUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alicia", cached.FirstName)
}

// ---- deletion / listing ----

func TestDeleteAccount(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	id, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccount(ctx, id))
	require.NoError(t, svc.DeleteAccount(ctx, id))

	u, err := svc.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, u)

	s, err := svc.Login(ctx, "alice", []byte("s3cret"))
	require.NoError(t, err)
	assert.Nil(t, s)

	newID, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)
	assert.Greater(t, newID, id, "ids are never reused")
}

func TestDeleteAccount_KeepsSessionCache(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	id, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice", []byte("s3cret"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccount(ctx, id))
	assert.Equal(t, []byte("true"), getMeta(t, db, common.KeyIsLoggedIn))
}

func TestListUsers_OrderedByID(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	list, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.Register(ctx, registration("carol", "c@x.com"))
	require.NoError(t, err)
	_, err = svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)

	list, err = svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "carol", list[0].Username)
	assert.Equal(t, "alice", list[1].Username)
}

// ---- session restore ----

func TestRestoreSession_NoSession(t *testing.T) {
	svc := newService(t, setupDB(t), logging.Nop())

	s, err := svc.RestoreSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestRestoreSession_AcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.db")
	ctx := context.Background()

	db, err := database.Open(ctx, path, logging.Nop())
	require.NoError(t, err)
	svc := newService(t, db, logging.Nop())

	id, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)
	first, err := svc.Login(ctx, "alice", []byte("s3cret"))
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	db, err = database.Open(ctx, path, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	svc = newService(t, db, logging.Nop())

	s, err := svc.RestoreSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, first.ID, s.ID)
	assert.Equal(t, id, s.User.ID)
	assert.Equal(t, "a@x.com", s.User.Email)
	assert.Empty(t, s.User.PasswordHash, "restored session must not carry the hash")
}

func TestRestoreSession_DeletedUserDiscardsSession(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	id, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice", []byte("s3cret"))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteAccount(ctx, id))

	s, err := svc.RestoreSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Nil(t, getMeta(t, db, common.KeyIsLoggedIn))
}

func TestRestoreSession_InvalidTokenDiscardsSession(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	_, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice", []byte("s3cret"))
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE metadata SET value = ? WHERE key = ?`, []byte("garbage"), common.KeySessionToken)
	require.NoError(t, err)

	s, err := svc.RestoreSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Nil(t, getMeta(t, db, common.KeySessionToken))
}

func TestRestoreSession_ExpiredTokenDiscardsSession(t *testing.T) {
	db := setupDB(t)
	log := logging.Nop()
	svc := NewAuthService(db, session.NewManager(db, time.Nanosecond, log), log, 0)
	ctx := context.Background()

	_, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice", []byte("s3cret"))
	require.NoError(t, err)

	// exp is truncated to whole seconds, so a 1ns ttl is already past
	s, err := svc.RestoreSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Nil(t, getMeta(t, db, common.KeyIsLoggedIn))
}

// ---- misc ----

func TestReset_DropsUsersAndSession(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	_, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice", []byte("s3cret"))
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx))

	assert.Equal(t, 0, countUsers(t, db))
	assert.Nil(t, getMeta(t, db, common.KeyIsLoggedIn))

	_, err = svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)
}

func TestInit_Idempotent(t *testing.T) {
	db := setupDB(t)
	svc := newService(t, db, logging.Nop())
	ctx := context.Background()

	_, err := svc.Register(ctx, registration("alice", "a@x.com"))
	require.NoError(t, err)

	require.NoError(t, svc.Init(ctx))
	require.NoError(t, svc.Init(ctx))
	assert.Equal(t, 1, countUsers(t, db))
}

func TestOperationTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY id")).
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	log := logging.Nop()
	svc := NewAuthService(db, session.NewManager(db, 0, log), log, 20*time.Millisecond)

	_, err = svc.ListUsers(context.Background())
	require.ErrorIs(t, err, common.ErrStorageUnavailable)
}
