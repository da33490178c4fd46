package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/client/database"
	"github.com/dmitrijs2005/gophauth/internal/client/services"
	"github.com/dmitrijs2005/gophauth/internal/client/session"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/filex"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// User-facing messages for the two expected failure modes.
const (
	msgDuplicate          = "Username or Email already exists"
	msgInvalidCredentials = "Invalid username or password"
	msgStorage            = "Local storage is unavailable, please try again"
)

type App struct {
	config      *config.Config
	authService services.AuthService
	session     *session.Session
	reader      *bufio.Reader
	out         io.Writer
	log         logging.Logger
}

// NewApp builds the logger, connects to the database (creating its
// directory), wires the auth service and initializes the schema through it.
// A database that cannot be opened or initialized aborts start-up.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if _, err := filex.EnsureParentDir(c.LogFile); err != nil {
		return nil, fmt.Errorf("prepare log directory: %w", err)
	}

	log, err := logging.New(logging.Options{
		Backend: c.LogBackend,
		Level:   c.LogLevel,
		Format:  c.LogFormat,
		File:    c.LogFile,
	})
	if err != nil {
		return nil, err
	}

	if runID, err := common.MakeRandHexString(4); err == nil {
		log = log.With("run", runID)
	}

	if _, err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		log.Error(ctx, "error preparing database directory", "path", c.DatabasePath, "error", err)
		closeLog(log)
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	db, err := database.Connect(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error opening database", "path", c.DatabasePath, "error", err)
		closeLog(log)
		return nil, err
	}

	sm := session.NewManager(db, c.SessionTTL, log)
	as := services.NewAuthService(db, sm, log, c.OperationTimeout)

	if err := as.Init(ctx); err != nil {
		log.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		_ = as.Close()
		closeLog(log)
		return nil, err
	}

	return &App{
		config:      c,
		authService: as,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		log:         log,
	}, nil
}

// Run restores any persisted session and blocks in the REPL until the user
// exits or input ends.
func (a *App) Run(ctx context.Context) {
	defer a.close()

	printlnFn("Welcome to gophauth (type 'help' for commands)")

	a.restoreSession(ctx)
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) close() {
	if err := a.authService.Close(); err != nil {
		a.log.Error(context.Background(), "error closing database", "error", err)
	}
	closeLog(a.log)
}

func closeLog(log logging.Logger) {
	if c, ok := log.(io.Closer); ok {
		_ = c.Close()
	}
}

func (a *App) restoreSession(ctx context.Context) {
	s, err := a.authService.RestoreSession(ctx)
	if err != nil {
		a.log.Warn(ctx, "could not restore session", "error", err)
		return
	}
	if s != nil {
		a.session = s
		printlnFn(fmt.Sprintf("Welcome back, %s!", s.User.DisplayName()))
	}
}

func (a *App) isLoggedIn() bool {
	return a.session != nil
}

func (a *App) getStatus() string {
	if a.session == nil {
		return ""
	}
	return fmt.Sprintf("(%s)", a.session.User.Username)
}

// report prints the user-facing message for err.
func (a *App) report(err error) {
	switch {
	case errors.Is(err, common.ErrDuplicateCredential):
		printlnFn(msgDuplicate)
	case errors.Is(err, common.ErrStorageUnavailable):
		printlnFn(msgStorage)
	default:
		printlnFn("Error:", err.Error())
	}
}
