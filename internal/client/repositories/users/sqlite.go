package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const userColumns = `id, username, password, firstName, lastName, email, contactNumber, address, profilePicture`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// query runs a SELECT over userColumns and maps every row onto a User by
// its db tags.
func (r *SQLiteRepository) query(ctx context.Context, op string, query string, args ...any) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrStorageUnavailable, op, err)
	}
	defer rows.Close()

	result := make([]*models.User, 0)
	if err := sqlx.StructScan(rows, &result); err != nil {
		return nil, fmt.Errorf("%w: %s: scan user rows: %w", common.ErrStorageUnavailable, op, err)
	}
	return result, nil
}

func (r *SQLiteRepository) queryOne(ctx context.Context, op string, query string, args ...any) (*models.User, error) {
	list, err := r.query(ctx, op, query, args...)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	return list[0], nil
}

// Create inserts user and sets its ID.
func (r *SQLiteRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, password, firstName, lastName, email, contactNumber, address, profilePicture)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		user.Username, user.PasswordHash, user.FirstName, user.LastName,
		user.Email, user.ContactNumber, user.Address, user.ProfilePicture)
	if err != nil {
		return nil, classify("create user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: create user: last insert id: %w", common.ErrStorageUnavailable, err)
	}
	user.ID = id

	return user, nil
}

// GetByUsername matches username exactly; SQLite's default BINARY collation
// makes the comparison case-sensitive.
func (r *SQLiteRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return r.queryOne(ctx, fmt.Sprintf("get user %q", username), query, username)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.queryOne(ctx, fmt.Sprintf("get user %d", id), query, id)
}

// UpdateProfile overwrites the profile columns of row id and returns the
// number of rows affected (0 when id does not exist).
func (r *SQLiteRepository) UpdateProfile(ctx context.Context, id int64, p models.Profile) (int64, error) {
	query :=
		`UPDATE users
		 SET firstName = ?, lastName = ?, email = ?, contactNumber = ?, address = ?, profilePicture = ?
		 WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query,
		p.FirstName, p.LastName, p.Email, p.ContactNumber, p.Address, p.ProfilePicture, id)
	if err != nil {
		return 0, classify("update user", err)
	}
	return rowsAffected("update user", res)
}

// Delete removes row id and returns the number of rows affected.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("%w: delete user %d: %w", common.ErrStorageUnavailable, id, err)
	}
	return rowsAffected("delete user", res)
}

// List returns all users ordered by id.
func (r *SQLiteRepository) List(ctx context.Context) ([]*models.User, error) {
	return r.query(ctx, "list users", `SELECT `+userColumns+` FROM users ORDER BY id`)
}

func rowsAffected(op string, res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: rows affected: %w", common.ErrStorageUnavailable, op, err)
	}
	return n, nil
}

// classify turns a UNIQUE violation into *common.DuplicateError and wraps
// anything else as a storage failure.
func classify(op string, err error) error {
	if field, ok := duplicateField(err); ok {
		return fmt.Errorf("%s: %w", op, &common.DuplicateError{Field: field, Err: err})
	}
	return fmt.Errorf("%w: %s: %w", common.ErrStorageUnavailable, op, err)
}

func duplicateField(err error) (string, bool) {
	msg := err.Error()

	var se *sqlite.Error
	if errors.As(err, &se) {
		// primary code; extended codes keep it in the low byte
		if se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
			return "", false
		}
		msg = se.Error()
	}

	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return "", false
	}

	switch {
	case strings.Contains(msg, "users.username"):
		return common.FieldUsername, true
	case strings.Contains(msg, "users.email"):
		return common.FieldEmail, true
	default:
		return common.FieldUnknown, true
	}
}
