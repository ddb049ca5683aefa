package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/dmitrijs2005/cutout/internal/dbx"
	"github.com/dmitrijs2005/cutout/internal/server/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, password, apiKey)
		 VALUES (?, ?, ?)
		 RETURNING id, createdAt
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.APIKey).Scan(&user.ID, timestamp{t: &user.CreatedAt})

	if err != nil {
		return nil, mapSQLiteError(err)
	}

	return user, nil
}

func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, email, password, apiKey, createdAt FROM users
		 WHERE email = ?
		 `
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT id, email, password, apiKey, createdAt FROM users
		 WHERE id = ?
		 `
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteRepository) GetByAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	query :=
		`SELECT id, email, password, apiKey, createdAt FROM users
		 WHERE apiKey = ?
		 `
	return scanUser(r.db.QueryRowContext(ctx, query, apiKey))
}

func mapSQLiteError(err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && isUniqueViolation(sqliteErr) {
		if strings.Contains(strings.ToLower(sqliteErr.Error()), "users.apikey") {
			return ErrAPIKeyTaken
		}
		return common.ErrorAlreadyExists
	}
	return fmt.Errorf("db error: %w", err)
}

func isUniqueViolation(err *sqlite.Error) bool {
	if err.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return err.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
