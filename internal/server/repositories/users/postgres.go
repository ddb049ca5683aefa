package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/dmitrijs2005/cutout/internal/dbx"
	"github.com/dmitrijs2005/cutout/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, password, apiKey)
		 VALUES ($1, $2, $3)
		 RETURNING id, createdAt
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.APIKey).Scan(&user.ID, timestamp{t: &user.CreatedAt})

	if err != nil {
		return nil, mapPostgresError(err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, email, password, apiKey, createdAt FROM users
		 WHERE email = $1
		 `
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT id, email, password, apiKey, createdAt FROM users
		 WHERE id = $1
		 `
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	query :=
		`SELECT id, email, password, apiKey, createdAt FROM users
		 WHERE apiKey = $1
		 `
	return scanUser(r.db.QueryRowContext(ctx, query, apiKey))
}

func mapPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if strings.Contains(strings.ToLower(pgErr.ConstraintName), "apikey") {
			return ErrAPIKeyTaken
		}
		return common.ErrorAlreadyExists
	}
	return fmt.Errorf("db error: %w", err)
}
