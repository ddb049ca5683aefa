// Package users implements the account store: one row per registered user
// in the single users table, on SQLite or PostgreSQL.
package users

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/cutout/internal/server/models"
)

// ErrAPIKeyTaken reports a collision on the apiKey unique index.
// Email collisions are reported as common.ErrorAlreadyExists instead.
var ErrAPIKeyTaken = errors.New("api key already taken")

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*models.User, error)
}
