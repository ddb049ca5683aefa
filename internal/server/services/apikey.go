package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/dmitrijs2005/cutout/internal/server/repositories/repomanager"
)

// APIKeyGateway resolves programmatic API keys to their owners.
type APIKeyGateway struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewAPIKeyGateway(db *sql.DB, m repomanager.RepositoryManager) *APIKeyGateway {
	return &APIKeyGateway{db: db, repomanager: m}
}

// Authenticate returns the owner of apiKey. A missing key yields
// ErrorUnauthorized, an unknown one ErrorForbidden.
func (g *APIKeyGateway) Authenticate(ctx context.Context, apiKey string) (Identity, error) {
	if apiKey == "" {
		return Identity{}, common.ErrorUnauthorized
	}

	u, err := g.repomanager.Users(g.db).GetByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return Identity{}, common.ErrorForbidden
		}
		return Identity{}, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	return Identity{UserID: u.ID, Email: u.Email}, nil
}
