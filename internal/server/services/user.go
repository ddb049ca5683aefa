// Package services contains server-side business logic. This file implements
// UserService: registration, login and session token verification.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/dmitrijs2005/cutout/internal/server/auth"
	"github.com/dmitrijs2005/cutout/internal/server/config"
	"github.com/dmitrijs2005/cutout/internal/server/models"
	"github.com/dmitrijs2005/cutout/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cutout/internal/server/repositories/users"
)

// apiKeyAttempts bounds retries when a freshly generated key collides.
const apiKeyAttempts = 3

// Identity is the authenticated principal behind a session or an API key.
type Identity struct {
	UserID int64
	Email  string
}

// UserService provides account operations:
// - Register: create a user with a hashed password and a fresh API key
// - Login: verify credentials and mint a session token
// - Verify: turn a session token back into an Identity
// - Me: load the current user
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	sessionTokenValidityDuration time.Duration
	now                          func() time.Time

	// random hash checked when the email is unknown
	dummyHash string
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	dummy, _ := auth.HashPassword(string(common.GenerateRandByteArray(16)))
	return &UserService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		sessionTokenValidityDuration: cfg.SessionTokenValidityDuration,
		now:                          time.Now,
		dummyHash:                    dummy,
	}
}

// SessionTTL is the lifetime of tokens minted by Login.
func (s *UserService) SessionTTL() time.Duration {
	return s.sessionTokenValidityDuration
}

// Register creates a new user. Empty email or password yields
// ErrorValidation, a taken email ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	for attempt := 1; ; attempt++ {
		apiKey, err := common.MakeRandHexString(common.APIKeyBytes)
		if err != nil {
			return nil, fmt.Errorf("error generating api key: %w", err)
		}

		u, err := repo.Create(ctx, &models.User{Email: email, PasswordHash: hash, APIKey: apiKey})
		if err == nil {
			return u, nil
		}
		if errors.Is(err, users.ErrAPIKeyTaken) && attempt < apiKeyAttempts {
			continue
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
}

// Login verifies credentials and returns a signed session token. Unknown
// email and wrong password both yield ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			auth.CheckPassword(s.dummyHash, password)
			return "", common.ErrorUnauthorized
		}
		return "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, user.Email, s.jwtSecret, s.sessionTokenValidityDuration, s.now())
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return token, nil
}

// Verify checks a session token. A missing token yields ErrorUnauthorized,
// a bad or expired one ErrInvalidToken / ErrTokenExpired.
func (s *UserService) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, common.ErrorUnauthorized
	}
	claims, err := auth.ParseToken(token, s.jwtSecret, s.now())
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// Me loads the user behind id. ErrorNotFound if the account is gone.
func (s *UserService) Me(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return u, nil
}
