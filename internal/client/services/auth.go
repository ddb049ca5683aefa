// Package services contains application services for the cutout CLI. This
// file defines the account service: register, login, logout and the locally
// stored API key.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/cutout/internal/client/client"
	"github.com/dmitrijs2005/cutout/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/cutout/internal/dbx"
)

const (
	keyEmail  = "email"
	keyAPIKey = "api_key"
)

// AuthService defines account operations for the CLI.
//
// Contract:
//   - Register: create a user on the server; returns the new user id.
//   - Login: authenticate, fetch the profile and remember email + API key locally.
//   - Me: fetch the profile of the current session.
//   - Stored: the locally remembered email and API key.
//   - Logout: end the server session and wipe local data.
//   - Ping: check server liveness.
type AuthService interface {
	Register(ctx context.Context, email string, password []byte) (int64, error)
	Login(ctx context.Context, email string, password []byte) (*client.Profile, error)
	Me(ctx context.Context) (*client.Profile, error)
	Stored(ctx context.Context) (email, apiKey string, err error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
}

type authService struct {
	client client.Client
	db     *sql.DB
}

// NewAuthService constructs an AuthService bound to the given API client and DB.
func NewAuthService(client client.Client, db *sql.DB) AuthService {
	return &authService{client: client, db: db}
}

func (a *authService) Register(ctx context.Context, email string, password []byte) (int64, error) {
	return a.client.Register(ctx, email, password)
}

func (a *authService) Login(ctx context.Context, email string, password []byte) (*client.Profile, error) {
	if err := a.client.Login(ctx, email, password); err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	p, err := a.client.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("profile error: %w", err)
	}
	if err := a.saveLocalData(ctx, p.Email, p.APIKey); err != nil {
		return nil, fmt.Errorf("local data saving error: %w", err)
	}
	return p, nil
}

// saveLocalData persists email and API key in a single transaction.
func (a *authService) saveLocalData(ctx context.Context, email, apiKey string) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, keyEmail, []byte(email)); err != nil {
			return err
		}
		return repo.Set(ctx, keyAPIKey, []byte(apiKey))
	})
}

func (a *authService) Me(ctx context.Context) (*client.Profile, error) {
	return a.client.Me(ctx)
}

// Stored returns client.ErrLocalDataNotAvailable when no login was saved.
func (a *authService) Stored(ctx context.Context) (string, string, error) {
	repo := metadata.NewSQLiteRepository(a.db)
	email, err := repo.Get(ctx, keyEmail)
	if err != nil {
		return "", "", err
	}
	apiKey, err := repo.Get(ctx, keyAPIKey)
	if err != nil {
		return "", "", err
	}
	if len(apiKey) == 0 {
		return "", "", client.ErrLocalDataNotAvailable
	}
	return string(email), string(apiKey), nil
}

// Logout wipes local data even when the server cannot be reached.
func (a *authService) Logout(ctx context.Context) error {
	remoteErr := a.client.Logout(ctx)
	if err := metadata.NewSQLiteRepository(a.db).Clear(ctx); err != nil {
		return err
	}
	return remoteErr
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}
