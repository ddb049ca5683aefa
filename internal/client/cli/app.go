package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/cutout/internal/client/client"
	"github.com/dmitrijs2005/cutout/internal/client/config"
	"github.com/dmitrijs2005/cutout/internal/client/services"
	"github.com/dmitrijs2005/cutout/internal/common"
)

type App struct {
	config  *config.Config
	db      *sql.DB
	auth    services.AuthService
	remover services.RemoveService
	reader  *bufio.Reader
	out     io.Writer
}

// NewApp opens the local store and builds the services. in feeds prompts,
// out receives all user-facing output.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out io.Writer) (*App, error) {
	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	apiClient, err := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{
		config:  c,
		db:      db,
		auth:    services.NewAuthService(apiClient, db),
		remover: services.NewRemoveService(apiClient),
		reader:  bufio.NewReader(in),
		out:     out,
	}, nil
}

func (a *App) Close() error {
	return a.db.Close()
}

func (a *App) isLoggedIn() bool {
	_, _, err := a.auth.Stored(context.Background())
	return err == nil
}

func (a *App) status() string {
	email, _, err := a.auth.Stored(context.Background())
	if err != nil {
		return ""
	}
	return "(" + email + ")"
}

// Register prompts for email and password and creates an account.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	id, err := a.auth.Register(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "User created successfully (id %d)\n", id)
	return nil
}

// Login prompts for credentials and remembers the account's API key.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	p, err := a.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", p.Email)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil && !errors.Is(err, client.ErrUnauthorized) {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// Me prints the stored account. The server is not contacted: the session
// cookie only lives as long as the process.
func (a *App) Me(ctx context.Context) error {
	email, apiKey, err := a.auth.Stored(ctx)
	if err != nil {
		if errors.Is(err, client.ErrLocalDataNotAvailable) {
			return errors.New("not logged in")
		}
		return err
	}
	fmt.Fprintf(a.out, "Email:   %s\nAPI key: %s\n", email, apiKey)
	return nil
}

// Remove processes every file. apiKey overrides the stored key. Failures
// are reported per file; the first one is returned.
func (a *App) Remove(ctx context.Context, files []string, outDir, apiKey string) error {
	if len(files) == 0 {
		return errors.New("usage: remove <files...>")
	}
	if apiKey == "" {
		_, stored, err := a.auth.Stored(ctx)
		if err != nil {
			if errors.Is(err, client.ErrLocalDataNotAvailable) {
				return errors.New("not logged in: run login or pass --api-key")
			}
			return err
		}
		apiKey = stored
	}

	var firstErr error
	for _, f := range files {
		dst, err := a.remover.Remove(ctx, apiKey, f, outDir)
		if err != nil {
			fmt.Fprintf(a.out, "%s: failed: %v\n", f, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Fprintf(a.out, "%s -> %s\n", f, dst)
	}
	return firstErr
}
