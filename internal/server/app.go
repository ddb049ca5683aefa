// Package server wires the cutout server together: store, services, the
// bulk processor and the HTTP surface. It owns graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/cutout/internal/logging"
	"github.com/dmitrijs2005/cutout/internal/server/api"
	"github.com/dmitrijs2005/cutout/internal/server/bulk"
	"github.com/dmitrijs2005/cutout/internal/server/config"
	"github.com/dmitrijs2005/cutout/internal/server/rembg"
	"github.com/dmitrijs2005/cutout/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cutout/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	batches *bulk.Registry
	server  *api.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(c.LogFormat, c.LogLevel, os.Stdout)

	db, m, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if c.GeminiAPIKey == "" {
		logger.Warn(ctx, "GEMINI_API_KEY is not set, background removal calls will fail")
	}
	remover := rembg.NewClient(rembg.Config{
		APIKey:  c.GeminiAPIKey,
		BaseURL: c.GeminiBaseURL,
		Model:   c.GeminiModel,
		Timeout: c.GeminiTimeout,
	}, rembg.WithMaxInputDimension(c.MaxInputDimension))

	batches := bulk.NewRegistry(bulk.NewProcessor(remover, logger), logger, c.BatchTTL, c.BatchMaxItems)

	limit, err := api.NewAPIKeyRateLimiter(c.APIRateLimit)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rate limit %q: %w", c.APIRateLimit, err)
	}

	handler := api.NewRouter(api.RouterConfig{
		Users:          services.NewUserService(db, m, c),
		APIKeys:        services.NewAPIKeyGateway(db, m),
		Remover:        remover,
		Batches:        batches,
		Exporter:       services.NewExportService(c),
		Log:            logger,
		SessionTTL:     c.SessionTokenValidityDuration,
		SecureCookies:  c.IsProduction(),
		MaxUploadBytes: c.MaxUploadBytes,
		MaxBatchItems:  c.BatchMaxItems,
		FrontendDir:    c.FrontendDistDir,
		Secure:         api.NewSecure(api.SecureOptions(!c.IsProduction())),
		APIKeyLimit:    limit,
		Metrics:        true,
	})

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		batches: batches,
		server:  api.NewServer(c.HTTPAddr, logger, handler),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// stops the batch registry and closes the store.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "env", app.config.Env, "addr", app.config.HTTPAddr)
	app.initSignalHandler(cancelFunc)

	if err := app.batches.Start(); err != nil {
		return fmt.Errorf("batch registry: %w", err)
	}

	runErr := app.server.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.batches.Stop(stopCtx); err != nil {
		app.logger.Error(ctx, "batch registry stop", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
	return runErr
}
