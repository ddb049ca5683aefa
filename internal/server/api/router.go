// Package api is the HTTP surface of cutout: account routes, the
// API-key protected removal endpoint, bulk batches, the mask editor and the
// static front end.
package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/cutout/internal/logging"
	"github.com/dmitrijs2005/cutout/internal/server/bulk"
	"github.com/dmitrijs2005/cutout/internal/server/rembg"
	"github.com/dmitrijs2005/cutout/internal/server/services"
	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultMaxUploadBytes = 20 << 20

type RouterConfig struct {
	Users    *services.UserService
	APIKeys  *services.APIKeyGateway
	Remover  rembg.Remover
	Batches  *bulk.Registry
	Exporter *services.ExportService
	Log      logging.Logger

	SessionTTL     time.Duration
	SecureCookies  bool
	MaxUploadBytes int64
	MaxBatchItems  int
	FrontendDir    string

	Secure      func(http.Handler) http.Handler
	APIKeyLimit func(http.Handler) http.Handler
	Metrics     bool
}

// API holds the dependencies shared by every handler.
type API struct {
	users    *services.UserService
	apiKeys  *services.APIKeyGateway
	remover  rembg.Remover
	batches  *bulk.Registry
	exporter *services.ExportService
	log      logging.Logger

	sessionTTL     time.Duration
	secureCookies  bool
	maxUploadBytes int64
	maxBatchItems  int
}

func NewRouter(cfg RouterConfig) http.Handler {
	a := &API{
		users:          cfg.Users,
		apiKeys:        cfg.APIKeys,
		remover:        cfg.Remover,
		batches:        cfg.Batches,
		exporter:       cfg.Exporter,
		log:            cfg.Log.With("module", "api"),
		sessionTTL:     cfg.SessionTTL,
		secureCookies:  cfg.SecureCookies,
		maxUploadBytes: cfg.MaxUploadBytes,
		maxBatchItems:  max(cfg.MaxBatchItems, 1),
	}
	if a.maxUploadBytes <= 0 {
		a.maxUploadBytes = defaultMaxUploadBytes
	}
	if a.sessionTTL <= 0 {
		a.sessionTTL = time.Hour
	}

	r := chi.NewRouter()
	r.Use(chimid.RequestID)
	r.Use(chimid.RealIP)
	r.Use(loggerMiddleware(a.log))
	r.Use(chimid.Recoverer)
	if cfg.Metrics {
		r.Use(PrometheusMiddleware)
	}
	if cfg.Secure != nil {
		r.Use(cfg.Secure)
	}

	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.register)
			r.Post("/login", a.login)
			r.Post("/logout", a.logout)
		})

		r.Get("/users/me", a.me)

		r.Post("/remove-background", a.removeBackground)

		r.Route("/batches", func(r chi.Router) {
			r.Post("/", a.submitBatch)
			r.Get("/{id}", a.getBatch)
			r.Delete("/{id}", a.clearBatch)
			r.Get("/{id}/events", a.batchEvents)
			r.Get("/{id}/items/{index}", a.batchItem)
			r.Get("/{id}/archive", a.batchArchive)
			r.Post("/{id}/export", a.exportBatch)
		})

		r.Post("/editor/apply", a.applyEdits)

		r.Route("/v1", func(r chi.Router) {
			if cfg.APIKeyLimit != nil {
				r.Use(cfg.APIKeyLimit)
			}
			r.Post("/remove-background", a.removeBackgroundWithKey)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeMessage(w, http.StatusNotFound, msgNotFound)
		})
	})

	if h := frontendHandler(cfg.FrontendDir); h != nil {
		r.Handle("/*", h)
	}

	return r
}

// frontendHandler serves the built SPA with a fallback to index.html, or
// nil when distDir has no index.html.
func frontendHandler(distDir string) http.Handler {
	distDir = strings.TrimSpace(distDir)
	if distDir == "" {
		return nil
	}
	indexPath := filepath.Join(distDir, "index.html")
	if _, err := os.Stat(indexPath); err != nil {
		return nil
	}

	fileServer := http.FileServer(http.Dir(distDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cleanPath := path.Clean(r.URL.Path)
		if cleanPath == "." || cleanPath == "/" {
			http.ServeFile(w, r, indexPath)
			return
		}

		fullPath := filepath.Join(distDir, strings.TrimPrefix(cleanPath, "/"))
		info, err := os.Stat(fullPath)
		if err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}

		// SPA fallback.
		http.ServeFile(w, r, indexPath)
	})
}
