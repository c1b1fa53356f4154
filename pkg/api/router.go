package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/equicloud/equicloud/internal/api/handlers"
	apimiddleware "github.com/equicloud/equicloud/internal/api/middleware"
	"github.com/equicloud/equicloud/internal/logger"
	"github.com/equicloud/equicloud/pkg/cloudsync/data"
	"github.com/equicloud/equicloud/pkg/cloudsync/deltasync"
	"github.com/equicloud/equicloud/pkg/cloudsync/settings"
	"github.com/equicloud/equicloud/pkg/cloudsync/store"
	"github.com/equicloud/equicloud/pkg/config"
	"github.com/equicloud/equicloud/pkg/metrics"
	"github.com/equicloud/equicloud/pkg/oauth"
)

// bodySlack is headroom on top of the settings cap for request framing.
const bodySlack = 4096

// Deps carries the services the router exposes over HTTP.
type Deps struct {
	Store    store.Store
	Settings *settings.Service
	Data     *data.Service
	Engine   *deltasync.Engine
	OAuth    *oauth.Client

	// Metrics is optional; nil disables Prometheus instrumentation.
	Metrics *metrics.HTTPMetrics
}

// NewRouter creates and configures the chi router with all middleware
// and routes.
//
// Routes:
//   - GET  /health - Liveness probe
//   - GET  / - Service index, or a 301 when a redirect URL is configured
//   - GET  /metrics - Aggregate usage counters (gated by config)
//   - GET  /metrics/prometheus - Prometheus exposition (when instrumented)
//   - GET  /v1/oauth/settings - OAuth client configuration
//   - GET  /v1/oauth/callback - OAuth code exchange
//   - GET  /v1 - Account info (authenticated)
//   - DELETE /v1 - Account wipe (authenticated)
//   - HEAD/GET/PUT/DELETE /v1/settings - Settings blob (authenticated)
//   - GET  /v2/manifest - Data manifest (authenticated)
//   - GET/PUT/DELETE /v2/data/* - Per-key data (authenticated)
//   - POST /v2/sync - Delta sync (authenticated)
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(corsHandler(cfg.Server.CORSAllowedOrigins))
	r.Use(deps.Metrics.Instrument)
	r.Use(maxBody(cfg.Storage.MaxBackupBytes + bodySlack))

	if cfg.RateLimit.Enabled {
		limiter := apimiddleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
		limiter.OnReject = deps.Metrics.ObserveRateLimited
		r.Use(limiter.Handler)
	}

	systemHandler := handlers.NewSystemHandler(deps.Store, cfg.Metrics.Enabled, cfg.Server.RootRedirectURL)
	oauthHandler := handlers.NewOAuthHandler(deps.OAuth, cfg.Discord.ClientID, cfg.Server.RedirectURI())
	accountHandler := handlers.NewAccountHandler(deps.Settings, deps.Data)
	settingsHandler := handlers.NewSettingsHandler(deps.Settings, cfg.Storage.MaxBackupBytes)
	dataHandler := handlers.NewDataHandler(deps.Data, handlers.DataLimits{
		MaxValueBytes:          cfg.Storage.MaxValueBytes,
		MaxDatastoreValueBytes: cfg.Storage.MaxDatastoreValueBytes,
		MaxTotalBytes:          cfg.Storage.MaxBackupBytes,
		DatastoreEnabled:       cfg.Storage.DatastoreEnabled,
	})
	syncHandler := handlers.NewSyncHandler(deps.Engine)

	// Public routes
	r.Get("/health", systemHandler.Health)
	r.Get("/", systemHandler.Root)
	r.Get("/metrics", systemHandler.Metrics)
	if promHandler := deps.Metrics.Handler(); promHandler != nil {
		r.Method(http.MethodGet, "/metrics/prometheus", promHandler)
	}
	r.Route("/v1/oauth", func(r chi.Router) {
		r.Get("/settings", oauthHandler.Settings)
		r.Get("/callback", oauthHandler.Callback)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(apimiddleware.BearerAuth)

		r.Get("/v1", accountHandler.Info)
		r.Delete("/v1", accountHandler.Delete)

		r.Route("/v1/settings", func(r chi.Router) {
			r.Head("/", settingsHandler.Head)
			r.Get("/", settingsHandler.Get)
			r.Put("/", settingsHandler.Put)
			r.Delete("/", settingsHandler.Delete)
		})

		r.Get("/v2/manifest", dataHandler.Manifest)
		r.Route("/v2/data", func(r chi.Router) {
			r.Get("/*", dataHandler.Get)
			r.Put("/*", dataHandler.Put)
			r.Delete("/*", dataHandler.Delete)
		})
		r.Post("/v2/sync", syncHandler.Sync)
	})

	return r
}

// corsHandler builds the CORS middleware. An empty allow-list keeps the
// permissive behavior clients relied on before origins were configurable.
func corsHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPut,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", "If-None-Match"},
		ExposedHeaders: []string{"ETag", "X-Version"},
	})
	return c.Handler
}

// maxBody caps request bodies so a misbehaving client cannot stream an
// unbounded upload. Individual handlers enforce their own tighter caps.
func maxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger is a custom middleware that logs requests using the
// internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimiddleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		// Log healthcheck requests at DEBUG to avoid polluting logs
		if r.URL.Path == "/health" {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
