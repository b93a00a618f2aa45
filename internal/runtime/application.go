// Package runtime assembles the gateway from its parts and manages the
// process lifecycle.
package runtime

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/origin-gateway/internal/audit"
	"github.com/R3E-Network/origin-gateway/internal/config"
	"github.com/R3E-Network/origin-gateway/internal/httpapi"
	"github.com/R3E-Network/origin-gateway/internal/httpserver"
	"github.com/R3E-Network/origin-gateway/internal/logging"
	"github.com/R3E-Network/origin-gateway/internal/metrics"
	"github.com/R3E-Network/origin-gateway/internal/middleware"
	"github.com/R3E-Network/origin-gateway/internal/originpolicy"
	"github.com/R3E-Network/origin-gateway/internal/platform/database"
	"github.com/R3E-Network/origin-gateway/internal/platform/migrations"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Application owns the gateway's long-lived components.
type Application struct {
	cfg      *config.Config
	log      *logging.Logger
	provider *originpolicy.Provider
	server   *httpserver.Server
	auditLog *audit.Log
	hub      *httpapi.Hub
	pruner   *audit.Pruner
	limiter  *middleware.RateLimiter
	db       *sql.DB
	fileSink *audit.FileSink
	redis    *redis.Client
}

// NewApplication wires the gateway from configuration. It connects to
// optional backends (audit database, redis policy source) and fails when
// one is configured but unreachable.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logging.New("origin-gateway", cfg.Logging.Level, cfg.Logging.Format)

	app := &Application{
		cfg: cfg,
		log: log,
	}

	source, err := app.buildSource()
	if err != nil {
		return nil, err
	}
	app.provider = originpolicy.NewProvider(source, originpolicy.DefaultOrigins, log)
	if _, err := app.provider.Reload(ctx); err != nil {
		// The seeded defaults stay live; dynamic sources may recover on a
		// later reload.
		log.WithError(err).Warn("initial allowlist load failed, serving defaults")
	}

	var sinks []audit.Sink
	app.fileSink, err = audit.NewFileSink(cfg.Audit.FilePath)
	if err != nil {
		return nil, err
	}
	if app.fileSink != nil {
		sinks = append(sinks, app.fileSink)
	}

	if cfg.Audit.DatabaseURL != "" {
		app.db, err = database.Open(ctx, cfg.Audit.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("audit database: %w", err)
		}
		if err := migrations.Apply(ctx, app.db); err != nil {
			return nil, fmt.Errorf("audit database: %w", err)
		}
		sinks = append(sinks, audit.NewPostgresSink(app.db))

		app.pruner, err = audit.NewPruner(app.db, cfg.Audit.RetentionDays, cfg.Audit.PruneSchedule, log)
		if err != nil {
			return nil, err
		}
	}

	app.auditLog = audit.NewLog(cfg.Audit.BufferSize, sinks...)
	app.hub = httpapi.NewHub(log)

	secret := resolveJWTSecret(cfg, log)

	handler := httpapi.NewHandler(httpapi.Options{
		Provider:         app.provider,
		Audit:            app.auditLog,
		Hub:              app.hub,
		Logger:           log,
		Users:            cfg.Auth.Users,
		JWTSecret:        secret,
		TokenTTL:         cfg.Auth.TokenTTL,
		AuthEnabled:      cfg.Auth.Enabled,
		AllowCredentials: cfg.CORS.AllowCredentials,
		Version:          Version,
	})

	chain := app.buildMiddleware(handler)
	app.server = httpserver.New(cfg.Server, log, chain)
	return app, nil
}

// buildMiddleware wraps the handler inside out: rate limiting closest to
// the handler, then CORS so denied preflights and limit errors still get
// policy treatment, then tracing and metrics outermost.
func (a *Application) buildMiddleware(handler http.Handler) http.Handler {
	chain := handler

	if a.cfg.RateLimit.Enabled {
		a.limiter = middleware.NewRateLimiter(a.cfg.RateLimit.RequestsPerSecond, a.cfg.RateLimit.Burst, a.log)
		chain = a.limiter.Handler(chain)
	}

	cors := middleware.NewCORSMiddleware(a.provider, middleware.CORSOptions{
		AllowCredentials: a.cfg.CORS.AllowCredentials,
		AllowedMethods:   a.cfg.CORS.AllowedMethods,
		AllowedHeaders:   a.cfg.CORS.AllowedHeaders,
		ExposedHeaders:   a.cfg.CORS.ExposedHeaders,
		MaxAge:           a.cfg.CORS.MaxAge,
	}, a.log, &decisionRecorder{
		audit:         a.auditLog,
		hub:           a.hub,
		recordAllowed: a.cfg.Audit.RecordAllowed,
	})
	chain = cors.Handler(chain)

	tracing := middleware.NewTracingMiddleware(a.log)
	chain = tracing.Handler(chain)

	return metrics.InstrumentHandler(chain)
}

func (a *Application) buildSource() (originpolicy.Source, error) {
	switch a.cfg.Policy.Source {
	case "static":
		return originpolicy.StaticSource{Raw: a.cfg.CORS.AllowedOrigins}, nil
	case "env":
		return originpolicy.EnvSource{Key: a.cfg.Policy.EnvKey}, nil
	case "file":
		return originpolicy.FileSource{Path: a.cfg.Policy.File}, nil
	case "redis":
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Policy.RedisAddr,
			Password: a.cfg.Policy.RedisPassword,
			DB:       a.cfg.Policy.RedisDB,
		})
		return originpolicy.RedisSource{Client: a.redis, Key: a.cfg.Policy.RedisKey}, nil
	default:
		return nil, fmt.Errorf("unknown policy source %q", a.cfg.Policy.Source)
	}
}

// resolveJWTSecret returns the configured secret, or generates an
// ephemeral one so a bare deployment still boots. Tokens signed with an
// ephemeral secret die with the process.
func resolveJWTSecret(cfg *config.Config, log *logging.Logger) []byte {
	if cfg.Auth.JWTSecret != "" {
		return []byte(cfg.Auth.JWTSecret)
	}
	if !cfg.Auth.Enabled {
		return nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.WithError(err).Error("failed to generate ephemeral jwt secret")
		return []byte("origin-gateway-fallback-secret")
	}
	log.Warn("JWT_SECRET not set, generated an ephemeral secret; issued tokens will not survive a restart")
	return []byte(hex.EncodeToString(buf))
}

// Run starts the HTTP server and the background loops (allowlist
// watcher, limiter cleanup, audit pruner), blocking until ctx is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if a.cfg.Policy.RefreshInterval > 0 {
		go a.provider.Watch(watchCtx, a.cfg.Policy.RefreshInterval)
	}
	if a.limiter != nil {
		a.limiter.StartCleanup(watchCtx, time.Hour, 10000)
	}
	if a.pruner != nil {
		a.pruner.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// Reload re-derives the allowlist from the configured source. Wired to
// SIGHUP and the admin API.
func (a *Application) Reload(ctx context.Context) error {
	_, err := a.provider.Reload(ctx)
	return err
}

func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.log.Info("shutting down")
	err := a.server.Shutdown(ctx)

	a.hub.Close()
	if a.pruner != nil {
		a.pruner.Stop()
	}
	if a.fileSink != nil {
		if closeErr := a.fileSink.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	if a.db != nil {
		if closeErr := a.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	if a.redis != nil {
		if closeErr := a.redis.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// decisionRecorder feeds denied (and optionally allowed) cross-origin
// decisions into the audit trail and the live stream.
type decisionRecorder struct {
	audit         *audit.Log
	hub           *httpapi.Hub
	recordAllowed bool
}

func (r *decisionRecorder) RecordDecision(req *http.Request, d originpolicy.Decision) {
	if d.Allowed && !r.recordAllowed {
		return
	}
	entry := audit.NewEntry(req, d)
	r.audit.Add(entry)
	r.hub.Publish(entry)
}
