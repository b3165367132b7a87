// Package api exposes the backend ingestion service and the edge delivery
// intake over HTTP using gin.
//
// Backend routes:
//
//	POST /upload_voucher   bearer    form: client_id, data_type, company_name, payload
//	GET  /tasks            bearer    caller's pending tasks
//	POST /sync_status      bearer    json: client_id, last_sync, tally_access_ok
//	POST /clients          admin     json: client_id, company_name
//	GET  /dashboard        admin     clients with rejected missing fields
//	GET  /health
//	GET  /metrics
//
// Admin routes exist only when an admin token is configured.
//
// Edge routes:
//
//	POST /deliver?kind=xml raw body is the payload
//	GET  /health
//	GET  /metrics
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/tallybridge/internal/delivery"
	"github.com/roach88/tallybridge/internal/ingest"
)

// Pinger reports storage health. Implemented by *store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deliverer is the edge foreground path. Implemented by *delivery.Front.
type Deliverer interface {
	DeliverOrQueue(ctx context.Context, payload, kind string) (delivery.Outcome, error)
}

type routerConfig struct {
	adminToken     string
	logger         *slog.Logger
	metricsHandler http.Handler
	maxBodyBytes   int64
}

// Option configures a router.
type Option func(*routerConfig)

// WithAdminToken enables the admin routes, guarded by token.
func WithAdminToken(token string) Option {
	return func(c *routerConfig) {
		c.adminToken = token
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *routerConfig) {
		c.logger = l
	}
}

// WithMetricsHandler replaces the /metrics handler.
//
// Default: promhttp.Handler() over the default registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(c *routerConfig) {
		c.metricsHandler = h
	}
}

// WithMaxBodyBytes caps request bodies.
//
// Default: 16 MiB
func WithMaxBodyBytes(n int64) Option {
	return func(c *routerConfig) {
		c.maxBodyBytes = n
	}
}

func newConfig(opts []Option) routerConfig {
	cfg := routerConfig{
		logger:         slog.Default(),
		metricsHandler: promhttp.Handler(),
		maxBodyBytes:   16 << 20,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func newEngine(cfg routerConfig, health Pinger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), instrument(), requestLogger(cfg.logger), limitBody(cfg.maxBodyBytes))

	r.GET("/health", healthHandler(health))
	r.GET("/metrics", gin.WrapH(cfg.metricsHandler))
	return r
}

// NewBackendRouter builds the ingestion API.
func NewBackendRouter(svc *ingest.Service, health Pinger, opts ...Option) *gin.Engine {
	cfg := newConfig(opts)
	r := newEngine(cfg, health)
	h := &backendHandlers{svc: svc, logger: cfg.logger}

	authed := r.Group("/", authMiddleware(svc, cfg.logger))
	authed.POST("/upload_voucher", h.uploadVoucher)
	authed.GET("/tasks", h.listTasks)
	authed.POST("/sync_status", h.syncStatus)

	if cfg.adminToken != "" {
		admin := r.Group("/", adminMiddleware(cfg.adminToken))
		admin.POST("/clients", h.registerClient)
		admin.GET("/dashboard", h.dashboard)
	}

	return r
}

// NewEdgeRouter builds the local delivery intake.
func NewEdgeRouter(front Deliverer, health Pinger, opts ...Option) *gin.Engine {
	cfg := newConfig(opts)
	r := newEngine(cfg, health)
	h := &edgeHandlers{front: front, logger: cfg.logger}

	r.POST("/deliver", h.deliver)
	return r
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

func healthHandler(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := p.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
