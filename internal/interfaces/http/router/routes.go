package router

import (
	"fmt"

	"github.com/erp/dre/internal/infrastructure/config"
	"github.com/erp/dre/internal/infrastructure/logger"
	"github.com/erp/dre/internal/interfaces/http/handler"
	"github.com/erp/dre/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers mounted by NewEngine
type Handlers struct {
	Reports   *handler.ReportHandler
	Templates *handler.TemplateHandler
	Settings  *handler.SettingsHandler
	Ledger    *handler.LedgerHandler
	Schedules *handler.ScheduleHandler
	System    *handler.SystemHandler
}

// EngineOptions configures the middleware chain of NewEngine
type EngineOptions struct {
	HTTP             config.HTTPConfig
	Logger           *zap.Logger
	ServiceName      string
	TracingEnabled   bool
	ProfilingEnabled bool
	// Meter records HTTP metrics; nil disables them.
	Meter metric.Meter
	// RateLimiter throttles the report endpoints; nil disables throttling.
	RateLimiter *middleware.RateLimiter
}

// DREGroup mounts the report, template, settings, ledger and schedule
// endpoints under /dre.
func DREGroup(h Handlers) *DomainGroup {
	dre := NewDomainGroup("dre", "/dre")

	dre.Group("reports", "/reports").
		POST("", h.Reports.Generate).
		POST("/preview", h.Reports.Preview).
		POST("/batch", h.Reports.GenerateBatch)

	dre.Group("templates", "/templates").
		POST("/validate", h.Templates.Validate).
		GET("", h.Templates.List).
		POST("", h.Templates.Create).
		GET("/:id", h.Templates.Get).
		PUT("/:id", h.Templates.Update).
		DELETE("/:id", h.Templates.Delete).
		GET("/:id/runs", h.Schedules.Recent)

	dre.Group("settings", "/settings").
		GET("/:owner", h.Settings.Get).
		PUT("/:owner", h.Settings.Update)

	dre.Group("ledger", "/ledger").
		POST("/import", h.Ledger.Import)

	dre.Group("schedules", "/schedules").
		POST("", h.Schedules.Submit).
		GET("/:id", h.Schedules.Get)

	return dre
}

// SystemGroup mounts the probes under /system
func SystemGroup(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "/system").
		GET("/ping", h.Ping).
		GET("/info", h.GetSystemInfo).
		GET("/health", h.Health)
}

// NewEngine builds the gin engine with the full middleware chain and every
// route mounted under /api/v1.
func NewEngine(opts EngineOptions, h Handlers) (*gin.Engine, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = opts.HTTP.CORSAllowOrigins
	if len(opts.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = opts.HTTP.CORSAllowMethods
	}
	if len(opts.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = opts.HTTP.CORSAllowHeaders
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Owner(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.CORSWithConfig(cors),
		middleware.Secure(),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: opts.ServiceName,
			Enabled:     opts.TracingEnabled,
		}),
		middleware.SpanEnricher(),
		middleware.HTTPMetrics(opts.Meter),
		middleware.ProfilingWithConfig(middleware.ProfilingConfig{
			Enabled:          opts.ProfilingEnabled,
			SkipPathPrefixes: []string{"/api/v1/system"},
		}),
		middleware.BodyLimit(opts.HTTP.MaxBodySize),
	)

	dre := DREGroup(h).Use(middleware.Timeout(opts.HTTP.RequestTimeout))
	if opts.RateLimiter != nil {
		dre.Use(middleware.RateLimit(opts.RateLimiter))
	}

	NewRouter(engine).
		Register(SystemGroup(h.System)).
		Register(dre).
		Setup()

	return engine, nil
}
