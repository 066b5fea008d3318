package middleware

import (
	"context"
	"strings"

	"github.com/erp/dre/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Profiling label keys attached to every sampled request
const (
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelController = "controller"
	ProfilingLabelOwner      = "owner"
)

// ProfilingConfig holds configuration for the profiling middleware.
type ProfilingConfig struct {
	Enabled          bool
	SkipPaths        []string
	SkipPathPrefixes []string
	// IncludeOwner adds the X-Owner value as a label. Owner counts are small
	// in practice; leave it off when they are not.
	IncludeOwner bool
}

// DefaultProfilingConfig skips the system probes.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled: true,
		SkipPaths: []string{
			"/health",
			"/metrics",
		},
		SkipPathPrefixes: []string{
			"/api/v1/system",
		},
	}
}

// Profiling returns profiling middleware with default configuration.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig runs the rest of the chain under Pyroscope labels so
// profiles can be filtered by route, method and resource (templates, reports,
// ledger, ...).
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if skipProfiling(cfg, c.Request.URL.Path) {
			c.Next()
			return
		}

		telemetry.WithProfilingLabels(c.Request.Context(), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		}, profilingLabels(c, cfg.IncludeOwner)...)
	}
}

func skipProfiling(cfg ProfilingConfig, path string) bool {
	for _, p := range cfg.SkipPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range cfg.SkipPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// profilingLabels returns label key/value pairs; empty values are omitted.
func profilingLabels(c *gin.Context, includeOwner bool) []string {
	labels := make([]string, 0, 8)
	add := func(k, v string) {
		if v != "" {
			labels = append(labels, k, v)
		}
	}

	route := c.FullPath()
	add(ProfilingLabelMethod, c.Request.Method)
	add(ProfilingLabelRoute, route)
	add(ProfilingLabelController, controllerFromRoute(route))
	if includeOwner {
		add(ProfilingLabelOwner, GetOwner(c))
	}
	return labels
}

// controllerFromRoute derives the resource of a route pattern.
// "/api/v1/dre/templates/:id" gives "templates".
func controllerFromRoute(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || part == "dre" || isVersionSegment(part) {
			continue
		}
		if strings.HasPrefix(part, ":") || strings.HasPrefix(part, "*") {
			continue
		}
		return part
	}
	return ""
}

func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for i := 1; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}
