package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dreapp "github.com/erp/dre/internal/application/dre"
	"github.com/erp/dre/internal/infrastructure/cache"
	"github.com/erp/dre/internal/infrastructure/config"
	"github.com/erp/dre/internal/infrastructure/csvimport"
	"github.com/erp/dre/internal/infrastructure/logger"
	"github.com/erp/dre/internal/infrastructure/persistence"
	"github.com/erp/dre/internal/infrastructure/scheduler"
	"github.com/erp/dre/internal/infrastructure/telemetry"
	"github.com/erp/dre/internal/interfaces/http/handler"
	"github.com/erp/dre/internal/interfaces/http/middleware"
	"github.com/erp/dre/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	// The OTLP log bridge needs a logger of its own before the main one exists
	bootLog, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		return err
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    serviceName,
		LoggerProvider: logProvider,
		Level:          logger.ParseLevel(cfg.Log.Level),
	}))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting DRE service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}

	profilerCfg := telemetry.DefaultProfilerConfig(cfg.Telemetry.PyroscopeURL, serviceName)
	profilerCfg.Enabled = cfg.Telemetry.ProfilingEnabled
	profiler, err := telemetry.NewProfiler(profilerCfg, log)
	if err != nil {
		return err
	}
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles unavailable", zap.Error(err))
		} else if tracerProvider.IsSpanProfilesEnabled() {
			log.Info("Span profiles enabled")
		}
	}

	reportMetrics, err := telemetry.NewReportMetrics(meterProvider.Meter("dre"))
	if err != nil {
		return err
	}

	// Database
	dbTracingCfg := telemetry.DefaultDBTracingConfig()
	dbTracingCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		dbTracingCfg.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	}
	dbTracing := telemetry.NewDBTracingPlugin(dbTracingCfg, log)
	db, err := persistence.NewDatabase(&cfg.Database, log,
		persistence.WithLogLevel(logger.MapGormLogLevel(cfg.Log.Level)),
		persistence.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		persistence.WithTracing(dbTracing),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Settings store
	settingsStore, closeSettings, err := cache.NewSettingsStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeSettings()
	}()

	// Initialize repositories
	templateRepo := persistence.NewGormTemplateRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	runRepo := persistence.NewGormRunRepository(db.DB)

	// Initialize application services
	defaults := dreapp.ReportDefaults{
		Currency:         cfg.Report.DefaultCurrency,
		Locale:           cfg.Report.DefaultLocale,
		Precision:        cfg.Report.DefaultPrecision,
		DataSource:       cfg.Report.DataSource,
		LedgerFetchLimit: cfg.Report.LedgerFetchLimit,
		BatchConcurrency: cfg.Report.BatchConcurrency,
	}
	reportService := dreapp.NewReportService(templateRepo, ledgerRepo, settingsStore, defaults, log,
		dreapp.WithReportMetrics(reportMetrics))
	templateService := dreapp.NewTemplateService(templateRepo, log)
	settingsService := dreapp.NewSettingsService(settingsStore, log)
	ledgerService := dreapp.NewLedgerService(ledgerRepo, csvimport.NewLedgerImporter(
		csvimport.WithMaxFileSize(cfg.HTTP.MaxBodySize),
	), log)

	// Scheduler
	sched := scheduler.NewScheduler(scheduler.Config{
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:        cfg.Scheduler.JobTimeout,
		RetryDelay:        cfg.Scheduler.RetryDelay,
	}, dreapp.NewScheduledReportExecutor(reportService), runRepo, log)
	sched.ObserveQueueDepth(func(depth int) {
		reportMetrics.RecordQueueDepth(context.Background(), depth)
	})
	scheduleService := dreapp.NewScheduleService(templateRepo, runRepo, sched, reportService,
		cfg.Scheduler.RetryAttempts, log)

	var trigger *scheduler.CronTrigger
	if cfg.Scheduler.Enabled {
		hour, minute, err := scheduler.ParseCronSchedule(cfg.Scheduler.CronSchedule)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		planner := dreapp.NewSchedulePlanner(templateRepo, defaults, cfg.Scheduler.RetryAttempts, log)
		trigger = scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
			Hour:          hour,
			Minute:        minute,
			CheckInterval: cfg.Scheduler.PollInterval,
		}, sched, runRepo, planner, log)
		if err := trigger.Start(ctx); err != nil {
			return err
		}
	}

	// Rate limiting
	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		go limiter.Run(ctx)
	}

	// HTTP
	checks := map[string]handler.HealthCheck{
		"database": func(context.Context) error { return db.Ping() },
	}
	if pinger, ok := settingsStore.(interface{ Ping(context.Context) error }); ok {
		checks["redis"] = pinger.Ping
	}

	engine, err := router.NewEngine(router.EngineOptions{
		HTTP:             cfg.HTTP,
		Logger:           log,
		ServiceName:      serviceName,
		TracingEnabled:   tracerProvider.IsEnabled(),
		ProfilingEnabled: profiler.IsEnabled(),
		Meter:            meterProvider.Meter("dre.http"),
		RateLimiter:      limiter,
	}, router.Handlers{
		Reports:   handler.NewReportHandler(reportService),
		Templates: handler.NewTemplateHandler(templateService),
		Settings:  handler.NewSettingsHandler(settingsService),
		Ledger:    handler.NewLedgerHandler(ledgerService),
		Schedules: handler.NewScheduleHandler(scheduleService),
		System:    handler.NewSystemHandler(cfg.App.Name, telemetry.ServiceVersion, checks),
	})
	if err != nil {
		return err
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serverErr:
		if err != nil {
			log.Error("Server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Warn("Cron trigger did not stop cleanly", zap.Error(err))
		}
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn("Scheduler did not stop cleanly", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Profiler did not stop cleanly", zap.Error(err))
	}
	_ = meterProvider.Shutdown(shutdownCtx)
	_ = tracerProvider.Shutdown(shutdownCtx)
	_ = logProvider.Shutdown(shutdownCtx)

	log.Info("Server exited gracefully")
	return nil
}
