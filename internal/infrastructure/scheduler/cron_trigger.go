package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/erp/dre/internal/domain/dre"
	"go.uber.org/zap"
)

// RunPlanner decides which runs the daily trigger creates
type RunPlanner interface {
	PlanDaily(ctx context.Context, day time.Time) ([]*dre.ReportRun, error)
}

// CronTriggerConfig holds configuration for the cron trigger
type CronTriggerConfig struct {
	Hour   int
	Minute int
	// CheckInterval is how often due runs are dispatched and the daily time checked
	CheckInterval time.Duration
}

// DefaultCronTriggerConfig runs the daily plan at 02:00 and checks every minute
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{Hour: 2, Minute: 0, CheckInterval: time.Minute}
}

// ParseCronSchedule reads the minute and hour fields of "minute hour * * *".
// An empty expression yields 02:00.
func ParseCronSchedule(expr string) (hour, minute int, err error) {
	hour, minute = 2, 0
	parts := strings.Fields(expr)
	if len(parts) < 2 {
		return hour, minute, nil
	}

	parse := func(field string, def, max int) (int, error) {
		if field == "*" {
			return def, nil
		}
		v, err := strconv.Atoi(field)
		if err != nil || v < 0 || v > max {
			return 0, fmt.Errorf("%w: cron field %q out of range 0-%d", ErrInvalidConfig, field, max)
		}
		return v, nil
	}
	if minute, err = parse(parts[0], 0, 59); err != nil {
		return 2, 0, err
	}
	if hour, err = parse(parts[1], 2, 23); err != nil {
		return 2, 0, err
	}
	return hour, minute, nil
}

// CronTrigger dispatches due runs on every tick and asks the planner for new
// runs once a day at the configured time.
type CronTrigger struct {
	config    CronTriggerConfig
	scheduler *Scheduler
	runs      dre.RunRepository
	planner   RunPlanner
	logger    *zap.Logger
	now       func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(config CronTriggerConfig, scheduler *Scheduler, runs dre.RunRepository, planner RunPlanner, logger *zap.Logger) *CronTrigger {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	return &CronTrigger{
		config:    config,
		scheduler: scheduler,
		runs:      runs,
		planner:   planner,
		logger:    logger.Named("cron"),
		now:       time.Now,
	}
}

// Start starts the trigger loop
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		return nil
	}
	c.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Cron trigger started",
		zap.Int("hour", c.config.Hour),
		zap.Int("minute", c.config.Minute),
		zap.Duration("check_interval", c.config.CheckInterval),
	)
	return nil
}

// Stop stops the trigger loop
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick runs one check: dispatch due runs, then plan the day if it is time
func (c *CronTrigger) tick(ctx context.Context) {
	now := c.now()

	if n, err := c.scheduler.DispatchDue(ctx, now); err != nil {
		c.logger.Error("Failed to dispatch due runs", zap.Error(err))
	} else if n > 0 {
		c.logger.Debug("Dispatched due runs", zap.Int("count", n))
	}

	today := now.Format("2006-01-02")
	c.mu.Lock()
	if c.lastRunDate == today || now.Hour() != c.config.Hour || now.Minute() != c.config.Minute {
		c.mu.Unlock()
		return
	}
	c.lastRunDate = today
	c.mu.Unlock()

	c.planDaily(ctx, now)
}

func (c *CronTrigger) planDaily(ctx context.Context, now time.Time) {
	planned, err := c.planner.PlanDaily(ctx, now)
	if err != nil {
		c.logger.Error("Failed to plan daily runs", zap.Error(err))
		return
	}
	c.logger.Info("Scheduling daily runs", zap.Int("count", len(planned)))

	for _, run := range planned {
		if err := c.runs.Save(ctx, run); err != nil {
			c.logger.Error("Failed to save planned run",
				zap.String("template_id", run.TemplateID.String()),
				zap.Error(err),
			)
			continue
		}
		// a full queue is fine: the run is saved as pending and dispatched on a later tick
		if err := c.scheduler.Submit(run); err != nil && err != ErrJobQueueFull {
			c.logger.Warn("Failed to submit planned run",
				zap.String("run_id", run.ID.String()),
				zap.Error(err),
			)
		}
	}
}
