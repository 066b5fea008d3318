package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunExecutor generates the report of one run
type RunExecutor interface {
	Execute(ctx context.Context, run *dre.ReportRun) (*dre.ReportResult, error)
}

// Config holds worker pool configuration
type Config struct {
	MaxConcurrentJobs int
	QueueSize         int
	JobTimeout        time.Duration
	RetryDelay        time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 3,
		QueueSize:         100,
		JobTimeout:        10 * time.Minute,
		RetryDelay:        5 * time.Minute,
	}
}

// Scheduler executes report runs on a fixed pool of workers. Every state
// change of a run is saved, so failed runs waiting for a retry are picked up
// again by DispatchDue rather than held in memory.
type Scheduler struct {
	config   Config
	executor RunExecutor
	runs     dre.RunRepository
	logger   *zap.Logger

	jobs      chan *dre.ReportRun
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inflight  map[uuid.UUID]bool
	onDepth   func(depth int)
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config Config, executor RunExecutor, runs dre.RunRepository, logger *zap.Logger) *Scheduler {
	def := DefaultConfig()
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = def.MaxConcurrentJobs
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = def.JobTimeout
	}
	return &Scheduler{
		config:   config,
		executor: executor,
		runs:     runs,
		logger:   logger.Named("scheduler"),
		jobs:     make(chan *dre.ReportRun, config.QueueSize),
		inflight: make(map[uuid.UUID]bool),
	}
}

// ObserveQueueDepth registers fn to be called with the number of waiting
// runs whenever a run is queued or picked up. Call before Start.
func (s *Scheduler) ObserveQueueDepth(fn func(depth int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDepth = fn
}

// QueueDepth returns the number of runs waiting for a worker
func (s *Scheduler) QueueDepth() int {
	return len(s.jobs)
}

func (s *Scheduler) reportDepth() {
	if s.onDepth != nil {
		s.onDepth(len(s.jobs))
	}
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Report scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running work and waits for the workers to exit
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.jobs)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Report scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Report scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a run without blocking
func (s *Scheduler) Submit(run *dre.ReportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	if s.inflight[run.ID] {
		return ErrAlreadyQueued
	}

	select {
	case s.jobs <- run:
		s.inflight[run.ID] = true
		s.reportDepth()
		s.logger.Debug("Run submitted",
			zap.String("run_id", run.ID.String()),
			zap.String("template_id", run.TemplateID.String()),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// DispatchDue submits the pending runs whose retry time has passed and
// returns how many were queued.
func (s *Scheduler) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.runs.FindDue(ctx, now, s.config.QueueSize)
	if err != nil {
		return 0, err
	}
	queued := 0
	for i := range due {
		run := due[i]
		switch err := s.Submit(&run); err {
		case nil:
			queued++
		case ErrAlreadyQueued:
		default:
			return queued, err
		}
	}
	return queued, nil
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case run, ok := <-s.jobs:
			if !ok {
				return
			}
			s.reportDepth()
			s.process(ctx, run, workerID)
		}
	}
}

func (s *Scheduler) process(ctx context.Context, run *dre.ReportRun, workerID int) {
	defer func() {
		s.mu.Lock()
		delete(s.inflight, run.ID)
		s.mu.Unlock()
	}()

	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("run_id", run.ID.String()),
		zap.String("template_id", run.TemplateID.String()),
	)

	run.Start()
	s.save(ctx, run, log)
	log.Info("Processing run", zap.Int("retry_count", run.RetryCount))

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	result, err := s.executor.Execute(jobCtx, run)
	if err != nil {
		run.Fail(err.Error())
		log.Error("Run failed", zap.Error(err))
		if run.ShouldRetry() {
			run.ScheduleRetry(s.config.RetryDelay)
			log.Info("Run scheduled for retry",
				zap.Int("retry_count", run.RetryCount),
				zap.Int("max_retries", run.MaxRetries),
				zap.Timep("next_retry_at", run.NextRetryAt),
			)
		}
		s.save(ctx, run, log)
		return
	}

	run.Complete(result)
	s.save(ctx, run, log)
	log.Info("Run completed", zap.Int("warnings", run.WarningCount))
}

// save persists the run state. The scheduler context may already be
// cancelled during shutdown, so the write gets its own short deadline.
func (s *Scheduler) save(ctx context.Context, run *dre.ReportRun, log *zap.Logger) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.runs.Save(saveCtx, run); err != nil {
		log.Error("Failed to save run state", zap.String("status", string(run.Status)), zap.Error(err))
	}
}
