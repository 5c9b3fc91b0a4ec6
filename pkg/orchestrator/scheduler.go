package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one periodic task run by the Scheduler.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means the interval is used.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler runs jobs on fixed tickers until stopped.
type Scheduler struct {
	jobs   []Job
	logger *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler for the given jobs.
func NewScheduler(jobs []Job, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		jobs:   jobs,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start launches one background goroutine per job.
func (s *Scheduler) Start() {
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			s.logger.Warn("Skipping job with no interval", zap.String("job", job.Name))
			continue
		}
		s.wg.Add(1)
		go s.runJob(job)
	}
}

func (s *Scheduler) runJob(job Job) {
	defer s.wg.Done()

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = job.Interval
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.logger.Info("Started periodic job",
		zap.String("job", job.Name),
		zap.Duration("interval", job.Interval))

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			if err := job.Run(ctx); err != nil {
				s.logger.Error("Periodic job failed",
					zap.String("job", job.Name),
					zap.Error(err))
			}
			cancel()
		case <-s.stopCh:
			s.logger.Info("Stopping periodic job", zap.String("job", job.Name))
			return
		}
	}
}

// Stop stops all jobs and waits for in-flight runs to finish.
// Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}
