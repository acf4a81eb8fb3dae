package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher is anything that can re-run its current fetch generation.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler periodically refreshes a view-model while the console sits in
// watch mode. Each tick starts a new fetch generation; a tick overlapping a
// slower one is harmless because superseded generations never commit.
type Scheduler struct {
	cron    *cron.Cron
	target  Refresher
	spec    string
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a scheduler driving target on the given cron spec.
func New(target Refresher, spec string, timeout time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		cron:    cron.New(),
		target:  target,
		spec:    spec,
		timeout: timeout,
		logger:  logger,
	}
}

// Start registers the refresh job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runRefresh); err != nil {
		return err
	}

	s.logger.Info("starting refresh scheduler", zap.String("spec", s.spec))
	s.cron.Start()
	return nil
}

// Stop halts the cron loop. In-flight refreshes finish on their own.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping refresh scheduler")
	s.cron.Stop()
}

func (s *Scheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.target.Refresh(ctx); err != nil {
		s.logger.Warn("scheduled refresh failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled refresh completed")
}
