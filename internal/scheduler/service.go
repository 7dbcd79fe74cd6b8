package scheduler

import (
	"context"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper runs one pass over unresolved mentions.
type Sweeper interface {
	RunSweep(ctx context.Context) error
}

// Reporter produces the scheduled ranking report.
type Reporter interface {
	RunDailyReport(ctx context.Context) error
}

// Service handles scheduling of the recheck sweep and the ranking report
type Service struct {
	config   *config.Config
	sweeper  Sweeper
	reporter Reporter
	cron     *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, sweeper Sweeper, reporter Reporter) *Service {
	return &Service{
		config:   cfg,
		sweeper:  sweeper,
		reporter: reporter,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled jobs
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.config.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		logrus.Debug("Starting scheduled recheck sweep")
		if err := s.sweeper.RunSweep(ctx); err != nil {
			logrus.Errorf("Recheck sweep failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc(s.config.ReportSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		logrus.Info("Starting scheduled ranking report")
		if err := s.reporter.RunDailyReport(ctx); err != nil {
			logrus.Errorf("Ranking report failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started (sweep: %q, report: %q)", s.config.SweepSchedule, s.config.ReportSchedule)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
