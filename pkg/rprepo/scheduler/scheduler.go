// Package scheduler runs periodic maintenance jobs against the catalog.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/config"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
)

const statusSweepJob = "project_status_sweep"

// Scheduler owns the gocron scheduler and its jobs
type Scheduler struct {
	scheduler gocron.Scheduler
	db        *gorm.DB
	logger    *zap.Logger
	interval  time.Duration
}

// New creates a scheduler. Jobs are registered by Start.
func New(db *gorm.DB, cfg config.SchedulerConfig, logger *zap.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		scheduler: s,
		db:        db,
		logger:    logger,
		interval:  cfg.StatusSweepInterval,
	}, nil
}

// Start registers the jobs and starts the scheduler.
// A zero sweep interval leaves the status sweep disabled.
func (s *Scheduler) Start() error {
	if s.interval > 0 {
		_, err := s.scheduler.NewJob(
			gocron.DurationJob(s.interval),
			gocron.NewTask(s.runStatusSweep),
			gocron.WithName(statusSweepJob),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}
		s.logger.Info("status sweep scheduled", zap.Duration("interval", s.interval))
	}
	s.scheduler.Start()
	return nil
}

// Shutdown stops the scheduler and waits for running jobs
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) runStatusSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := Sweep(ctx, s.db, time.Now())
	if err != nil {
		s.logger.Error("status sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("projects activated", zap.Int64("count", n))
	}
}

// Sweep promotes Upcoming projects whose earliest runtime has started to
// Active and returns how many were changed.
func Sweep(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	started := db.Model(&models.Runtime{}).
		Select("project_id").
		Group("project_id").
		Having("MIN(start) <= ?", now.UTC())

	result := db.WithContext(ctx).
		Model(&models.Project{}).
		Where("status = ?", models.StatusUpcoming).
		Where("id IN (?)", started).
		Update("status", models.StatusActive)
	return result.RowsAffected, result.Error
}
