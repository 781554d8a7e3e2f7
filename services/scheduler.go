// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// StartActivityScheduler ends expired ACTIVE activities every interval. The
// caller owns the returned scheduler and must Shutdown it.
func (s *AdminService) StartActivityScheduler(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	if interval <= 0 {
		interval = time.Minute
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, "create scheduler")
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ended, err := s.EndExpiredActivities(ctx)
			if err != nil {
				s.log.Error("scheduler: end expired activities", zap.Error(err))
				return
			}
			if ended > 0 {
				s.log.Info("scheduler: auto-ended activities", zap.Int64("count", ended))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, errors.Wrap(err, "schedule activity expiry job")
	}

	sched.Start()
	return sched, nil
}
