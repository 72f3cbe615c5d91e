package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// withJobLock runs fn only when this instance holds the job's Redis lock.
// Without Redis every instance runs its own jobs.
func (s *Scheduler) withJobLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	lease, err := s.locker.Acquire(ctx, "scheduler:"+name, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn("scheduler lock failed", zap.String("job", name), zap.Error(err))
		return nil
	}
	if lease == nil {
		s.log.Debug("scheduler job held by another instance", zap.String("job", name))
		return nil
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("scheduler lock release failed", zap.String("job", name), zap.Error(err))
		}
	}()
	return fn(ctx)
}
