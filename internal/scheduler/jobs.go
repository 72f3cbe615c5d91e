package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/privatedrops/internal/moderation"
	obsmetrics "github.com/smallbiznis/privatedrops/internal/observability/metrics"
	"go.uber.org/zap"
)

// ModerateMediaJob checks unmoderated media in batches until none are left
// or the upstream stops answering.
func (s *Scheduler) ModerateMediaJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobModerateMedia, s.cfg.ModerateBatch)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	schedMetrics := obsmetrics.Scheduler()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := s.moderation.Sweep(ctx, s.cfg.ModerateBatch)
		run.AddProcessed(res.Checked)
		schedMetrics.AddBatchProcessed(JobModerateMedia, "media", res.Checked)
		if err != nil {
			if errors.Is(err, moderation.ErrUnavailable) {
				err = fmt.Errorf("%w: %w", obsmetrics.ErrUpstream, err)
			}
			s.logSchedulerError(ctx, run, "scheduler.moderation.failed", JobModerateMedia, err)
			return err
		}
		if res.Flagged > 0 {
			s.logger(ctx).Info("scheduler.moderation.flagged", zap.Int("flagged", res.Flagged))
		}
		// A short batch, or one where nothing was checked, ends the run.
		if res.Checked == 0 || res.Checked+res.Skipped < s.cfg.ModerateBatch {
			return nil
		}
	}
}

// PurgeExpiredNoncesJob clears login nonces past their expiry.
func (s *Scheduler) PurgeExpiredNoncesJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobPurgeExpiredNonces, 0)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	purged, err := s.userRepo.PurgeExpiredNonces(ctx, s.db, s.clock.Now())
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.nonce.purge.failed", JobPurgeExpiredNonces, err)
		return err
	}
	run.AddProcessed(int(purged))
	obsmetrics.Scheduler().AddBatchProcessed(JobPurgeExpiredNonces, "users", int(purged))
	return nil
}

// PushMetricsJob refreshes business gauges and ships them to the collector.
func (s *Scheduler) PushMetricsJob(ctx context.Context) error {
	if s.metrics == nil {
		return nil
	}
	ctx, run, owner := s.ensureJobRun(ctx, JobPushMetrics, 0)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	if err := s.metrics.Refresh(ctx, s.db); err != nil {
		s.logSchedulerError(ctx, run, "scheduler.metrics.refresh.failed", JobPushMetrics, err)
		return err
	}
	if err := s.metrics.Push(ctx); err != nil {
		err = fmt.Errorf("%w: %w", obsmetrics.ErrUpstream, err)
		s.logSchedulerError(ctx, run, "scheduler.metrics.push.failed", JobPushMetrics, err)
		return err
	}
	run.AddProcessed(1)
	return nil
}

// SweepRateLimitsJob drops idle in-process rate limit buckets.
func (s *Scheduler) SweepRateLimitsJob(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	_, run, _ := s.ensureJobRun(ctx, JobSweepRateLimits, 0)
	run.AddProcessed(s.limiter.Sweep())
	return nil
}
