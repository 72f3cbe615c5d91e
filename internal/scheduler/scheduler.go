package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/cloudmetrics"
	"github.com/smallbiznis/privatedrops/internal/moderation"
	obsmetrics "github.com/smallbiznis/privatedrops/internal/observability/metrics"
	"github.com/smallbiznis/privatedrops/internal/ratelimit"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

const (
	JobModerateMedia      = "moderate_media"
	JobPurgeExpiredNonces = "purge_expired_nonces"
	JobPushMetrics        = "push_metrics"
	JobSweepRateLimits    = "sweep_rate_limits"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     Config `optional:"true"`
	UserRepo   userdomain.Repository
	Moderation *moderation.Service
	Limiter    *ratelimit.Limiter         `optional:"true"`
	Locker     *ratelimit.Locker          `optional:"true"`
	Metrics    *cloudmetrics.CloudMetrics `optional:"true"`
}

type job struct {
	name     string
	interval time.Duration
	batch    int
	run      func(ctx context.Context) error
}

type Scheduler struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	userRepo   userdomain.Repository
	moderation *moderation.Service
	limiter    *ratelimit.Limiter
	locker     *ratelimit.Locker
	metrics    *cloudmetrics.CloudMetrics

	jobs    []job
	nextRun map[string]time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.UserRepo == nil || p.Moderation == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		db:         p.DB,
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		userRepo:   p.UserRepo,
		moderation: p.Moderation,
		limiter:    p.Limiter,
		locker:     p.Locker,
		metrics:    p.Metrics,
		nextRun:    map[string]time.Time{},
	}

	s.jobs = []job{
		{JobModerateMedia, s.cfg.ModerateInterval, s.cfg.ModerateBatch, s.ModerateMediaJob},
		{JobPurgeExpiredNonces, s.cfg.NonceInterval, 0, s.PurgeExpiredNoncesJob},
	}
	if s.metrics != nil {
		s.jobs = append(s.jobs, job{JobPushMetrics, s.cfg.MetricsInterval, 0, s.PushMetricsJob})
	}
	if s.limiter != nil {
		s.jobs = append(s.jobs, job{JobSweepRateLimits, s.cfg.LimiterInterval, 0, s.SweepRateLimitsJob})
	}
	return s, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout, the next tick picks up the remaining work
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job whose interval has elapsed.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	now := s.clock.Now()

	for _, j := range s.jobs {
		if !s.isJobEnabled(j.name) {
			continue
		}
		if next, ok := s.nextRun[j.name]; ok && now.Before(next) {
			continue
		}
		s.nextRun[j.name] = now.Add(j.interval)

		j := j
		err = errors.Join(err, s.withJobLock(parent, j.name, func(ctx context.Context) error {
			return s.runJob(ctx, j.name, j.batch, s.cfg.JobTimeout, j.run)
		}))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.TickInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.TickInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
