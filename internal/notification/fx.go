package notification

import (
	"context"
	"sync"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/privatedrops/internal/config"
	"github.com/smallbiznis/privatedrops/internal/observability/metrics"
	"github.com/smallbiznis/privatedrops/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(NewQueue),
	fx.Provide(NewService),
	fx.Provide(func(q Queue, sender email.Provider, log *zap.Logger, m *metrics.Metrics) *Worker {
		return NewWorker(q, sender, log, m)
	}),
	fx.Invoke(RunWorker),
)

type QueueParams struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Redis *redis.Client `optional:"true"`
}

func NewQueue(p QueueParams) Queue {
	if p.Redis != nil {
		p.Log.Info("notification queue on redis", zap.String("key", p.Cfg.Email.QueueKey))
		return NewRedisQueue(p.Redis, p.Cfg.Email.QueueKey)
	}
	return NewMemoryQueue(0)
}

func RunWorker(lc fx.Lifecycle, worker *Worker) {
	var (
		cancel context.CancelFunc
		wg     sync.WaitGroup
	)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			wg.Add(1)
			go func() {
				defer wg.Done()
				worker.Run(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
