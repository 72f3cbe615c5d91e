package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	obsmetrics "github.com/smallbiznis/privatedrops/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Queue   Queue
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Service renders mail and hands it to the queue; delivery happens in Worker.
type Service struct {
	log      *zap.Logger
	queue    Queue
	clock    clock.Clock
	metrics  *obsmetrics.Metrics
	renderer *renderer
	appURL   string
}

func NewService(p Params) (*Service, error) {
	r, err := newRenderer()
	if err != nil {
		return nil, err
	}
	return &Service{
		log:      p.Log.Named("notification"),
		queue:    p.Queue,
		clock:    p.Clock,
		metrics:  p.Metrics,
		renderer: r,
		appURL:   strings.TrimRight(p.Cfg.AppURL, "/"),
	}, nil
}

func (s *Service) EnqueueLogin(ctx context.Context, to string, link string, expiresIn time.Duration) error {
	return s.enqueue(ctx, TemplateLogin, to, LoginData{
		Link:      link,
		ExpiresIn: expiresIn.String(),
	})
}

// EnqueuePayout announces a settled view; amount is in minor units.
func (s *Service) EnqueuePayout(ctx context.Context, to string, currency string, amount int64) error {
	return s.enqueue(ctx, TemplatePayout, to, PayoutData{
		Amount:   FormatAmount(amount),
		Currency: strings.ToUpper(currency),
		Link:     s.appURL + "/profile",
	})
}

func (s *Service) enqueue(ctx context.Context, template string, to string, data any) error {
	subject, text, html, err := s.renderer.render(template, data)
	if err != nil {
		return err
	}

	job := Job{
		ID:          uuid.NewString(),
		Template:    template,
		To:          to,
		Subject:     subject,
		Text:        text,
		HTML:        html,
		MaxAttempts: DefaultMaxAttempts,
		EnqueuedAt:  s.clock.Now(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.metrics.RecordNotification(ctx, template, "enqueue_failed")
		return fmt.Errorf("enqueue %s mail: %w", template, err)
	}
	s.metrics.RecordNotification(ctx, template, "enqueued")
	s.log.Debug("notification enqueued", zap.String("job_id", job.ID), zap.String("template", template))
	return nil
}

// FormatAmount renders minor units with two decimals, e.g. 900 -> "9.00".
func FormatAmount(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}
