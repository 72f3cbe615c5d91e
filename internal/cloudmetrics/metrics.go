package cloudmetrics

import (
	"context"
	"errors"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// CloudMetrics holds the business gauges shipped by the push_metrics job.
type CloudMetrics struct {
	registry *prometheus.Registry
	pusher   Pusher

	users       prometheus.Gauge
	media       *prometheus.GaugeVec
	views       prometheus.Gauge
	payouts     *prometheus.GaugeVec
	memoryUsage prometheus.Gauge
}

func New(registry *prometheus.Registry, pusher Pusher, instance string) *CloudMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	constLabels := prometheus.Labels{"instance": instance}
	c := &CloudMetrics{
		registry: registry,
		pusher:   pusher,
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "privatedrops_users_total",
			Help:        "Registered creators.",
			ConstLabels: constLabels,
		}),
		media: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "privatedrops_media_total",
			Help:        "Stored media by moderation state.",
			ConstLabels: constLabels,
		}, []string{"state"}),
		views: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "privatedrops_views_total",
			Help:        "Settled paid views.",
			ConstLabels: constLabels,
		}),
		payouts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "privatedrops_payouts_minor_total",
			Help:        "Creator balances in minor units by currency.",
			ConstLabels: constLabels,
		}, []string{"currency"}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "privatedrops_memory_bytes",
			Help:        "Memory obtained from the OS.",
			ConstLabels: constLabels,
		}),
	}
	registry.MustRegister(c.users, c.media, c.views, c.payouts, c.memoryUsage)
	return c
}

func (c *CloudMetrics) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Refresh recomputes every gauge from the database.
func (c *CloudMetrics) Refresh(ctx context.Context, db *gorm.DB) error {
	if c == nil || db == nil {
		return nil
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.memoryUsage.Set(float64(m.Sys))

	var users, views int64
	if err := db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM users`).Scan(&users).Error; err != nil {
		return err
	}
	c.users.Set(float64(users))
	if err := db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM views`).Scan(&views).Error; err != nil {
		return err
	}
	c.views.Set(float64(views))

	var media []struct {
		Flagged   bool
		Moderated bool
		Total     int64
	}
	if err := db.WithContext(ctx).Raw(
		`SELECT flagged, moderated_at IS NOT NULL AS moderated, COUNT(1) AS total
		 FROM media
		 GROUP BY flagged, moderated_at IS NOT NULL`,
	).Scan(&media).Error; err != nil {
		return err
	}
	c.media.Reset()
	for _, state := range []string{"pending", "clean", "flagged"} {
		c.media.WithLabelValues(state).Set(0)
	}
	for _, row := range media {
		state := "pending"
		switch {
		case row.Flagged:
			state = "flagged"
		case row.Moderated:
			state = "clean"
		}
		c.media.WithLabelValues(state).Add(float64(row.Total))
	}

	var payouts []struct {
		Currency string
		Total    int64
	}
	if err := db.WithContext(ctx).Raw(
		`SELECT currency, COALESCE(SUM(payouts), 0) AS total FROM users GROUP BY currency`,
	).Scan(&payouts).Error; err != nil {
		return err
	}
	c.payouts.Reset()
	for _, row := range payouts {
		c.payouts.WithLabelValues(row.Currency).Set(float64(row.Total))
	}
	return nil
}

var ErrNoPusher = errors.New("cloud metrics pusher not configured")

func (c *CloudMetrics) Push(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.pusher == nil {
		return ErrNoPusher
	}
	return c.pusher.Push(ctx, c.registry)
}
