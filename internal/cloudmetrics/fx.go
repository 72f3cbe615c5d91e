package cloudmetrics

import (
	"os"

	"github.com/smallbiznis/privatedrops/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cloud.metrics",
	fx.Provide(NewPusher),
	fx.Provide(provideCloudMetrics),
)

// provideCloudMetrics returns nil when pushing is disabled; the scheduler
// skips push_metrics in that case.
func provideCloudMetrics(cfg config.Config, pusher Pusher, log *zap.Logger) *CloudMetrics {
	if !cfg.Cloud.Metrics.Enabled || pusher == nil {
		return nil
	}
	log.Named("cloudmetrics").Info("cloud metrics enabled", zap.String("exporter", cfg.Cloud.Metrics.Exporter))
	return New(nil, pusher, instanceName(cfg))
}

// instanceName labels this replica's series; the hostname is unique per pod.
func instanceName(cfg config.Config) string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return cfg.AppName
}
