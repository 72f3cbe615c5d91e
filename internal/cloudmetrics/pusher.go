package cloudmetrics

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/privatedrops/internal/config"
	"github.com/smallbiznis/privatedrops/internal/observability/tracing"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

const (
	exporterRemoteWrite = "prometheus_remote_write"
	exporterPushgateway = "prometheus_pushgateway"

	pushJob     = "privatedrops"
	pushTimeout = 5 * time.Second
)

var ErrRemoteWriteRejected = errors.New("remote write rejected")

// Pusher ships a snapshot of the business gauges.
type Pusher interface {
	Push(ctx context.Context, registry *prometheus.Registry) error
}

// NewPusher returns nil when pushing is disabled or the exporter cannot be
// built; the push_metrics job is then never scheduled.
func NewPusher(cfg config.Config, logger *zap.Logger) Pusher {
	metrics := cfg.Cloud.Metrics
	if !metrics.Enabled {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("cloudmetrics")

	endpoint := strings.TrimSpace(metrics.Endpoint)
	if endpoint == "" {
		log.Warn("cloud metrics endpoint missing, push disabled")
		return nil
	}
	environment := strings.TrimSpace(cfg.Environment)

	switch metrics.Exporter {
	case exporterRemoteWrite:
		p := NewRemoteWritePusher(endpoint, metrics.AuthToken)
		if environment != "" {
			p.external = []prompb.Label{{Name: "environment", Value: environment}}
		}
		return p
	case exporterPushgateway:
		return NewPushgatewayPusher(endpoint, environment, instanceName(cfg))
	default:
		log.Warn("unknown cloud metrics exporter, push disabled", zap.String("exporter", metrics.Exporter))
		return nil
	}
}

// RemoteWritePusher posts gauges to a Prometheus remote_write receiver.
type RemoteWritePusher struct {
	http     *resty.Client
	endpoint string
	external []prompb.Label
	now      func() time.Time
}

func NewRemoteWritePusher(endpoint, authToken string) *RemoteWritePusher {
	client := resty.New().
		SetTimeout(pushTimeout).
		SetTransport(tracing.WrapTransport("remote_write", nil)).
		SetHeaders(map[string]string{
			"Content-Type":                      "application/x-protobuf",
			"Content-Encoding":                  "snappy",
			"X-Prometheus-Remote-Write-Version": "0.1.0",
		})
	if token := strings.TrimSpace(authToken); token != "" {
		client.SetAuthToken(token)
	}
	return &RemoteWritePusher{http: client, endpoint: endpoint, now: time.Now}
}

func (p *RemoteWritePusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	if p == nil || registry == nil {
		return nil
	}
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather: %w", err)
	}
	series := gaugeSeries(families, p.external, p.now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	payload, err := proto.Marshal(protoadapt.MessageV2Of(&prompb.WriteRequest{Timeseries: series}))
	if err != nil {
		return fmt.Errorf("encode write request: %w", err)
	}
	resp, err := p.http.R().
		SetContext(ctx).
		SetBody(snappy.Encode(nil, payload)).
		Post(p.endpoint)
	if err != nil {
		return fmt.Errorf("remote write: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s", ErrRemoteWriteRejected, resp.Status())
	}
	return nil
}

// PushgatewayPusher replaces this instance's group on a Pushgateway.
type PushgatewayPusher struct {
	endpoint    string
	environment string
	instance    string
}

func NewPushgatewayPusher(endpoint, environment, instance string) *PushgatewayPusher {
	return &PushgatewayPusher{
		endpoint:    strings.TrimSpace(endpoint),
		environment: strings.TrimSpace(environment),
		instance:    strings.TrimSpace(instance),
	}
}

func (p *PushgatewayPusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	if p == nil || registry == nil {
		return nil
	}
	// Grouping by instance keeps replicas from overwriting each other.
	pusher := push.New(p.endpoint, pushJob).Gatherer(registry)
	if p.environment != "" {
		pusher = pusher.Grouping("environment", p.environment)
	}
	if p.instance != "" {
		pusher = pusher.Grouping("instance", p.instance)
	}
	return pusher.PushContext(ctx)
}

// gaugeSeries flattens every gauge sample into one remote_write series.
// External labels never override a label the metric already carries.
func gaugeSeries(families []*dto.MetricFamily, external []prompb.Label, timestampMs int64) []prompb.TimeSeries {
	var series []prompb.TimeSeries
	for _, family := range families {
		if family.GetType() != dto.MetricType_GAUGE {
			continue
		}
		for _, metric := range family.GetMetric() {
			if metric.GetGauge() == nil {
				continue
			}
			labels := []prompb.Label{{Name: "__name__", Value: family.GetName()}}
			for _, label := range metric.GetLabel() {
				labels = append(labels, prompb.Label{Name: label.GetName(), Value: label.GetValue()})
			}
			for _, label := range external {
				if !slices.ContainsFunc(labels, func(l prompb.Label) bool { return l.Name == label.Name }) {
					labels = append(labels, label)
				}
			}
			slices.SortFunc(labels, func(a, b prompb.Label) int { return strings.Compare(a.Name, b.Name) })

			series = append(series, prompb.TimeSeries{
				Labels:  labels,
				Samples: []prompb.Sample{{Value: metric.GetGauge().GetValue(), Timestamp: timestampMs}},
			})
		}
	}
	return series
}
