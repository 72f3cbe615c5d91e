package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("provider", "stripe"),
		attribute.String("media_code", "01hx"),
		attribute.String("client_ip", "10.0.0.1"),
		attribute.String("event_type", "checkout.session.completed"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key != "provider" && attr.Key != "event_type" {
			t.Fatalf("unexpected attribute retained: %s", attr.Key)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordSettlement(context.Background(), "eur", 900)
	m.RecordWebhookEvent(context.Background(), "stripe", "checkout.session.completed", "processed")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "privatedrops"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordSettlement(context.Background(), "EUR", 900)
	m.RecordNotification(context.Background(), "payout", "sent")
}
