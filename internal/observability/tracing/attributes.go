package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var blockedAttributeKeys = map[attribute.Key]struct{}{
	"email":       {},
	"ip":          {},
	"client_ip":   {},
	"nonce":       {},
	"token":       {},
	"secret":      {},
	"card_number": {},
}

// SafeAttributes drops attributes that could carry personal data or credentials.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	safe := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		safe = append(safe, attr)
	}
	return safe
}

// SafeError returns an error fit for span recording, or nil for empty errors.
// Messages are truncated to 256 bytes.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return nil
	}
	const limit = 256
	if len(msg) > limit {
		msg = msg[:limit]
	}
	return errors.New(msg)
}

// ExtractContext reads trace propagation headers from the carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
