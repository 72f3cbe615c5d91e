package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	paymentdomain "github.com/smallbiznis/privatedrops/internal/payment/domain"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	adapter, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{
		SecretKey:            "sk_test",
		WebhookSecret:        "whsec_platform",
		ConnectWebhookSecret: "whsec_connect",
		BaseURL:              baseURL,
		Timeout:              2 * time.Second,
		SignatureTolerance:   5 * time.Minute,
	})
	require.NoError(t, err)
	return adapter.(*Adapter)
}

func TestVerifySignature(t *testing.T) {
	adapter := newTestAdapter(t, "")
	payload := []byte(`{"id":"evt_123","type":"checkout.session.completed","data":{"object":{}}}`)
	timestamp := time.Now().Unix()

	reqHeader := http.Header{}
	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader("whsec_platform", payload, timestamp))
	if err := adapter.Verify(context.Background(), paymentdomain.EndpointPlatform, payload, reqHeader); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}
	if err := adapter.Verify(context.Background(), paymentdomain.EndpointConnect, payload, reqHeader); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("platform signature must not pass the connect endpoint, got %v", err)
	}

	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader("whsec_connect", payload, timestamp))
	if err := adapter.Verify(context.Background(), paymentdomain.EndpointConnect, payload, reqHeader); err != nil {
		t.Fatalf("expected valid connect signature, got error: %v", err)
	}

	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader("wrong", payload, timestamp))
	if err := adapter.Verify(context.Background(), paymentdomain.EndpointPlatform, payload, reqHeader); err == nil {
		t.Fatalf("expected invalid signature error")
	}

	reqHeader.Del("Stripe-Signature")
	if err := adapter.Verify(context.Background(), paymentdomain.EndpointPlatform, payload, reqHeader); err == nil {
		t.Fatalf("expected missing header to fail")
	}
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	adapter := newTestAdapter(t, "")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	adapter.now = func() time.Time { return now }
	payload := []byte(`{"id":"evt_1"}`)

	reqHeader := http.Header{}
	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader("whsec_platform", payload, now.Add(-10*time.Minute).Unix()))
	if err := adapter.Verify(context.Background(), paymentdomain.EndpointPlatform, payload, reqHeader); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected stale signature to be rejected, got %v", err)
	}

	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader("whsec_platform", payload, now.Add(-time.Minute).Unix()))
	if err := adapter.Verify(context.Background(), paymentdomain.EndpointPlatform, payload, reqHeader); err != nil {
		t.Fatalf("expected recent signature to pass, got %v", err)
	}
}

func TestParseEvents(t *testing.T) {
	adapter := newTestAdapter(t, "")

	tests := []struct {
		name  string
		event any
		check func(t *testing.T, event paymentdomain.Event)
	}{{
		name: "checkout.session.completed",
		event: map[string]any{
			"id":   "evt_cs",
			"type": "checkout.session.completed",
			"data": map[string]any{"object": map[string]any{"id": "cs_1", "payment_status": "paid"}},
		},
		check: func(t *testing.T, event paymentdomain.Event) {
			completed, ok := event.(paymentdomain.CheckoutCompleted)
			require.True(t, ok, "got %T", event)
			require.Equal(t, "evt_cs", completed.ProviderEventID())
			require.Equal(t, "cs_1", completed.SessionID)
		},
	}, {
		name: "account.updated",
		event: map[string]any{
			"id":   "evt_acct",
			"type": "account.updated",
			"data": map[string]any{"object": map[string]any{
				"id":              "acct_1",
				"email":           "Creator@Example.com",
				"requirements":    map[string]any{"currently_due": []string{}, "past_due": []string{}},
				"capabilities":    map[string]any{"card_payments": "active", "transfers": "active"},
				"charges_enabled": true,
				"payouts_enabled": true,
			}},
		},
		check: func(t *testing.T, event paymentdomain.Event) {
			updated, ok := event.(paymentdomain.AccountUpdated)
			require.True(t, ok, "got %T", event)
			require.Equal(t, "creator@example.com", updated.Email)
			require.Equal(t, "acct_1", updated.AccountID)
			require.True(t, updated.Verified())
		},
	}, {
		name: "unhandled type",
		event: map[string]any{
			"id":   "evt_other",
			"type": "charge.refunded",
			"data": map[string]any{"object": map[string]any{}},
		},
		check: func(t *testing.T, event paymentdomain.Event) {
			ignored, ok := event.(paymentdomain.Ignored)
			require.True(t, ok, "got %T", event)
			require.Equal(t, "charge.refunded", ignored.EventType())
		},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("marshal payload: %v", err)
			}
			event, err := adapter.Parse(context.Background(), payload)
			if err != nil {
				t.Fatalf("parse event: %v", err)
			}
			tt.check(t, event)
		})
	}
}

func TestParseRejectsMalformedPayload(t *testing.T) {
	adapter := newTestAdapter(t, "")
	if _, err := adapter.Parse(context.Background(), []byte("{not json")); !errors.Is(err, paymentdomain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if _, err := adapter.Parse(context.Background(), []byte(`{"type":"account.updated"}`)); !errors.Is(err, paymentdomain.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for missing id, got %v", err)
	}
}

func TestCreateCheckoutSessionSendsForm(t *testing.T) {
	var (
		gotAuth, gotKey string
		gotForm         map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		_ = r.ParseForm()
		gotForm = map[string]string{}
		for key := range r.PostForm {
			gotForm[key] = r.PostForm.Get(key)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_1","url":"https://checkout.stripe.test/cs_1","payment_status":"unpaid","metadata":{"code":"abc"}}`))
	}))
	defer srv.Close()

	adapter := newTestAdapter(t, srv.URL)
	session, err := adapter.CreateCheckoutSession(context.Background(), paymentdomain.CheckoutSessionParams{
		MediaID:        42,
		Code:           "abc",
		Amount:         1000,
		Currency:       "EUR",
		ProductName:    "Media abc",
		ImageURL:       "https://cdn.test/blur.jpg",
		PayerIP:        "10.0.0.1",
		SuccessURL:     "https://app.test/ok",
		CancelURL:      "https://app.test/cancel",
		IdempotencyKey: "checkout:42:10.0.0.1",
	})
	require.NoError(t, err)
	require.Equal(t, "https://checkout.stripe.test/cs_1", session.URL)
	require.Equal(t, "abc", session.Metadata["code"])

	require.Equal(t, "Bearer sk_test", gotAuth)
	require.Equal(t, "checkout:42:10.0.0.1", gotKey)
	require.Equal(t, "payment", gotForm["mode"])
	require.Equal(t, "1000", gotForm["line_items[0][price_data][unit_amount]"])
	require.Equal(t, "eur", gotForm["line_items[0][price_data][currency]"])
	require.Equal(t, "42", gotForm["metadata[mediaId]"])
	require.Equal(t, "10.0.0.1", gotForm["metadata[ip]"])
	require.Equal(t, "https://cdn.test/blur.jpg", gotForm["line_items[0][price_data][product_data][images][0]"])
}

func TestRetrieveCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/checkout/sessions/cs_9", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_9","payment_status":"paid","amount_total":1000,"currency":"EUR","metadata":{"mediaId":"7","ip":"1.2.3.4"}}`))
	}))
	defer srv.Close()

	session, err := newTestAdapter(t, srv.URL).RetrieveCheckoutSession(context.Background(), "cs_9")
	require.NoError(t, err)
	require.Equal(t, paymentdomain.PaymentStatusPaid, session.PaymentStatus)
	require.Equal(t, "eur", session.Currency)
	require.Equal(t, "7", session.Metadata[paymentdomain.MetadataMediaID])
	require.Equal(t, "1.2.3.4", session.Metadata[paymentdomain.MetadataIP])
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such account"}}`))
	}))
	defer srv.Close()

	adapter := newTestAdapter(t, srv.URL)
	for i := 0; i < 7; i++ {
		_, err := adapter.CreateAccountLink(context.Background(), "acct_x", "https://a", "https://b")
		if !errors.Is(err, paymentdomain.ErrGatewayRequestFailed) {
			t.Fatalf("call %d: expected ErrGatewayRequestFailed, got %v", i, err)
		}
	}
	require.EqualValues(t, 7, atomic.LoadInt32(&hits))
}

func TestServerErrorsOpenBreaker(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	adapter := newTestAdapter(t, srv.URL)
	for i := 0; i < 5; i++ {
		_, err := adapter.RetrieveCheckoutSession(context.Background(), "cs_1")
		require.ErrorIs(t, err, paymentdomain.ErrGatewayUnavailable)
	}

	_, err := adapter.RetrieveCheckoutSession(context.Background(), "cs_1")
	require.ErrorIs(t, err, paymentdomain.ErrGatewayUnavailable)
	require.EqualValues(t, 5, atomic.LoadInt32(&hits), "open breaker must short-circuit")
}

func TestAccountUpdatedVerified(t *testing.T) {
	active := map[string]string{"card_payments": "active", "transfers": "active"}
	cases := []struct {
		name  string
		event paymentdomain.AccountUpdated
		want  bool
	}{
		{"all clear", paymentdomain.AccountUpdated{Capabilities: active, ChargesEnabled: true, PayoutsEnabled: true}, true},
		{"currently due", paymentdomain.AccountUpdated{CurrentlyDue: []string{"external_account"}, Capabilities: active, ChargesEnabled: true, PayoutsEnabled: true}, false},
		{"past due", paymentdomain.AccountUpdated{PastDue: []string{"individual.dob"}, Capabilities: active, ChargesEnabled: true, PayoutsEnabled: true}, false},
		{"missing capability", paymentdomain.AccountUpdated{Capabilities: map[string]string{"card_payments": "active"}, ChargesEnabled: true, PayoutsEnabled: true}, false},
		{"payouts disabled", paymentdomain.AccountUpdated{Capabilities: active, ChargesEnabled: true}, false},
	}
	for _, tc := range cases {
		if got := tc.event.Verified(); got != tc.want {
			t.Fatalf("%s: Verified() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, signature)
}
