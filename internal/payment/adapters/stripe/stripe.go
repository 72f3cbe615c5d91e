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
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/privatedrops/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/privatedrops/internal/payment/domain"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.stripe.com"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return paymentdomain.ProviderStripe
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("stripe")

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetTransport(tracing.WrapTransport("stripe", http.DefaultTransport)).
		SetAuthToken(strings.TrimSpace(cfg.SecretKey)).
		SetHeader("User-Agent", "PrivateDrops/1.0")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Rejections by the API are answers, not outages.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, paymentdomain.ErrGatewayRequestFailed)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &Adapter{
		client:               client,
		breaker:              breaker,
		log:                  log,
		webhookSecret:        strings.TrimSpace(cfg.WebhookSecret),
		connectWebhookSecret: strings.TrimSpace(cfg.ConnectWebhookSecret),
		tolerance:            cfg.SignatureTolerance,
		now:                  time.Now,
	}, nil
}

type Adapter struct {
	client               *resty.Client
	breaker              *gobreaker.CircuitBreaker
	log                  *zap.Logger
	webhookSecret        string
	connectWebhookSecret string
	tolerance            time.Duration
	now                  func() time.Time
}

func (a *Adapter) Verify(ctx context.Context, endpoint paymentdomain.Endpoint, payload []byte, headers http.Header) error {
	secret := a.webhookSecret
	if endpoint == paymentdomain.EndpointConnect {
		secret = a.connectWebhookSecret
	}
	if secret == "" {
		return paymentdomain.ErrInvalidSignature
	}

	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	if a.tolerance > 0 {
		unix, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return paymentdomain.ErrInvalidSignature
		}
		age := a.now().Sub(time.Unix(unix, 0))
		if age > a.tolerance || age < -a.tolerance {
			return paymentdomain.ErrInvalidSignature
		}
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return paymentdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (paymentdomain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	event.ID = strings.TrimSpace(event.ID)
	if event.ID == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		var session stripeCheckoutSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return nil, paymentdomain.ErrInvalidPayload
		}
		if strings.TrimSpace(session.ID) == "" {
			return nil, paymentdomain.ErrInvalidEvent
		}
		return paymentdomain.CheckoutCompleted{ID: event.ID, SessionID: session.ID}, nil
	case "account.updated":
		var account stripeAccount
		if err := json.Unmarshal(event.Data.Object, &account); err != nil {
			return nil, paymentdomain.ErrInvalidPayload
		}
		return paymentdomain.AccountUpdated{
			ID:             event.ID,
			AccountID:      account.ID,
			Email:          strings.ToLower(strings.TrimSpace(account.Email)),
			CurrentlyDue:   account.Requirements.CurrentlyDue,
			PastDue:        account.Requirements.PastDue,
			Capabilities:   account.Capabilities,
			ChargesEnabled: account.ChargesEnabled,
			PayoutsEnabled: account.PayoutsEnabled,
		}, nil
	default:
		return paymentdomain.Ignored{ID: event.ID, Type: event.Type}, nil
	}
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, params paymentdomain.CheckoutSessionParams) (*paymentdomain.CheckoutSession, error) {
	if params.Amount <= 0 || strings.TrimSpace(params.Currency) == "" {
		return nil, paymentdomain.ErrInvalidCheckoutRequest
	}

	form := map[string]string{
		"mode":                                   "payment",
		"success_url":                            params.SuccessURL,
		"cancel_url":                             params.CancelURL,
		"line_items[0][quantity]":                "1",
		"line_items[0][price_data][currency]":    strings.ToLower(params.Currency),
		"line_items[0][price_data][unit_amount]": strconv.FormatInt(params.Amount, 10),
		"line_items[0][price_data][product_data][name]":   params.ProductName,
		"metadata[" + paymentdomain.MetadataMediaID + "]": params.MediaID.String(),
		"metadata[" + paymentdomain.MetadataCode + "]":    params.Code,
		"metadata[" + paymentdomain.MetadataIP + "]":      params.PayerIP,
	}
	if params.ImageURL != "" {
		form["line_items[0][price_data][product_data][images][0]"] = params.ImageURL
	}

	var session stripeCheckoutSession
	if err := a.post(ctx, "/v1/checkout/sessions", params.IdempotencyKey, form, &session); err != nil {
		return nil, err
	}
	return session.toDomain(), nil
}

func (a *Adapter) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*paymentdomain.CheckoutSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	var session stripeCheckoutSession
	_, err := a.breaker.Execute(func() (interface{}, error) {
		resp, err := a.client.R().
			SetContext(ctx).
			SetPathParam("id", sessionID).
			SetResult(&session).
			SetError(&stripeErrorEnvelope{}).
			Get("/v1/checkout/sessions/{id}")
		return nil, a.classify("retrieve_checkout_session", resp, err)
	})
	if err != nil {
		return nil, breakerErr(err)
	}
	return session.toDomain(), nil
}

func (a *Adapter) CreateConnectedAccount(ctx context.Context, params paymentdomain.ConnectedAccountParams) (string, error) {
	form := map[string]string{
		"type":                                   "express",
		"email":                                  params.Email,
		"capabilities[card_payments][requested]": "true",
		"capabilities[transfers][requested]":     "true",
	}
	if params.Country != "" {
		form["country"] = params.Country
	}

	var account stripeAccount
	if err := a.post(ctx, "/v1/accounts", "account:"+strings.ToLower(params.Email), form, &account); err != nil {
		return "", err
	}
	if account.ID == "" {
		return "", paymentdomain.ErrGatewayRequestFailed
	}
	return account.ID, nil
}

func (a *Adapter) CreateAccountLink(ctx context.Context, accountID string, refreshURL string, returnURL string) (string, error) {
	form := map[string]string{
		"account":     accountID,
		"refresh_url": refreshURL,
		"return_url":  returnURL,
		"type":        "account_onboarding",
	}

	var link stripeAccountLink
	if err := a.post(ctx, "/v1/account_links", "", form, &link); err != nil {
		return "", err
	}
	return link.URL, nil
}

func (a *Adapter) post(ctx context.Context, path string, idempotencyKey string, form map[string]string, result any) error {
	_, err := a.breaker.Execute(func() (interface{}, error) {
		req := a.client.R().
			SetContext(ctx).
			SetFormData(form).
			SetResult(result).
			SetError(&stripeErrorEnvelope{})
		if idempotencyKey != "" {
			req.SetHeader("Idempotency-Key", idempotencyKey)
		}
		resp, err := req.Post(path)
		return nil, a.classify(path, resp, err)
	})
	return breakerErr(err)
}

func (a *Adapter) classify(op string, resp *resty.Response, err error) error {
	if err != nil {
		a.log.Warn("stripe request failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %v", paymentdomain.ErrGatewayUnavailable, err)
	}
	if !resp.IsError() {
		return nil
	}

	message := ""
	if envelope, ok := resp.Error().(*stripeErrorEnvelope); ok && envelope != nil {
		message = envelope.Error.Message
	}
	a.log.Warn("stripe request rejected",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode()),
		zap.String("message", message),
	)
	if resp.StatusCode() >= http.StatusInternalServerError || resp.StatusCode() == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d", paymentdomain.ErrGatewayUnavailable, resp.StatusCode())
	}
	return fmt.Errorf("%w: status %d: %s", paymentdomain.ErrGatewayRequestFailed, resp.StatusCode(), message)
}

func breakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", paymentdomain.ErrGatewayUnavailable, err)
	}
	return err
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID            string         `json:"id"`
	URL           string         `json:"url"`
	PaymentStatus string         `json:"payment_status"`
	AmountTotal   int64          `json:"amount_total"`
	Currency      string         `json:"currency"`
	Metadata      map[string]any `json:"metadata"`
}

func (s stripeCheckoutSession) toDomain() *paymentdomain.CheckoutSession {
	metadata := make(map[string]string, len(s.Metadata))
	for key := range s.Metadata {
		metadata[key] = readMetadataValue(s.Metadata, key)
	}
	return &paymentdomain.CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: s.PaymentStatus,
		AmountTotal:   s.AmountTotal,
		Currency:      strings.ToLower(strings.TrimSpace(s.Currency)),
		Metadata:      metadata,
	}
}

type stripeAccount struct {
	ID             string             `json:"id"`
	Email          string             `json:"email"`
	Requirements   stripeRequirements `json:"requirements"`
	Capabilities   map[string]string  `json:"capabilities"`
	ChargesEnabled bool               `json:"charges_enabled"`
	PayoutsEnabled bool               `json:"payouts_enabled"`
}

type stripeRequirements struct {
	CurrentlyDue []string `json:"currently_due"`
	PastDue      []string `json:"past_due"`
}

type stripeAccountLink struct {
	URL string `json:"url"`
}

type stripeErrorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast == 0 {
			return ""
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	}
	return ""
}
