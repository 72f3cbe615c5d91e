package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	admindomain "github.com/smallbiznis/privatedrops/internal/admin/domain"
	authdomain "github.com/smallbiznis/privatedrops/internal/auth/domain"
	"github.com/smallbiznis/privatedrops/internal/auth/session"
	"github.com/smallbiznis/privatedrops/internal/authorization"
	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	paymentdomain "github.com/smallbiznis/privatedrops/internal/payment/domain"
	"github.com/smallbiznis/privatedrops/internal/ratelimit"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	"github.com/smallbiznis/privatedrops/pkg/db/pagination"
	"go.uber.org/zap"
)

const (
	creatorToken = "creator-token"
	adminToken   = "admin-token"
)

type fakeAuthService struct {
	requested []string
}

func (f *fakeAuthService) RequestLogin(ctx context.Context, email string) error {
	f.requested = append(f.requested, email)
	return nil
}

func (f *fakeAuthService) Login(ctx context.Context, nonce string, ip string) (*authdomain.LoginResult, error) {
	if nonce != "ABCDEF123456" {
		return nil, authdomain.ErrInvalidNonce
	}
	return &authdomain.LoginResult{UserID: snowflake.ID(42), AccessToken: "jwt"}, nil
}

func (f *fakeAuthService) ParseToken(ctx context.Context, raw string) (*authdomain.Principal, error) {
	switch raw {
	case creatorToken:
		return &authdomain.Principal{UserID: 42, Role: userdomain.RoleCreator}, nil
	case adminToken:
		return &authdomain.Principal{UserID: 1, Role: userdomain.RoleAdmin}, nil
	default:
		return nil, authdomain.ErrInvalidToken
	}
}

type fakeAuthz struct{}

func (fakeAuthz) Authorize(ctx context.Context, userID snowflake.ID, role string, object string, action string) error {
	if role != string(userdomain.RoleAdmin) {
		return authorization.ErrForbidden
	}
	return nil
}

type fakeUserService struct {
	userdomain.Service
}

func (fakeUserService) GetSelf(ctx context.Context, id snowflake.ID) (*userdomain.User, error) {
	return &userdomain.User{ID: id, Email: "me@example.com", Currency: "eur"}, nil
}

func (fakeUserService) UpdateNickname(ctx context.Context, id snowflake.ID, nickname string) (*userdomain.User, error) {
	return nil, userdomain.ErrNicknameTaken
}

type fakeMediaService struct {
	mediadomain.Service
	uploaded *mediadomain.UploadRequest
	reports  int
}

func (f *fakeMediaService) Report(ctx context.Context, code string) error {
	f.reports++
	return nil
}

func (f *fakeMediaService) Get(ctx context.Context, code string, ip string) (*mediadomain.MediaView, error) {
	if code != "known" {
		return nil, mediadomain.ErrMediaNotFound
	}
	return &mediadomain.MediaView{Code: code, URL: "https://cdn/blurred.jpg"}, nil
}

func (f *fakeMediaService) Upload(ctx context.Context, req mediadomain.UploadRequest) (*mediadomain.Media, error) {
	f.uploaded = &req
	return &mediadomain.Media{ID: 7, Code: "newcode", OwnerID: req.OwnerID, Price: req.Price, SingleView: req.SingleView}, nil
}

func (f *fakeMediaService) Delete(ctx context.Context, id snowflake.ID, ownerID snowflake.ID) error {
	if ownerID != id {
		return mediadomain.ErrForbidden
	}
	return nil
}

type fakePaymentService struct {
	paymentdomain.Service
	checkoutErr error
	payerIP     string
}

func (f *fakePaymentService) GetCheckoutLink(ctx context.Context, req paymentdomain.CheckoutRequest) (string, error) {
	f.payerIP = req.PayerIP
	if f.checkoutErr != nil {
		return "", f.checkoutErr
	}
	return "https://checkout/session", nil
}

type fakeWebhookService struct {
	err       error
	endpoints []paymentdomain.Endpoint
}

func (f *fakeWebhookService) IngestWebhook(ctx context.Context, endpoint paymentdomain.Endpoint, payload []byte, headers http.Header) error {
	f.endpoints = append(f.endpoints, endpoint)
	return f.err
}

type fakeAdminService struct {
	admindomain.Service
}

func (fakeAdminService) ListUsers(ctx context.Context, page pagination.Pagination) (*admindomain.ListUsersResponse, error) {
	return &admindomain.ListUsersResponse{Users: []userdomain.User{}}, nil
}

type testServer struct {
	engine   *gin.Engine
	media    *fakeMediaService
	payments *fakePaymentService
	webhooks *fakeWebhookService
	auth     *fakeAuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		RateLimit: config.RateLimitConfig{LoginPerMinute: 1, LoginBurst: 1, ReportPerMinute: 1, ReportBurst: 1},
	}
	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	ts := &testServer{
		engine:   engine,
		media:    &fakeMediaService{},
		payments: &fakePaymentService{},
		webhooks: &fakeWebhookService{},
		auth:     &fakeAuthService{},
	}
	NewServer(ServerParams{
		Gin:        engine,
		Cfg:        cfg,
		Log:        zap.NewNop(),
		Authsvc:    ts.auth,
		Sessions:   session.NewManager(cfg),
		AuthzSvc:   fakeAuthz{},
		UserSvc:    fakeUserService{},
		MediaSvc:   ts.media,
		PaymentSvc: ts.payments,
		WebhookSvc: ts.webhooks,
		AdminSvc:   fakeAdminService{},
		Limiter:    ratelimit.NewLimiter(ratelimit.Params{Cfg: cfg, Log: zap.NewNop(), Clock: clock.System()}),
	})
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return resp.Error
}

func TestRequestLoginIsRateLimitedPerClient(t *testing.T) {
	ts := newTestServer(t)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.9:5000"
		return ts.do(req)
	}

	if w := send(); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if got := decodeError(t, w).Type; got != "rate_limited" {
		t.Fatalf("expected rate_limited, got %q", got)
	}
	if len(ts.auth.requested) != 1 {
		t.Fatalf("expected one login mail request, got %d", len(ts.auth.requested))
	}
}

func TestRequestLoginRejectsInvalidEmail(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	w := ts.do(req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	payload := decodeError(t, w)
	if len(payload.Errors) != 1 || payload.Errors[0].Field != "email" {
		t.Fatalf("unexpected validation errors: %+v", payload.Errors)
	}
}

func TestReportMediaIsRateLimitedPerClient(t *testing.T) {
	ts := newTestServer(t)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/media/known/report", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		return ts.do(req)
	}

	if w := send(); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if w := send(); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if ts.media.reports != 1 {
		t.Fatalf("expected one report to reach the service, got %d", ts.media.reports)
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/auth/login/ABCDEF123456", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Set-Cookie"), session.DefaultCookieName+"=jwt") {
		t.Fatalf("expected session cookie, got %q", w.Header().Get("Set-Cookie"))
	}

	w = ts.do(httptest.NewRequest(http.MethodGet, "/auth/login/UNKNOWN", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown nonce, got %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/user", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	if w := ts.do(req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/user", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: creatorToken})
	w = ts.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with cookie, got %d", w.Code)
	}
	var user userdomain.User
	if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.ID != 42 {
		t.Fatalf("expected user 42, got %d", user.ID)
	}
}

func TestNicknameTakenIsConflict(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/user/nickname", strings.NewReader(`{"nickname":"alice"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creatorToken)
	w := ts.do(req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if msg := decodeError(t, w).Message; msg != "nickname already taken" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+creatorToken)
	if w := ts.do(req); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for creator, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/users?page_size=10", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	if w := ts.do(req); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetMediaNotFound(t *testing.T) {
	ts := newTestServer(t)

	if w := ts.do(httptest.NewRequest(http.MethodGet, "/media/missing", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := ts.do(httptest.NewRequest(http.MethodGet, "/media/known", nil)); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestUploadMediaReadsMultipartForm(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("mediaFile", "photo.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.Copy(part, bytes.NewReader([]byte("not really a jpeg"))); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = mw.WriteField("price", "1500")
	_ = mw.WriteField("singleView", "true")
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/media", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+creatorToken)
	w := ts.do(req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	got := ts.media.uploaded
	if got == nil {
		t.Fatalf("expected upload to reach the media service")
	}
	if got.OwnerID != 42 || got.Price != 1500 || !got.SingleView || got.Filename != "photo.jpg" {
		t.Fatalf("unexpected upload request: %+v", got)
	}
	if string(got.Body) != "not really a jpeg" {
		t.Fatalf("unexpected body %q", got.Body)
	}
}

func TestUploadMediaRequiresPrice(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("mediaFile", "photo.jpg")
	_, _ = part.Write([]byte("x"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/media", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+creatorToken)
	w := ts.do(req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if ts.media.uploaded != nil {
		t.Fatalf("upload must not reach the service without a price")
	}
}

func TestDeleteMediaOwnershipMismatch(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/media/7", nil)
	req.Header.Set("Authorization", "Bearer "+creatorToken)
	if w := ts.do(req); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/media/42", nil)
	req.Header.Set("Authorization", "Bearer "+creatorToken)
	if w := ts.do(req); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestCheckoutMapsPaymentErrors(t *testing.T) {
	ts := newTestServer(t)

	checkout := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payment/checkout", strings.NewReader(`{"code":"abc123"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "198.51.100.7:4000"
		return ts.do(req)
	}

	w := checkout()
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ts.payments.payerIP != "198.51.100.7" {
		t.Fatalf("expected payer ip from client, got %q", ts.payments.payerIP)
	}

	ts.payments.checkoutErr = paymentdomain.ErrAlreadyPaid
	if w := checkout(); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for already paid, got %d", w.Code)
	}

	ts.payments.checkoutErr = paymentdomain.ErrGatewayUnavailable
	if w := checkout(); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the gateway is down, got %d", w.Code)
	}
}

func TestWebhookOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
		want   paymentdomain.Endpoint
	}{
		{name: "processed", path: "/webhook", status: http.StatusOK, want: paymentdomain.EndpointPlatform},
		{name: "ignored", path: "/webhook", err: paymentdomain.ErrEventIgnored, status: http.StatusOK, want: paymentdomain.EndpointPlatform},
		{name: "redelivered", path: "/webhook/connect", err: paymentdomain.ErrEventAlreadyProcessed, status: http.StatusOK, want: paymentdomain.EndpointConnect},
		{name: "bad signature", path: "/webhook", err: paymentdomain.ErrInvalidSignature, status: http.StatusBadRequest, want: paymentdomain.EndpointPlatform},
		{name: "malformed", path: "/webhook/connect", err: paymentdomain.ErrInvalidEvent, status: http.StatusBadRequest, want: paymentdomain.EndpointConnect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.webhooks.err = tt.err

			w := ts.do(httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(`{}`)))
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			if len(ts.webhooks.endpoints) != 1 || ts.webhooks.endpoints[0] != tt.want {
				t.Fatalf("expected endpoint %s, got %v", tt.want, ts.webhooks.endpoints)
			}
		})
	}
}

func TestWebhookRejectsOversizedBody(t *testing.T) {
	ts := newTestServer(t)

	body := `{"pad":"` + strings.Repeat("x", maxWebhookPayload) + `"}`
	w := ts.do(httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
	if got := decodeError(t, w).Type; got != "payload_too_large" {
		t.Fatalf("expected payload_too_large, got %q", got)
	}
	if len(ts.webhooks.endpoints) != 0 {
		t.Fatalf("oversized delivery must not reach the webhook service")
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	if typ, _ := classifyErrorForLog(paymentdomain.ErrEventIgnored); typ != "ignored" {
		t.Fatalf("expected ignored, got %q", typ)
	}
	typ, code := classifyErrorForLog(mediadomain.ErrInvalidPrice)
	if typ != "validation_error" || code != "invalid_price" {
		t.Fatalf("unexpected classification %q/%q", typ, code)
	}
	if typ, _ := classifyErrorForLog(io.ErrUnexpectedEOF); typ != "internal_error" {
		t.Fatalf("expected internal_error, got %q", typ)
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if got := decodeError(t, w).Type; got != "not_found" {
		t.Fatalf("expected not_found, got %q", got)
	}
}
