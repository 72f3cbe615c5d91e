package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/privatedrops/internal/admin"
	admindomain "github.com/smallbiznis/privatedrops/internal/admin/domain"
	"github.com/smallbiznis/privatedrops/internal/auth"
	authdomain "github.com/smallbiznis/privatedrops/internal/auth/domain"
	"github.com/smallbiznis/privatedrops/internal/auth/session"
	"github.com/smallbiznis/privatedrops/internal/authorization"
	"github.com/smallbiznis/privatedrops/internal/cache"
	"github.com/smallbiznis/privatedrops/internal/cloudmetrics"
	"github.com/smallbiznis/privatedrops/internal/config"
	"github.com/smallbiznis/privatedrops/internal/exchange"
	"github.com/smallbiznis/privatedrops/internal/ledger"
	"github.com/smallbiznis/privatedrops/internal/media"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	"github.com/smallbiznis/privatedrops/internal/moderation"
	"github.com/smallbiznis/privatedrops/internal/notification"
	"github.com/smallbiznis/privatedrops/internal/observability"
	obslogger "github.com/smallbiznis/privatedrops/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/privatedrops/internal/observability/metrics"
	obstracing "github.com/smallbiznis/privatedrops/internal/observability/tracing"
	"github.com/smallbiznis/privatedrops/internal/payment"
	paymentdomain "github.com/smallbiznis/privatedrops/internal/payment/domain"
	"github.com/smallbiznis/privatedrops/internal/providers/email"
	"github.com/smallbiznis/privatedrops/internal/ratelimit"
	"github.com/smallbiznis/privatedrops/internal/storage"
	"github.com/smallbiznis/privatedrops/internal/user"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	cache.Module,
	storage.Module,
	email.Module,
	notification.Module,
	exchange.Module,
	ledger.Module,
	user.Module,
	payment.Module,
	media.Module,
	moderation.Module,
	auth.Module,
	authorization.Module,
	admin.Module,
	ratelimit.Module,
	cloudmetrics.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := NewEngine(obsCfg, httpMetrics)
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	return r, nil
}

// run binds the HTTP listener once every Server route is registered.
func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	pricing    *config.PricingConfigHolder
	log        *zap.Logger
	authsvc    authdomain.Service
	sessions   *session.Manager
	authzSvc   authorization.Service
	userSvc    userdomain.Service
	mediaSvc   mediadomain.Service
	paymentSvc paymentdomain.Service
	webhookSvc paymentdomain.WebhookService
	adminSvc   admindomain.Service
	limiter    *ratelimit.Limiter
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Pricing    *config.PricingConfigHolder
	Log        *zap.Logger
	Authsvc    authdomain.Service
	Sessions   *session.Manager
	AuthzSvc   authorization.Service
	UserSvc    userdomain.Service
	MediaSvc   mediadomain.Service
	PaymentSvc paymentdomain.Service
	WebhookSvc paymentdomain.WebhookService
	AdminSvc   admindomain.Service
	Limiter    *ratelimit.Limiter  `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		pricing:    p.Pricing,
		log:        p.Log.Named("http"),
		authsvc:    p.Authsvc,
		sessions:   p.Sessions,
		authzSvc:   p.AuthzSvc,
		userSvc:    p.UserSvc,
		mediaSvc:   p.MediaSvc,
		paymentSvc: p.PaymentSvc,
		webhookSvc: p.WebhookSvc,
		adminSvc:   p.AdminSvc,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerUserRoutes()
	svc.registerMediaRoutes()
	svc.registerPaymentRoutes()
	svc.registerWebhookRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.RateLimit(s.loginPolicy()), s.RequestLogin)
	auth.GET("/login/:nonce", s.Login)
	auth.POST("/logout", s.Logout)
}

func (s *Server) registerUserRoutes() {
	user := s.engine.Group("/user")

	user.GET("/exists/:nickname", s.NicknameExists)

	user.GET("", s.AuthRequired(), s.GetSelf)
	user.POST("/nickname", s.AuthRequired(), s.UpdateNickname)
	user.POST("/currency", s.AuthRequired(), s.UpdateCurrency)
	user.GET("/statement.pdf", s.AuthRequired(), s.DownloadStatement)
}

func (s *Server) registerMediaRoutes() {
	media := s.engine.Group("/media")

	media.GET("", s.AuthRequired(), s.ListOwnMedia)
	media.POST("", s.AuthRequired(), s.UploadMedia)
	media.POST("/review", s.LeaveFeedback)
	media.GET("/:code", s.GetMedia)
	media.POST("/:code/report", s.RateLimit(s.reportPolicy()), s.ReportMedia)
	media.DELETE("/:id", s.AuthRequired(), s.DeleteMedia)
}

func (s *Server) registerPaymentRoutes() {
	pay := s.engine.Group("/payment")

	pay.GET("/verify/:code", s.VerifyPayment)
	pay.POST("/checkout", s.RateLimit(s.checkoutPolicy()), s.Checkout)
	pay.GET("/kyc", s.AuthRequired(), s.OnboardingLink)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhook", s.HandlePlatformWebhook)
	s.engine.POST("/webhook/connect", s.HandleConnectWebhook)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AuthRequired())

	admin.GET("/users", s.AdminRequired(authorization.ObjectUser, authorization.ActionUserList), s.AdminListUsers)
	admin.GET("/users/:id", s.AdminRequired(authorization.ObjectUser, authorization.ActionUserList), s.AdminGetUser)
	admin.GET("/media", s.AdminRequired(authorization.ObjectMedia, authorization.ActionMediaList), s.AdminListMedia)
	admin.GET("/media/flagged", s.AdminRequired(authorization.ObjectMedia, authorization.ActionMediaList), s.AdminListFlaggedMedia)
	admin.DELETE("/media/:id", s.AdminRequired(authorization.ObjectMedia, authorization.ActionMediaCleanup), s.AdminCleanupMedia)
	admin.GET("/views", s.AdminRequired(authorization.ObjectView, authorization.ActionViewList), s.AdminListViews)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

func (s *Server) loginPolicy() ratelimit.Policy {
	if s.limiter == nil {
		return ratelimit.Policy{}
	}
	return s.limiter.Policies().Login
}

func (s *Server) checkoutPolicy() ratelimit.Policy {
	if s.limiter == nil {
		return ratelimit.Policy{}
	}
	return s.limiter.Policies().Checkout
}

func (s *Server) reportPolicy() ratelimit.Policy {
	if s.limiter == nil {
		return ratelimit.Policy{}
	}
	return s.limiter.Policies().Report
}
