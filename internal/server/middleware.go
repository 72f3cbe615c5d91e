package server

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/privatedrops/internal/auth/domain"
	obscontext "github.com/smallbiznis/privatedrops/internal/observability/context"
	"github.com/smallbiznis/privatedrops/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/privatedrops/internal/observability/metrics"
	"github.com/smallbiznis/privatedrops/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	contextPrincipalKey = "principal"

	rateLimitReasonPolicy = "policy-rate"
)

// AuthRequired resolves the bearer token or session cookie to a principal.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, authdomain.ErrMissingToken)
			return
		}

		principal, err := s.authsvc.ParseToken(c.Request.Context(), raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextPrincipalKey, principal)
		ctx := obscontext.WithUserID(c.Request.Context(), principal.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func (s *Server) AdminRequired(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), principal.UserID, string(principal.Role), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// RateLimit spends one request of policy per client IP.
func (s *Server) RateLimit(policy ratelimit.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		res, err := s.limiter.Allow(ctx, policy, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("rate limit check failed", zap.String("endpoint", endpoint), zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			denyRateLimit(c, endpoint, res, s.obsMetrics)
			return
		}

		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		}
		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func denyRateLimit(c *gin.Context, endpoint string, res *ratelimit.RateLimitResult, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("rate limit exceeded",
		zap.String("reason", rateLimitReasonPolicy),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, rateLimitReasonPolicy, metrics)

	retryAfter := 1
	if res != nil && res.RetryAfter > 0 {
		retryAfter = int(math.Ceil(res.RetryAfter.Seconds()))
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if route := strings.TrimSpace(c.FullPath()); route != "" {
		return route
	}
	return "unknown"
}

func principalFromContext(c *gin.Context) (*authdomain.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return nil, false
	}
	principal, ok := value.(*authdomain.Principal)
	if !ok || principal == nil || principal.UserID == 0 {
		return nil, false
	}
	return principal, true
}
