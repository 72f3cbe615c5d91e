package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	admindomain "github.com/smallbiznis/privatedrops/internal/admin/domain"
	authdomain "github.com/smallbiznis/privatedrops/internal/auth/domain"
	"github.com/smallbiznis/privatedrops/internal/authorization"
	"github.com/smallbiznis/privatedrops/internal/exchange"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	"github.com/smallbiznis/privatedrops/internal/moderation"
	paymentdomain "github.com/smallbiznis/privatedrops/internal/payment/domain"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
	ErrPayloadTooLarge    = errors.New("payload_too_large")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{
			Type:    "payload_too_large",
			Message: "request body too large",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isUnavailableError(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger; "ignored" keeps webhook noise at debug.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	if errors.Is(err, paymentdomain.ErrEventIgnored) || errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		return "ignored", err.Error()
	}
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	} else if status < http.StatusInternalServerError {
		code = err.Error()
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, paymentdomain.ErrInvalidCheckoutRequest),
		errors.Is(err, mediadomain.ErrInvalidPrice),
		errors.Is(err, mediadomain.ErrUnsupportedMediaType),
		errors.Is(err, mediadomain.ErrInvalidMediaSize),
		errors.Is(err, mediadomain.ErrOwnerNotVerified),
		errors.Is(err, mediadomain.ErrRecentViews),
		errors.Is(err, mediadomain.ErrFeedbackAlreadyLeft),
		errors.Is(err, mediadomain.ErrInvalidRating),
		errors.Is(err, userdomain.ErrInvalidEmail),
		errors.Is(err, userdomain.ErrInvalidNickname),
		errors.Is(err, userdomain.ErrInvalidCurrency),
		errors.Is(err, authdomain.ErrNonceExpired),
		errors.Is(err, admindomain.ErrInvalidPageToken),
		errors.Is(err, exchange.ErrInvalidCurrency),
		errors.Is(err, exchange.ErrInvalidAmount),
		errors.Is(err, exchange.ErrConversionRejected):
		return true
	default:
		return false
	}
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrMissingToken),
		errors.Is(err, authdomain.ErrInvalidToken),
		errors.Is(err, authdomain.ErrTokenExpired),
		errors.Is(err, mediadomain.ErrNotPaidViewer),
		errors.Is(err, userdomain.ErrUserBanned):
		return true
	default:
		return false
	}
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, mediadomain.ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidActor):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, paymentdomain.ErrAlreadyPaid),
		errors.Is(err, paymentdomain.ErrMaxViewsReached),
		errors.Is(err, userdomain.ErrNicknameTaken),
		errors.Is(err, mediadomain.ErrVersionConflict):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, paymentdomain.ErrAlreadyPaid):
		return "media already paid"
	case errors.Is(err, paymentdomain.ErrMaxViewsReached):
		return "media reached its maximum views"
	case errors.Is(err, userdomain.ErrNicknameTaken):
		return "nickname already taken"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, mediadomain.ErrMediaNotFound),
		errors.Is(err, userdomain.ErrUserNotFound),
		errors.Is(err, authdomain.ErrInvalidNonce),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isUnavailableError(err error) bool {
	switch {
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, paymentdomain.ErrGatewayUnavailable),
		errors.Is(err, paymentdomain.ErrGatewayRequestFailed),
		errors.Is(err, mediadomain.ErrStorageUnavailable),
		errors.Is(err, exchange.ErrRateUnavailable),
		errors.Is(err, moderation.ErrUnavailable):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return paymentdomain.ErrInvalidSignature.Error()
	case errors.Is(err, paymentdomain.ErrInvalidEvent), errors.Is(err, paymentdomain.ErrInvalidPayload):
		return paymentdomain.ErrInvalidEvent.Error()
	}
	for _, sentinel := range []error{
		mediadomain.ErrInvalidPrice,
		mediadomain.ErrUnsupportedMediaType,
		mediadomain.ErrInvalidMediaSize,
		mediadomain.ErrOwnerNotVerified,
		mediadomain.ErrRecentViews,
		mediadomain.ErrFeedbackAlreadyLeft,
		mediadomain.ErrInvalidRating,
		userdomain.ErrInvalidEmail,
		userdomain.ErrInvalidNickname,
		userdomain.ErrInvalidCurrency,
		authdomain.ErrNonceExpired,
		admindomain.ErrInvalidPageToken,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "invalid_page_token":
		return "page_token"
	case "unsupported_media_type", "invalid_media_size":
		return "mediaFile"
	case "invalid_rating", "feedback_already_left":
		return "rating"
	case "nonce_expired":
		return "nonce"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_price":
		return "price is outside the allowed range"
	case "unsupported_media_type":
		return "media type is not supported"
	case "invalid_media_size":
		return "media size is outside the allowed range"
	case "owner_not_verified":
		return "complete the payout onboarding before uploading"
	case "media_has_recent_views":
		return "media was viewed in the last 24 hours"
	case "feedback_already_left":
		return "feedback already left"
	case "nonce_expired":
		return "login link expired"
	default:
		return "invalid value"
	}
}
