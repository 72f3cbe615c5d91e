package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/privatedrops/internal/payment/domain"
)

// Gateway events are small; anything larger is not a legitimate delivery.
const maxWebhookPayload = 1 << 20

func (s *Server) HandlePlatformWebhook(c *gin.Context) {
	s.handleWebhook(c, paymentdomain.EndpointPlatform)
}

func (s *Server) HandleConnectWebhook(c *gin.Context) {
	s.handleWebhook(c, paymentdomain.EndpointConnect)
}

func (s *Server) handleWebhook(c *gin.Context, endpoint paymentdomain.Endpoint) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookPayload)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, ErrPayloadTooLarge)
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.webhookSvc.IngestWebhook(c.Request.Context(), endpoint, payload, c.Request.Header)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) || errors.Is(err, paymentdomain.ErrEventIgnored) {
			// Surface the reason to the request log without failing the delivery.
			_ = c.Error(err)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
