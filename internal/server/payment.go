package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/privatedrops/internal/payment/domain"
)

func (s *Server) VerifyPayment(c *gin.Context) {
	paid, err := s.paymentSvc.VerifyPayment(c.Request.Context(), strings.TrimSpace(c.Param("code")), c.ClientIP())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"paid": paid})
}

func (s *Server) Checkout(c *gin.Context) {
	var req paymentdomain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidCheckoutRequest)
		return
	}
	req.PayerIP = c.ClientIP()

	url, err := s.paymentSvc.GetCheckoutLink(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) OnboardingLink(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	url, err := s.paymentSvc.OnboardingLink(c.Request.Context(), principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
