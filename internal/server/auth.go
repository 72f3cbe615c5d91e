package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/privatedrops/internal/auth/domain"
)

// RequestLogin always answers 202 so the endpoint does not reveal which emails exist.
func (s *Server) RequestLogin(c *gin.Context) {
	var req authdomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("email", "invalid_email", "a valid email is required"))
		return
	}

	if err := s.authsvc.RequestLogin(c.Request.Context(), strings.TrimSpace(req.Email)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

func (s *Server) Login(c *gin.Context) {
	nonce := strings.TrimSpace(c.Param("nonce"))
	if nonce == "" {
		AbortWithError(c, authdomain.ErrInvalidNonce)
		return
	}

	result, err := s.authsvc.Login(c.Request.Context(), nonce, c.ClientIP())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.AccessToken, result.ExpiresAt)
	c.JSON(http.StatusOK, result)
}

func (s *Server) Logout(c *gin.Context) {
	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}
