package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
)

func (s *Server) GetSelf(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	user, err := s.userSvc.GetSelf(c.Request.Context(), principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (s *Server) NicknameExists(c *gin.Context) {
	nickname := strings.TrimSpace(c.Param("nickname"))
	exists, err := s.userSvc.NicknameExists(c.Request.Context(), nickname)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

func (s *Server) UpdateNickname(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req userdomain.NicknameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, userdomain.ErrInvalidNickname)
		return
	}

	user, err := s.userSvc.UpdateNickname(c.Request.Context(), principal.UserID, req.Nickname)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (s *Server) UpdateCurrency(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req userdomain.CurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, userdomain.ErrInvalidCurrency)
		return
	}

	user, err := s.userSvc.UpdateCurrency(c.Request.Context(), principal.UserID, req.Currency)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (s *Server) DownloadStatement(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	doc, err := s.userSvc.StatementPDF(c.Request.Context(), principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc, map[string]string{
		"Content-Disposition": `attachment; filename="statement.pdf"`,
	})
}
