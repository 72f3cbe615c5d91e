package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	"github.com/smallbiznis/privatedrops/pkg/db/pagination"
)

func bindPage(c *gin.Context) (pagination.Pagination, bool) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "page_size must be a number"))
		return pagination.Pagination{}, false
	}
	return page, true
}

func (s *Server) AdminListUsers(c *gin.Context) {
	page, ok := bindPage(c)
	if !ok {
		return
	}

	resp, err := s.adminSvc.ListUsers(c.Request.Context(), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) AdminGetUser(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, userdomain.ErrUserNotFound)
		return
	}

	detail, err := s.adminSvc.GetUser(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (s *Server) AdminListMedia(c *gin.Context) {
	page, ok := bindPage(c)
	if !ok {
		return
	}

	resp, err := s.adminSvc.ListMedia(c.Request.Context(), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) AdminListFlaggedMedia(c *gin.Context) {
	page, ok := bindPage(c)
	if !ok {
		return
	}

	resp, err := s.adminSvc.ListFlaggedMedia(c.Request.Context(), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) AdminListViews(c *gin.Context) {
	page, ok := bindPage(c)
	if !ok {
		return
	}

	resp, err := s.adminSvc.ListViews(c.Request.Context(), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) AdminCleanupMedia(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, mediadomain.ErrMediaNotFound)
		return
	}

	if err := s.adminSvc.CleanupMedia(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
