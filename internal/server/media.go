package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
)

const (
	mediaFileField = "mediaFile"
	// multipartOverhead covers the form fields around the file part.
	multipartOverhead = 1 << 20
)

func (s *Server) GetMedia(c *gin.Context) {
	view, err := s.mediaSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("code")), c.ClientIP())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) ListOwnMedia(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	items, err := s.mediaSvc.ListForOwner(c.Request.Context(), principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if items == nil {
		items = []mediadomain.OwnerMedia{}
	}

	c.JSON(http.StatusOK, gin.H{"media": items})
}

func (s *Server) UploadMedia(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	maxBytes := s.maxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	header, err := c.FormFile(mediaFileField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, mediadomain.ErrInvalidMediaSize)
			return
		}
		AbortWithError(c, newValidationError(mediaFileField, "required", "mediaFile is required"))
		return
	}
	if header.Size > maxBytes {
		AbortWithError(c, mediadomain.ErrInvalidMediaSize)
		return
	}

	price, err := parseOptionalInt64(c.PostForm("price"))
	if err != nil || price == nil {
		AbortWithError(c, mediadomain.ErrInvalidPrice)
		return
	}
	singleView, err := parseOptionalBool(c.PostForm("singleView"))
	if err != nil {
		AbortWithError(c, newValidationError("singleView", "invalid_single_view", "singleView must be a boolean"))
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	media, err := s.mediaSvc.Upload(c.Request.Context(), mediadomain.UploadRequest{
		OwnerID:    principal.UserID,
		Filename:   header.Filename,
		Body:       body,
		Price:      *price,
		SingleView: singleView != nil && *singleView,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, media)
}

func (s *Server) DeleteMedia(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, mediadomain.ErrMediaNotFound)
		return
	}

	if err := s.mediaSvc.Delete(c.Request.Context(), id, principal.UserID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) LeaveFeedback(c *gin.Context) {
	var req mediadomain.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, mediadomain.ErrInvalidRating)
		return
	}
	req.IP = c.ClientIP()

	if err := s.mediaSvc.LeaveFeedback(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ReportMedia(c *gin.Context) {
	if err := s.mediaSvc.Report(c.Request.Context(), strings.TrimSpace(c.Param("code"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}

func (s *Server) maxUploadBytes() int64 {
	if s.pricing != nil {
		if max := s.pricing.Get().MaxUploadBytes; max > 0 {
			return max
		}
	}
	return 300 * 1024 * 1024
}
