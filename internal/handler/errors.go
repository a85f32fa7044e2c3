// Package handler provides HTTP request handlers for the application.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/clipdeck/kick-clips-go/internal/download"
	"github.com/clipdeck/kick-clips-go/internal/feed"
	"github.com/clipdeck/kick-clips-go/internal/models"
	"github.com/clipdeck/kick-clips-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ValidationError marks client input the handlers refuse.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, models.ErrorResponse{
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}

// handleError maps engine errors that carry no state to an ErrorResponse.
func handleError(c *gin.Context, err error) {
	var validationErr *ValidationError

	switch {
	case errors.As(err, &validationErr):
		logger.Log.Warn("Validation error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, feed.ErrNoSession), errors.Is(err, feed.ErrStaleResponse):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, download.ErrNotDownloaded), errors.Is(err, download.ErrNoActiveTransfer):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled):
		logger.Log.Debug("Request cancelled by client", zap.String("path", c.Request.URL.Path))
		respondError(c, http.StatusServiceUnavailable, "request cancelled")
	default:
		logger.Log.Error("Unexpected error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
