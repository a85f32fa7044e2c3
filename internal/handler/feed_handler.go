package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/clipdeck/kick-clips-go/internal/feed"
	"github.com/clipdeck/kick-clips-go/internal/models"
	"github.com/clipdeck/kick-clips-go/internal/validation"
	"github.com/clipdeck/kick-clips-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FeedEngine is the part of feed.Engine the handlers drive.
type FeedEngine interface {
	Reset(channelName string, sortKey models.SortKey, timeFilter models.TimeFilter) models.FeedState
	State() (models.FeedState, bool)
	LoadNextPage(ctx context.Context) (models.FeedState, error)
}

// RecentChannels remembers the channels a user searched for.
type RecentChannels interface {
	Push(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
}

// FeedHandler handles channel query requests.
type FeedHandler struct {
	engine    FeedEngine
	recent    RecentChannels
	validator *validation.Validator
}

// NewFeedHandler creates a FeedHandler. recent may be nil.
func NewFeedHandler(engine FeedEngine, recent RecentChannels, validator *validation.Validator) *FeedHandler {
	return &FeedHandler{
		engine:    engine,
		recent:    recent,
		validator: validator,
	}
}

// Reset starts a new channel query and loads its first page.
func (h *FeedHandler) Reset(c *gin.Context) {
	var dto models.ResetFeedDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		handleError(c, &ValidationError{Message: "Invalid request payload: " + err.Error()})
		return
	}

	query, err := h.validator.ValidateFeedRequest(&dto)
	if err != nil {
		handleError(c, &ValidationError{Message: err.Error()})
		return
	}

	h.engine.Reset(query.ChannelName, query.Sort, query.Time)

	if h.recent != nil {
		if err := h.recent.Push(c.Request.Context(), query.ChannelName); err != nil {
			logger.Log.Warn("Failed to remember channel",
				zap.String("channel", query.ChannelName),
				zap.Error(err),
			)
		}
	}

	state, err := h.engine.LoadNextPage(c.Request.Context())
	h.respondFeed(c, state, err)
}

// Next loads the page after the current cursor.
func (h *FeedHandler) Next(c *gin.Context) {
	state, err := h.engine.LoadNextPage(c.Request.Context())
	h.respondFeed(c, state, err)
}

// Get returns the current feed state.
func (h *FeedHandler) Get(c *gin.Context) {
	state, ok := h.engine.State()
	if !ok {
		handleError(c, feed.ErrNoSession)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Recent lists recently queried channels, most recent first.
func (h *FeedHandler) Recent(c *gin.Context) {
	if h.recent == nil {
		c.JSON(http.StatusOK, gin.H{"channels": []string{}})
		return
	}

	channels, err := h.recent.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	if channels == nil {
		channels = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// respondFeed writes the state returned by LoadNextPage. An exhausted feed is
// a normal outcome; the error is carried in state.error and state.exhausted.
func (h *FeedHandler) respondFeed(c *gin.Context, state models.FeedState, err error) {
	var transportErr *feed.TransportError

	switch {
	case err == nil, feed.IsExhausted(err):
		c.JSON(http.StatusOK, state)
	case errors.As(err, &transportErr):
		logger.Log.Warn("Upstream fetch failed",
			zap.String("channel", state.ChannelName),
			zap.Int("consecutiveFailures", state.ConsecutiveFailures),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, state)
	default:
		handleError(c, err)
	}
}
