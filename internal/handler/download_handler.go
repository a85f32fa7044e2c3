package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/clipdeck/kick-clips-go/internal/download"
	"github.com/clipdeck/kick-clips-go/internal/models"
	"github.com/clipdeck/kick-clips-go/internal/validation"
	"github.com/gin-gonic/gin"
)

// DownloadManager is the part of download.Manager the handlers drive.
type DownloadManager interface {
	BatchEnqueue(clips []models.ClipRecord) download.BatchResult
	Downloads() []models.DownloadRecord
	Transfers() []models.TransferState
	Cancel(clipID string) bool
	Remove(ctx context.Context, clipID string) error
}

// FeedReader exposes the clips of the current feed.
type FeedReader interface {
	State() (models.FeedState, bool)
}

// TransferView is a transfer with its completion percentage, if known.
type TransferView struct {
	models.TransferState
	Percent *int `json:"percent"`
}

// DownloadHandler handles download requests and the download registry.
type DownloadHandler struct {
	manager   DownloadManager
	feed      FeedReader
	validator *validation.Validator
}

func NewDownloadHandler(manager DownloadManager, feed FeedReader, validator *validation.Validator) *DownloadHandler {
	return &DownloadHandler{
		manager:   manager,
		feed:      feed,
		validator: validator,
	}
}

// Enqueue downloads clips of the current feed. Ids not present in the feed
// are reported as not found.
func (h *DownloadHandler) Enqueue(c *gin.Context) {
	var dto models.DownloadRequestDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		handleError(c, &ValidationError{Message: "Invalid request payload: " + err.Error()})
		return
	}

	ids, err := h.validator.ValidateDownloadRequest(&dto)
	if err != nil {
		handleError(c, &ValidationError{Message: err.Error()})
		return
	}

	index := make(map[string]models.ClipRecord)
	if state, ok := h.feed.State(); ok {
		for _, clip := range state.Items {
			index[clip.ID] = clip
		}
	}

	resp := models.BatchResponseDTO{
		Started:           []string{},
		InProgress:        []string{},
		AlreadyDownloaded: []string{},
		NotFound:          []string{},
	}

	clips := make([]models.ClipRecord, 0, len(ids))
	for _, id := range ids {
		clip, ok := index[id]
		if !ok {
			resp.NotFound = append(resp.NotFound, id)
			continue
		}
		clips = append(clips, clip)
	}

	result := h.manager.BatchEnqueue(clips)
	for _, handle := range result.Started {
		resp.Started = append(resp.Started, handle.ClipID)
	}
	for _, handle := range result.InProgress {
		resp.InProgress = append(resp.InProgress, handle.ClipID)
	}
	resp.AlreadyDownloaded = append(resp.AlreadyDownloaded, result.AlreadyDownloaded...)
	if len(result.Failed) > 0 {
		resp.Failed = make(map[string]string, len(result.Failed))
		for id, err := range result.Failed {
			resp.Failed[id] = err.Error()
		}
	}

	resp.Message = fmt.Sprintf("%d started, %d in progress, %d already downloaded, %d not found, %d failed",
		len(resp.Started), len(resp.InProgress), len(resp.AlreadyDownloaded), len(resp.NotFound), len(resp.Failed))

	status := http.StatusOK
	if len(resp.Started) > 0 {
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}

// List returns the download registry, newest first.
func (h *DownloadHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"downloads": h.manager.Downloads()})
}

// Transfers returns the active transfers.
func (h *DownloadHandler) Transfers(c *gin.Context) {
	transfers := h.manager.Transfers()
	views := make([]TransferView, 0, len(transfers))
	for i := range transfers {
		view := TransferView{TransferState: transfers[i]}
		if p, ok := transfers[i].Percent(); ok {
			view.Percent = &p
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"transfers": views})
}

// Cancel stops the active transfer of a clip.
func (h *DownloadHandler) Cancel(c *gin.Context) {
	clipID := c.Param("clipId")
	if !h.validator.IsValidClipID(clipID) {
		handleError(c, &ValidationError{Message: "invalid clip id format"})
		return
	}

	if !h.manager.Cancel(clipID) {
		handleError(c, download.ErrNoActiveTransfer)
		return
	}
	c.Status(http.StatusNoContent)
}

// Remove deletes a downloaded clip from the registry and from disk.
func (h *DownloadHandler) Remove(c *gin.Context) {
	clipID := c.Param("clipId")
	if !h.validator.IsValidClipID(clipID) {
		handleError(c, &ValidationError{Message: "invalid clip id format"})
		return
	}

	if err := h.manager.Remove(c.Request.Context(), clipID); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
