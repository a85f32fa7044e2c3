package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clipdeck/kick-clips-go/internal/download"
	"github.com/clipdeck/kick-clips-go/internal/models"
	"github.com/clipdeck/kick-clips-go/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newDownloadRouter(h *DownloadHandler) *gin.Engine {
	r := gin.New()
	r.POST("/api/v1/downloads", h.Enqueue)
	r.GET("/api/v1/downloads", h.List)
	r.GET("/api/v1/downloads/transfers", h.Transfers)
	r.DELETE("/api/v1/downloads/transfers/:clipId", h.Cancel)
	r.DELETE("/api/v1/downloads/:clipId", h.Remove)
	return r
}

func TestDownloadHandler_Enqueue(t *testing.T) {
	engine := new(mockFeedEngine)
	engine.On("State").Return(page("alice", "1", "2", "3", "4"), true)

	manager := new(mockManager)
	manager.On("BatchEnqueue", mock.MatchedBy(func(clips []models.ClipRecord) bool {
		if len(clips) != 4 {
			return false
		}
		for i, id := range []string{"1", "2", "3", "4"} {
			if clips[i].ID != id {
				return false
			}
		}
		return true
	})).Return(download.BatchResult{
		Started:           []download.TransferHandle{{ClipID: "1", ID: uuid.New()}},
		InProgress:        []download.TransferHandle{{ClipID: "2", ID: uuid.New(), Reused: true}},
		AlreadyDownloaded: []string{"3"},
		Failed:            map[string]error{"4": errors.New("no video url")},
	}).Once()

	h := NewDownloadHandler(manager, engine, validation.New(0))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/downloads",
		strings.NewReader(`{"clipIds":["1","2","3","4","9","1"]}`))
	newDownloadRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp models.BatchResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"1"}, resp.Started)
	assert.Equal(t, []string{"2"}, resp.InProgress)
	assert.Equal(t, []string{"3"}, resp.AlreadyDownloaded)
	assert.Equal(t, []string{"9"}, resp.NotFound)
	assert.Equal(t, map[string]string{"4": "no video url"}, resp.Failed)
	assert.Equal(t, "1 started, 1 in progress, 1 already downloaded, 1 not found, 1 failed", resp.Message)

	manager.AssertExpectations(t)
}

func TestDownloadHandler_Enqueue_NothingStarted(t *testing.T) {
	engine := new(mockFeedEngine)
	engine.On("State").Return(models.FeedState{}, false)

	manager := new(mockManager)
	manager.On("BatchEnqueue", []models.ClipRecord{}).Return(download.BatchResult{Failed: map[string]error{}})

	h := NewDownloadHandler(manager, engine, validation.New(0))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/downloads", strings.NewReader(`{"clipIds":["1"]}`))
	newDownloadRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"started": [],
		"inProgress": [],
		"alreadyDownloaded": [],
		"notFound": ["1"],
		"message": "0 started, 0 in progress, 0 already downloaded, 1 not found, 0 failed"
	}`, rec.Body.String())
}

func TestDownloadHandler_Enqueue_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `[`},
		{name: "empty list", body: `{"clipIds":[]}`},
		{name: "bad id", body: `{"clipIds":["../x"]}`},
		{name: "too many", body: `{"clipIds":["a","b","c"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := new(mockManager)
			h := NewDownloadHandler(manager, new(mockFeedEngine), validation.New(2))

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/downloads", strings.NewReader(tt.body))
			newDownloadRouter(h).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			manager.AssertNotCalled(t, "BatchEnqueue", mock.Anything)
		})
	}
}

func TestDownloadHandler_List(t *testing.T) {
	manager := new(mockManager)
	manager.On("Downloads").Return([]models.DownloadRecord{
		{ClipID: "2", LocalURI: "/d/2.mp4"},
		{ClipID: "1", LocalURI: "/d/1.mp4"},
	})
	h := NewDownloadHandler(manager, new(mockFeedEngine), validation.New(0))

	rec := httptest.NewRecorder()
	newDownloadRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/downloads", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Downloads []models.DownloadRecord `json:"downloads"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Downloads, 2)
	assert.Equal(t, "2", body.Downloads[0].ClipID)
}

func TestDownloadHandler_Transfers(t *testing.T) {
	manager := new(mockManager)
	manager.On("Transfers").Return([]models.TransferState{
		{ClipID: "1", Status: models.TransferInProgress, BytesWritten: 50, TotalBytes: 200},
		{ClipID: "2", Status: models.TransferQueued, TotalBytes: -1},
	})
	h := NewDownloadHandler(manager, new(mockFeedEngine), validation.New(0))

	rec := httptest.NewRecorder()
	newDownloadRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/downloads/transfers", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Transfers []struct {
			ClipID  string `json:"clipId"`
			Status  string `json:"status"`
			Percent *int   `json:"percent"`
		} `json:"transfers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Transfers, 2)
	require.NotNil(t, body.Transfers[0].Percent)
	assert.Equal(t, 25, *body.Transfers[0].Percent)
	assert.Equal(t, "inProgress", body.Transfers[0].Status)
	assert.Nil(t, body.Transfers[1].Percent)
}

func TestDownloadHandler_Cancel(t *testing.T) {
	tests := []struct {
		name       string
		clipID     string
		cancelled  bool
		wantStatus int
	}{
		{name: "active transfer", clipID: "1", cancelled: true, wantStatus: http.StatusNoContent},
		{name: "no active transfer", clipID: "2", cancelled: false, wantStatus: http.StatusNotFound},
		{name: "invalid id", clipID: "bad%20id", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := new(mockManager)
			manager.On("Cancel", tt.clipID).Return(tt.cancelled).Maybe()
			h := NewDownloadHandler(manager, new(mockFeedEngine), validation.New(0))

			rec := httptest.NewRecorder()
			path := fmt.Sprintf("/api/v1/downloads/transfers/%s", tt.clipID)
			newDownloadRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestDownloadHandler_Remove(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "removed", wantStatus: http.StatusNoContent},
		{name: "not downloaded", err: download.ErrNotDownloaded, wantStatus: http.StatusNotFound},
		{name: "store failure", err: errors.New("delete registry record: connection refused"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := new(mockManager)
			manager.On("Remove", mock.Anything, "42").Return(tt.err).Once()
			h := NewDownloadHandler(manager, new(mockFeedEngine), validation.New(0))

			rec := httptest.NewRecorder()
			newDownloadRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/downloads/42", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			manager.AssertExpectations(t)
		})
	}
}
