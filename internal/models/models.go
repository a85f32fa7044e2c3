// Package models contains the data models and DTOs for the clip feed and download service.
package models

import (
	"time"

	"github.com/google/uuid"
)

// SortKey selects the upstream ordering of a clip listing.
type SortKey string

// SortKey constants define the orderings accepted by the upstream listing.
const (
	SortByViews SortKey = "view"
	SortByDate  SortKey = "date"
)

// TimeFilter restricts a clip listing to a time window.
type TimeFilter string

// TimeFilter constants define the windows accepted by the upstream listing.
const (
	TimeAll   TimeFilter = "all"
	TimeMonth TimeFilter = "month"
	TimeWeek  TimeFilter = "week"
	TimeDay   TimeFilter = "day"
)

// ClipRecord is a single clip as fetched from the upstream feed.
// Records are never mutated in place; a fresh fetch replaces them wholesale.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ClipRecord struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	ChannelName     string    `json:"channelName"`
	ThumbnailURL    string    `json:"thumbnailUrl"`
	VideoURL        string    `json:"videoUrl"`
	DurationSeconds int       `json:"durationSeconds"`
	ViewCount       int64     `json:"viewCount"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ErrorInfo describes the last failed fetch of a feed session.
type ErrorInfo struct {
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// FeedState is the state of one channel query.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type FeedState struct {
	Session             uint64              `json:"session"`
	ChannelName         string              `json:"channelName"`
	SortKey             SortKey             `json:"sort"`
	TimeFilter          TimeFilter          `json:"time"`
	Items               []ClipRecord        `json:"items"`
	SeenIDs             map[string]struct{} `json:"-"`
	Cursor              *string             `json:"cursor"`
	Loading             bool                `json:"loading"`
	HasMore             bool                `json:"hasMore"`
	Exhausted           bool                `json:"exhausted"`
	Error               *ErrorInfo          `json:"error"`
	ConsecutiveFailures int                 `json:"consecutiveFailureCount"`
}

// NewFeedState returns the initial state of a fresh channel query.
func NewFeedState(session uint64, channelName string, sortKey SortKey, timeFilter TimeFilter) *FeedState {
	return &FeedState{
		Session:     session,
		ChannelName: channelName,
		SortKey:     sortKey,
		TimeFilter:  timeFilter,
		Items:       []ClipRecord{},
		SeenIDs:     make(map[string]struct{}),
		HasMore:     true,
	}
}

// Clone returns a deep copy that shares no memory with s.
func (s *FeedState) Clone() FeedState {
	out := *s

	out.Items = make([]ClipRecord, len(s.Items))
	copy(out.Items, s.Items)

	out.SeenIDs = make(map[string]struct{}, len(s.SeenIDs))
	for id := range s.SeenIDs {
		out.SeenIDs[id] = struct{}{}
	}

	if s.Cursor != nil {
		cursor := *s.Cursor
		out.Cursor = &cursor
	}
	if s.Error != nil {
		info := *s.Error
		out.Error = &info
	}

	return out
}

// DownloadRecord is a completed download in the registry.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DownloadRecord struct {
	ClipID       string    `json:"clipId"`
	Title        string    `json:"title"`
	ChannelName  string    `json:"channelName"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	LocalURI     string    `json:"localUri"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// TransferStatus represents the lifecycle state of a transfer.
type TransferStatus string

// TransferStatus constants define the possible states of a transfer.
const (
	TransferQueued     TransferStatus = "queued"
	TransferInProgress TransferStatus = "inProgress"
	TransferCompleted  TransferStatus = "completed"
	TransferFailed     TransferStatus = "failed"
	TransferCancelled  TransferStatus = "cancelled"
)

// IsActive reports whether the status still occupies the clip's transfer slot.
func (s TransferStatus) IsActive() bool {
	return s == TransferQueued || s == TransferInProgress
}

// IsTerminal reports whether the status ends a transfer.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferCompleted || s == TransferFailed || s == TransferCancelled
}

// TransferState tracks one transfer of a clip.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type TransferState struct {
	ID           uuid.UUID      `json:"id"`
	ClipID       string         `json:"clipId"`
	Title        string         `json:"title"`
	ChannelName  string         `json:"channelName"`
	ThumbnailURL string         `json:"thumbnailUrl"`
	SourceURL    string         `json:"sourceUrl"`
	Destination  string         `json:"destination"`
	BytesWritten int64          `json:"bytesWritten"`
	TotalBytes   int64          `json:"totalBytes"`
	Status       TransferStatus `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Percent returns the completion percentage, or false when the total size is unknown.
func (t *TransferState) Percent() (int, bool) {
	if t.TotalBytes <= 0 {
		return 0, false
	}
	p := int(t.BytesWritten * 100 / t.TotalBytes)
	if p > 100 {
		p = 100
	}
	return p, true
}

// ResetFeedDTO represents the request that starts a new channel query.
type ResetFeedDTO struct {
	ChannelName string `json:"channelName" binding:"required,max=64"`
	Sort        string `json:"sort"`
	Time        string `json:"time"`
}

// DownloadRequestDTO selects clips of the current feed for download.
type DownloadRequestDTO struct {
	ClipIDs []string `json:"clipIds" binding:"required,min=1"`
}

// BatchResponseDTO summarizes a batch download request.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type BatchResponseDTO struct {
	Started           []string          `json:"started"`
	InProgress        []string          `json:"inProgress"`
	AlreadyDownloaded []string          `json:"alreadyDownloaded"`
	NotFound          []string          `json:"notFound"`
	Failed            map[string]string `json:"failed,omitempty"`
	Message           string            `json:"message"`
}

// ErrorResponse represents an error response.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}
