package download

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clipdeck/kick-clips-go/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrNoActiveTransfer is returned when a completion or failure arrives for a
	// clip with no queued or in-progress transfer.
	ErrNoActiveTransfer = errors.New("no such active transfer")

	// ErrNotDownloaded is returned by Remove for a clip absent from the registry.
	ErrNotDownloaded = errors.New("clip is not in the download registry")
)

// TransferFailure reports a transfer that could not complete.
type TransferFailure struct {
	Reason     error
	OccurredAt time.Time
	ClipID     string
	TransferID uuid.UUID
}

func (e *TransferFailure) Error() string {
	return fmt.Sprintf("transfer of clip %s failed: %v", e.ClipID, e.Reason)
}

func (e *TransferFailure) Unwrap() error {
	return e.Reason
}

// Request describes one transfer handed to an Executor.
type Request struct {
	ClipID      string
	SourceURL   string
	Destination string
}

// Sink receives the lifecycle callbacks of one transfer. Callbacks arriving
// after the transfer was cancelled or finished are ignored.
type Sink interface {
	Started()
	Progress(written, total int64)
	Completed(localURI string)
	Failed(reason error)
}

// Executor performs byte transfers. Transfer must return without waiting for
// the download; a non-nil error means the transfer was never started.
type Executor interface {
	Transfer(ctx context.Context, req Request, sink Sink) error
}

// Store persists the download registry.
type Store interface {
	Save(ctx context.Context, record *models.DownloadRecord) error
	Delete(ctx context.Context, clipID string) error
	List(ctx context.Context) ([]*models.DownloadRecord, error)
}

// FileRemover deletes downloaded files.
type FileRemover interface {
	RemoveFile(path string) error
}

// TransferHandle identifies a transfer returned by Enqueue. Reused is set when
// an already active transfer was returned instead of a new one.
type TransferHandle struct {
	ClipID string    `json:"clipId"`
	ID     uuid.UUID `json:"id"`
	Reused bool      `json:"reused"`
}

// BatchResult partitions the clips of a BatchEnqueue call.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type BatchResult struct {
	Started           []TransferHandle
	InProgress        []TransferHandle
	AlreadyDownloaded []string
	Failed            map[string]error
}

// EventKind names a download lifecycle transition.
type EventKind string

// EventKind constants.
const (
	EventQueued    EventKind = "queued"
	EventStarted   EventKind = "started"
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
	EventRemoved   EventKind = "removed"
)

// Event is delivered to subscribers after every transition.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Event struct {
	ID           uuid.UUID `json:"id"`
	Kind         EventKind `json:"kind"`
	ClipID       string    `json:"clipId"`
	TransferID   uuid.UUID `json:"transferId,omitempty"`
	Title        string    `json:"title,omitempty"`
	ChannelName  string    `json:"channelName,omitempty"`
	BytesWritten int64     `json:"bytesWritten,omitempty"`
	TotalBytes   int64     `json:"totalBytes,omitempty"`
	LocalURI     string    `json:"localUri,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}
