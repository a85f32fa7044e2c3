// Package transfer streams clip files from their source URL to local storage.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/clipdeck/kick-clips-go/internal/download"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const partSuffix = ".part"

var (
	// ErrInvalidRequest is returned by Transfer for requests that cannot be started.
	ErrInvalidRequest = errors.New("invalid transfer request")
)

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Executor downloads clips with bounded parallelism. Each transfer is written
// to "<destination>.part" and renamed into place once the body is complete.
type Executor struct {
	client           HTTPClient
	logger           *zap.Logger
	slots            *semaphore.Weighted
	userAgent        string
	progressInterval time.Duration
	wg               sync.WaitGroup
}

// NewExecutor creates an Executor running at most maxParallel transfers at a
// time. A nil httpClient is replaced by a client without timeout; transfers
// are bounded by their context instead.
func NewExecutor(maxParallel int, progressInterval time.Duration, userAgent string, httpClient HTTPClient, logger *zap.Logger) *Executor {
	if maxParallel < 1 {
		maxParallel = 1
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		client:           httpClient,
		logger:           logger,
		slots:            semaphore.NewWeighted(int64(maxParallel)),
		userAgent:        userAgent,
		progressInterval: progressInterval,
	}
}

// Transfer validates req and starts the download in the background. The sink
// receives Started once a slot is free, then Progress, and finally either
// Completed or Failed. A cancelled ctx ends the transfer without a final callback.
func (e *Executor) Transfer(ctx context.Context, req download.Request, sink download.Sink) error {
	if err := validate(req); err != nil {
		return err
	}

	e.wg.Add(1)
	go e.run(ctx, req, sink)
	return nil
}

// Wait blocks until every started transfer has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// RemoveFile deletes a downloaded file. A missing file is not an error.
func (e *Executor) RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func (e *Executor) run(ctx context.Context, req download.Request, sink download.Sink) {
	defer e.wg.Done()

	if err := e.slots.Acquire(ctx, 1); err != nil {
		e.logger.Debug("transfer cancelled while queued", zap.String("clipId", req.ClipID))
		return
	}
	defer e.slots.Release(1)

	if ctx.Err() != nil {
		return
	}
	sink.Started()

	if err := e.download(ctx, req, sink); err != nil {
		if ctx.Err() != nil {
			e.logger.Debug("transfer cancelled", zap.String("clipId", req.ClipID))
			return
		}
		e.logger.Warn("transfer failed", zap.String("clipId", req.ClipID), zap.Error(err))
		sink.Failed(err)
		return
	}

	if ctx.Err() != nil {
		// Cancelled after the rename; nothing will register the file.
		if err := e.RemoveFile(req.Destination); err != nil {
			e.logger.Warn("failed to remove cancelled transfer file", zap.String("clipId", req.ClipID), zap.Error(err))
		}
		e.logger.Debug("transfer cancelled", zap.String("clipId", req.ClipID))
		return
	}
	sink.Completed(req.Destination)
}

func (e *Executor) download(ctx context.Context, req download.Request, sink download.Sink) (err error) {
	if err := os.MkdirAll(filepath.Dir(req.Destination), 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.SourceURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if e.userAgent != "" {
		httpReq.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	partPath := req.Destination + partSuffix
	out, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("create partial file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(partPath)
		}
	}()

	pw := &progressWriter{
		sink:     sink,
		total:    resp.ContentLength,
		interval: e.progressInterval,
	}
	if _, err = io.Copy(out, io.TeeReader(resp.Body, pw)); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	pw.flush()

	if err = out.Close(); err != nil {
		return fmt.Errorf("close partial file: %w", err)
	}
	if err = os.Rename(partPath, req.Destination); err != nil {
		return fmt.Errorf("finalize file: %w", err)
	}

	e.logger.Debug("transfer written",
		zap.String("clipId", req.ClipID),
		zap.String("path", req.Destination),
		zap.Int64("bytes", pw.written),
	)
	return nil
}

// progressWriter counts bytes and reports them at most once per interval.
type progressWriter struct {
	sink     download.Sink
	last     time.Time
	written  int64
	total    int64
	interval time.Duration
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if now := time.Now(); now.Sub(p.last) >= p.interval {
		p.last = now
		p.sink.Progress(p.written, p.total)
	}
	return len(b), nil
}

func (p *progressWriter) flush() {
	p.sink.Progress(p.written, p.total)
}

func validate(req download.Request) error {
	if req.ClipID == "" {
		return fmt.Errorf("%w: clip id is required", ErrInvalidRequest)
	}
	if req.Destination == "" {
		return fmt.Errorf("%w: destination is required", ErrInvalidRequest)
	}
	if req.SourceURL == "" {
		return fmt.Errorf("%w: clip %s has no video url", ErrInvalidRequest, req.ClipID)
	}
	u, err := url.Parse(req.SourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: unsupported source url %q", ErrInvalidRequest, req.SourceURL)
	}
	return nil
}

// DestinationFor returns "<dir>/<clipID>.mp4" with any character outside
// [A-Za-z0-9._-] in the id replaced by '_'.
func DestinationFor(dir, clipID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, clipID)

	safe = strings.Trim(safe, ".")
	if safe == "" {
		safe = "clip"
	}
	return filepath.Join(dir, safe+".mp4")
}
