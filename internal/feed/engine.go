// Package feed implements the paginated, deduplicated clip feed of one channel
// query at a time.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/clipdeck/kick-clips-go/internal/dedup"
	"github.com/clipdeck/kick-clips-go/internal/kick"
	"github.com/clipdeck/kick-clips-go/internal/metrics"
	"github.com/clipdeck/kick-clips-go/internal/models"
	"go.uber.org/zap"
)

// DefaultFailureThreshold is the number of consecutive failed fetches after
// which a session stops requesting pages.
const DefaultFailureThreshold = 3

// Gateway fetches one raw page of a channel listing.
type Gateway interface {
	FetchPage(ctx context.Context, req kick.PageRequest) (*models.RawPage, error)
}

// Listener receives a snapshot after every state transition.
type Listener func(models.FeedState)

// Option configures an Engine.
type Option func(*Engine)

// WithFailureThreshold overrides DefaultFailureThreshold. Values below 1 are ignored.
func WithFailureThreshold(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.threshold = n
		}
	}
}

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records fetch outcomes and appended clips on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock replaces time.Now for error timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine owns the FeedState of the active channel query. Mutations happen under
// mu; the gateway is called and listeners are notified with mu released.
type Engine struct {
	gateway   Gateway
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	state     *models.FeedState
	used      map[string]struct{}
	listeners []Listener
	session   uint64
	threshold int
	mu        sync.Mutex
}

// NewEngine creates an Engine with no active session.
func NewEngine(gateway Gateway, opts ...Option) *Engine {
	e := &Engine{
		gateway:   gateway,
		logger:    zap.NewNop(),
		now:       time.Now,
		threshold: DefaultFailureThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers fn for state-change notifications.
func (e *Engine) Subscribe(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Reset discards the current session and starts a fresh one. A fetch still in
// flight for the previous session is discarded when it completes.
func (e *Engine) Reset(channelName string, sortKey models.SortKey, timeFilter models.TimeFilter) models.FeedState {
	e.mu.Lock()
	e.session++
	e.state = models.NewFeedState(e.session, channelName, sortKey, timeFilter)
	e.used = make(map[string]struct{})
	snapshot := e.state.Clone()
	listeners := e.listeners
	e.mu.Unlock()

	e.logger.Info("feed reset",
		zap.String("channel", channelName),
		zap.String("sort", string(sortKey)),
		zap.String("time", string(timeFilter)),
		zap.Uint64("session", snapshot.Session),
	)

	notify(listeners, snapshot)
	return snapshot
}

// State returns a deep copy of the current state, and false before the first Reset.
func (e *Engine) State() (models.FeedState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return models.FeedState{}, false
	}
	return e.state.Clone(), true
}

// LoadNextPage fetches the page at the current cursor and merges it into the
// feed. It returns the current state unchanged when a fetch is already in
// flight or the feed has no more pages.
//
// A failed fetch returns a *TransportError, or an *ExhaustedError once the
// failure threshold is reached; the returned state is valid in both cases.
func (e *Engine) LoadNextPage(ctx context.Context) (models.FeedState, error) {
	e.mu.Lock()
	if e.state == nil {
		e.mu.Unlock()
		return models.FeedState{}, ErrNoSession
	}
	if e.state.Loading || !e.state.HasMore {
		snapshot := e.state.Clone()
		e.mu.Unlock()
		return snapshot, nil
	}

	e.state.Loading = true
	req := kick.PageRequest{
		Channel: e.state.ChannelName,
		Sort:    e.state.SortKey,
		Time:    e.state.TimeFilter,
	}
	if e.state.Cursor != nil {
		cursor := *e.state.Cursor
		req.Cursor = &cursor
		e.used[cursor] = struct{}{}
	}
	session := e.state.Session
	snapshot := e.state.Clone()
	listeners := e.listeners
	e.mu.Unlock()

	notify(listeners, snapshot)

	started := e.now()
	page, fetchErr := e.gateway.FetchPage(ctx, req)
	elapsed := e.now().Sub(started)

	e.mu.Lock()
	if e.state == nil || e.state.Session != session {
		var current models.FeedState
		if e.state != nil {
			current = e.state.Clone()
		}
		e.mu.Unlock()

		e.metrics.ObserveFetch(metrics.FetchStale, elapsed)
		e.logger.Debug("discarding stale page response",
			zap.String("channel", req.Channel),
			zap.Uint64("session", session),
		)
		return current, ErrStaleResponse
	}

	var err error
	switch {
	case fetchErr != nil && ctx.Err() != nil:
		// The caller went away; the upstream did not fail.
		e.state.Loading = false
		err = ctx.Err()
	case fetchErr != nil:
		err = e.applyFailure(fetchErr)
		e.metrics.ObserveFetch(metrics.FetchFailure, elapsed)
	default:
		e.applySuccess(req.Cursor, page)
		e.metrics.ObserveFetch(metrics.FetchSuccess, elapsed)
	}

	snapshot = e.state.Clone()
	listeners = e.listeners
	e.mu.Unlock()

	notify(listeners, snapshot)
	return snapshot, err
}

// applySuccess must be called with mu held.
func (e *Engine) applySuccess(requestCursor *string, page *models.RawPage) {
	s := e.state

	var records []models.ClipRecord
	if page != nil {
		records = page.Records()
	}

	unique, seen := dedup.Filter(s.SeenIDs, records)
	s.Items = append(s.Items, unique...)
	s.SeenIDs = seen
	s.Loading = false
	s.ConsecutiveFailures = 0
	s.Error = nil
	e.metrics.ClipsAppended(len(unique))

	var next *string
	if page != nil {
		next = page.Next()
	}

	switch {
	case len(records) == 0:
		s.HasMore = false
	case next == nil:
		s.HasMore = false
	case requestCursor != nil && *next == *requestCursor:
		s.HasMore = false
	default:
		if _, cycled := e.used[*next]; cycled {
			s.HasMore = false
			break
		}
		cursor := *next
		s.Cursor = &cursor
		s.HasMore = true
	}

	e.logger.Debug("page applied",
		zap.String("channel", s.ChannelName),
		zap.Int("received", len(records)),
		zap.Int("appended", len(unique)),
		zap.Int("total", len(s.Items)),
		zap.Bool("hasMore", s.HasMore),
	)
}

// applyFailure must be called with mu held.
func (e *Engine) applyFailure(fetchErr error) error {
	s := e.state

	var transportErr *TransportError
	if !errors.As(fetchErr, &transportErr) {
		transportErr = &TransportError{Err: fetchErr}
	}

	s.Loading = false
	s.ConsecutiveFailures++
	s.Error = &models.ErrorInfo{
		Message:    transportErr.Error(),
		StatusCode: transportErr.StatusCode,
		OccurredAt: e.now(),
	}

	if s.ConsecutiveFailures >= e.threshold {
		s.HasMore = false
		s.Exhausted = true
		e.metrics.FeedExhausted()
		e.logger.Warn("feed exhausted",
			zap.String("channel", s.ChannelName),
			zap.Int("failures", s.ConsecutiveFailures),
			zap.Error(transportErr),
		)
		return &ExhaustedError{Last: transportErr, Failures: s.ConsecutiveFailures}
	}

	e.logger.Warn("page fetch failed",
		zap.String("channel", s.ChannelName),
		zap.Int("failures", s.ConsecutiveFailures),
		zap.Error(transportErr),
	)
	return transportErr
}

func notify(listeners []Listener, snapshot models.FeedState) {
	for _, fn := range listeners {
		fn(snapshot)
	}
}
