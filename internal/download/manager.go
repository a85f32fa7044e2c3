// Package download tracks in-flight clip transfers and the registry of
// completed downloads.
package download

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clipdeck/kick-clips-go/internal/metrics"
	"github.com/clipdeck/kick-clips-go/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultPersistTimeout = 10 * time.Second

// Listener receives lifecycle events.
type Listener func(Event)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records transfer outcomes and registry size on mt.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithStore persists the registry. Without a store the registry lives in memory only.
func WithStore(store Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithFileRemover deletes local files on Remove and after a failed completion.
func WithFileRemover(files FileRemover) Option {
	return func(m *Manager) {
		m.files = files
	}
}

// WithDestination sets how a clip id maps to a local path.
func WithDestination(fn func(clipID string) string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.destination = fn
		}
	}
}

// WithClock overrides time.Now for transfer and record timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

type transfer struct {
	cancel context.CancelFunc
	state  models.TransferState
	// persisting is set once the executor has completed and the record is
	// being written to the store. The entry stays in the map until the
	// registry holds the record or the failure is recorded.
	persisting bool
}

// Manager owns the download registry and the active transfer of each clip.
// Mutations happen under mu; the executor, store and listeners are called
// with mu released.
type Manager struct {
	executor    Executor
	store       Store
	files       FileRemover
	logger      *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	destination func(clipID string) string
	baseCtx     context.Context
	stop        context.CancelFunc
	registry    map[string]models.DownloadRecord
	transfers   map[string]*transfer
	failures    map[string]*TransferFailure
	listeners   []Listener
	mu          sync.Mutex
}

// NewManager creates a Manager that starts transfers on executor.
func NewManager(executor Executor, opts ...Option) *Manager {
	ctx, stop := context.WithCancel(context.Background())
	m := &Manager{
		executor:    executor,
		logger:      zap.NewNop(),
		now:         time.Now,
		destination: func(clipID string) string { return clipID + ".mp4" },
		baseCtx:     ctx,
		stop:        stop,
		registry:    make(map[string]models.DownloadRecord),
		transfers:   make(map[string]*transfer),
		failures:    make(map[string]*TransferFailure),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers fn for lifecycle events.
func (m *Manager) Subscribe(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Load replaces the in-memory registry with the contents of the store.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	records, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load download registry: %w", err)
	}

	m.mu.Lock()
	m.registry = make(map[string]models.DownloadRecord, len(records))
	for _, rec := range records {
		m.registry[rec.ClipID] = *rec
	}
	size := len(m.registry)
	m.mu.Unlock()

	m.metrics.SetRegistrySize(size)
	m.logger.Info("download registry loaded", zap.Int("records", size))
	return nil
}

// Enqueue starts a transfer of clip, or returns the clip's active transfer.
// An executor that rejects the request fails the transfer with a *TransferFailure.
func (m *Manager) Enqueue(clip models.ClipRecord) (TransferHandle, error) {
	m.mu.Lock()
	if t, ok := m.transfers[clip.ID]; ok && t.state.Status.IsActive() {
		handle := TransferHandle{ID: t.state.ID, ClipID: clip.ID, Reused: true}
		m.mu.Unlock()
		return handle, nil
	}

	now := m.now()
	ctx, cancel := context.WithCancel(m.baseCtx)
	t := &transfer{
		cancel: cancel,
		state: models.TransferState{
			ID:           uuid.New(),
			ClipID:       clip.ID,
			Title:        clip.Title,
			ChannelName:  clip.ChannelName,
			ThumbnailURL: clip.ThumbnailURL,
			SourceURL:    clip.VideoURL,
			Destination:  m.destination(clip.ID),
			TotalBytes:   -1,
			Status:       models.TransferQueued,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	m.transfers[clip.ID] = t
	delete(m.failures, clip.ID)
	active := m.activeCountLocked()
	listeners := m.listeners
	m.mu.Unlock()

	handle := TransferHandle{ID: t.state.ID, ClipID: clip.ID}
	m.metrics.TransferStarted()
	m.metrics.SetActiveTransfers(active)
	m.emit(listeners, m.stateEvent(EventQueued, t.state))

	req := Request{ClipID: clip.ID, SourceURL: clip.VideoURL, Destination: t.state.Destination}
	sink := &boundSink{manager: m, clipID: clip.ID, id: t.state.ID}
	if err := m.executor.Transfer(ctx, req, sink); err != nil {
		failure := m.fail(clip.ID, t.state.ID, fmt.Errorf("start transfer: %w", err))
		if failure == nil {
			failure = &TransferFailure{Reason: err, ClipID: clip.ID, TransferID: t.state.ID, OccurredAt: m.now()}
		}
		return handle, failure
	}

	m.logger.Info("transfer queued",
		zap.String("clipId", clip.ID),
		zap.String("transferId", t.state.ID.String()),
		zap.String("destination", t.state.Destination),
	)
	return handle, nil
}

// BatchEnqueue enqueues every clip not already downloaded.
func (m *Manager) BatchEnqueue(clips []models.ClipRecord) BatchResult {
	result := BatchResult{Failed: make(map[string]error)}

	for _, clip := range clips {
		if m.IsDownloaded(clip.ID) {
			result.AlreadyDownloaded = append(result.AlreadyDownloaded, clip.ID)
			continue
		}

		handle, err := m.Enqueue(clip)
		switch {
		case err != nil:
			result.Failed[clip.ID] = err
		case handle.Reused:
			result.InProgress = append(result.InProgress, handle)
		default:
			result.Started = append(result.Started, handle)
		}
	}

	m.logger.Info("batch enqueue",
		zap.Int("requested", len(clips)),
		zap.Int("started", len(result.Started)),
		zap.Int("inProgress", len(result.InProgress)),
		zap.Int("alreadyDownloaded", len(result.AlreadyDownloaded)),
		zap.Int("failed", len(result.Failed)),
	)
	return result
}

// OnProgress records transfer progress. It is a no-op when clipID has no
// active transfer.
func (m *Manager) OnProgress(clipID string, written, total int64) {
	m.progress(clipID, uuid.Nil, written, total)
}

// OnCompleted moves the active transfer of clipID into the registry. The
// record is persisted first; if that fails the transfer fails instead and the
// registry is left unchanged.
func (m *Manager) OnCompleted(ctx context.Context, clipID, localURI string) error {
	return m.complete(ctx, clipID, uuid.Nil, localURI)
}

// OnFailed fails the active transfer of clipID and returns the recorded
// *TransferFailure. The registry is not touched.
func (m *Manager) OnFailed(clipID string, reason error) error {
	if failure := m.fail(clipID, uuid.Nil, reason); failure != nil {
		return failure
	}
	return ErrNoActiveTransfer
}

// Cancel stops the active transfer of clipID. It reports false when there is none.
func (m *Manager) Cancel(clipID string) bool {
	m.mu.Lock()
	t, ok := m.activeLocked(clipID, uuid.Nil)
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.transfers, clipID)
	t.state.Status = models.TransferCancelled
	t.state.UpdatedAt = m.now()
	active := m.activeCountLocked()
	listeners := m.listeners
	m.mu.Unlock()

	t.cancel()
	m.metrics.TransferFinished(string(models.TransferCancelled))
	m.metrics.SetActiveTransfers(active)
	m.emit(listeners, m.stateEvent(EventCancelled, t.state))

	m.logger.Info("transfer cancelled",
		zap.String("clipId", clipID),
		zap.String("transferId", t.state.ID.String()),
	)
	return true
}

// Remove drops clipID from the registry, then deletes the stored record and
// the local file. Store and file errors are returned but never restore the entry.
func (m *Manager) Remove(ctx context.Context, clipID string) error {
	m.mu.Lock()
	rec, ok := m.registry[clipID]
	if !ok {
		m.mu.Unlock()
		return ErrNotDownloaded
	}
	delete(m.registry, clipID)
	size := len(m.registry)
	listeners := m.listeners
	m.mu.Unlock()

	m.metrics.SetRegistrySize(size)
	m.emit(listeners, Event{
		ID:          uuid.New(),
		Kind:        EventRemoved,
		ClipID:      clipID,
		Title:       rec.Title,
		ChannelName: rec.ChannelName,
		LocalURI:    rec.LocalURI,
		OccurredAt:  m.now(),
	})

	var errs []error
	if m.store != nil {
		if err := m.store.Delete(ctx, clipID); err != nil {
			errs = append(errs, fmt.Errorf("delete registry record: %w", err))
		}
	}
	if m.files != nil && rec.LocalURI != "" {
		if err := m.files.RemoveFile(rec.LocalURI); err != nil {
			errs = append(errs, fmt.Errorf("delete local file: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		m.logger.Warn("download removed with errors", zap.String("clipId", clipID), zap.Error(err))
		return err
	}

	m.logger.Info("download removed", zap.String("clipId", clipID))
	return nil
}

// Downloads returns the registry, newest first.
func (m *Manager) Downloads() []models.DownloadRecord {
	m.mu.Lock()
	out := make([]models.DownloadRecord, 0, len(m.registry))
	for _, rec := range m.registry {
		out = append(out, rec)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DownloadedAt.Equal(out[j].DownloadedAt) {
			return out[i].ClipID < out[j].ClipID
		}
		return out[i].DownloadedAt.After(out[j].DownloadedAt)
	})
	return out
}

// Transfers returns the active transfers in the order they were enqueued.
func (m *Manager) Transfers() []models.TransferState {
	m.mu.Lock()
	out := make([]models.TransferState, 0, len(m.transfers))
	for _, t := range m.transfers {
		out = append(out, t.state)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ClipID < out[j].ClipID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Transfer returns the active transfer of clipID.
func (m *Manager) Transfer(clipID string) (models.TransferState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transfers[clipID]
	if !ok || !t.state.Status.IsActive() {
		return models.TransferState{}, false
	}
	return t.state, true
}

func (m *Manager) IsDownloaded(clipID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.registry[clipID]
	return ok
}

// LastFailure returns the most recent failure of clipID since its last enqueue.
func (m *Manager) LastFailure(clipID string) (*TransferFailure, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.failures[clipID]
	return f, ok
}

// Close cancels every active transfer. The registry is kept.
func (m *Manager) Close() {
	m.mu.Lock()
	cancelled := len(m.transfers)
	m.transfers = make(map[string]*transfer)
	m.mu.Unlock()

	m.stop()
	m.metrics.SetActiveTransfers(0)
	m.logger.Info("download manager closed", zap.Int("cancelledTransfers", cancelled))
}

func (m *Manager) started(clipID string, id uuid.UUID) {
	m.mu.Lock()
	t, ok := m.activeLocked(clipID, id)
	if !ok || t.state.Status != models.TransferQueued {
		m.mu.Unlock()
		return
	}
	t.state.Status = models.TransferInProgress
	t.state.UpdatedAt = m.now()
	state := t.state
	listeners := m.listeners
	m.mu.Unlock()

	m.emit(listeners, m.stateEvent(EventStarted, state))
}

func (m *Manager) progress(clipID string, id uuid.UUID, written, total int64) {
	m.mu.Lock()
	t, ok := m.activeLocked(clipID, id)
	if !ok {
		m.mu.Unlock()
		m.logger.Debug("ignoring progress for inactive transfer", zap.String("clipId", clipID))
		return
	}
	if t.state.Status == models.TransferQueued {
		t.state.Status = models.TransferInProgress
	}
	t.state.BytesWritten = written
	t.state.TotalBytes = total
	t.state.UpdatedAt = m.now()
	state := t.state
	listeners := m.listeners
	m.mu.Unlock()

	m.emit(listeners, m.stateEvent(EventProgress, state))
}

func (m *Manager) complete(ctx context.Context, clipID string, id uuid.UUID, localURI string) error {
	m.mu.Lock()
	t, ok := m.activeLocked(clipID, id)
	if !ok {
		m.mu.Unlock()
		m.logger.Debug("ignoring completion for inactive transfer", zap.String("clipId", clipID))
		return ErrNoActiveTransfer
	}
	// The entry stays visible to Enqueue while the record is persisted, but
	// sinks and Cancel no longer see it.
	t.persisting = true
	state := t.state
	m.mu.Unlock()

	t.cancel()

	rec := models.DownloadRecord{
		ClipID:       clipID,
		Title:        state.Title,
		ChannelName:  state.ChannelName,
		ThumbnailURL: state.ThumbnailURL,
		LocalURI:     localURI,
		DownloadedAt: m.now(),
	}

	if m.store != nil {
		if err := m.store.Save(ctx, &rec); err != nil {
			if m.files != nil {
				if rmErr := m.files.RemoveFile(localURI); rmErr != nil {
					m.logger.Warn("failed to remove unregistered file", zap.String("path", localURI), zap.Error(rmErr))
				}
			}
			return m.recordFailure(t, state, fmt.Errorf("persist download record: %w", err))
		}
	}

	m.mu.Lock()
	m.releaseLocked(t)
	m.registry[clipID] = rec
	size := len(m.registry)
	active := m.activeCountLocked()
	listeners := m.listeners
	m.mu.Unlock()

	state.Status = models.TransferCompleted
	state.UpdatedAt = rec.DownloadedAt
	m.metrics.TransferFinished(string(models.TransferCompleted))
	m.metrics.SetActiveTransfers(active)
	m.metrics.SetRegistrySize(size)

	ev := m.stateEvent(EventCompleted, state)
	ev.LocalURI = localURI
	m.emit(listeners, ev)

	m.logger.Info("transfer completed",
		zap.String("clipId", clipID),
		zap.String("transferId", state.ID.String()),
		zap.String("localUri", localURI),
	)
	return nil
}

// fail removes the active transfer and records the failure. It returns nil
// when there was no matching active transfer.
func (m *Manager) fail(clipID string, id uuid.UUID, reason error) *TransferFailure {
	m.mu.Lock()
	t, ok := m.activeLocked(clipID, id)
	if !ok {
		m.mu.Unlock()
		m.logger.Debug("ignoring failure for inactive transfer", zap.String("clipId", clipID), zap.Error(reason))
		return nil
	}
	delete(m.transfers, clipID)
	m.mu.Unlock()

	t.cancel()
	return m.recordFailure(nil, t.state, reason)
}

// recordFailure stores the failure of state. A non-nil t is released from the
// transfer map in the same critical section.
func (m *Manager) recordFailure(t *transfer, state models.TransferState, reason error) *TransferFailure {
	failure := &TransferFailure{
		Reason:     reason,
		ClipID:     state.ClipID,
		TransferID: state.ID,
		OccurredAt: m.now(),
	}
	state.Status = models.TransferFailed
	state.UpdatedAt = failure.OccurredAt

	m.mu.Lock()
	if t != nil {
		m.releaseLocked(t)
	}
	m.failures[state.ClipID] = failure
	active := m.activeCountLocked()
	listeners := m.listeners
	m.mu.Unlock()

	m.metrics.TransferFinished(string(models.TransferFailed))
	m.metrics.SetActiveTransfers(active)

	ev := m.stateEvent(EventFailed, state)
	ev.Reason = reason.Error()
	m.emit(listeners, ev)

	m.logger.Warn("transfer failed",
		zap.String("clipId", state.ClipID),
		zap.String("transferId", state.ID.String()),
		zap.Error(reason),
	)
	return failure
}

// activeLocked returns the active transfer of clipID. A non-nil id must match
// the transfer's handle. A transfer whose record is being persisted is not
// returned. Must be called with mu held.
func (m *Manager) activeLocked(clipID string, id uuid.UUID) (*transfer, bool) {
	t, ok := m.transfers[clipID]
	if !ok || t.persisting || !t.state.Status.IsActive() {
		return nil, false
	}
	if id != uuid.Nil && t.state.ID != id {
		return nil, false
	}
	return t, true
}

// releaseLocked drops t from the transfer map unless Close already did.
func (m *Manager) releaseLocked(t *transfer) {
	if cur, ok := m.transfers[t.state.ClipID]; ok && cur == t {
		delete(m.transfers, t.state.ClipID)
	}
}

func (m *Manager) activeCountLocked() int {
	return len(m.transfers)
}

func (m *Manager) stateEvent(kind EventKind, state models.TransferState) Event {
	return Event{
		ID:           uuid.New(),
		Kind:         kind,
		ClipID:       state.ClipID,
		TransferID:   state.ID,
		Title:        state.Title,
		ChannelName:  state.ChannelName,
		BytesWritten: state.BytesWritten,
		TotalBytes:   state.TotalBytes,
		OccurredAt:   state.UpdatedAt,
	}
}

func (m *Manager) emit(listeners []Listener, ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}

// boundSink forwards executor callbacks for one transfer handle.
type boundSink struct {
	manager *Manager
	clipID  string
	id      uuid.UUID
}

func (s *boundSink) Started() {
	s.manager.started(s.clipID, s.id)
}

func (s *boundSink) Progress(written, total int64) {
	s.manager.progress(s.clipID, s.id, written, total)
}

func (s *boundSink) Completed(localURI string) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultPersistTimeout)
	defer cancel()

	err := s.manager.complete(ctx, s.clipID, s.id, localURI)
	if err != nil && !errors.Is(err, ErrNoActiveTransfer) {
		s.manager.logger.Error("transfer completion failed", zap.String("clipId", s.clipID), zap.Error(err))
	}
}

func (s *boundSink) Failed(reason error) {
	s.manager.fail(s.clipID, s.id, reason)
}
