package handler

import (
	"context"

	"github.com/clipdeck/kick-clips-go/internal/download"
	"github.com/clipdeck/kick-clips-go/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockFeedEngine struct {
	mock.Mock
}

func (m *mockFeedEngine) Reset(channelName string, sortKey models.SortKey, timeFilter models.TimeFilter) models.FeedState {
	args := m.Called(channelName, sortKey, timeFilter)
	return args.Get(0).(models.FeedState)
}

func (m *mockFeedEngine) State() (models.FeedState, bool) {
	args := m.Called()
	return args.Get(0).(models.FeedState), args.Bool(1)
}

func (m *mockFeedEngine) LoadNextPage(ctx context.Context) (models.FeedState, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.FeedState), args.Error(1)
}

type mockRecent struct {
	mock.Mock
}

func (m *mockRecent) Push(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockRecent) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockManager struct {
	mock.Mock
}

func (m *mockManager) BatchEnqueue(clips []models.ClipRecord) download.BatchResult {
	return m.Called(clips).Get(0).(download.BatchResult)
}

func (m *mockManager) Downloads() []models.DownloadRecord {
	return m.Called().Get(0).([]models.DownloadRecord)
}

func (m *mockManager) Transfers() []models.TransferState {
	return m.Called().Get(0).([]models.TransferState)
}

func (m *mockManager) Cancel(clipID string) bool {
	return m.Called(clipID).Bool(0)
}

func (m *mockManager) Remove(ctx context.Context, clipID string) error {
	return m.Called(ctx, clipID).Error(0)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

type stubChecker bool

func (c stubChecker) IsHealthy() bool {
	return bool(c)
}
