package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawPage_Decode(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantIDs    []string
		wantCursor *string
	}{
		{
			name:       "numeric ids with nextCursor",
			body:       `{"clips":[{"id":1},{"id":2}],"nextCursor":"c1"}`,
			wantIDs:    []string{"1", "2"},
			wantCursor: strPtr("c1"),
		},
		{
			name:       "string ids with legacy cursor",
			body:       `{"clips":[{"id":"clip_01"}],"cursor":"abc"}`,
			wantIDs:    []string{"clip_01"},
			wantCursor: strPtr("abc"),
		},
		{
			name:    "null cursor",
			body:    `{"clips":[{"id":"x"}],"nextCursor":null}`,
			wantIDs: []string{"x"},
		},
		{
			name:    "empty cursor is treated as absent",
			body:    `{"clips":[],"nextCursor":""}`,
			wantIDs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var page RawPage
			require.NoError(t, json.Unmarshal([]byte(tt.body), &page))

			ids := []string{}
			for _, rec := range page.Records() {
				ids = append(ids, rec.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantCursor, page.Next())
		})
	}
}

func TestRawClip_ToClipRecord(t *testing.T) {
	body := `{
		"id": "clip_9",
		"title": "big play",
		"channel": {"username": "alice", "slug": "alice"},
		"thumbnail_url": "https://img/9.jpg",
		"clip_url": "https://cdn/9.mp4",
		"duration": 31.6,
		"view_count": 420,
		"created_at": "2024-03-01T10:00:00Z"
	}`

	var raw RawClip
	require.NoError(t, json.Unmarshal([]byte(body), &raw))

	rec := raw.ToClipRecord()
	assert.Equal(t, "clip_9", rec.ID)
	assert.Equal(t, "alice", rec.ChannelName)
	assert.Equal(t, "https://cdn/9.mp4", rec.VideoURL)
	assert.Equal(t, 31, rec.DurationSeconds)
	assert.Equal(t, int64(420), rec.ViewCount)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), rec.CreatedAt)
}

func TestFeedState_Clone(t *testing.T) {
	state := NewFeedState(1, "alice", SortByViews, TimeAll)
	state.Items = append(state.Items, ClipRecord{ID: "1"})
	state.SeenIDs["1"] = struct{}{}
	state.Cursor = strPtr("c1")

	clone := state.Clone()
	clone.Items[0].ID = "changed"
	clone.SeenIDs["2"] = struct{}{}
	*clone.Cursor = "c2"

	assert.Equal(t, "1", state.Items[0].ID)
	assert.Len(t, state.SeenIDs, 1)
	assert.Equal(t, "c1", *state.Cursor)
}

func TestTransferState_Percent(t *testing.T) {
	tests := []struct {
		name    string
		written int64
		total   int64
		want    int
		wantOK  bool
	}{
		{name: "half", written: 50, total: 100, want: 50, wantOK: true},
		{name: "unknown total", written: 50, total: -1, wantOK: false},
		{name: "overshoot is capped", written: 150, total: 100, want: 100, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := &TransferState{BytesWritten: tt.written, TotalBytes: tt.total}
			got, ok := ts.Percent()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransferStatus(t *testing.T) {
	assert.True(t, TransferQueued.IsActive())
	assert.True(t, TransferInProgress.IsActive())
	assert.False(t, TransferCompleted.IsActive())
	assert.True(t, TransferCancelled.IsTerminal())
	assert.False(t, TransferQueued.IsTerminal())
}

func strPtr(s string) *string {
	return &s
}
