package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ClipID is an upstream clip identifier. The upstream sends either a JSON
// string or a JSON number; both decode to the same textual form.
type ClipID string

// UnmarshalJSON accepts string and numeric identifiers.
func (id *ClipID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode clip id: %w", err)
		}
		*id = ClipID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode clip id: %w", err)
	}
	*id = ClipID(n.String())
	return nil
}

// RawChannel is the nested channel object of a raw clip.
type RawChannel struct {
	Username string `json:"username"`
	Slug     string `json:"slug"`
}

// RawClip is a clip as returned by the upstream listing.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RawClip struct {
	ID           ClipID      `json:"id"`
	Title        string      `json:"title"`
	ChannelName  string      `json:"channel_name"`
	Channel      *RawChannel `json:"channel"`
	ThumbnailURL string      `json:"thumbnail_url"`
	VideoURL     string      `json:"video_url"`
	ClipURL      string      `json:"clip_url"`
	Duration     float64     `json:"duration"`
	Views        int64       `json:"views"`
	ViewCount    int64       `json:"view_count"`
	CreatedAt    string      `json:"created_at"`
}

// RawPage is one page of the upstream listing.
type RawPage struct {
	Clips      []RawClip `json:"clips"`
	NextCursor *string   `json:"nextCursor"`
	// Cursor is the legacy name of NextCursor.
	Cursor *string `json:"cursor"`
}

// Next returns the continuation token of the page, or nil when there is none.
func (p *RawPage) Next() *string {
	next := p.NextCursor
	if next == nil {
		next = p.Cursor
	}
	if next == nil || *next == "" {
		return nil
	}
	return next
}

// Records converts every raw clip of the page, preserving order.
func (p *RawPage) Records() []ClipRecord {
	records := make([]ClipRecord, 0, len(p.Clips))
	for i := range p.Clips {
		records = append(records, p.Clips[i].ToClipRecord())
	}
	return records
}

// ToClipRecord converts the raw clip into the domain record.
func (c *RawClip) ToClipRecord() ClipRecord {
	channel := c.ChannelName
	if channel == "" && c.Channel != nil {
		channel = c.Channel.Username
		if channel == "" {
			channel = c.Channel.Slug
		}
	}

	videoURL := c.VideoURL
	if videoURL == "" {
		videoURL = c.ClipURL
	}

	views := c.Views
	if views == 0 {
		views = c.ViewCount
	}

	return ClipRecord{
		ID:              string(c.ID),
		Title:           c.Title,
		ChannelName:     channel,
		ThumbnailURL:    c.ThumbnailURL,
		VideoURL:        videoURL,
		DurationSeconds: int(c.Duration),
		ViewCount:       views,
		CreatedAt:       parseCreatedAt(c.CreatedAt),
	}
}

func parseCreatedAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC()
	}
	return time.Time{}
}
