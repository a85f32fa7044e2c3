// Package validation checks client input before it reaches the engines.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/clipdeck/kick-clips-go/internal/models"
)

// DefaultMaxBatchSize bounds the number of clips in one download request.
const DefaultMaxBatchSize = 100

var (
	channelNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	clipIDRegex      = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

// FeedQuery is a validated, normalized feed reset request.
type FeedQuery struct {
	ChannelName string
	Sort        models.SortKey
	Time        models.TimeFilter
}

type Validator struct {
	maxBatchSize int
}

func New(maxBatchSize int) *Validator {
	if maxBatchSize < 1 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &Validator{maxBatchSize: maxBatchSize}
}

// ValidateFeedRequest normalizes dto. An empty sort means views and an empty
// time filter means all time.
func (v *Validator) ValidateFeedRequest(dto *models.ResetFeedDTO) (FeedQuery, error) {
	channel := strings.TrimSpace(dto.ChannelName)
	if !v.IsValidChannelName(channel) {
		return FeedQuery{}, fmt.Errorf("invalid channel name format: %q", dto.ChannelName)
	}

	sortKey, err := ParseSortKey(dto.Sort)
	if err != nil {
		return FeedQuery{}, err
	}

	timeFilter, err := ParseTimeFilter(dto.Time)
	if err != nil {
		return FeedQuery{}, err
	}

	return FeedQuery{ChannelName: channel, Sort: sortKey, Time: timeFilter}, nil
}

// ValidateDownloadRequest checks the clip ids of dto and returns them with
// duplicates removed, in request order.
func (v *Validator) ValidateDownloadRequest(dto *models.DownloadRequestDTO) ([]string, error) {
	if len(dto.ClipIDs) == 0 {
		return nil, fmt.Errorf("at least one clip id is required")
	}
	if len(dto.ClipIDs) > v.maxBatchSize {
		return nil, fmt.Errorf("too many clips in one request: %d (max %d)", len(dto.ClipIDs), v.maxBatchSize)
	}

	seen := make(map[string]struct{}, len(dto.ClipIDs))
	ids := make([]string, 0, len(dto.ClipIDs))
	for _, id := range dto.ClipIDs {
		if !v.IsValidClipID(id) {
			return nil, fmt.Errorf("invalid clip id format: %q", id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (v *Validator) IsValidClipID(clipID string) bool {
	return clipIDRegex.MatchString(clipID)
}

func (v *Validator) IsValidChannelName(name string) bool {
	return channelNameRegex.MatchString(name)
}

// ParseSortKey maps "" to views and rejects unknown orderings.
func ParseSortKey(s string) (models.SortKey, error) {
	switch models.SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", models.SortByViews:
		return models.SortByViews, nil
	case models.SortByDate:
		return models.SortByDate, nil
	default:
		return "", fmt.Errorf("invalid sort %q: must be one of view, date", s)
	}
}

// ParseTimeFilter maps "" to all time and rejects unknown windows.
func ParseTimeFilter(s string) (models.TimeFilter, error) {
	switch tf := models.TimeFilter(strings.ToLower(strings.TrimSpace(s))); tf {
	case "":
		return models.TimeAll, nil
	case models.TimeAll, models.TimeMonth, models.TimeWeek, models.TimeDay:
		return tf, nil
	default:
		return "", fmt.Errorf("invalid time filter %q: must be one of all, month, week, day", s)
	}
}
