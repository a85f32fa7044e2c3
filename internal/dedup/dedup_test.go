package dedup

import (
	"testing"

	"github.com/clipdeck/kick-clips-go/internal/models"
	"github.com/stretchr/testify/assert"
)

func clips(ids ...string) []models.ClipRecord {
	out := make([]models.ClipRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.ClipRecord{ID: id})
	}
	return out
}

func ids(records []models.ClipRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func set(ids ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name       string
		seen       map[string]struct{}
		incoming   []models.ClipRecord
		wantUnique []string
		wantSeen   map[string]struct{}
	}{
		{
			name:       "empty seen set keeps everything",
			seen:       set(),
			incoming:   clips("a", "b", "c"),
			wantUnique: []string{"a", "b", "c"},
			wantSeen:   set("a", "b", "c"),
		},
		{
			name:       "drops already seen ids and keeps order",
			seen:       set("b", "c"),
			incoming:   clips("c", "d", "b", "e"),
			wantUnique: []string{"d", "e"},
			wantSeen:   set("b", "c", "d", "e"),
		},
		{
			name:       "drops duplicates within one page",
			seen:       set(),
			incoming:   clips("x", "y", "x"),
			wantUnique: []string{"x", "y"},
			wantSeen:   set("x", "y"),
		},
		{
			name:       "fully duplicate page yields nothing",
			seen:       set("a"),
			incoming:   clips("a", "a"),
			wantUnique: []string{},
			wantSeen:   set("a"),
		},
		{
			name:       "nil inputs",
			seen:       nil,
			incoming:   nil,
			wantUnique: []string{},
			wantSeen:   set(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unique, updated := Filter(tt.seen, tt.incoming)
			assert.Equal(t, tt.wantUnique, ids(unique))
			assert.Equal(t, tt.wantSeen, updated)
		})
	}
}

func TestFilter_DoesNotMutateInputs(t *testing.T) {
	seen := set("a")
	incoming := clips("a", "b")

	_, updated := Filter(seen, incoming)
	updated["zzz"] = struct{}{}

	assert.Equal(t, set("a"), seen)
	assert.Equal(t, []string{"a", "b"}, ids(incoming))
}
