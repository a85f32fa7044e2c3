// Package dedup filters clip pages against the ids a feed has already shown.
package dedup

import "github.com/clipdeck/kick-clips-go/internal/models"

// Filter returns the clips of incoming whose ids are not in seen, in their
// original order, together with a new set holding seen plus the accepted ids.
// A clip repeated within incoming is kept only once. Neither input is modified.
func Filter(seen map[string]struct{}, incoming []models.ClipRecord) ([]models.ClipRecord, map[string]struct{}) {
	updated := make(map[string]struct{}, len(seen)+len(incoming))
	for id := range seen {
		updated[id] = struct{}{}
	}

	unique := make([]models.ClipRecord, 0, len(incoming))
	for _, clip := range incoming {
		if _, ok := updated[clip.ID]; ok {
			continue
		}
		updated[clip.ID] = struct{}{}
		unique = append(unique, clip)
	}

	return unique, updated
}
