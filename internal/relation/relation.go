// Package relation keeps a log's related-log references consistent when it
// is saved: ids are cleaned up and their display titles re-resolved.
package relation

import (
	"context"
	"fmt"
	"strings"

	"mindlog/internal/models"

	mapset "github.com/deckarep/golang-set/v2"
)

const (
	// MissingTitle labels an id that no longer resolves to a log.
	MissingTitle = "Unknown/Deleted Log"
	// UntitledTitle labels a log whose title is blank.
	UntitledTitle = "Untitled Log"
)

// TitleResolver looks up the current titles of a batch of logs as viewerID
// sees them. Ids that do not exist or that viewerID may not read are simply
// absent from the result.
type TitleResolver interface {
	TitlesByID(ctx context.Context, viewerID uint, ids []uint) (map[uint]string, error)
}

// Normalize drops zero ids and selfID, and collapses duplicates while
// keeping first-seen order.
func Normalize(selfID uint, ids []uint) []uint {
	seen := mapset.NewThreadUnsafeSet[uint]()
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || id == selfID {
			continue
		}
		if !seen.Add(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// ResolveTitles returns one title per id, in the same order, as viewerID
// sees them. Logs hidden from viewerID resolve to MissingTitle.
func ResolveTitles(ctx context.Context, resolver TitleResolver, viewerID uint, ids []uint) ([]string, error) {
	titles := make([]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}
	found, err := resolver.TitlesByID(ctx, viewerID, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve related titles: %w", err)
	}
	for i, id := range ids {
		title, ok := found[id]
		switch {
		case !ok:
			titles[i] = MissingTitle
		case strings.TrimSpace(title) == "":
			titles[i] = UntitledTitle
		default:
			titles[i] = title
		}
	}
	return titles, nil
}

// Apply normalizes the relation ids of l and recomputes its cached titles
// with the visibility of l's owner. l.ID is treated as the self reference,
// so it must be set for updates.
func Apply(ctx context.Context, resolver TitleResolver, l *models.Log, ids []uint) error {
	cleaned := Normalize(l.ID, ids)
	titles, err := ResolveTitles(ctx, resolver, l.OwnerID, cleaned)
	if err != nil {
		return err
	}
	l.RelatedLogIDs = cleaned
	l.RelatedLogTitles = titles
	return nil
}

// Stale reports whether cached titles differ from freshly resolved ones.
func Stale(cached, fresh []string) bool {
	if len(cached) != len(fresh) {
		return true
	}
	for i := range cached {
		if cached[i] != fresh[i] {
			return true
		}
	}
	return false
}
