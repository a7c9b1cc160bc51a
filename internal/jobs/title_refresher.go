package jobs

import (
	"context"
	"fmt"
	"time"

	"mindlog/internal/middleware"
	"mindlog/internal/observability"
	"mindlog/internal/relation"
	"mindlog/internal/repository"

	mapset "github.com/deckarep/golang-set/v2"
)

const (
	DefaultTitleRefreshSchedule = "@every 10m"
	DefaultTitleRefreshBatch    = 200

	titleRefreshTimeout = 5 * time.Minute
)

// RefreshStats summarizes one refresher pass.
type RefreshStats struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
}

// TitleRefresher rewrites cached related-log titles that no longer match
// the titles of the logs they point at.
type TitleRefresher struct {
	logs      repository.LogRepository
	schedule  string
	batchSize int
}

func NewTitleRefresher(logs repository.LogRepository, schedule string, batchSize int) *TitleRefresher {
	if schedule == "" {
		schedule = DefaultTitleRefreshSchedule
	}
	if batchSize <= 0 {
		batchSize = DefaultTitleRefreshBatch
	}
	return &TitleRefresher{logs: logs, schedule: schedule, batchSize: batchSize}
}

func (r *TitleRefresher) Name() string     { return "title-refresher" }
func (r *TitleRefresher) Schedule() string { return r.schedule }

func (r *TitleRefresher) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), titleRefreshTimeout)
	defer cancel()

	start := time.Now()
	stats, err := r.RunOnce(ctx)
	if err != nil {
		middleware.Logger.Error("title refresh failed", "error", err, "scanned", stats.Scanned, "updated", stats.Updated)
		return
	}
	middleware.Logger.Info("title refresh finished",
		"scanned", stats.Scanned, "updated", stats.Updated, "duration", time.Since(start))
}

// RunOnce walks every log with relations in id order and writes back only
// the rows whose cached titles are stale. Titles are resolved with one
// query per owner in each batch.
func (r *TitleRefresher) RunOnce(ctx context.Context) (stats RefreshStats, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		observability.TitleRefreshRuns.WithLabelValues(outcome).Inc()
	}()

	var afterID uint
	for {
		batch, err := r.logs.ListWithRelations(ctx, afterID, r.batchSize)
		if err != nil {
			return stats, fmt.Errorf("list logs after %d: %w", afterID, err)
		}
		if len(batch) == 0 {
			return stats, nil
		}

		// Titles resolve as each row's owner sees them, so ids are grouped
		// per owner and looked up once per owner in the batch.
		idsByOwner := make(map[uint]mapset.Set[uint])
		for _, l := range batch {
			ids, ok := idsByOwner[l.OwnerID]
			if !ok {
				ids = mapset.NewThreadUnsafeSet[uint]()
				idsByOwner[l.OwnerID] = ids
			}
			ids.Append(l.RelatedLogIDs...)
		}
		resolvers := make(map[uint]knownTitles, len(idsByOwner))
		for ownerID, ids := range idsByOwner {
			found, err := r.logs.TitlesByID(ctx, ownerID, ids.ToSlice())
			if err != nil {
				return stats, fmt.Errorf("resolve titles for owner %d: %w", ownerID, err)
			}
			resolvers[ownerID] = knownTitles(found)
		}

		for _, l := range batch {
			stats.Scanned++
			fresh, err := relation.ResolveTitles(ctx, resolvers[l.OwnerID], l.OwnerID, l.RelatedLogIDs)
			if err != nil {
				return stats, err
			}
			if !relation.Stale(l.RelatedLogTitles, fresh) {
				continue
			}
			if err := r.logs.UpdateRelatedTitles(ctx, l.ID, fresh); err != nil {
				return stats, fmt.Errorf("update log %d: %w", l.ID, err)
			}
			stats.Updated++
			observability.TitleRefreshUpdates.Inc()
		}

		afterID = batch[len(batch)-1].ID
		if len(batch) < r.batchSize {
			return stats, nil
		}
	}
}

// knownTitles resolves from titles already fetched, with visibility applied,
// for one owner of the batch.
type knownTitles map[uint]string

func (k knownTitles) TitlesByID(_ context.Context, _ uint, ids []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(ids))
	for _, id := range ids {
		if title, ok := k[id]; ok {
			out[id] = title
		}
	}
	return out, nil
}
