// Package stats derives catalog overview numbers on demand; nothing here
// is persisted.
package stats

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rankboard/internal/model"
	"github.com/sells-group/rankboard/internal/store"
)

// Overview holds a point-in-time view of the catalog and review queue.
type Overview struct {
	// Review queue.
	PendingSubmissions  int `json:"pending_submissions"`
	ApprovedSubmissions int `json:"approved_submissions"`
	RejectedSubmissions int `json:"rejected_submissions"`

	// Catalog.
	TotalApps    int `json:"total_apps"`
	GroupApps    int `json:"group_apps"`
	ProvinceApps int `json:"province_apps"`

	// Ranking setup.
	ActiveConfigs    int `json:"active_configs"`
	ActiveDimensions int `json:"active_dimensions"`

	// LastSyncDate is the newest snapshot period across active configs,
	// empty until the first sync lands.
	LastSyncDate string `json:"last_sync_date,omitempty"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector derives overview numbers from the store.
type Collector struct {
	store store.Store
}

func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a fresh overview.
func (c *Collector) Collect(ctx context.Context) (*Overview, error) {
	o := &Overview{CollectedAt: time.Now().UTC()}

	counts, err := c.store.CountSubmissionsByStatus(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "stats: count submissions")
	}
	o.PendingSubmissions = counts[model.SubmissionPending]
	o.ApprovedSubmissions = counts[model.SubmissionApproved]
	o.RejectedSubmissions = counts[model.SubmissionRejected]

	total, err := c.store.CountApps(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "stats: count apps")
	}
	o.TotalApps = total

	group, err := c.store.ListApps(ctx, store.AppFilter{Section: model.SectionGroup, Limit: -1})
	if err != nil {
		return nil, eris.Wrap(err, "stats: list group apps")
	}
	o.GroupApps = len(group)
	o.ProvinceApps = total - len(group)

	configs, err := c.store.ListConfigs(ctx, true)
	if err != nil {
		return nil, eris.Wrap(err, "stats: list configs")
	}
	o.ActiveConfigs = len(configs)

	for _, cfg := range configs {
		dates, err := c.store.ListSnapshotDates(ctx, cfg.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "stats: snapshot dates for %s", cfg.ID)
		}
		if len(dates) > 0 && dates[0] > o.LastSyncDate {
			o.LastSyncDate = dates[0]
		}
	}

	dims, err := c.store.ListDimensions(ctx, true)
	if err != nil {
		return nil, eris.Wrap(err, "stats: list dimensions")
	}
	o.ActiveDimensions = len(dims)

	return o, nil
}
