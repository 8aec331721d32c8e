package usagekpi

import (
	"github.com/kilianp07/errandplan/core/metrics/usage"
	"github.com/kilianp07/errandplan/core/runlog"
)

// Backfill replays historical planning runs into the usage KPI store, for
// rebuilding aggregates after switching store backends. categories maps a
// definition ID to its category; unschedulable entries carry no category of
// their own.
func Backfill(store usage.Store, history []runlog.RunRecord, categories map[string]string) error {
	for _, run := range history {
		for _, p := range run.Placed {
			rec := usage.Record{
				Category:    p.Category,
				Date:        usage.Day(p.Date),
				PlannedMin:  p.End.Sub(p.Start).Minutes(),
				TravelMin:   p.TravelMin,
				TravelKm:    p.TravelKm,
				Occurrences: 1,
			}
			if err := store.Add(rec); err != nil {
				return err
			}
		}
		for _, u := range run.Unschedulable {
			rec := usage.Record{
				Category:      categories[u.DefinitionID],
				Date:          usage.Day(u.Date),
				Unschedulable: 1,
			}
			if err := store.Add(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
