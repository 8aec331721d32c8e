package calendar

import (
	"context"
	"sort"

	"github.com/kilianp07/errandplan/core/model"
)

// Provider supplies the user's existing commitments for a horizon. The
// planner treats them as read-only input; sync and authentication live
// behind the adapter.
type Provider interface {
	BusyEvents(ctx context.Context, h model.Horizon) ([]model.BusyEvent, error)
}

// Fixture serves a fixed event list, filtered to the requested horizon.
// Scenario files and tests use it in place of a live calendar.
type Fixture struct {
	Events []model.BusyEvent
}

func (f Fixture) BusyEvents(_ context.Context, h model.Horizon) ([]model.BusyEvent, error) {
	var out []model.BusyEvent
	for _, e := range f.Events {
		if e.End.After(h.Start) && e.Start.Before(h.End()) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
