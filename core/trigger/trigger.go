package trigger

import "time"

// Announcer publishes schedule updates to external listeners. Replan
// requests travel the other way: trigger adapters surface them on the
// internal event bus as events.ReplanRequested.
type Announcer interface {
	// AnnounceRun tells listeners a planning run completed.
	AnnounceRun(runID string, placed, unschedulable int, at time.Time) error

	// Close tears down the connection.
	Close()
}

// NopAnnouncer drops announcements, used when no external channel is
// configured.
type NopAnnouncer struct{}

func (NopAnnouncer) AnnounceRun(string, int, int, time.Time) error { return nil }
func (NopAnnouncer) Close()                                        {}
