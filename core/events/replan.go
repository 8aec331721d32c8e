package events

import "time"

// ReplanRequested is published when something invalidated the current
// schedule: a calendar change, an API call, an MQTT trigger or the cron
// schedule. The app layer reacts by cancelling any in-flight pass and
// starting a fresh one.
type ReplanRequested struct {
	Source string
	At     time.Time
}
