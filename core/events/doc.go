// Package events defines the planning related events emitted on the event bus.
//
// Available event types:
//   - ReplanRequested: something invalidated the current schedule
//   - PlacementEvent: one errand instance committed to the agenda
//   - UnschedulableEvent: an occurrence no slot could be found for
//   - RunEvent: a completed planning pass and its statistics
package events
