package recurrence

import "fmt"

// InvalidRecurrenceError reports a repeat rule that is contradictory or
// cannot be expanded. It is scoped to one definition so a planning pass can
// skip it and continue with the rest.
type InvalidRecurrenceError struct {
	DefinitionID string
	Reason       string
}

func (e *InvalidRecurrenceError) Error() string {
	return fmt.Sprintf("invalid recurrence for %s: %s", e.DefinitionID, e.Reason)
}

func invalid(defID, format string, args ...any) *InvalidRecurrenceError {
	return &InvalidRecurrenceError{DefinitionID: defID, Reason: fmt.Sprintf(format, args...)}
}
