package model

import "fmt"

// ValidationError reports a malformed errand definition. It carries the
// definition ID so a planning pass can skip the offending definition and keep
// going with the rest of the batch.
type ValidationError struct {
	DefinitionID string
	Field        string
	Reason       string
}

func (e *ValidationError) Error() string {
	if e.DefinitionID == "" {
		return fmt.Sprintf("invalid definition: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid definition %s: %s: %s", e.DefinitionID, e.Field, e.Reason)
}

func newValidationError(defID, field, reason string) *ValidationError {
	return &ValidationError{DefinitionID: defID, Field: field, Reason: reason}
}
