package travel

import "fmt"

// ProviderError wraps a failure of an external travel or location service.
// Placement treats a query that still fails after retries as an infeasible
// candidate instead of aborting the pass.
type ProviderError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("travel provider %s failed after %d attempts: %v", e.Provider, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
