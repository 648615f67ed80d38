package store

// Store defines the interface for fit result persistence.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if a run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveResult atomically saves the result of a run, overwriting any
	// existing result with the same runID.
	SaveResult(runID string, rec *Record) error

	// LoadResult retrieves the result of a run.
	// Returns ErrNotFound if no result exists for this runID.
	LoadResult(runID string) (*Record, error)

	// ListResults returns metadata for all stored runs. Unreadable results
	// are skipped.
	ListResults() ([]RecordInfo, error)

	// DeleteResult removes the run directory, including its trace.
	// Returns ErrNotFound if the run does not exist.
	DeleteResult(runID string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
