package types

// LoadStatus is the lifecycle state of one segment in the table status
// manifest.
type LoadStatus string

const (
	// LoadSuccess marks a fully written, committed segment
	LoadSuccess LoadStatus = "SUCCESS"

	// LoadFailure marks a load that failed after its record was published
	LoadFailure LoadStatus = "FAILURE"

	// LoadInProgress marks a segment whose data is still being written
	LoadInProgress LoadStatus = "IN_PROGRESS"

	// LoadMarkedForDelete marks a segment retired by cleanup
	LoadMarkedForDelete LoadStatus = "MARKED_FOR_DELETE"
)

// Valid reports whether s is a known lifecycle state.
func (s LoadStatus) Valid() bool {
	switch s {
	case LoadSuccess, LoadFailure, LoadInProgress, LoadMarkedForDelete:
		return true
	}
	return false
}

// Terminal reports whether the state can no longer change, other than
// retirement by cleanup.
func (s LoadStatus) Terminal() bool {
	return s == LoadSuccess || s == LoadFailure || s == LoadMarkedForDelete
}
