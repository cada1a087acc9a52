package domain

import "errors"

// Store-level outcomes. Repositories translate driver errors into these so no
// other package has to understand gorm or SQL error codes.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates a uniqueness constraint rejected the insert,
	// for participants this means the (lottery, user) pair is already present.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrCapacityFull indicates the capacity-gated insert found no free slot.
	ErrCapacityFull = errors.New("lottery capacity reached")

	// ErrStaleStatus indicates a compare-and-transition found a status other
	// than the expected one; the caller lost the race and must not commit.
	ErrStaleStatus = errors.New("lottery status changed concurrently")

	// ErrUnavailable wraps transient infrastructure failures; callers may
	// retry the operation.
	ErrUnavailable = errors.New("store unavailable")
)
