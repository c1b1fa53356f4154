package cloudsync

import "errors"

// Common errors for storage and service operations.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded indicates a write would push the user's total
	// stored bytes past the configured ceiling. Nothing was written.
	ErrQuotaExceeded = errors.New("total storage limit exceeded")

	// ErrValueTooLarge indicates a single value exceeds the per-key cap.
	ErrValueTooLarge = errors.New("value exceeds per-key size limit")

	// ErrDatastoreDisabled indicates a key in the dataStore/ subnamespace
	// was used while that namespace is disabled.
	ErrDatastoreDisabled = errors.New("datastore sync is disabled")
)
