package database

import (
	"errors"
	"fmt"
	"strings"
)

type StoreErrorKind int

const (
	StoreUnavailable StoreErrorKind = iota
	StoreCorrupt
)

// StoreError classifies a dedup store failure. Unavailable degrades the
// current cycle only; Corrupt is fatal to the process because dedup
// correctness can no longer be guaranteed.
type StoreError struct {
	Kind  StoreErrorKind
	Cause error
}

func (e *StoreError) Error() string {
	if e.Kind == StoreCorrupt {
		return fmt.Sprintf("store corrupt: %v", e.Cause)
	}
	return fmt.Sprintf("store unavailable: %v", e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// classifyStoreError wraps a raw database error into the store taxonomy.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	if strings.Contains(msg, "malformed") ||
		strings.Contains(msg, "file is not a database") ||
		strings.Contains(msg, "database disk image") {
		return &StoreError{Kind: StoreCorrupt, Cause: err}
	}

	return &StoreError{Kind: StoreUnavailable, Cause: err}
}

// IsCorrupt reports whether an error indicates unrecoverable store corruption.
func IsCorrupt(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Kind == StoreCorrupt
}
