package transaction

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsynchronized is returned by Commit under SyncPolicyReject when a loaded
	// end-point disagrees with the foreign keys known in memory.
	ErrUnsynchronized = errors.New("unsynchronized relation end-points")
	// ErrReadOnly is returned when a transaction with an active sub-transaction is
	// modified.
	ErrReadOnly = errors.New("transaction is read-only")
	// ErrUnknownRelation is returned for a relation that was not configured.
	ErrUnknownRelation = errors.New("unknown relation")
	// ErrDiscarded is returned by every operation on a discarded sub-transaction.
	ErrDiscarded = errors.New("transaction is discarded")
)

// SyncPolicy decides what Commit does with unsynchronized end-points.
type SyncPolicy string

const (
	// SyncPolicyTolerate commits and logs a warning per unsynchronized end-point.
	SyncPolicyTolerate SyncPolicy = "tolerate"
	// SyncPolicyReject fails the commit with ErrUnsynchronized.
	SyncPolicyReject SyncPolicy = "reject"
)

// ParseSyncPolicy accepts "tolerate" and "reject". An empty string is tolerate.
func ParseSyncPolicy(s string) (SyncPolicy, error) {
	switch SyncPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SyncPolicyTolerate:
		return SyncPolicyTolerate, nil
	case SyncPolicyReject:
		return SyncPolicyReject, nil
	default:
		return "", fmt.Errorf("invalid sync policy %q (expected tolerate or reject)", s)
	}
}
