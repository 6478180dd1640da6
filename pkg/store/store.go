// Package store persists layout session state between runs: measurement
// snapshots and committed plans.
//
// The Store interface is a small byte-oriented key/value contract with
// implementations for different deployments:
//   - file: per-user directory for CLI usage
//   - redis: shared store for multi-instance deployments
//   - mongo: durable plan archive
//   - null: persistence disabled
//
// Typed helpers (SaveMeasurements, LoadMeasurements, SavePlan, LoadPlan)
// layer the domain objects on top of the raw contract.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a requested item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("store closed")
)

// Store is the persistence contract. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get retrieves a value. The boolean reports presence; absent keys
	// are not errors.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Close releases any underlying resources.
	Close() error
}

// =============================================================================
// Keys
// =============================================================================

// MeasurementsKey returns the storage key of a document's measurement
// snapshot.
func MeasurementsKey(documentID string) string {
	return hashKey("measurements", documentID)
}

// PlanKey returns the storage key of a document's committed plan.
func PlanKey(documentID string) string {
	return hashKey("plan", documentID)
}

// hashKey generates a storage key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(h.Sum(nil)))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
