// Package storage defines persistence interfaces for the LockCase backend.
// Stores are owner-agnostic: ownership enforcement happens at the access
// boundary, never here.
package storage

import (
	"context"
	"errors"

	"github.com/lockcase/backend/internal/domain/record"
)

// ErrSortKeyExists is returned by CreateRecord when the (owner, createdAt)
// pair is already present. The service layer disambiguates and retries.
var ErrSortKeyExists = errors.New("record with this owner and createdAt already exists")

// RecordStore persists owned records of one kind.
type RecordStore interface {
	// CreateRecord persists the record as given. Fails with ErrSortKeyExists
	// on an (owner, createdAt) collision.
	CreateRecord(ctx context.Context, rec record.Record) (record.Record, error)

	// ListRecordsByOwner returns all records in the owner's partition,
	// ordered by createdAt ascending. An owner with no records yields an
	// empty slice.
	ListRecordsByOwner(ctx context.Context, owner string) ([]record.Record, error)
}

// IdentityDirectory is the read-only lookup capability of the identity
// provider's user directory.
type IdentityDirectory interface {
	// EmailExists reports whether an identity with exactly this email is
	// registered in the pool. Implementations stop at the first match; this
	// is an existence check, not a scan.
	EmailExists(ctx context.Context, poolID, email string) (bool, error)
}
