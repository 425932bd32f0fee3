package storage

import (
	"github.com/google/uuid"

	"github.com/cuemby/warden/pkg/cid"
	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/types"
)

// Backend defines the interface for entry storage. Implemented by the
// BoltDB-backed store.
type Backend interface {
	// Begin opens a transaction. At most one writable transaction is live
	// at a time; read transactions run concurrently with the writer.
	Begin(writable bool) (Txn, error)

	// Close closes the database.
	Close() error
}

// Txn is one storage transaction. Writable transactions must end with
// exactly one of Commit or Rollback; read transactions with Rollback.
type Txn interface {
	// Create persists sealed entries, failing if any uuid already exists.
	Create(c cid.Cid, entries []*entry.Sealed) ([]*entry.Sealed, error)

	// Modify replaces the pre entries with the post entries. The pre set
	// is asserted against the stored state before anything is written.
	Modify(c cid.Cid, pre, post []*entry.Sealed) ([]*entry.Sealed, error)

	// Delete removes the targets outright. The write path uses this only
	// for tombstone pruning; ordinary deletes are modifies that add the
	// recycled class.
	Delete(c cid.Cid, targets []uuid.UUID) error

	// Search returns entries matching the filter, restricted to the
	// attribute projection when one is given.
	Search(f *types.Filter, projection []types.Attribute) ([]*entry.Sealed, error)

	// GetUUID returns the entry with the given uuid.
	GetUUID(u uuid.UUID) (*entry.Sealed, error)

	// AppendChangeLog records the committed uuids of one transaction under
	// its cid, for consumption by the replication layer.
	AppendChangeLog(c cid.Cid, uuids []uuid.UUID) error

	Commit() error
	Rollback() error
}
