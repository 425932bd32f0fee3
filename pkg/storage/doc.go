/*
Package storage provides BoltDB-backed persistence for directory entries.

The storage package implements the Backend interface using BoltDB as the
underlying database, providing ACID transactions over the entry store.
All data is serialized as JSON through the tagged value-set encoding and
stored in separate buckets.

# Architecture

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐          │
	│  │            BoltBackend                      │          │
	│  │  - File: <dataDir>/warden.db                │          │
	│  │  - Format: B+tree with MVCC                 │          │
	│  │  - Transactions: ACID with fsync            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Bucket Structure               │          │
	│  │  ┌────────────────────────────┐            │          │
	│  │  │ entries    (entry uuid)    │            │          │
	│  │  │ idx_name   (name → uuid)   │            │          │
	│  │  │ changelog  (cid display)   │            │          │
	│  │  └────────────────────────────┘            │          │
	│  └────────────────────────────────────────────┘          │
	└───────────────────────────────────────────────────────────┘

One writable transaction runs at a time; read transactions see a stable
snapshot and run concurrently with the writer. The writer observes its own
uncommitted writes, which the plugin pipeline relies on.

The changelog bucket is keyed by the cid display form, so a forward cursor
drains the log in causal order. The replication layer consumes it; this
package only guarantees completeness and ordering.

# Usage

	be, err := storage.NewBoltBackend(dataDir)
	tx, err := be.Begin(true)
	committed, err := tx.Create(cid, sealed)
	err = tx.Commit() // or tx.Rollback()

Create fails on a duplicate uuid. Modify asserts the pre entries still
exist before writing the post set. Delete removes rows outright and is
reserved for tombstone pruning — ordinary deletes are modifies that add
the recycled class.
*/
package storage
