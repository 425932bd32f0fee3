package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/warden/pkg/cid"
	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/types"
)

var (
	// Bucket names
	bucketEntries   = []byte("entries")
	bucketIdxName   = []byte("idx_name")
	bucketChangeLog = []byte("changelog")
)

// BoltBackend implements Backend using BoltDB
type BoltBackend struct {
	db *bolt.DB
}

// NewBoltBackend creates a new BoltDB-backed entry store
func NewBoltBackend(dataDir string) (*BoltBackend, error) {
	dbPath := filepath.Join(dataDir, "warden.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketEntries,
			bucketIdxName,
			bucketChangeLog,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltBackend{db: db}, nil
}

// Close closes the database
func (b *BoltBackend) Close() error {
	return b.db.Close()
}

// Begin opens a transaction
func (b *BoltBackend) Begin(writable bool) (Txn, error) {
	tx, err := b.db.Begin(writable)
	if err != nil {
		return nil, &types.BackendError{Op: "begin", Err: err}
	}
	return &boltTxn{tx: tx}, nil
}

// boltTxn wraps one bolt transaction. All entry data is serialized as JSON
// through the tagged value-set encoding.
type boltTxn struct {
	tx   *bolt.Tx
	done bool
}

func (t *boltTxn) Create(c cid.Cid, entries []*entry.Sealed) ([]*entry.Sealed, error) {
	eb := t.tx.Bucket(bucketEntries)
	nb := t.tx.Bucket(bucketIdxName)

	for _, e := range entries {
		key := []byte(e.UUID().String())
		if eb.Get(key) != nil {
			return nil, &types.BackendError{
				Op:  "create",
				Err: fmt.Errorf("uuid %s already exists", e.UUID()),
			}
		}
		data, err := json.Marshal(e)
		if err != nil {
			return nil, &types.BackendError{Op: "create", Err: err}
		}
		if err := eb.Put(key, data); err != nil {
			return nil, &types.BackendError{Op: "create", Err: err}
		}
		if err := t.indexName(nb, e); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (t *boltTxn) Modify(c cid.Cid, pre, post []*entry.Sealed) ([]*entry.Sealed, error) {
	if len(pre) != len(post) {
		return nil, &types.BackendError{
			Op:  "modify",
			Err: fmt.Errorf("pre and post sets differ in length: %d vs %d", len(pre), len(post)),
		}
	}

	eb := t.tx.Bucket(bucketEntries)
	nb := t.tx.Bucket(bucketIdxName)

	for i, p := range pre {
		key := []byte(p.UUID().String())
		if eb.Get(key) == nil {
			return nil, &types.BackendError{
				Op:  "modify",
				Err: fmt.Errorf("uuid %s not found", p.UUID()),
			}
		}
		n := post[i]
		if n.UUID() != p.UUID() {
			return nil, &types.BackendError{
				Op:  "modify",
				Err: fmt.Errorf("post entry %d changed uuid", i),
			}
		}
		data, err := json.Marshal(n)
		if err != nil {
			return nil, &types.BackendError{Op: "modify", Err: err}
		}
		if err := eb.Put(key, data); err != nil {
			return nil, &types.BackendError{Op: "modify", Err: err}
		}
		if err := t.indexName(nb, n); err != nil {
			return nil, err
		}
	}
	return post, nil
}

func (t *boltTxn) Delete(c cid.Cid, targets []uuid.UUID) error {
	eb := t.tx.Bucket(bucketEntries)
	for _, u := range targets {
		key := []byte(u.String())
		if eb.Get(key) == nil {
			return &types.BackendError{
				Op:  "delete",
				Err: fmt.Errorf("uuid %s not found", u),
			}
		}
		if err := eb.Delete(key); err != nil {
			return &types.BackendError{Op: "delete", Err: err}
		}
	}
	return nil
}

func (t *boltTxn) Search(f *types.Filter, projection []types.Attribute) ([]*entry.Sealed, error) {
	var out []*entry.Sealed
	eb := t.tx.Bucket(bucketEntries)
	cur := eb.Cursor()
	for k, v := cur.First(); k != nil; k, v = cur.Next() {
		var e entry.Sealed
		if err := json.Unmarshal(v, &e); err != nil {
			return nil, &types.BackendError{Op: "search", Err: err}
		}
		if !e.Matches(f) {
			continue
		}
		out = append(out, e.Project(projection))
	}
	return out, nil
}

func (t *boltTxn) GetUUID(u uuid.UUID) (*entry.Sealed, error) {
	eb := t.tx.Bucket(bucketEntries)
	data := eb.Get([]byte(u.String()))
	if data == nil {
		return nil, fmt.Errorf("entry %s: %w", u, types.ErrNotFound)
	}
	var e entry.Sealed
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, &types.BackendError{Op: "get", Err: err}
	}
	return &e, nil
}

func (t *boltTxn) AppendChangeLog(c cid.Cid, uuids []uuid.UUID) error {
	cb := t.tx.Bucket(bucketChangeLog)
	data, err := json.Marshal(uuids)
	if err != nil {
		return &types.BackendError{Op: "changelog", Err: err}
	}
	// Keys are the cid display form, so a cursor walks the log in causal
	// order.
	if err := cb.Put([]byte(c.String()), data); err != nil {
		return &types.BackendError{Op: "changelog", Err: err}
	}
	return nil
}

func (t *boltTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return &types.BackendError{Op: "commit", Err: err}
	}
	return nil
}

func (t *boltTxn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

// indexName maintains the name -> uuid index used by lookups that bypass
// full filter evaluation.
func (t *boltTxn) indexName(nb *bolt.Bucket, e *entry.Sealed) error {
	name, ok := e.Get(types.AttrName)
	if !ok {
		return nil
	}
	for _, n := range name.Strings() {
		if err := nb.Put([]byte(n), []byte(e.UUID().String())); err != nil {
			return &types.BackendError{Op: "index", Err: err}
		}
	}
	return nil
}
