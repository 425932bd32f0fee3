package server

import (
	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/storage"
)

// ReadTxn is a read transaction over a stable snapshot of the store. A
// reader started at time T sees exactly the writes committed before T;
// partially committed state is never visible.
type ReadTxn struct {
	srv  *Server
	be   storage.Txn
	done bool
}

// Search returns the entries the event's identity may see. Recycled and
// tombstoned entries stay hidden unless the event asks for them.
func (t *ReadTxn) Search(se *SearchEvent) ([]*entry.Sealed, error) {
	hits, err := t.be.Search(se.Filter, se.Projection)
	if err != nil {
		return nil, err
	}
	if !se.IncludeMasked {
		live := make([]*entry.Sealed, 0, len(hits))
		for _, e := range hits {
			if e.MaskedRecycledTs() {
				continue
			}
			live = append(live, e)
		}
		hits = live
	}
	return t.srv.access.SearchFilterEntries(se.Ident, hits), nil
}

// End releases the snapshot. Safe to call more than once.
func (t *ReadTxn) End() {
	if t.done {
		return
	}
	t.done = true
	_ = t.be.Rollback()
}
