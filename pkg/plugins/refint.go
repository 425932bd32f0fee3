package plugins

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// derivedRefs are reference attributes the server computes itself; they are
// exempt from caller-side integrity checks and from cleanup.
var derivedRefs = map[types.Attribute]struct{}{
	types.AttrMemberOf:       {},
	types.AttrDirectMemberOf: {},
	types.AttrDynMember:      {},
}

// refintPreCreate asserts that every reference uuid on every candidate
// resolves: either to a stored entry or to another candidate in the same
// operation.
func refintPreCreate(t TxnView, cands []*entry.Sealed, ident types.Identity) error {
	inFlight := make(map[uuid.UUID]struct{}, len(cands))
	for _, c := range cands {
		inFlight[c.UUID()] = struct{}{}
	}

	for _, c := range cands {
		for _, attr := range c.Attributes() {
			if _, skip := derivedRefs[attr]; skip {
				continue
			}
			set, _ := c.Get(attr)
			if set.Tag() != value.TagReference {
				continue
			}
			for _, ref := range set.Uuids() {
				if _, ok := inFlight[ref]; ok {
					continue
				}
				hit, err := t.InternalSearchUUID(ref)
				if err != nil {
					if errors.Is(err, types.ErrNotFound) {
						return fmt.Errorf("entry %s attribute %s references missing uuid %s", c.UUID(), attr, ref)
					}
					return err
				}
				if hit.MaskedRecycledTs() {
					return fmt.Errorf("entry %s attribute %s references masked uuid %s", c.UUID(), attr, ref)
				}
			}
		}
	}
	return nil
}

// refintPostDelete strips references to freshly recycled entries from the
// remaining live entries, so a recycled uuid cannot keep granting
// membership or scopes during its retention window.
func refintPostDelete(t TxnMutator, committed []*entry.Sealed, ident types.Identity) error {
	gone := make(map[uuid.UUID]struct{}, len(committed))
	for _, e := range committed {
		gone[e.UUID()] = struct{}{}
	}
	if len(gone) == 0 {
		return nil
	}

	all, err := t.InternalSearch(nil)
	if err != nil {
		return err
	}

	var pre []*entry.Sealed
	var post []*entry.Invalid
	for _, e := range all {
		if _, isGone := gone[e.UUID()]; isGone || e.MaskedRecycledTs() {
			continue
		}
		var inv *entry.Invalid
		for _, attr := range e.Attributes() {
			if _, skip := derivedRefs[attr]; skip {
				continue
			}
			set, _ := e.Get(attr)
			if set.Tag() != value.TagReference {
				continue
			}
			kept := make([]uuid.UUID, 0, set.Len())
			dropped := false
			for _, ref := range set.Uuids() {
				if _, isGone := gone[ref]; isGone {
					dropped = true
					continue
				}
				kept = append(kept, ref)
			}
			if !dropped {
				continue
			}
			if inv == nil {
				inv = e.AsInvalid(t.Cid())
			}
			if len(kept) == 0 {
				inv.Remove(attr)
			} else {
				inv.Set(attr, value.NewReference(kept...))
			}
		}
		if inv != nil {
			pre = append(pre, e)
			post = append(post, inv)
		}
	}

	if len(pre) == 0 {
		return nil
	}
	_, err = t.InternalApply(pre, post)
	return err
}
