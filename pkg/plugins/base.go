package plugins

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// baseCreateTransform enforces the identity ground rules on every creation
// candidate: the object class is present, the uuid is unique within the
// candidate set and does not collide with a stored entry.
func baseCreateTransform(t TxnView, cands []*entry.Invalid, ident types.Identity) error {
	seen := make(map[uuid.UUID]struct{}, len(cands))
	for _, c := range cands {
		if !c.HasClass(types.ClassObject) {
			c.AddClass(types.ClassObject)
		}

		u := c.UUID()
		if u == uuid.Nil {
			return fmt.Errorf("candidate has nil uuid")
		}
		if _, dup := seen[u]; dup {
			return fmt.Errorf("duplicate uuid %s in candidate set", u)
		}
		seen[u] = struct{}{}

		if _, err := t.InternalSearchUUID(u); err == nil {
			return fmt.Errorf("uuid %s already exists", u)
		}
	}
	return nil
}

// attrUniquePreCreate asserts that names claimed by the candidates are not
// already in use.
func attrUniquePreCreate(t TxnView, cands []*entry.Sealed, ident types.Identity) error {
	claimed := make(map[string]uuid.UUID)
	for _, c := range cands {
		names, ok := c.Get(types.AttrName)
		if !ok {
			continue
		}
		for _, n := range names.Strings() {
			if prev, dup := claimed[n]; dup && prev != c.UUID() {
				return fmt.Errorf("name %q claimed twice in candidate set", n)
			}
			claimed[n] = c.UUID()

			hits, err := t.InternalSearch(types.Eq(types.AttrName, n))
			if err != nil {
				return err
			}
			for _, h := range hits {
				if h.UUID() != c.UUID() {
					return fmt.Errorf("name %q already in use", n)
				}
			}
		}
	}
	return nil
}

// spnCreateTransform derives the spn for account and group entries from the entry
// name and the domain: name@domain. An spn the caller supplied is replaced;
// the derived form is authoritative.
func spnCreateTransform(t TxnView, cands []*entry.Invalid, ident types.Identity) error {
	domain := t.DomainName()
	for _, c := range cands {
		if !c.HasClass(types.ClassAccount) && !c.HasClass(types.ClassGroup) {
			continue
		}
		names, ok := c.Get(types.AttrName)
		if !ok || names.IsEmpty() {
			if c.HasClass(types.ClassAccount) {
				return fmt.Errorf("account %s has no name to derive an spn from", c.UUID())
			}
			continue
		}
		c.Set(types.AttrSpn, value.NewSpn(value.Spn{Local: names.Strings()[0], Domain: domain}))
	}
	return nil
}
