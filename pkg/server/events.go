package server

import (
	"fmt"

	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// CreateEvent is the raw, read-only representation of a create request,
// including the identity performing it.
type CreateEvent struct {
	Ident   types.Identity
	Entries []*entry.Init

	// ReturnCreatedUUIDs asks the operation to report the uuids it
	// committed.
	ReturnCreatedUUIDs bool
}

// NewInternalCreate builds a create event initiated by the server itself.
func NewInternalCreate(entries ...*entry.Init) *CreateEvent {
	return &CreateEvent{Ident: types.InternalIdentity(), Entries: entries}
}

// ModOp selects how one modification applies to an attribute.
type ModOp int

const (
	// ModSet replaces the attribute's value set.
	ModSet ModOp = iota
	// ModPresent merges values into the existing set.
	ModPresent
	// ModPurge drops the attribute entirely.
	ModPurge
)

// Mod is one modification in a modify request.
type Mod struct {
	Op   ModOp
	Attr types.Attribute
	Set  value.Set
}

// apply folds the modification into the entry.
func (m Mod) apply(inv *entry.Invalid) error {
	switch m.Op {
	case ModSet:
		inv.Set(m.Attr, m.Set)
		return nil
	case ModPurge:
		inv.Remove(m.Attr)
		return nil
	case ModPresent:
		cur, ok := inv.Get(m.Attr)
		if !ok {
			inv.Set(m.Attr, m.Set)
			return nil
		}
		if cur.Tag() != m.Set.Tag() {
			return types.SchemaViolation("attribute %q holds %s values, cannot merge %s", m.Attr, cur.Tag(), m.Set.Tag())
		}
		merged, err := mergeSets(cur, m.Set)
		if err != nil {
			return err
		}
		inv.Set(m.Attr, merged)
		return nil
	}
	return fmt.Errorf("unknown mod op %d", m.Op)
}

// mergeSets unions two same-tagged sets. Only the scalar syntaxes support
// merging; structured payloads are replaced with ModSet instead.
func mergeSets(cur, add value.Set) (value.Set, error) {
	switch cur.Tag() {
	case value.TagUtf8:
		return value.NewUtf8(append(cur.Strings(), add.Strings()...)...), nil
	case value.TagIutf8:
		return value.NewIutf8(append(cur.Strings(), add.Strings()...)...), nil
	case value.TagIname:
		return value.NewIname(append(cur.Strings(), add.Strings()...)...), nil
	case value.TagReference:
		return value.NewReference(append(cur.Uuids(), add.Uuids()...)...), nil
	case value.TagUuid:
		return value.NewUuid(append(cur.Uuids(), add.Uuids()...)...), nil
	case value.TagOauthScope:
		return value.NewOauthScope(append(cur.Strings(), add.Strings()...)...), nil
	case value.TagAuditLogString:
		return value.NewAuditLogString(append(cur.AuditLogStrings(), add.AuditLogStrings()...)...), nil
	}
	return value.Set{}, types.SchemaViolation("attribute syntax %s does not support value merge", cur.Tag())
}

// ModifyEvent is a modify request: the filter selects targets, the modlist
// applies to each in order.
type ModifyEvent struct {
	Ident   types.Identity
	Filter  *types.Filter
	ModList []Mod
}

// DeleteEvent is a delete request. Deletion is soft: targets gain the
// recycled class and stay for the retention window.
type DeleteEvent struct {
	Ident  types.Identity
	Filter *types.Filter
}

// SearchEvent is a search request.
type SearchEvent struct {
	Ident      types.Identity
	Filter     *types.Filter
	Projection []types.Attribute

	// IncludeMasked makes recycled and tombstoned entries visible.
	IncludeMasked bool
}
