package entry

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/cuemby/warden/pkg/cid"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// Entries move through four typestates:
//
//	Init    — caller supplied, unvalidated, carries no cid
//	Invalid — cid assigned, mutable by pre-transform plugins, pre-schema
//	Valid   — schema validated
//	Sealed  — immutable, ready to persist or returned from storage
//
// Each state is a distinct type so that skipping a step (for example
// persisting an entry that was never validated) does not compile.

// ent is the shared representation behind every typestate.
type ent struct {
	attrs map[types.Attribute]value.Set
	// cids records, per attribute, the cid of the transaction that last
	// introduced the attribute's values.
	cids map[types.Attribute]cid.Cid
	// cid is the stamp of the transaction currently mutating the entry.
	cid *cid.Cid
}

func newEnt() *ent {
	return &ent{
		attrs: make(map[types.Attribute]value.Set),
		cids:  make(map[types.Attribute]cid.Cid),
	}
}

func (e *ent) clone() *ent {
	out := newEnt()
	for k, v := range e.attrs {
		out.attrs[k] = v
	}
	for k, v := range e.cids {
		out.cids[k] = v
	}
	if e.cid != nil {
		c := *e.cid
		out.cid = &c
	}
	return out
}

func (e *ent) get(attr types.Attribute) (value.Set, bool) {
	s, ok := e.attrs[attr]
	return s, ok
}

func (e *ent) uuid() (uuid.UUID, bool) {
	s, ok := e.attrs[types.AttrUUID]
	if !ok {
		return uuid.Nil, false
	}
	us := s.Uuids()
	if len(us) != 1 {
		return uuid.Nil, false
	}
	return us[0], true
}

func (e *ent) hasClass(c types.EntryClass) bool {
	s, ok := e.attrs[types.AttrClass]
	if !ok {
		return false
	}
	return s.ContainsString(string(c))
}

// Init is a caller supplied entry before the write path has touched it.
type Init struct {
	e *ent
}

// NewInit builds an empty Init entry.
func NewInit() *Init {
	return &Init{e: newEnt()}
}

// NewInitWith builds an Init entry from attribute sets.
func NewInitWith(attrs map[types.Attribute]value.Set) *Init {
	i := NewInit()
	for k, v := range attrs {
		i.e.attrs[k] = v
	}
	return i
}

// Set replaces the attribute's value set.
func (i *Init) Set(attr types.Attribute, s value.Set) *Init {
	i.e.attrs[attr] = s
	return i
}

// Get returns the attribute's value set.
func (i *Init) Get(attr types.Attribute) (value.Set, bool) {
	return i.e.get(attr)
}

// UUID returns the entry uuid if one is set.
func (i *Init) UUID() (uuid.UUID, bool) {
	return i.e.uuid()
}

// HasClass reports whether the entry carries the class.
func (i *Init) HasClass(c types.EntryClass) bool {
	return i.e.hasClass(c)
}

// MaskedRecycledTs reports whether the entry is masked by the replication
// state machine: it carries the recycled or tombstone class and therefore
// may never be a creation candidate.
func (i *Init) MaskedRecycledTs() bool {
	return i.e.hasClass(types.ClassRecycled) || i.e.hasClass(types.ClassTombstone)
}

// Clone returns a deep enough copy for candidate lists.
func (i *Init) Clone() *Init {
	return &Init{e: i.e.clone()}
}

// AssignCid stamps the entry with the transaction's cid, producing an
// Invalid entry. Every attribute present at this point is recorded as
// introduced by this transaction, and an entry without a uuid gains one.
func (i *Init) AssignCid(c cid.Cid) *Invalid {
	e := i.e.clone()
	if _, ok := e.uuid(); !ok {
		e.attrs[types.AttrUUID] = value.NewUuid(uuid.New())
	}
	for attr := range e.attrs {
		e.cids[attr] = c
	}
	e.cid = &c
	return &Invalid{e: e}
}

// Invalid is a cid-stamped entry that pre-transform plugins may still
// mutate. It has not yet passed schema validation.
type Invalid struct {
	e *ent
}

// UUID returns the entry uuid. An Invalid entry always has one.
func (inv *Invalid) UUID() uuid.UUID {
	u, _ := inv.e.uuid()
	return u
}

// Cid returns the stamp of the owning transaction.
func (inv *Invalid) Cid() cid.Cid {
	return *inv.e.cid
}

// Get returns the attribute's value set.
func (inv *Invalid) Get(attr types.Attribute) (value.Set, bool) {
	return inv.e.get(attr)
}

// Set replaces the attribute's value set, stamping it with the
// transaction's cid.
func (inv *Invalid) Set(attr types.Attribute, s value.Set) {
	inv.e.attrs[attr] = s
	inv.e.cids[attr] = *inv.e.cid
}

// Remove drops the attribute.
func (inv *Invalid) Remove(attr types.Attribute) {
	delete(inv.e.attrs, attr)
	delete(inv.e.cids, attr)
}

// HasClass reports whether the entry carries the class.
func (inv *Invalid) HasClass(c types.EntryClass) bool {
	return inv.e.hasClass(c)
}

// AddClass adds a class to the entry's class set.
func (inv *Invalid) AddClass(c types.EntryClass) {
	cur, _ := inv.e.get(types.AttrClass)
	classes := append(cur.Strings(), string(c))
	inv.Set(types.AttrClass, value.NewIutf8(classes...))
}

// RemoveClass drops a class from the entry's class set.
func (inv *Invalid) RemoveClass(c types.EntryClass) {
	cur, ok := inv.e.get(types.AttrClass)
	if !ok {
		return
	}
	kept := make([]string, 0, len(cur.Strings()))
	for _, cn := range cur.Strings() {
		if cn != string(c) {
			kept = append(kept, cn)
		}
	}
	inv.Set(types.AttrClass, value.NewIutf8(kept...))
}

// Keep restricts the entry to the listed attributes, dropping the rest.
// Tombstoning uses this to strip everything but identity.
func (inv *Invalid) Keep(attrs ...types.Attribute) {
	keep := make(map[types.Attribute]struct{}, len(attrs))
	for _, a := range attrs {
		keep[a] = struct{}{}
	}
	for a := range inv.e.attrs {
		if _, ok := keep[a]; !ok {
			inv.Remove(a)
		}
	}
}

// Attributes returns the attribute names present, for validators.
func (inv *Invalid) Attributes() []types.Attribute {
	out := make([]types.Attribute, 0, len(inv.e.attrs))
	for a := range inv.e.attrs {
		out = append(out, a)
	}
	return out
}

// Validator checks an entry against the active schema.
type Validator interface {
	Validate(e *Invalid) error
}

// Validate runs the schema validator, producing a Valid entry.
func (inv *Invalid) Validate(v Validator) (*Valid, error) {
	if err := v.Validate(inv); err != nil {
		return nil, err
	}
	for _, s := range inv.e.attrs {
		if err := s.Validate(); err != nil {
			return nil, types.SchemaViolation("%v", err)
		}
	}
	return &Valid{e: inv.e}, nil
}

// Valid is a schema validated entry awaiting sealing.
type Valid struct {
	e *ent
}

// UUID returns the entry uuid.
func (v *Valid) UUID() uuid.UUID {
	u, _ := v.e.uuid()
	return u
}

// Seal freezes the entry. The sealed form is immutable; later mutation
// requires a new write transaction starting from a fresh Invalid copy.
func (v *Valid) Seal() *Sealed {
	return &Sealed{e: v.e.clone()}
}

// Sealed is an immutable, schema valid entry: the only form the backend
// will persist and the only form it returns.
type Sealed struct {
	e *ent
}

// UUID returns the entry uuid.
func (s *Sealed) UUID() uuid.UUID {
	u, _ := s.e.uuid()
	return u
}

// Cid returns the stamp of the transaction that produced this entry, when
// known.
func (s *Sealed) Cid() (cid.Cid, bool) {
	if s.e.cid == nil {
		return cid.Cid{}, false
	}
	return *s.e.cid, true
}

// AttrCid returns the cid that introduced the attribute's current values.
func (s *Sealed) AttrCid(attr types.Attribute) (cid.Cid, bool) {
	c, ok := s.e.cids[attr]
	return c, ok
}

// Get returns the attribute's value set.
func (s *Sealed) Get(attr types.Attribute) (value.Set, bool) {
	return s.e.get(attr)
}

// HasAttr reports attribute presence.
func (s *Sealed) HasAttr(attr types.Attribute) bool {
	_, ok := s.e.get(attr)
	return ok
}

// HasClass reports whether the entry carries the class.
func (s *Sealed) HasClass(c types.EntryClass) bool {
	return s.e.hasClass(c)
}

// Classes returns the entry's class names.
func (s *Sealed) Classes() []string {
	cs, _ := s.e.get(types.AttrClass)
	return cs.Strings()
}

// Attributes returns the attribute names present.
func (s *Sealed) Attributes() []types.Attribute {
	out := make([]types.Attribute, 0, len(s.e.attrs))
	for a := range s.e.attrs {
		out = append(out, a)
	}
	return out
}

// MaskedRecycledTs reports whether the entry is recycled or tombstoned.
func (s *Sealed) MaskedRecycledTs() bool {
	return s.e.hasClass(types.ClassRecycled) || s.e.hasClass(types.ClassTombstone)
}

// Matches evaluates a search filter against the entry.
func (s *Sealed) Matches(f *types.Filter) bool {
	if f == nil {
		return true
	}
	switch f.Kind {
	case types.FilterEq:
		set, ok := s.e.get(f.Attr)
		return ok && set.ContainsString(f.Value)
	case types.FilterPres:
		_, ok := s.e.get(f.Attr)
		return ok
	case types.FilterAnd:
		for _, sub := range f.Sub {
			if !s.Matches(sub) {
				return false
			}
		}
		return true
	case types.FilterOr:
		for _, sub := range f.Sub {
			if s.Matches(sub) {
				return true
			}
		}
		return false
	case types.FilterNot:
		return len(f.Sub) == 1 && !s.Matches(f.Sub[0])
	}
	return false
}

// AsInvalid reopens a sealed entry for modification inside a new write
// transaction, restamping it with that transaction's cid.
func (s *Sealed) AsInvalid(c cid.Cid) *Invalid {
	e := s.e.clone()
	e.cid = &c
	return &Invalid{e: e}
}

// Project returns a copy restricted to the requested attributes. A nil
// projection returns the entry unchanged.
func (s *Sealed) Project(attrs []types.Attribute) *Sealed {
	if attrs == nil {
		return s
	}
	e := newEnt()
	if s.e.cid != nil {
		c := *s.e.cid
		e.cid = &c
	}
	for _, a := range attrs {
		if v, ok := s.e.attrs[a]; ok {
			e.attrs[a] = v
			e.cids[a] = s.e.cids[a]
		}
	}
	return &Sealed{e: e}
}

// dbEntry is the persisted form of a sealed entry.
type dbEntry struct {
	Attrs map[types.Attribute]value.Set    `json:"attrs"`
	Cids  map[types.Attribute]cid.Cid      `json:"attr_cids"`
	Cid   *cid.Cid                         `json:"last_mod_cid,omitempty"`
}

// MarshalJSON persists the sealed entry.
func (s *Sealed) MarshalJSON() ([]byte, error) {
	return json.Marshal(dbEntry{Attrs: s.e.attrs, Cids: s.e.cids, Cid: s.e.cid})
}

// UnmarshalJSON restores a sealed entry from its persisted form.
func (s *Sealed) UnmarshalJSON(data []byte) error {
	var db dbEntry
	if err := json.Unmarshal(data, &db); err != nil {
		return err
	}
	e := newEnt()
	if db.Attrs != nil {
		e.attrs = db.Attrs
	}
	if db.Cids != nil {
		e.cids = db.Cids
	}
	e.cid = db.Cid
	s.e = e
	return nil
}

// String renders a compact identity for logs: uuid plus classes, never
// attribute payloads.
func (s *Sealed) String() string {
	return fmt.Sprintf("entry %s %v", s.UUID(), s.Classes())
}
