package schema

import (
	"sync"

	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// AttributeDef describes one attribute: its value syntax and whether it
// may hold more than one value.
type AttributeDef struct {
	Name       types.Attribute
	Syntax     value.Tag
	MultiValue bool
}

// ClassDef describes one object class: the attributes entries of this
// class must and may carry.
type ClassDef struct {
	Name types.EntryClass
	Must []types.Attribute
	May  []types.Attribute
}

// Snapshot is an immutable view of the schema. Readers hold a snapshot for
// the duration of a transaction; the registry swaps in a new snapshot
// atomically on reload.
type Snapshot struct {
	attrs   map[types.Attribute]AttributeDef
	classes map[types.EntryClass]ClassDef
}

// NewSnapshot builds a snapshot from definitions.
func NewSnapshot(attrs []AttributeDef, classes []ClassDef) *Snapshot {
	s := &Snapshot{
		attrs:   make(map[types.Attribute]AttributeDef, len(attrs)),
		classes: make(map[types.EntryClass]ClassDef, len(classes)),
	}
	for _, a := range attrs {
		s.attrs[a.Name] = a
	}
	for _, c := range classes {
		s.classes[c.Name] = c
	}
	return s
}

// Attribute returns the definition for the named attribute.
func (s *Snapshot) Attribute(name types.Attribute) (AttributeDef, bool) {
	a, ok := s.attrs[name]
	return a, ok
}

// Class returns the definition for the named class.
func (s *Snapshot) Class(name types.EntryClass) (ClassDef, bool) {
	c, ok := s.classes[name]
	return c, ok
}

// Validate checks an entry against the snapshot: every class known, every
// attribute known and permitted by the class set, every must present,
// cardinality and syntax respected. Implements entry.Validator.
func (s *Snapshot) Validate(e *entry.Invalid) error {
	classSet, ok := e.Get(types.AttrClass)
	if !ok || classSet.IsEmpty() {
		return types.SchemaViolation("entry %s has no class", e.UUID())
	}

	// Recycled and tombstoned entries retain whatever attributes they held
	// when live; membership and presence rules are relaxed for them so the
	// retention window cannot be broken by a later schema change.
	masked := classSet.ContainsString(string(types.ClassRecycled)) ||
		classSet.ContainsString(string(types.ClassTombstone))

	must := make(map[types.Attribute]struct{})
	allowed := map[types.Attribute]struct{}{
		types.AttrClass: {},
		types.AttrUUID:  {},
	}
	for _, cn := range classSet.Strings() {
		cls, ok := s.classes[types.EntryClass(cn)]
		if !ok {
			return types.SchemaViolation("unknown class %q", cn)
		}
		for _, a := range cls.Must {
			must[a] = struct{}{}
			allowed[a] = struct{}{}
		}
		for _, a := range cls.May {
			allowed[a] = struct{}{}
		}
	}

	for _, a := range e.Attributes() {
		if _, ok := allowed[a]; !ok && !masked {
			return types.SchemaViolation("attribute %q not permitted by classes %v", a, classSet.Strings())
		}
		def, ok := s.attrs[a]
		if !ok {
			return types.SchemaViolation("unknown attribute %q", a)
		}
		set, _ := e.Get(a)
		if set.Tag() != def.Syntax {
			return types.SchemaViolation("attribute %q expects syntax %s, got %s", a, def.Syntax, set.Tag())
		}
		if !def.MultiValue && set.Len() > 1 {
			return types.SchemaViolation("attribute %q is single valued, got %d values", a, set.Len())
		}
		if set.IsEmpty() {
			return types.SchemaViolation("attribute %q has no values", a)
		}
	}

	if !masked {
		for a := range must {
			if _, ok := e.Get(a); !ok {
				return types.SchemaViolation("missing required attribute %q", a)
			}
		}
	}

	uuidSet, ok := e.Get(types.AttrUUID)
	if !ok || uuidSet.Len() != 1 {
		return types.SchemaViolation("entry must carry exactly one uuid")
	}

	return nil
}

// Registry is the process-wide schema cache: a read-mostly snapshot only
// the write transaction's commit path replaces.
type Registry struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// NewRegistry builds a registry seeded with the builtin schema.
func NewRegistry() *Registry {
	return &Registry{snap: Builtin()}
}

// Snapshot returns the current schema snapshot.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Reload rebuilds the snapshot from the builtin schema extended by the
// committed attributetype and classtype entries, then swaps it in
// atomically.
func (r *Registry) Reload(entries []*entry.Sealed) error {
	attrs := builtinAttrs()
	classes := builtinClasses()

	for _, e := range entries {
		switch {
		case e.HasClass(types.ClassAttributeType):
			def, err := attrDefFromEntry(e)
			if err != nil {
				return err
			}
			attrs = append(attrs, def)
		case e.HasClass(types.ClassClassType):
			def, err := classDefFromEntry(e)
			if err != nil {
				return err
			}
			classes = append(classes, def)
		}
	}

	snap := NewSnapshot(attrs, classes)
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
	return nil
}

func attrDefFromEntry(e *entry.Sealed) (AttributeDef, error) {
	name, ok := singleString(e, types.AttrName)
	if !ok {
		return AttributeDef{}, types.SchemaViolation("attributetype %s has no name", e.UUID())
	}
	syntax, ok := singleString(e, types.AttrSyntax)
	if !ok {
		return AttributeDef{}, types.SchemaViolation("attributetype %q has no syntax", name)
	}
	multi := false
	if mv, ok := e.Get(types.AttrMultiValue); ok {
		bs := mv.Bools()
		multi = len(bs) == 1 && bs[0]
	}
	return AttributeDef{
		Name:       types.Attribute(name),
		Syntax:     value.Tag(syntax),
		MultiValue: multi,
	}, nil
}

func classDefFromEntry(e *entry.Sealed) (ClassDef, error) {
	name, ok := singleString(e, types.AttrName)
	if !ok {
		return ClassDef{}, types.SchemaViolation("classtype %s has no name", e.UUID())
	}
	def := ClassDef{Name: types.EntryClass(name)}
	if must, ok := e.Get(types.AttrSystemMust); ok {
		for _, a := range must.Strings() {
			def.Must = append(def.Must, types.Attribute(a))
		}
	}
	if may, ok := e.Get(types.AttrSystemMay); ok {
		for _, a := range may.Strings() {
			def.May = append(def.May, types.Attribute(a))
		}
	}
	return def, nil
}

func singleString(e *entry.Sealed, attr types.Attribute) (string, bool) {
	s, ok := e.Get(attr)
	if !ok {
		return "", false
	}
	vals := s.Strings()
	if len(vals) != 1 {
		return "", false
	}
	return vals[0], true
}
