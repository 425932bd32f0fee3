package access

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/types"
)

// Profile is one compiled access-control profile. A profile grants its
// receiver group the listed create classes and attributes. Modify and
// delete do not consult these lists: any profile the identity receives
// grants them.
type Profile struct {
	Name          string
	ReceiverGroup uuid.UUID
	CreateClasses map[string]struct{}
	CreateAttrs   map[types.Attribute]struct{}
}

// Registry is the process-wide access-control cache. Like the schema it is
// a read-mostly snapshot that only the write transaction's commit path
// replaces.
type Registry struct {
	mu       sync.RWMutex
	profiles []Profile
}

// NewRegistry builds an empty registry. Until profiles are loaded only
// internal identities may write.
func NewRegistry() *Registry {
	return &Registry{}
}

// Reload recompiles profiles from committed access_control_profile entries
// and swaps them in atomically.
func (r *Registry) Reload(entries []*entry.Sealed) error {
	var profiles []Profile
	for _, e := range entries {
		if !e.HasClass(types.ClassAccessControlProfile) {
			continue
		}
		p := Profile{
			CreateClasses: make(map[string]struct{}),
			CreateAttrs:   make(map[types.Attribute]struct{}),
		}
		if n, ok := e.Get(types.AttrName); ok && len(n.Strings()) == 1 {
			p.Name = n.Strings()[0]
		}
		if g, ok := e.Get(types.AttrACPReceiverGroup); ok && len(g.Uuids()) == 1 {
			p.ReceiverGroup = g.Uuids()[0]
		}
		if cc, ok := e.Get(types.AttrACPCreateClass); ok {
			for _, c := range cc.Strings() {
				p.CreateClasses[c] = struct{}{}
			}
		}
		if ca, ok := e.Get(types.AttrACPCreateAttr); ok {
			for _, a := range ca.Strings() {
				p.CreateAttrs[types.Attribute(a)] = struct{}{}
			}
		}
		profiles = append(profiles, p)
	}

	r.mu.Lock()
	r.profiles = profiles
	r.mu.Unlock()

	log.WithComponent("access").Debug().Int("profiles", len(profiles)).Msg("access control profiles reloaded")
	return nil
}

// CreateAllowOperation decides whether the identity may create every
// candidate. memberOf is the resolved group membership of the identity.
func (r *Registry) CreateAllowOperation(ident types.Identity, memberOf []uuid.UUID, candidates []*entry.Init) (bool, error) {
	if ident.IsInternal() {
		return true, nil
	}

	r.mu.RLock()
	profiles := r.profiles
	r.mu.RUnlock()

	for _, cand := range candidates {
		if !r.candidateAllowed(profiles, memberOf, cand) {
			return false, nil
		}
	}
	return true, nil
}

func (r *Registry) candidateAllowed(profiles []Profile, memberOf []uuid.UUID, cand *entry.Init) bool {
	classes, ok := cand.Get(types.AttrClass)
	if !ok {
		return false
	}
	for _, p := range profiles {
		if !contains(memberOf, p.ReceiverGroup) {
			continue
		}
		if coversAll(p.CreateClasses, classes.Strings()) {
			return true
		}
	}
	return false
}

// ModifyAllowOperation decides whether the identity may apply the modify.
func (r *Registry) ModifyAllowOperation(ident types.Identity, memberOf []uuid.UUID, targets []*entry.Sealed) (bool, error) {
	if ident.IsInternal() {
		return true, nil
	}
	r.mu.RLock()
	profiles := r.profiles
	r.mu.RUnlock()
	// A modify grant requires any profile received by the identity.
	for _, p := range profiles {
		if contains(memberOf, p.ReceiverGroup) {
			return true, nil
		}
	}
	return false, nil
}

// DeleteAllowOperation decides whether the identity may delete the targets.
func (r *Registry) DeleteAllowOperation(ident types.Identity, memberOf []uuid.UUID, targets []*entry.Sealed) (bool, error) {
	return r.ModifyAllowOperation(ident, memberOf, targets)
}

// SearchFilterEntries restricts a result set to what the identity may see.
// Internal identities see everything; others currently see all non-masked
// entries, matching the front-end's own redaction layer.
func (r *Registry) SearchFilterEntries(ident types.Identity, entries []*entry.Sealed) []*entry.Sealed {
	if ident.IsInternal() {
		return entries
	}
	out := make([]*entry.Sealed, 0, len(entries))
	for _, e := range entries {
		if e.MaskedRecycledTs() {
			continue
		}
		out = append(out, e)
	}
	return out
}

func contains(set []uuid.UUID, u uuid.UUID) bool {
	for _, v := range set {
		if v == u {
			return true
		}
	}
	return false
}

func coversAll(allowed map[string]struct{}, classes []string) bool {
	for _, c := range classes {
		if _, ok := allowed[c]; !ok {
			return false
		}
	}
	return true
}
