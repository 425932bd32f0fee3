package plugins

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// The memberOf plugin maintains the derived membership attributes after a
// commit: directmemberof lists the groups that hold the entry directly
// (static member lists and matching dynamic groups), memberof additionally
// contains every group reachable through nesting. Dynamic groups get their
// dynmember list refreshed at the same time.

func memberOfPostCreate(t TxnMutator, committed []*entry.Sealed, ident types.Identity) error {
	return recomputeMemberOf(t, committed)
}

func memberOfPostModify(t TxnMutator, committed []*entry.Sealed, ident types.Identity) error {
	// A modified group changes the membership of the entries it holds, so
	// recompute those too.
	targets := committed
	seen := make(map[uuid.UUID]struct{}, len(committed))
	for _, e := range committed {
		seen[e.UUID()] = struct{}{}
	}
	for _, e := range committed {
		if !e.HasClass(types.ClassGroup) && !e.HasClass(types.ClassDynGroup) {
			continue
		}
		for _, attr := range []types.Attribute{types.AttrMember, types.AttrDynMember} {
			set, ok := e.Get(attr)
			if !ok {
				continue
			}
			for _, m := range set.Uuids() {
				if _, dup := seen[m]; dup {
					continue
				}
				seen[m] = struct{}{}
				hit, err := t.InternalSearchUUID(m)
				if err != nil {
					continue
				}
				targets = append(targets, hit)
			}
		}
	}
	return recomputeMemberOf(t, targets)
}

func recomputeMemberOf(t TxnMutator, targets []*entry.Sealed) error {
	groups, err := t.InternalSearch(types.Or(
		types.Eq(types.AttrClass, string(types.ClassGroup)),
		types.Eq(types.AttrClass, string(types.ClassDynGroup)),
	))
	if err != nil {
		return err
	}

	// memberSets maps group uuid -> static member set; dynFilters maps
	// dyngroup uuid -> compiled filter.
	memberSets := make(map[uuid.UUID]map[uuid.UUID]struct{}, len(groups))
	dynFilters := make(map[uuid.UUID]*types.Filter)
	for _, g := range groups {
		if g.MaskedRecycledTs() {
			continue
		}
		set := make(map[uuid.UUID]struct{})
		if m, ok := g.Get(types.AttrMember); ok {
			for _, u := range m.Uuids() {
				set[u] = struct{}{}
			}
		}
		memberSets[g.UUID()] = set
		if g.HasClass(types.ClassDynGroup) {
			if fs, ok := g.Get(types.AttrDynGroupFilter); ok && len(fs.Strings()) == 1 {
				f, err := parseJSONFilter(fs.Strings()[0])
				if err != nil {
					return fmt.Errorf("dyngroup %s has an invalid filter: %w", g.UUID(), err)
				}
				dynFilters[g.UUID()] = f
			}
		}
	}

	var pre []*entry.Sealed
	var post []*entry.Invalid
	dynAdds := make(map[uuid.UUID][]uuid.UUID)

	for _, e := range targets {
		if e.MaskedRecycledTs() {
			continue
		}
		// Groups are not members of dynamic groups; otherwise a dyngroup
		// matching class=object would pull in the whole directory.
		direct := make([]uuid.UUID, 0, 4)
		for _, g := range groups {
			if g.MaskedRecycledTs() || g.UUID() == e.UUID() {
				continue
			}
			if _, isMember := memberSets[g.UUID()][e.UUID()]; isMember {
				direct = append(direct, g.UUID())
				continue
			}
			isGroup := e.HasClass(types.ClassGroup) || e.HasClass(types.ClassDynGroup)
			if f, isDyn := dynFilters[g.UUID()]; isDyn && !isGroup && e.Matches(f) {
				direct = append(direct, g.UUID())
				dynAdds[g.UUID()] = append(dynAdds[g.UUID()], e.UUID())
			}
		}

		full := closure(direct, memberSets)

		if !membershipChanged(e, direct, full) {
			continue
		}

		inv := e.AsInvalid(t.Cid())
		if !e.HasClass(types.ClassMemberOf) {
			inv.AddClass(types.ClassMemberOf)
		}
		if len(direct) == 0 {
			inv.Remove(types.AttrDirectMemberOf)
			inv.Remove(types.AttrMemberOf)
		} else {
			inv.Set(types.AttrDirectMemberOf, value.NewReference(direct...))
			inv.Set(types.AttrMemberOf, value.NewReference(full...))
		}
		pre = append(pre, e)
		post = append(post, inv)
	}

	// Refresh dynmember on the dynamic groups that gained entries.
	for _, g := range groups {
		adds, ok := dynAdds[g.UUID()]
		if !ok {
			continue
		}
		cur, _ := g.Get(types.AttrDynMember)
		merged := value.NewReference(append(cur.Uuids(), adds...)...)
		if sameUuidSet(cur.Uuids(), merged.Uuids()) {
			continue
		}
		inv := g.AsInvalid(t.Cid())
		inv.Set(types.AttrDynMember, merged)
		pre = append(pre, g)
		post = append(post, inv)
	}

	if len(pre) == 0 {
		return nil
	}
	_, err = t.InternalApply(pre, post)
	return err
}

// closure expands direct membership through nested static groups: if the
// entry is in g and g is in h, the entry's memberof contains h.
func closure(direct []uuid.UUID, memberSets map[uuid.UUID]map[uuid.UUID]struct{}) []uuid.UUID {
	full := make([]uuid.UUID, 0, len(direct))
	seen := make(map[uuid.UUID]struct{}, len(direct))
	queue := append([]uuid.UUID{}, direct...)
	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		full = append(full, g)
		for h, members := range memberSets {
			if _, nested := members[g]; nested {
				queue = append(queue, h)
			}
		}
	}
	return full
}

func membershipChanged(e *entry.Sealed, direct, full []uuid.UUID) bool {
	cur, _ := e.Get(types.AttrDirectMemberOf)
	if !sameUuidSet(cur.Uuids(), direct) {
		return true
	}
	curFull, _ := e.Get(types.AttrMemberOf)
	return !sameUuidSet(curFull.Uuids(), full)
}

func sameUuidSet(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uuid.UUID]struct{}, len(a))
	for _, u := range a {
		set[u] = struct{}{}
	}
	for _, u := range b {
		if _, ok := set[u]; !ok {
			return false
		}
	}
	return true
}

// parseJSONFilter compiles the stored json filter form used by dynamic
// groups: {"eq": ["attr", "value"]}, {"pres": "attr"}, {"and": [...]},
// {"or": [...]}, {"not": {...}}.
func parseJSONFilter(raw string) (*types.Filter, error) {
	var node map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &node); err != nil {
		return nil, err
	}
	if len(node) != 1 {
		return nil, fmt.Errorf("filter node must have exactly one operator")
	}
	for op, payload := range node {
		switch op {
		case "eq":
			var pair [2]string
			if err := json.Unmarshal(payload, &pair); err != nil {
				return nil, err
			}
			return types.Eq(types.Attribute(pair[0]), pair[1]), nil
		case "pres":
			var attr string
			if err := json.Unmarshal(payload, &attr); err != nil {
				return nil, err
			}
			return types.Pres(types.Attribute(attr)), nil
		case "and", "or":
			var subs []json.RawMessage
			if err := json.Unmarshal(payload, &subs); err != nil {
				return nil, err
			}
			parsed := make([]*types.Filter, 0, len(subs))
			for _, s := range subs {
				f, err := parseJSONFilter(string(s))
				if err != nil {
					return nil, err
				}
				parsed = append(parsed, f)
			}
			if op == "and" {
				return types.And(parsed...), nil
			}
			return types.Or(parsed...), nil
		case "not":
			f, err := parseJSONFilter(string(payload))
			if err != nil {
				return nil, err
			}
			return types.Not(f), nil
		default:
			return nil, fmt.Errorf("unknown filter operator %q", op)
		}
	}
	return nil, fmt.Errorf("empty filter")
}
