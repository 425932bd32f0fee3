package plugins

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warden/pkg/types"
)

func TestParseJSONFilter(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "eq",
			raw:  `{"eq": ["class", "person"]}`,
			want: "(class=person)",
		},
		{
			name: "pres",
			raw:  `{"pres": "mail"}`,
			want: "(mail=*)",
		},
		{
			name: "and",
			raw:  `{"and": [{"eq": ["class", "person"]}, {"pres": "mail"}]}`,
			want: "(&(class=person)(mail=*))",
		},
		{
			name: "or nested",
			raw:  `{"or": [{"eq": ["class", "person"]}, {"not": {"eq": ["class", "group"]}}]}`,
			want: "(|(class=person)(!(class=group)))",
		},
		{
			name:    "unknown operator",
			raw:     `{"gte": ["version", "2"]}`,
			wantErr: true,
		},
		{
			name:    "two operators",
			raw:     `{"eq": ["a", "b"], "pres": "c"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `class=person`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parseJSONFilter(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.String())
		})
	}
}

func TestClosureExpandsNestedGroups(t *testing.T) {
	gInner := uuid.New()
	gOuter := uuid.New()
	gTop := uuid.New()
	member := uuid.New()

	// member ∈ inner, inner ∈ outer, outer ∈ top.
	memberSets := map[uuid.UUID]map[uuid.UUID]struct{}{
		gInner: {member: {}},
		gOuter: {gInner: {}},
		gTop:   {gOuter: {}},
	}

	full := closure([]uuid.UUID{gInner}, memberSets)
	assert.ElementsMatch(t, []uuid.UUID{gInner, gOuter, gTop}, full)
}

func TestClosureHandlesCycles(t *testing.T) {
	gA := uuid.New()
	gB := uuid.New()

	// a ∈ b and b ∈ a must terminate.
	memberSets := map[uuid.UUID]map[uuid.UUID]struct{}{
		gA: {gB: {}},
		gB: {gA: {}},
	}

	full := closure([]uuid.UUID{gA}, memberSets)
	assert.ElementsMatch(t, []uuid.UUID{gA, gB}, full)
}

func TestDerivedRefsAreExempt(t *testing.T) {
	for _, attr := range []types.Attribute{types.AttrMemberOf, types.AttrDirectMemberOf, types.AttrDynMember} {
		_, ok := derivedRefs[attr]
		assert.True(t, ok, "%s should be exempt from refint", attr)
	}
	_, ok := derivedRefs[types.AttrMember]
	assert.False(t, ok, "member is caller supplied and must be checked")
}
