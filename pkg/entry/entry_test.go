package entry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warden/pkg/cid"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

type allowAll struct{}

func (allowAll) Validate(e *Invalid) error { return nil }

func newTestCid() cid.Cid {
	return cid.New(42*time.Second, uuid.MustParse("00000000-0000-0000-0000-0000000000aa"))
}

func TestAssignCidStampsEveryAttribute(t *testing.T) {
	u := uuid.New()
	c := newTestCid()

	init := NewInit().
		Set(types.AttrClass, value.NewIutf8("object", "person")).
		Set(types.AttrUUID, value.NewUuid(u)).
		Set(types.AttrName, value.NewIname("alice")).
		Set(types.AttrDisplayName, value.NewUtf8("Alice"))

	inv := init.AssignCid(c)
	assert.Equal(t, u, inv.UUID())
	assert.Equal(t, c, inv.Cid())

	valid, err := inv.Validate(allowAll{})
	require.NoError(t, err)
	sealed := valid.Seal()

	for _, attr := range sealed.Attributes() {
		got, ok := sealed.AttrCid(attr)
		require.True(t, ok, "attribute %s missing cid", attr)
		assert.Equal(t, c, got)
	}
}

func TestAssignCidGeneratesMissingUUID(t *testing.T) {
	inv := NewInit().
		Set(types.AttrClass, value.NewIutf8("object")).
		AssignCid(newTestCid())
	assert.NotEqual(t, uuid.Nil, inv.UUID())
}

func TestMaskedRecycledTs(t *testing.T) {
	tests := []struct {
		name    string
		classes []string
		masked  bool
	}{
		{"live entry", []string{"object", "person"}, false},
		{"recycled", []string{"object", "person", "recycled"}, true},
		{"tombstone", []string{"object", "tombstone"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewInit().Set(types.AttrClass, value.NewIutf8(tt.classes...))
			assert.Equal(t, tt.masked, e.MaskedRecycledTs())
		})
	}
}

func TestSealedIsImmutableFromInvalid(t *testing.T) {
	c := newTestCid()
	inv := NewInit().
		Set(types.AttrClass, value.NewIutf8("object")).
		Set(types.AttrName, value.NewIname("before")).
		AssignCid(c)

	valid, err := inv.Validate(allowAll{})
	require.NoError(t, err)
	sealed := valid.Seal()

	// Mutating the invalid handle after sealing must not leak through.
	inv.Set(types.AttrName, value.NewIname("after"))

	got, ok := sealed.Get(types.AttrName)
	require.True(t, ok)
	assert.Equal(t, []string{"before"}, got.Strings())
}

func TestMatchesFilter(t *testing.T) {
	u := uuid.New()
	sealed := mustSealed(t, map[types.Attribute]value.Set{
		types.AttrClass: value.NewIutf8("object", "person"),
		types.AttrUUID:  value.NewUuid(u),
		types.AttrName:  value.NewIname("alice"),
	})

	tests := []struct {
		name   string
		filter *types.Filter
		want   bool
	}{
		{"eq hit", types.Eq(types.AttrName, "alice"), true},
		{"eq miss", types.Eq(types.AttrName, "bob"), false},
		{"class eq", types.Eq(types.AttrClass, "person"), true},
		{"pres", types.Pres(types.AttrName), true},
		{"pres miss", types.Pres(types.AttrMail), false},
		{"and", types.And(types.Eq(types.AttrName, "alice"), types.Eq(types.AttrClass, "person")), true},
		{"and miss", types.And(types.Eq(types.AttrName, "alice"), types.Eq(types.AttrClass, "group")), false},
		{"or", types.Or(types.Eq(types.AttrName, "bob"), types.Eq(types.AttrName, "alice")), true},
		{"not", types.Not(types.Eq(types.AttrName, "bob")), true},
		{"nil matches all", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sealed.Matches(tt.filter))
		})
	}
}

func TestSealedJSONRoundTrip(t *testing.T) {
	u := uuid.New()
	sealed := mustSealed(t, map[types.Attribute]value.Set{
		types.AttrClass:       value.NewIutf8("object", "person"),
		types.AttrUUID:        value.NewUuid(u),
		types.AttrName:        value.NewIname("alice"),
		types.AttrNameHistory: value.NewAuditLogString(value.AuditLogString{Cid: newTestCid(), Text: "alice"}),
	})

	data, err := json.Marshal(sealed)
	require.NoError(t, err)

	var back Sealed
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, sealed.UUID(), back.UUID())
	assert.ElementsMatch(t, sealed.Classes(), back.Classes())

	c1, ok := sealed.AttrCid(types.AttrName)
	require.True(t, ok)
	c2, ok := back.AttrCid(types.AttrName)
	require.True(t, ok)
	assert.Equal(t, c1, c2)
}

func TestProjectRestrictsAttributes(t *testing.T) {
	sealed := mustSealed(t, map[types.Attribute]value.Set{
		types.AttrClass: value.NewIutf8("object"),
		types.AttrUUID:  value.NewUuid(uuid.New()),
		types.AttrName:  value.NewIname("alice"),
	})

	p := sealed.Project([]types.Attribute{types.AttrName})
	assert.True(t, p.HasAttr(types.AttrName))
	assert.False(t, p.HasAttr(types.AttrClass))

	full := sealed.Project(nil)
	assert.True(t, full.HasAttr(types.AttrClass))
}

func mustSealed(t *testing.T, attrs map[types.Attribute]value.Set) *Sealed {
	t.Helper()
	init := NewInitWith(attrs)
	valid, err := init.AssignCid(newTestCid()).Validate(allowAll{})
	require.NoError(t, err)
	return valid.Seal()
}
