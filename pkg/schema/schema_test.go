package schema

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warden/pkg/cid"
	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

func invalidEntry(attrs map[types.Attribute]value.Set) *entry.Invalid {
	c := cid.New(time.Second, uuid.MustParse("00000000-0000-0000-0000-0000000000aa"))
	return entry.NewInitWith(attrs).AssignCid(c)
}

func TestValidate(t *testing.T) {
	snap := Builtin()

	tests := []struct {
		name    string
		attrs   map[types.Attribute]value.Set
		wantErr string
	}{
		{
			name: "valid person account",
			attrs: map[types.Attribute]value.Set{
				types.AttrClass:       value.NewIutf8("object", "person", "account"),
				types.AttrUUID:        value.NewUuid(uuid.New()),
				types.AttrName:        value.NewIname("alice"),
				types.AttrDisplayName: value.NewUtf8("Alice"),
				types.AttrSpn:         value.NewSpn(value.Spn{Local: "alice", Domain: "example.com"}),
			},
		},
		{
			name: "no class",
			attrs: map[types.Attribute]value.Set{
				types.AttrUUID: value.NewUuid(uuid.New()),
			},
			wantErr: "no class",
		},
		{
			name: "unknown class",
			attrs: map[types.Attribute]value.Set{
				types.AttrClass: value.NewIutf8("object", "starship"),
				types.AttrUUID:  value.NewUuid(uuid.New()),
			},
			wantErr: "unknown class",
		},
		{
			name: "missing required attribute",
			attrs: map[types.Attribute]value.Set{
				types.AttrClass: value.NewIutf8("object", "person"),
				types.AttrUUID:  value.NewUuid(uuid.New()),
				types.AttrName:  value.NewIname("alice"),
			},
			wantErr: "missing required attribute",
		},
		{
			name: "attribute not permitted by classes",
			attrs: map[types.Attribute]value.Set{
				types.AttrClass:          value.NewIutf8("object"),
				types.AttrUUID:           value.NewUuid(uuid.New()),
				types.AttrDynGroupFilter: value.NewJsonFilter(`{"pres":"class"}`),
			},
			wantErr: "not permitted",
		},
		{
			name: "syntax mismatch",
			attrs: map[types.Attribute]value.Set{
				types.AttrClass:       value.NewIutf8("object", "person", "account"),
				types.AttrUUID:        value.NewUuid(uuid.New()),
				types.AttrName:        value.NewUtf8("alice"),
				types.AttrDisplayName: value.NewUtf8("Alice"),
				types.AttrSpn:         value.NewSpn(value.Spn{Local: "alice", Domain: "example.com"}),
			},
			wantErr: "expects syntax",
		},
		{
			name: "single value cardinality",
			attrs: map[types.Attribute]value.Set{
				types.AttrClass:       value.NewIutf8("object", "person", "account"),
				types.AttrUUID:        value.NewUuid(uuid.New()),
				types.AttrName:        value.NewIname("alice", "bob"),
				types.AttrDisplayName: value.NewUtf8("Alice"),
				types.AttrSpn:         value.NewSpn(value.Spn{Local: "alice", Domain: "example.com"}),
			},
			wantErr: "single valued",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := snap.Validate(invalidEntry(tt.attrs))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var sv *types.SchemaViolationError
			require.ErrorAs(t, err, &sv)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRecycledEntriesKeepAttributes(t *testing.T) {
	snap := Builtin()

	// A recycled person keeps attributes its remaining classes would not
	// otherwise permit; presence rules are relaxed through retention.
	err := snap.Validate(invalidEntry(map[types.Attribute]value.Set{
		types.AttrClass:       value.NewIutf8("object", "person", "recycled"),
		types.AttrUUID:        value.NewUuid(uuid.New()),
		types.AttrName:        value.NewIname("ghost"),
		types.AttrDynGroupFilter: value.NewJsonFilter(`{"pres":"class"}`),
	}))
	assert.NoError(t, err)
}

func TestRegistryReloadAddsDefinitions(t *testing.T) {
	reg := NewRegistry()

	c := cid.New(time.Second, uuid.New())
	attrEntry := entry.NewInitWith(map[types.Attribute]value.Set{
		types.AttrClass:      value.NewIutf8("object", "attributetype"),
		types.AttrUUID:       value.NewUuid(uuid.New()),
		types.AttrName:       value.NewIname("x_favourite_colour"),
		types.AttrSyntax:     value.NewUtf8(string(value.TagUtf8)),
		types.AttrMultiValue: value.NewBool(false),
	}).AssignCid(c)

	valid, err := attrEntry.Validate(reg.Snapshot())
	require.NoError(t, err)

	require.NoError(t, reg.Reload([]*entry.Sealed{valid.Seal()}))

	def, ok := reg.Snapshot().Attribute("x_favourite_colour")
	require.True(t, ok)
	assert.Equal(t, value.TagUtf8, def.Syntax)
	assert.False(t, def.MultiValue)

	// The builtin schema survives the reload.
	_, ok = reg.Snapshot().Attribute(types.AttrName)
	assert.True(t, ok)
}

func TestSnapshotSwapIsAtomicForReaders(t *testing.T) {
	reg := NewRegistry()
	snap := reg.Snapshot()

	require.NoError(t, reg.Reload(nil))

	// The old snapshot is still whole; readers holding it see no tearing.
	_, ok := snap.Attribute(types.AttrName)
	assert.True(t, ok)
	assert.NotSame(t, snap, reg.Snapshot())
}
