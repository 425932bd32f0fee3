package credential

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warden/pkg/cid"
)

func TestIdentityIDRoundTrip(t *testing.T) {
	u := uuid.New()
	tests := []struct {
		name string
		id   IdentityID
		raw  string
	}{
		{"internal", IdentityID{Kind: IssuedInternal}, `"v1i"`},
		{"user", IdentityID{Kind: IssuedByUser, UUID: u}, ""},
		{"sync", IdentityID{Kind: IssuedBySync, UUID: u}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.id)
			require.NoError(t, err)
			if tt.raw != "" {
				assert.JSONEq(t, tt.raw, string(data))
			}
			var back IdentityID
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.id, back)
		})
	}
}

func TestSessionStateRoundTrip(t *testing.T) {
	c := cid.New(5*time.Second, uuid.New())
	states := []SessionState{
		{Kind: StateNever},
		{Kind: StateExpiresAt, ExpiresAt: "2030-01-01T00:00:00Z"},
		{Kind: StateRevokedAt, RevokedAt: c},
	}
	for _, st := range states {
		data, err := json.Marshal(st)
		require.NoError(t, err)
		var back SessionState
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, st, back)
	}

	var bad SessionState
	assert.Error(t, json.Unmarshal([]byte(`"zz"`), &bad))
}

func TestSessionVersionsRoundTrip(t *testing.T) {
	refer := uuid.New()
	credID := uuid.New()

	v1exp := "2030-01-01T00:00:00Z"
	sessions := []Session{
		{
			Version: 1, Refer: refer, Label: "legacy", Expiry: &v1exp,
			IssuedAt: "2024-01-01T00:00:00Z", IssuedBy: IdentityID{Kind: IssuedInternal},
			Scope: ScopeReadOnly,
		},
		{
			Version: 2, Refer: refer, Label: "legacy2", Expiry: nil,
			IssuedAt: "2024-01-01T00:00:00Z", IssuedBy: IdentityID{Kind: IssuedByUser, UUID: refer},
			CredID: credID, Scope: ScopeReadWrite,
		},
		{
			Version: 3, Refer: refer, Label: "api", State: SessionState{Kind: StateNever},
			IssuedAt: "2024-06-01T00:00:00Z", IssuedBy: IdentityID{Kind: IssuedInternal},
			CredID: credID, Scope: ScopePrivilegeCapable,
		},
		{
			Version: 4, Refer: refer, Label: "cli", State: SessionState{Kind: StateNever},
			IssuedAt: "2024-06-01T00:00:00Z", IssuedBy: IdentityID{Kind: IssuedInternal},
			CredID: credID, Scope: ScopeReadWrite, Type: AuthPasswordTotp,
		},
	}

	for _, s := range sessions {
		data, err := json.Marshal(s)
		require.NoError(t, err)
		var back Session
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, s.Version, back.Version)
		assert.Equal(t, s.Refer, back.Refer)
		assert.Equal(t, s.Label, back.Label)
		assert.Equal(t, s.Scope, back.Scope)
		if s.Version >= 2 {
			assert.Equal(t, s.CredID, back.CredID)
		}
		if s.Version == 4 {
			assert.Equal(t, s.Type, back.Type)
		}
	}
}

func TestSessionScopeDefaultsReadOnly(t *testing.T) {
	raw := `{"V3": {"u": "23907166-e2ae-4cf3-a51c-3518b88418cd", "l": "x", "e": "nv",
		"i": "2024-01-01T00:00:00Z", "b": "v1i", "c": "23907166-e2ae-4cf3-a51c-3518b88418cd"}}`
	var s Session
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	assert.Equal(t, ScopeReadOnly, s.Scope)
}

func TestApiTokenRoundTrip(t *testing.T) {
	tok := ApiToken{
		Refer:    uuid.New(),
		Label:    "ci",
		IssuedAt: "2024-01-01T00:00:00Z",
		IssuedBy: IdentityID{Kind: IssuedInternal},
		Scope:    ApiScopeSynchronise,
	}
	data, err := json.Marshal(tok)
	require.NoError(t, err)

	var back ApiToken
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, tok, back)
}

func TestOAuth2SessionVersions(t *testing.T) {
	refer := uuid.New()
	rs := uuid.New()
	parent := uuid.New()

	// V3 made the parent optional for client credential grants.
	v3 := OAuth2Session{
		Version: 3, Refer: refer, Parent: nil,
		State: SessionState{Kind: StateExpiresAt, ExpiresAt: "2030-01-01T00:00:00Z"},
		IssuedAt: "2024-01-01T00:00:00Z", RsUUID: rs,
	}
	data, err := json.Marshal(v3)
	require.NoError(t, err)
	var back OAuth2Session
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 3, back.Version)
	assert.Nil(t, back.Parent)
	assert.Equal(t, rs, back.RsUUID)

	v2 := OAuth2Session{
		Version: 2, Refer: refer, Parent: &parent,
		State:    SessionState{Kind: StateNever},
		IssuedAt: "2024-01-01T00:00:00Z", RsUUID: rs,
	}
	data, err = json.Marshal(v2)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 2, back.Version)
	require.NotNil(t, back.Parent)
	assert.Equal(t, parent, *back.Parent)
}
