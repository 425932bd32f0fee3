package value

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warden/pkg/cid"
)

func TestLenIsEmptyEquivalence(t *testing.T) {
	u := uuid.New()
	sets := []Set{
		NewUtf8(),
		NewUtf8("a", "b"),
		NewIname("x"),
		NewUuid(u),
		NewReference(),
		NewBool(true),
		NewSpn(Spn{Local: "a", Domain: "example.com"}),
		NewEmailAddress("a@example.com", []string{"a@example.com", "b@example.com"}),
		NewSession(),
		NewAuditLogString(),
	}
	for _, s := range sets {
		assert.Equal(t, s.Len() == 0, s.IsEmpty(), "tag %s", s.Tag())
	}
}

func TestEcKeyPrivateLenIsOne(t *testing.T) {
	// The payload is the bytes of a single key, so the length is defined
	// to be 1 regardless of the byte count.
	s := NewEcKeyPrivate([]byte{0x30, 0x77, 0x02, 0x01, 0x01})
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.IsEmpty())
}

func TestSetDeduplicates(t *testing.T) {
	u := uuid.New()
	assert.Equal(t, 2, NewUtf8("a", "b", "a").Len())
	assert.Equal(t, 1, NewReference(u, u).Len())
	assert.Equal(t, 1, NewUiHint(5, 5).Len())
}

func TestRoundTripTaggedForms(t *testing.T) {
	u := uuid.MustParse("cc8e95b4-c24f-4d68-ba54-8bed76f63930")
	server := uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	c := cid.New(2*time.Second, server)

	tests := []struct {
		name    string
		set     Set
		wantTag string
	}{
		{"utf8", NewUtf8("hello"), `"U8"`},
		{"iname", NewIname("testperson"), `"N8"`},
		{"reference", NewReference(u), `"RF"`},
		{"spn", NewSpn(Spn{Local: "testperson", Domain: "example.com"}), `"SP"`},
		{"email", NewEmailAddress("a@example.com", []string{"a@example.com"}), `"EM"`},
		{"audit log", NewAuditLogString(AuditLogString{Cid: c, Text: "testperson"}), `"SA"`},
		{"intent token", NewIntentToken(IntentToken{
			Token: "tok", State: IntentTokenState{Kind: IntentValid, MaxTTL: time.Hour},
		}), `"IT"`},
		{"key internal", NewKeyInternal(KeyInternal{
			ID: "abc", Usage: KeyUsageJwsEs256, Status: KeyStatusValid, StatusCid: c, Der: []byte{1, 2},
		}), `"KI"`},
		{"oauth2 scope map", NewOauthScopeMap(OauthScopeMap{Refer: u, Scopes: []string{"openid"}}), `"OM"`},
		{"certificate", NewCertificate(Certificate{DER: []byte{0x30}}), `"X509"`},
		{"ec key", NewEcKeyPrivate([]byte{9, 9}), `"EK"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.set)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(data), "{"+tt.wantTag),
				"encoded form %s should lead with tag %s", data, tt.wantTag)

			var back Set
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.set.Tag(), back.Tag())
			assert.Equal(t, tt.set.Len(), back.Len())

			again, err := json.Marshal(back)
			require.NoError(t, err)
			assert.JSONEq(t, string(data), string(again))
		})
	}
}

func TestUnknownTagFailsDecode(t *testing.T) {
	var s Set
	err := json.Unmarshal([]byte(`{"ZZ": ["a"]}`), &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown value set tag")
}

func TestEmailPrimaryMustBeInValues(t *testing.T) {
	ok := NewEmailAddress("a@example.com", []string{"a@example.com", "b@example.com"})
	assert.NoError(t, ok.Validate())

	bad := NewEmailAddress("missing@example.com", []string{"a@example.com"})
	assert.Error(t, bad.Validate())
}

func TestEmailEncodesAsTuple(t *testing.T) {
	s := NewEmailAddress("a@example.com", []string{"a@example.com", "b@example.com"})
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"EM": ["a@example.com", ["a@example.com", "b@example.com"]]}`, string(data))
}

func TestIntentTokenCanEditDefaultsFalse(t *testing.T) {
	// A token written before a capability existed must not gain it on
	// decode.
	raw := `{"IT": [["tok", {"v": {"max_ttl": {"secs": 3600, "nanos": 0}}}]]}`
	var s Set
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	toks, ok := s.data.([]IntentToken)
	require.True(t, ok)
	require.Len(t, toks, 1)
	st := toks[0].State
	assert.Equal(t, IntentValid, st.Kind)
	assert.Equal(t, time.Hour, st.MaxTTL)
	assert.False(t, st.ExtCredPortalCanView)
	assert.False(t, st.PrimaryCanEdit)
	assert.False(t, st.PasskeysCanEdit)
}

func TestProjectStrings(t *testing.T) {
	u := uuid.MustParse("cc8e95b4-c24f-4d68-ba54-8bed76f63930")

	assert.Equal(t, []string{"a", "b"}, NewUtf8("a", "b").ProjectStrings())
	assert.Equal(t, []string{u.String()}, NewReference(u).ProjectStrings())
	assert.Equal(t, []string{"testperson@example.com"},
		NewSpn(Spn{Local: "testperson", Domain: "example.com"}).ProjectStrings())

	// Secret-bearing variants project nothing.
	assert.Empty(t, NewEcKeyPrivate([]byte{1}).ProjectStrings())
	assert.Empty(t, NewSecret("supersecret").ProjectStrings())
}

func TestSessionSetRoundTrip(t *testing.T) {
	// Exercised through the Set layer so the AS tag is covered as well.
	// Session internals are covered in pkg/credential.
	raw := `{"AS": [{"V4": {"u": "cc8e95b4-c24f-4d68-ba54-8bed76f63930", "l": "cli", "e": "nv",
		"i": "2024-01-01T00:00:00Z", "b": "v1i",
		"c": "11111111-2222-3333-4444-555555555555", "s": "w", "t": "po"}}]}`
	var s Set
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	require.Equal(t, TagSession, s.Tag())
	require.Equal(t, 1, s.Len())

	sess := s.Sessions()[0]
	assert.Equal(t, 4, sess.Version)
	assert.Equal(t, "cli", sess.Label)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(data))
}
