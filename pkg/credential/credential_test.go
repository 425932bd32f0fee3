package credential

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warden/pkg/types"
)

func TestCredentialEqualityIsUUIDOnly(t *testing.T) {
	a, err := NewPasswordCred("correct horse battery staple")
	require.NoError(t, err)
	b, err := NewPasswordCred("correct horse battery staple")
	require.NoError(t, err)

	assert.False(t, a.Equal(b), "distinct uuids must not be equal")
	assert.True(t, a.Equal(a))

	// Same uuid, different content: still equal.
	clone := *a
	clone.password = b.password
	assert.True(t, a.Equal(&clone))
}

func TestRoundTripPreservesUUIDAllVersions(t *testing.T) {
	u := uuid.MustParse("23907166-e2ae-4cf3-a51c-3518b88418cd")
	pw, err := NewPassword("password")
	require.NoError(t, err)

	creds := []*Cred{
		{kind: KindPw, id: u, password: pw, claims: []string{}},
		{kind: KindGPw, id: u, password: pw, claims: []string{}},
		{kind: KindPwMfa, id: u, password: pw, claims: []string{}},
		{kind: KindWn, id: u, claims: []string{}},
		{kind: KindTmpWn, id: u},
		{kind: KindV2Password, id: u, password: pw},
		{kind: KindV2GenPassword, id: u, password: pw},
		{kind: KindV2PasswordMfa, id: u, password: pw},
		{kind: KindV3PasswordMfa, id: u, password: pw},
	}

	for _, c := range creds {
		t.Run(string(c.kind), func(t *testing.T) {
			data, err := json.Marshal(c)
			require.NoError(t, err)

			var back Cred
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, c.kind, back.kind)
			assert.Equal(t, u, back.UUID())
		})
	}
}

func TestLegacyPwDecodeAndUpgrade(t *testing.T) {
	// A legacy encoding, password present, webauthn and totp absent,
	// claims empty.
	u := uuid.MustParse("23907166-e2ae-4cf3-a51c-3518b88418cd")
	raw := fmt.Sprintf(`{
		"type_": "Pw",
		"password": {"PBKDF2": [10000, "AAAA", "u0lvSSv8yVTFCTzteVaNL54GvDPHlbEVv8PLVPnkUNE="]},
		"claims": [],
		"uuid": %q
	}`, u)

	var c Cred
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	assert.Equal(t, KindPw, c.Kind())
	assert.Equal(t, u, c.UUID())
	assert.True(t, c.IsLegacy())

	up, err := c.Normalise()
	require.NoError(t, err)
	assert.Equal(t, KindV2Password, up.Kind())
	assert.Equal(t, u, up.UUID())

	// Re-encoding carries the V2Pw discriminant with the same uuid.
	data, err := json.Marshal(up)
	require.NoError(t, err)
	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.JSONEq(t, `"V2Pw"`, string(wire["type_"]))
	assert.JSONEq(t, fmt.Sprintf("%q", u), string(wire["uuid"]))
}

func TestLegacyPwMfaUpgradesToV3(t *testing.T) {
	u := uuid.New()
	pw, err := NewPassword("password")
	require.NoError(t, err)

	c := &Cred{
		kind:       KindPwMfa,
		id:         u,
		password:   pw,
		legacyTotp: &Totp{Label: "totp", Key: []byte{1, 2, 3}, Step: 30, Algo: TotpAlgoSha1},
	}

	up, err := c.Normalise()
	require.NoError(t, err)
	assert.Equal(t, KindV3PasswordMfa, up.Kind())
	assert.Equal(t, u, up.UUID())
	assert.Equal(t, 1, up.TotpCount())
}

func TestWnCannotNormalise(t *testing.T) {
	// A webauthn-only credential has no password, which no active format
	// permits. It must keep decoding but refuse the upgrade.
	c := &Cred{kind: KindWn, id: uuid.New()}
	_, err := c.Normalise()
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidState)
}

func TestSecondTotpUpgradesV2ToV3(t *testing.T) {
	u := uuid.New()
	pw, err := NewPassword("password")
	require.NoError(t, err)

	v2 := &Cred{
		kind:       KindV2PasswordMfa,
		id:         u,
		password:   pw,
		legacyTotp: &Totp{Label: "totp", Key: []byte{1}, Step: 30, Algo: TotpAlgoSha1},
	}

	v3, err := v2.AddTotp("phone", Totp{Label: "phone", Key: []byte{2}, Step: 30, Algo: TotpAlgoSha256})
	require.NoError(t, err)
	assert.Equal(t, KindV3PasswordMfa, v3.Kind())
	assert.Equal(t, u, v3.UUID())
	assert.Equal(t, 2, v3.TotpCount())
}

func TestStringRevealsCountsOnly(t *testing.T) {
	u := uuid.New()
	pw, err := NewPassword("hunter2")
	require.NoError(t, err)

	secret := []byte("totp-secret-key-material")
	c := &Cred{
		kind:     KindV3PasswordMfa,
		id:       u,
		password: pw,
		totps: []LabelledTotp{
			{Label: "phone", Totp: Totp{Label: "phone", Key: secret, Step: 30, Algo: TotpAlgoSha1}},
		},
		backupCode: &BackupCode{CodeSet: []string{"backup-code-one"}},
	}

	for _, rendered := range []string{
		c.String(),
		fmt.Sprintf("%v", c),
		fmt.Sprintf("%s", c),
		fmt.Sprintf("%#v", c),
	} {
		assert.NotContains(t, rendered, "hunter2")
		assert.NotContains(t, rendered, "totp-secret-key-material")
		assert.NotContains(t, rendered, "backup-code-one")
	}
	assert.Equal(t, fmt.Sprintf("V3PwMfa (p true, w 0, t 1, b true, u %s)", u), c.String())
}

func TestTotpPrintingIsRedacted(t *testing.T) {
	totp := &Totp{Label: "phone", Key: []byte("secret-material"), Step: 30, Algo: TotpAlgoSha256}
	assert.Equal(t, "totp (l phone, s 30, a S256)", totp.String())
	assert.NotContains(t, fmt.Sprintf("%#v", totp), "secret-material")

	bc := &BackupCode{CodeSet: []string{"aaa", "bbb"}}
	assert.Equal(t, "codes remaining: 2", bc.String())
	assert.NotContains(t, fmt.Sprintf("%#v", bc), "aaa")
}

func TestBackupCodeConsume(t *testing.T) {
	bc := &BackupCode{CodeSet: []string{"one", "two"}}
	assert.True(t, bc.Consume("one"))
	assert.False(t, bc.Consume("one"))
	assert.Equal(t, 1, bc.Remaining())
}

func TestPasswordVerifyBothSchemes(t *testing.T) {
	p, err := NewPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, p.Verify("s3cret"))
	assert.False(t, p.Verify("wrong"))
	assert.False(t, p.RequiresUpgrade())

	// The current hash round-trips; a legacy pbkdf2 hash decodes and flags
	// for upgrade.
	data, err := json.Marshal(p)
	require.NoError(t, err)
	var back Password
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Verify("s3cret"))

	var legacy Password
	require.NoError(t, json.Unmarshal([]byte(`{"PBKDF2": [1000, "c2FsdA==", "a2V5bWF0ZXJpYWwxMjM0"]}`), &legacy))
	assert.True(t, legacy.RequiresUpgrade())
	assert.False(t, legacy.Verify("anything"))
}

func TestUnknownCredentialTypeFails(t *testing.T) {
	var c Cred
	err := json.Unmarshal([]byte(`{"type_": "V9Future", "uuid": "23907166-e2ae-4cf3-a51c-3518b88418cd"}`), &c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown credential type_")
}
