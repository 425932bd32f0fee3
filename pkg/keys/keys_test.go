package keys

import (
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warden/pkg/cid"
	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/security"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true})
	os.Exit(m.Run())
}

type noValidate struct{}

func (noValidate) Validate(e *entry.Invalid) error { return nil }

func testSealer(t *testing.T) *security.Sealer {
	t.Helper()
	s, err := security.NewSealer(security.DeriveKeyFromDomain("example.com"))
	require.NoError(t, err)
	return s
}

func keyObjectEntry(t *testing.T, ki value.KeyInternal) *entry.Sealed {
	t.Helper()
	c := cid.New(time.Second, uuid.New())
	init := entry.NewInitWith(map[types.Attribute]value.Set{
		types.AttrClass:           value.NewIutf8("object", "key_object"),
		types.AttrUUID:            value.NewUuid(uuid.New()),
		types.AttrKeyProviderRef:  value.NewReference(uuid.New()),
		types.AttrKeyInternalData: value.NewKeyInternal(ki),
	})
	valid, err := init.AssignCid(c).Validate(noValidate{})
	require.NoError(t, err)
	return valid.Seal()
}

func TestGenerateSignVerifyES256(t *testing.T) {
	sealer := testSealer(t)
	c := cid.New(time.Second, uuid.New())

	ki, err := GenerateInternal(sealer, value.KeyUsageJwsEs256, 0, c)
	require.NoError(t, err)
	assert.Equal(t, value.KeyStatusValid, ki.Status)
	assert.Equal(t, c, ki.StatusCid)
	assert.NotEmpty(t, ki.ID)

	store := NewStore(sealer)
	require.NoError(t, store.Reload([]*entry.Sealed{keyObjectEntry(t, ki)}))

	claims := jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := store.SignES256(ki.ID, claims)
	require.NoError(t, err)

	var back jwt.MapClaims = jwt.MapClaims{}
	require.NoError(t, store.Verify(token, &back))
	assert.Equal(t, "alice", back["sub"])
}

func TestGenerateSignVerifyRS256(t *testing.T) {
	sealer := testSealer(t)
	c := cid.New(time.Second, uuid.New())

	ki, err := GenerateInternal(sealer, value.KeyUsageJwsRs256, 0, c)
	require.NoError(t, err)

	store := NewStore(sealer)
	require.NoError(t, store.Reload([]*entry.Sealed{keyObjectEntry(t, ki)}))

	token, err := store.SignRS256(ki.ID, jwt.MapClaims{"sub": "svc", "exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)

	var back jwt.MapClaims = jwt.MapClaims{}
	require.NoError(t, store.Verify(token, &back))
	assert.Equal(t, "svc", back["sub"])
}

func TestRevokedKeysAreNotLoaded(t *testing.T) {
	sealer := testSealer(t)
	c := cid.New(time.Second, uuid.New())

	ki, err := GenerateInternal(sealer, value.KeyUsageJwsEs256, 0, c)
	require.NoError(t, err)
	ki.Status = value.KeyStatusRevoked

	store := NewStore(sealer)
	require.NoError(t, store.Reload([]*entry.Sealed{keyObjectEntry(t, ki)}))

	_, err = store.SignES256(ki.ID, jwt.MapClaims{"sub": "x"})
	assert.Error(t, err)
}

func TestWrongDomainSealerFailsReload(t *testing.T) {
	sealer := testSealer(t)
	c := cid.New(time.Second, uuid.New())

	ki, err := GenerateInternal(sealer, value.KeyUsageJwsEs256, 0, c)
	require.NoError(t, err)

	other, err := security.NewSealer(security.DeriveKeyFromDomain("other.example.com"))
	require.NoError(t, err)

	store := NewStore(other)
	assert.Error(t, store.Reload([]*entry.Sealed{keyObjectEntry(t, ki)}))
}

func TestSignUnknownKeyFails(t *testing.T) {
	store := NewStore(testSealer(t))
	_, err := store.SignES256("nope", jwt.MapClaims{})
	assert.Error(t, err)
}
