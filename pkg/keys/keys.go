package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cuemby/warden/pkg/cid"
	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/security"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// Store is the process-wide signing key cache. Key objects persist their
// keys as KeyInternal values with the DER sealed at rest; the store
// indexes the non-revoked ones by key id and signs or verifies JWS on their
// behalf. Only the write transaction's post-commit reload path replaces
// the index.
type Store struct {
	sealer *security.Sealer

	mu   sync.RWMutex
	keys map[string]loadedKey
}

type loadedKey struct {
	usage  value.KeyUsage
	status value.KeyStatus
	es256  *ecdsa.PrivateKey
	rs256  *rsa.PrivateKey
}

// NewStore builds an empty key store. The sealer unwraps key DER held at
// rest; every server in a domain derives the same sealing key so stored
// key objects replicate.
func NewStore(sealer *security.Sealer) *Store {
	return &Store{sealer: sealer, keys: make(map[string]loadedKey)}
}

// Reload rebuilds the index from committed key_object entries and swaps it
// in atomically.
func (s *Store) Reload(entries []*entry.Sealed) error {
	next := make(map[string]loadedKey)

	for _, e := range entries {
		if !e.HasClass(types.ClassKeyObject) {
			continue
		}
		set, ok := e.Get(types.AttrKeyInternalData)
		if !ok {
			continue
		}
		for _, ki := range set.KeyInternals() {
			if ki.Status == value.KeyStatusRevoked {
				continue
			}
			der, err := s.sealer.Unseal(ki.Der)
			if err != nil {
				return fmt.Errorf("key %s: %w", ki.ID, err)
			}
			lk := loadedKey{usage: ki.Usage, status: ki.Status}
			switch ki.Usage {
			case value.KeyUsageJwsEs256:
				pk, err := x509.ParseECPrivateKey(der)
				if err != nil {
					return fmt.Errorf("key %s: %w", ki.ID, err)
				}
				lk.es256 = pk
			case value.KeyUsageJwsRs256:
				pk, err := x509.ParsePKCS1PrivateKey(der)
				if err != nil {
					return fmt.Errorf("key %s: %w", ki.ID, err)
				}
				lk.rs256 = pk
			default:
				// Usages this store does not serve stay on the entry.
				continue
			}
			next[ki.ID] = lk
		}
	}

	s.mu.Lock()
	s.keys = next
	s.mu.Unlock()

	log.WithComponent("keys").Debug().Int("keys", len(next)).Msg("key material reloaded")
	return nil
}

// SignES256 signs claims as a JWS with the named ES256 key.
func (s *Store) SignES256(keyID string, claims jwt.Claims) (string, error) {
	s.mu.RLock()
	lk, ok := s.keys[keyID]
	s.mu.RUnlock()
	if !ok || lk.es256 == nil {
		return "", fmt.Errorf("no valid es256 key %q", keyID)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["kid"] = keyID
	return tok.SignedString(lk.es256)
}

// SignRS256 signs claims as a JWS with the named RS256 key.
func (s *Store) SignRS256(keyID string, claims jwt.Claims) (string, error) {
	s.mu.RLock()
	lk, ok := s.keys[keyID]
	s.mu.RUnlock()
	if !ok || lk.rs256 == nil {
		return "", fmt.Errorf("no valid rs256 key %q", keyID)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = keyID
	return tok.SignedString(lk.rs256)
}

// Verify parses and verifies a JWS against whichever stored key its kid
// header names.
func (s *Store) Verify(token string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		s.mu.RLock()
		lk, ok := s.keys[kid]
		s.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		switch {
		case lk.es256 != nil:
			return &lk.es256.PublicKey, nil
		case lk.rs256 != nil:
			return &lk.rs256.PublicKey, nil
		}
		return nil, fmt.Errorf("key %q has no usable material", kid)
	})
	return err
}

// GenerateInternal mints a fresh internal key of the given usage, stamped
// with the creating transaction's cid and sealed for rest. The returned
// value is ready to store on a key object.
func GenerateInternal(sealer *security.Sealer, usage value.KeyUsage, validFrom uint64, c cid.Cid) (value.KeyInternal, error) {
	var der []byte
	switch usage {
	case value.KeyUsageJwsEs256:
		pk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return value.KeyInternal{}, fmt.Errorf("failed to generate es256 key: %w", err)
		}
		der, err = x509.MarshalECPrivateKey(pk)
		if err != nil {
			return value.KeyInternal{}, err
		}
	case value.KeyUsageJwsRs256:
		pk, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return value.KeyInternal{}, fmt.Errorf("failed to generate rs256 key: %w", err)
		}
		der = x509.MarshalPKCS1PrivateKey(pk)
	default:
		return value.KeyInternal{}, fmt.Errorf("cannot generate key of usage %q", usage)
	}

	sum := sha256.Sum256(der)
	sealed, err := sealer.Seal(der)
	if err != nil {
		return value.KeyInternal{}, fmt.Errorf("failed to seal key: %w", err)
	}
	return value.KeyInternal{
		ID:        hex.EncodeToString(sum[:16]),
		Usage:     usage,
		ValidFrom: validFrom,
		Status:    value.KeyStatusValid,
		StatusCid: c,
		Der:       sealed,
	}, nil
}

// NewKeyObjectUUID returns a fresh uuid for a generated key object entry.
func NewKeyObjectUUID() uuid.UUID {
	return uuid.New()
}
