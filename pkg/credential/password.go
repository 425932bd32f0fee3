package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// Argon2id parameters for newly hashed passwords.
const (
	argonMemoryKiB = 65536
	argonTime      = 2
	argonParallel  = 1
	argonKeyLen    = 32
	saltLen        = 24
)

const pbkdf2KeyLen = 32

// Password is the persisted form of a password hash. Two generations are
// in circulation: PBKDF2-SHA256 from older installs, and argon2id for
// everything hashed since. Both must keep decoding; verification works for
// either, and the write path re-hashes legacy material on next change.
type Password struct {
	// Exactly one of the following is set.
	Argon2id *Argon2idHash
	PBKDF2   *PBKDF2Hash
}

// Argon2idHash carries the argon2id parameters alongside salt and key.
type Argon2idHash struct {
	Version  int    `json:"v"`
	Memory   uint32 `json:"m"`
	Time     uint32 `json:"t"`
	Parallel uint8  `json:"p"`
	Salt     []byte `json:"s"`
	Key      []byte `json:"k"`
}

// PBKDF2Hash is the legacy tuple (cost, salt, key).
type PBKDF2Hash struct {
	Cost int
	Salt []byte
	Key  []byte
}

// NewPassword hashes cleartext with the current scheme.
func NewPassword(cleartext string) (*Password, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(cleartext), salt, argonTime, argonMemoryKiB, argonParallel, argonKeyLen)
	return &Password{
		Argon2id: &Argon2idHash{
			Version:  argon2.Version,
			Memory:   argonMemoryKiB,
			Time:     argonTime,
			Parallel: argonParallel,
			Salt:     salt,
			Key:      key,
		},
	}, nil
}

// Verify checks cleartext against the stored hash.
func (p *Password) Verify(cleartext string) bool {
	switch {
	case p.Argon2id != nil:
		h := p.Argon2id
		key := argon2.IDKey([]byte(cleartext), h.Salt, h.Time, h.Memory, h.Parallel, uint32(len(h.Key)))
		return subtle.ConstantTimeCompare(key, h.Key) == 1
	case p.PBKDF2 != nil:
		h := p.PBKDF2
		key := pbkdf2.Key([]byte(cleartext), h.Salt, h.Cost, len(h.Key), sha256.New)
		return subtle.ConstantTimeCompare(key, h.Key) == 1
	}
	return false
}

// RequiresUpgrade reports whether the hash predates the current scheme.
func (p *Password) RequiresUpgrade() bool {
	return p.Argon2id == nil
}

// String never reveals hash material.
func (p *Password) String() string {
	switch {
	case p.Argon2id != nil:
		return "argon2id"
	case p.PBKDF2 != nil:
		return "pbkdf2"
	}
	return "invalid"
}

// MarshalJSON encodes the hash as a single-key object tagged by scheme.
// The PBKDF2 payload is the legacy (cost, salt, key) tuple.
func (p *Password) MarshalJSON() ([]byte, error) {
	switch {
	case p.Argon2id != nil:
		return json.Marshal(map[string]*Argon2idHash{"ARGON2ID": p.Argon2id})
	case p.PBKDF2 != nil:
		tuple := []any{p.PBKDF2.Cost, p.PBKDF2.Salt, p.PBKDF2.Key}
		return json.Marshal(map[string]any{"PBKDF2": tuple})
	}
	return nil, fmt.Errorf("password hash has no scheme")
}

// UnmarshalJSON decodes either scheme. Unknown scheme tags fail.
func (p *Password) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("password hash must carry exactly one scheme, got %d", len(raw))
	}
	for tag, payload := range raw {
		switch tag {
		case "ARGON2ID":
			var h Argon2idHash
			if err := json.Unmarshal(payload, &h); err != nil {
				return err
			}
			*p = Password{Argon2id: &h}
		case "PBKDF2":
			var tuple []json.RawMessage
			if err := json.Unmarshal(payload, &tuple); err != nil {
				return err
			}
			if len(tuple) != 3 {
				return fmt.Errorf("pbkdf2 hash must be a (cost, salt, key) tuple")
			}
			var h PBKDF2Hash
			if err := json.Unmarshal(tuple[0], &h.Cost); err != nil {
				return err
			}
			if err := json.Unmarshal(tuple[1], &h.Salt); err != nil {
				return err
			}
			if err := json.Unmarshal(tuple[2], &h.Key); err != nil {
				return err
			}
			if len(h.Key) == 0 {
				h.Key = make([]byte, 0, pbkdf2KeyLen)
			}
			*p = Password{PBKDF2: &h}
		default:
			return fmt.Errorf("unknown password scheme %q", tag)
		}
	}
	return nil
}
