package credential

import (
	"encoding/json"
	"fmt"
)

// Passkey is a discoverable webauthn credential. The cryptographic
// operations live outside this module; the write path persists the key
// material opaquely and identifies a passkey by its credential id.
type Passkey struct {
	CredID     []byte          `json:"cred_id"`
	PublicKey  json.RawMessage `json:"cred,omitempty"`
	SignCount  uint32          `json:"counter"`
	Verified   bool            `json:"verified"`
	BackupOK   bool            `json:"backup_eligible,omitempty"`
	BackupUsed bool            `json:"backup_state,omitempty"`
}

// SecurityKey is a non-discoverable webauthn credential bound to a
// password+MFA credential.
type SecurityKey struct {
	CredID    []byte          `json:"cred_id"`
	PublicKey json.RawMessage `json:"cred,omitempty"`
	SignCount uint32          `json:"counter"`
	Verified  bool            `json:"verified"`
}

// AttestedPasskey is a passkey whose attestation chained to a trusted CA at
// enrolment time.
type AttestedPasskey struct {
	CredID      []byte          `json:"cred_id"`
	PublicKey   json.RawMessage `json:"cred,omitempty"`
	SignCount   uint32          `json:"counter"`
	Verified    bool            `json:"verified"`
	Attestation json.RawMessage `json:"attestation,omitempty"`
}

// LegacyWebauthn is the pre-v2 webauthn record retained only so old
// credential encodings keep decoding.
type LegacyWebauthn struct {
	Label     string          `json:"l"`
	ID        []byte          `json:"i"`
	Cred      json.RawMessage `json:"c"`
	Counter   uint32          `json:"t"`
	Verified  bool            `json:"v"`
	RegPolicy json.RawMessage `json:"p,omitempty"`
}

// LabelledSecurityKey persists as the tuple [label, key].
type LabelledSecurityKey struct {
	Label string
	Key   SecurityKey
}

func (l LabelledSecurityKey) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{l.Label, l.Key})
}

func (l *LabelledSecurityKey) UnmarshalJSON(data []byte) error {
	return unmarshalPair(data, &l.Label, &l.Key)
}

// LabelledPasskey persists as the tuple [label, passkey].
type LabelledPasskey struct {
	Label string
	Key   Passkey
}

func (l LabelledPasskey) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{l.Label, l.Key})
}

func (l *LabelledPasskey) UnmarshalJSON(data []byte) error {
	return unmarshalPair(data, &l.Label, &l.Key)
}

// LabelledTotp persists as the tuple [label, totp].
type LabelledTotp struct {
	Label string
	Totp  Totp
}

func (l LabelledTotp) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{l.Label, l.Totp})
}

func (l *LabelledTotp) UnmarshalJSON(data []byte) error {
	return unmarshalPair(data, &l.Label, &l.Totp)
}

// unmarshalPair decodes a two element JSON array into a and b.
func unmarshalPair(data []byte, a, b any) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("expected a two element tuple, got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], a); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], b)
}
