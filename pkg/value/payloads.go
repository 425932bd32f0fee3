package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/warden/pkg/cid"
	"github.com/cuemby/warden/pkg/credential"
)

// durWire splits a duration into seconds and nanoseconds on disk.
type durWire struct {
	Secs  int64 `json:"secs"`
	Nanos int64 `json:"nanos"`
}

func durToWire(d time.Duration) durWire {
	return durWire{Secs: int64(d / time.Second), Nanos: int64(d % time.Second)}
}

func (w durWire) dur() time.Duration {
	return time.Duration(w.Secs)*time.Second + time.Duration(w.Nanos)
}

// TaggedString is a (tag, data) pair used for ssh public keys.
type TaggedString struct {
	Tag  string `json:"t"`
	Data string `json:"d"`
}

// Spn is a security principal name, persisted as the tuple
// [localpart, domain].
type Spn struct {
	Local  string
	Domain string
}

func (s Spn) String() string {
	return s.Local + "@" + s.Domain
}

func (s Spn) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{s.Local, s.Domain})
}

func (s *Spn) UnmarshalJSON(data []byte) error {
	var t [2]string
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	s.Local, s.Domain = t[0], t[1]
	return nil
}

// Address is a postal address. Field order is preserved for display;
// equality is on the full value.
type Address struct {
	Formatted     string `json:"f"`
	StreetAddress string `json:"s"`
	Locality      string `json:"l"`
	Region        string `json:"r"`
	PostalCode    string `json:"p"`
	Country       string `json:"c"`
}

// OauthScopeMap grants scopes to the members of the referenced group.
type OauthScopeMap struct {
	Refer  uuid.UUID `json:"u"`
	Scopes []string  `json:"m"`
}

// ClaimJoin selects how multiple claim values join into one claim.
type ClaimJoin string

const (
	JoinComma     ClaimJoin = "c"
	JoinSpace     ClaimJoin = "s"
	JoinJSONArray ClaimJoin = "a"
)

// OauthClaimMap maps group membership to claim values under a join rule.
// Only one generation exists.
type OauthClaimMap struct {
	Name   string
	Join   ClaimJoin
	Values map[uuid.UUID][]string
}

type oauthClaimMapWire struct {
	Name   string                 `json:"n"`
	Join   ClaimJoin              `json:"j"`
	Values map[uuid.UUID][]string `json:"d"`
}

func (m OauthClaimMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]oauthClaimMapWire{"V1": {Name: m.Name, Join: m.Join, Values: m.Values}})
}

func (m *OauthClaimMap) UnmarshalJSON(data []byte) error {
	var raw map[string]oauthClaimMapWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	w, ok := raw["V1"]
	if !ok || len(raw) != 1 {
		return fmt.Errorf("unknown oauth claim map version")
	}
	*m = OauthClaimMap{Name: w.Name, Join: w.Join, Values: w.Values}
	return nil
}

// PublicBinary is a tagged public key blob, persisted as [tag, bytes].
type PublicBinary struct {
	Tag  string
	Data []byte
}

func (p PublicBinary) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Tag, p.Data})
}

func (p *PublicBinary) UnmarshalJSON(data []byte) error {
	return unmarshalPair(data, &p.Tag, &p.Data)
}

// IntentTokenState is the lifecycle of a credential-update intent token.
// The *_can_edit booleans default to false when absent so that tokens
// written before a capability existed decode without gaining it.
type IntentTokenState struct {
	Kind IntentTokenKind

	MaxTTL time.Duration

	// InProgress only.
	SessionID  uuid.UUID
	SessionTTL time.Duration

	ExtCredPortalCanView  bool
	PrimaryCanEdit        bool
	PasskeysCanEdit       bool
	AttestedPasskeysCanEdit bool
	UnixCredCanEdit       bool
	SSHPubKeyCanEdit      bool
}

// IntentTokenKind discriminates intent token states.
type IntentTokenKind string

const (
	IntentValid      IntentTokenKind = "v"
	IntentInProgress IntentTokenKind = "p"
	IntentConsumed   IntentTokenKind = "c"
)

type intentWireValid struct {
	MaxTTL                  durWire `json:"max_ttl"`
	ExtCredPortalCanView    bool    `json:"ext_cred_portal_can_view,omitempty"`
	PrimaryCanEdit          bool    `json:"primary_can_edit,omitempty"`
	PasskeysCanEdit         bool    `json:"passkeys_can_edit,omitempty"`
	AttestedPasskeysCanEdit bool    `json:"attested_passkeys_can_edit,omitempty"`
	UnixCredCanEdit         bool    `json:"unixcred_can_edit,omitempty"`
	SSHPubKeyCanEdit        bool    `json:"sshpubkey_can_edit,omitempty"`
}

type intentWireInProgress struct {
	MaxTTL                  durWire   `json:"max_ttl"`
	SessionID               uuid.UUID `json:"session_id"`
	SessionTTL              durWire   `json:"session_ttl"`
	ExtCredPortalCanView    bool      `json:"ext_cred_portal_can_view,omitempty"`
	PrimaryCanEdit          bool      `json:"primary_can_edit,omitempty"`
	PasskeysCanEdit         bool      `json:"passkeys_can_edit,omitempty"`
	AttestedPasskeysCanEdit bool      `json:"attested_passkeys_can_edit,omitempty"`
	UnixCredCanEdit         bool      `json:"unixcred_can_edit,omitempty"`
	SSHPubKeyCanEdit        bool      `json:"sshpubkey_can_edit,omitempty"`
}

type intentWireConsumed struct {
	MaxTTL durWire `json:"max_ttl"`
}

func (s IntentTokenState) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case IntentValid:
		return json.Marshal(map[string]intentWireValid{string(IntentValid): {
			MaxTTL:                  durToWire(s.MaxTTL),
			ExtCredPortalCanView:    s.ExtCredPortalCanView,
			PrimaryCanEdit:          s.PrimaryCanEdit,
			PasskeysCanEdit:         s.PasskeysCanEdit,
			AttestedPasskeysCanEdit: s.AttestedPasskeysCanEdit,
			UnixCredCanEdit:         s.UnixCredCanEdit,
			SSHPubKeyCanEdit:        s.SSHPubKeyCanEdit,
		}})
	case IntentInProgress:
		return json.Marshal(map[string]intentWireInProgress{string(IntentInProgress): {
			MaxTTL:                  durToWire(s.MaxTTL),
			SessionID:               s.SessionID,
			SessionTTL:              durToWire(s.SessionTTL),
			ExtCredPortalCanView:    s.ExtCredPortalCanView,
			PrimaryCanEdit:          s.PrimaryCanEdit,
			PasskeysCanEdit:         s.PasskeysCanEdit,
			AttestedPasskeysCanEdit: s.AttestedPasskeysCanEdit,
			UnixCredCanEdit:         s.UnixCredCanEdit,
			SSHPubKeyCanEdit:        s.SSHPubKeyCanEdit,
		}})
	case IntentConsumed:
		return json.Marshal(map[string]intentWireConsumed{string(IntentConsumed): {MaxTTL: durToWire(s.MaxTTL)}})
	}
	return nil, fmt.Errorf("unknown intent token state %q", s.Kind)
}

func (s *IntentTokenState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("intent token state must carry exactly one tag")
	}
	for tag, payload := range raw {
		switch IntentTokenKind(tag) {
		case IntentValid:
			var w intentWireValid
			if err := json.Unmarshal(payload, &w); err != nil {
				return err
			}
			*s = IntentTokenState{
				Kind: IntentValid, MaxTTL: w.MaxTTL.dur(),
				ExtCredPortalCanView: w.ExtCredPortalCanView, PrimaryCanEdit: w.PrimaryCanEdit,
				PasskeysCanEdit: w.PasskeysCanEdit, AttestedPasskeysCanEdit: w.AttestedPasskeysCanEdit,
				UnixCredCanEdit: w.UnixCredCanEdit, SSHPubKeyCanEdit: w.SSHPubKeyCanEdit,
			}
		case IntentInProgress:
			var w intentWireInProgress
			if err := json.Unmarshal(payload, &w); err != nil {
				return err
			}
			*s = IntentTokenState{
				Kind: IntentInProgress, MaxTTL: w.MaxTTL.dur(),
				SessionID: w.SessionID, SessionTTL: w.SessionTTL.dur(),
				ExtCredPortalCanView: w.ExtCredPortalCanView, PrimaryCanEdit: w.PrimaryCanEdit,
				PasskeysCanEdit: w.PasskeysCanEdit, AttestedPasskeysCanEdit: w.AttestedPasskeysCanEdit,
				UnixCredCanEdit: w.UnixCredCanEdit, SSHPubKeyCanEdit: w.SSHPubKeyCanEdit,
			}
		case IntentConsumed:
			var w intentWireConsumed
			if err := json.Unmarshal(payload, &w); err != nil {
				return err
			}
			*s = IntentTokenState{Kind: IntentConsumed, MaxTTL: w.MaxTTL.dur()}
		default:
			return fmt.Errorf("unknown intent token state tag %q", tag)
		}
	}
	return nil
}

// IntentToken is the pair of a token id and its lifecycle state, persisted
// as [token, state].
type IntentToken struct {
	Token string
	State IntentTokenState
}

func (t IntentToken) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Token, t.State})
}

func (t *IntentToken) UnmarshalJSON(data []byte) error {
	return unmarshalPair(data, &t.Token, &t.State)
}

// PasskeyV4 wraps a passkey with its owning uuid and display tag. The V4
// version tag is part of the disk contract.
type PasskeyV4 struct {
	UUID uuid.UUID
	Tag  string
	Key  credential.Passkey
}

type passkeyWire struct {
	U uuid.UUID          `json:"u"`
	T string             `json:"t"`
	K credential.Passkey `json:"k"`
}

func (p PasskeyV4) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]passkeyWire{"V4": {U: p.UUID, T: p.Tag, K: p.Key}})
}

func (p *PasskeyV4) UnmarshalJSON(data []byte) error {
	var raw map[string]passkeyWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	w, ok := raw["V4"]
	if !ok || len(raw) != 1 {
		return fmt.Errorf("unknown passkey version")
	}
	*p = PasskeyV4{UUID: w.U, Tag: w.T, Key: w.K}
	return nil
}

// Equal compares identity: owning uuid and credential id. The display tag
// does not participate.
func (p PasskeyV4) Equal(other PasskeyV4) bool {
	return p.UUID == other.UUID && bytes.Equal(p.Key.CredID, other.Key.CredID)
}

// AttestedPasskeyV4 wraps an attested passkey, same shape as PasskeyV4.
type AttestedPasskeyV4 struct {
	UUID uuid.UUID
	Tag  string
	Key  credential.AttestedPasskey
}

type attestedPasskeyWire struct {
	U uuid.UUID                  `json:"u"`
	T string                     `json:"t"`
	K credential.AttestedPasskey `json:"k"`
}

func (p AttestedPasskeyV4) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]attestedPasskeyWire{"V4": {U: p.UUID, T: p.Tag, K: p.Key}})
}

func (p *AttestedPasskeyV4) UnmarshalJSON(data []byte) error {
	var raw map[string]attestedPasskeyWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	w, ok := raw["V4"]
	if !ok || len(raw) != 1 {
		return fmt.Errorf("unknown attested passkey version")
	}
	*p = AttestedPasskeyV4{UUID: w.U, Tag: w.T, Key: w.K}
	return nil
}

// Equal compares identity: owning uuid and credential id.
func (p AttestedPasskeyV4) Equal(other AttestedPasskeyV4) bool {
	return p.UUID == other.UUID && bytes.Equal(p.Key.CredID, other.Key.CredID)
}

// TotpSecret is the pair of a label and a totp secret, persisted as
// [label, totp].
type TotpSecret struct {
	Label string
	Totp  credential.Totp
}

func (t TotpSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Label, t.Totp})
}

func (t *TotpSecret) UnmarshalJSON(data []byte) error {
	return unmarshalPair(data, &t.Label, &t.Totp)
}

// AuditLogString is the pair of the writing transaction's cid and a text
// record, persisted as [cid, text]. Name history entries use this form.
type AuditLogString struct {
	Cid  cid.Cid
	Text string
}

func (a AuditLogString) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{a.Cid, a.Text})
}

func (a *AuditLogString) UnmarshalJSON(data []byte) error {
	return unmarshalPair(data, &a.Cid, &a.Text)
}

// ImageType identifies the format of a stored image.
type ImageType string

const (
	ImagePng  ImageType = "png"
	ImageJpg  ImageType = "jpg"
	ImageGif  ImageType = "gif"
	ImageSvg  ImageType = "svg"
	ImageWebp ImageType = "webp"
)

// Image is a stored image. Only one generation exists.
type Image struct {
	Filename string
	Filetype ImageType
	Contents []byte
}

type imageWire struct {
	Filename string    `json:"filename"`
	Filetype ImageType `json:"filetype"`
	Contents []byte    `json:"contents"`
}

func (i Image) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]imageWire{"V1": imageWire(i)})
}

func (i *Image) UnmarshalJSON(data []byte) error {
	var raw map[string]imageWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	w, ok := raw["V1"]
	if !ok || len(raw) != 1 {
		return fmt.Errorf("unknown image version")
	}
	*i = Image(w)
	return nil
}

// KeyUsage selects what an internal key may be used for.
type KeyUsage string

const (
	KeyUsageJwsEs256  KeyUsage = "JwsEs256"
	KeyUsageJwsHs256  KeyUsage = "JwsHs256"
	KeyUsageJwsRs256  KeyUsage = "JwsRs256"
	KeyUsageJweA128GCM KeyUsage = "JweA128GCM"
)

// KeyStatus is the lifecycle of an internal key.
type KeyStatus string

const (
	KeyStatusValid    KeyStatus = "Valid"
	KeyStatusRetained KeyStatus = "Retained"
	KeyStatusRevoked  KeyStatus = "Revoked"
)

// KeyInternal is a key held by a key object: id, usage, validity, lifecycle
// status with the cid that set it, and the DER encoded key material.
type KeyInternal struct {
	ID        string
	Usage     KeyUsage
	ValidFrom uint64
	Status    KeyStatus
	StatusCid cid.Cid
	Der       []byte
}

type keyInternalWire struct {
	ID        string    `json:"id"`
	Usage     KeyUsage  `json:"usage"`
	ValidFrom uint64    `json:"valid_from"`
	Status    KeyStatus `json:"status"`
	StatusCid cid.Cid   `json:"status_cid"`
	Der       []byte    `json:"der"`
}

func (k KeyInternal) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]keyInternalWire{"V1": keyInternalWire(k)})
}

func (k *KeyInternal) UnmarshalJSON(data []byte) error {
	var raw map[string]keyInternalWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	w, ok := raw["V1"]
	if !ok || len(raw) != 1 {
		return fmt.Errorf("unknown internal key version")
	}
	*k = KeyInternal(w)
	return nil
}

// Certificate is a DER encoded x509 certificate.
type Certificate struct {
	DER []byte
}

type certificateWire struct {
	DER []byte `json:"certificate_der"`
}

func (c Certificate) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]certificateWire{"V1": {DER: c.DER}})
}

func (c *Certificate) UnmarshalJSON(data []byte) error {
	var raw map[string]certificateWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	w, ok := raw["V1"]
	if !ok || len(raw) != 1 {
		return fmt.Errorf("unknown certificate version")
	}
	c.DER = w.DER
	return nil
}

// ApplicationPassword is a per-application password bound to an account.
type ApplicationPassword struct {
	Refer       uuid.UUID
	Application uuid.UUID
	Label       string
	Password    *credential.Password
}

type applicationPasswordWire struct {
	Refer       uuid.UUID            `json:"u"`
	Application uuid.UUID            `json:"a"`
	Label       string               `json:"l"`
	Password    *credential.Password `json:"p"`
}

func (a ApplicationPassword) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]applicationPasswordWire{"V1": applicationPasswordWire(a)})
}

func (a *ApplicationPassword) UnmarshalJSON(data []byte) error {
	var raw map[string]applicationPasswordWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	w, ok := raw["V1"]
	if !ok || len(raw) != 1 {
		return fmt.Errorf("unknown application password version")
	}
	*a = ApplicationPassword(w)
	return nil
}

// AttestationCaList is the set of trusted webauthn attestation roots.
// Insertion order is preserved for display; equality is set based on the
// certificate DER.
type AttestationCaList struct {
	Cas []AttestationCa `json:"cas"`
}

// AttestationCa is one trusted attestation root and the aaguids it vouches
// for.
type AttestationCa struct {
	Ca      []byte      `json:"ca"`
	Aaguids []uuid.UUID `json:"aaguids"`
}

// Len returns the number of trusted roots.
func (l *AttestationCaList) Len() int {
	return len(l.Cas)
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
