package credential

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/cuemby/warden/pkg/types"
)

// Kind is the persisted discriminant of a credential. Every kind that has
// ever shipped is a permanent disk contract: kinds are never renamed and
// never reassigned.
type Kind string

const (
	KindPw    Kind = "Pw"
	KindGPw   Kind = "GPw"
	KindPwMfa Kind = "PwMfa"
	KindWn    Kind = "Wn"
	KindTmpWn Kind = "TmpWn"

	KindV2Password    Kind = "V2Pw"
	KindV2GenPassword Kind = "V2GPw"
	KindV2PasswordMfa Kind = "V2PwMfa"
	KindV3PasswordMfa Kind = "V3PwMfa"
)

// Cred is a stored credential. It is a sum over every format generation
// still present on disk; the active formats are V2Password, V2GenPassword
// and V3PasswordMfa, everything else decodes for back-compat and is
// normalised on the next write.
//
// A credential's uuid is its stable identity across format migrations, and
// two credentials are equal iff their uuids match.
type Cred struct {
	kind Kind
	id   uuid.UUID

	// password is set for every kind except TmpWn (and possibly absent on
	// legacy records).
	password *Password

	// Legacy (pre-v2) slots.
	legacyWebauthn []LegacyWebauthn
	legacyTotp     *Totp
	claims         []string

	backupCode *BackupCode

	// TmpWn in-progress enrolment keys.
	tmpPasskeys []LabelledPasskey

	// V2PwMfa / V3PwMfa security keys.
	securityKeys []LabelledSecurityKey

	// V3PwMfa totp list.
	totps []LabelledTotp
}

// NewPasswordCred builds a V2Password credential with a fresh uuid.
func NewPasswordCred(cleartext string) (*Cred, error) {
	pw, err := NewPassword(cleartext)
	if err != nil {
		return nil, err
	}
	return &Cred{kind: KindV2Password, id: uuid.New(), password: pw}, nil
}

// NewGeneratedPasswordCred builds a V2GenPassword credential with a fresh
// uuid.
func NewGeneratedPasswordCred(cleartext string) (*Cred, error) {
	pw, err := NewPassword(cleartext)
	if err != nil {
		return nil, err
	}
	return &Cred{kind: KindV2GenPassword, id: uuid.New(), password: pw}, nil
}

// Kind returns the persisted discriminant.
func (c *Cred) Kind() Kind {
	return c.kind
}

// UUID returns the credential's stable identity.
func (c *Cred) UUID() uuid.UUID {
	return c.id
}

// Equal reports credential identity: uuid equality, nothing else.
func (c *Cred) Equal(other *Cred) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.id == other.id
}

// Password returns the password hash, or nil when the kind carries none.
func (c *Cred) Password() *Password {
	return c.password
}

// IsLegacy reports whether the credential is a pre-v2 format that should be
// normalised on the next write.
func (c *Cred) IsLegacy() bool {
	switch c.kind {
	case KindPw, KindGPw, KindPwMfa, KindWn:
		return true
	}
	return false
}

// String reveals only presence booleans and counts, never secret material.
func (c *Cred) String() string {
	switch c.kind {
	case KindPw, KindGPw, KindPwMfa, KindWn:
		return fmt.Sprintf("%s (p %t, w %t, t %t, b %t, c %d, u %s)",
			c.kind, c.password != nil, len(c.legacyWebauthn) > 0,
			c.legacyTotp != nil, c.backupCode != nil, len(c.claims), c.id)
	case KindTmpWn:
		return fmt.Sprintf("TmpWn ( w %d, u %s )", len(c.tmpPasskeys), c.id)
	case KindV2Password:
		return fmt.Sprintf("V2Pw ( u %s )", c.id)
	case KindV2GenPassword:
		return fmt.Sprintf("V2GPw ( u %s )", c.id)
	case KindV2PasswordMfa:
		return fmt.Sprintf("V2PwMfa (p true, w %d, t %t, b %t, u %s)",
			len(c.securityKeys), c.legacyTotp != nil, c.backupCode != nil, c.id)
	case KindV3PasswordMfa:
		return fmt.Sprintf("V3PwMfa (p true, w %d, t %d, b %t, u %s)",
			len(c.securityKeys), len(c.totps), c.backupCode != nil, c.id)
	}
	return fmt.Sprintf("invalid credential ( u %s )", c.id)
}

// GoString matches String so %#v formatting cannot leak secret material.
func (c *Cred) GoString() string {
	return c.String()
}

// Normalise upgrades a legacy credential to the newest format that can
// represent it, preserving the uuid. Active formats return themselves
// unchanged, as does TmpWn: an in-progress enrolment has no newer form and
// is replaced, not migrated, when enrolment completes.
//
// A Wn credential has no password, which no active format permits; it
// cannot be normalised until an administrator sets one.
func (c *Cred) Normalise() (*Cred, error) {
	switch c.kind {
	case KindPw:
		return c.normaliseLegacyPw(KindV2Password)
	case KindGPw:
		return c.normaliseLegacyPw(KindV2GenPassword)
	case KindPwMfa:
		if c.password == nil {
			return nil, fmt.Errorf("credential %s has no password: %w", c.id, types.ErrInvalidState)
		}
		up := &Cred{
			kind:       KindV3PasswordMfa,
			id:         c.id,
			password:   c.password,
			backupCode: c.backupCode,
		}
		if c.legacyTotp != nil {
			up.totps = []LabelledTotp{{Label: "totp", Totp: *c.legacyTotp}}
		}
		for _, w := range c.legacyWebauthn {
			up.securityKeys = append(up.securityKeys, LabelledSecurityKey{
				Label: w.Label,
				Key: SecurityKey{
					CredID:    w.ID,
					PublicKey: w.Cred,
					SignCount: w.Counter,
					Verified:  w.Verified,
				},
			})
		}
		return up, nil
	case KindWn:
		return nil, fmt.Errorf("credential %s is webauthn-only and has no password: %w", c.id, types.ErrInvalidState)
	case KindV2PasswordMfa:
		up := &Cred{
			kind:         KindV3PasswordMfa,
			id:           c.id,
			password:     c.password,
			backupCode:   c.backupCode,
			securityKeys: c.securityKeys,
		}
		if c.legacyTotp != nil {
			up.totps = []LabelledTotp{{Label: "totp", Totp: *c.legacyTotp}}
		}
		return up, nil
	default:
		return c, nil
	}
}

func (c *Cred) normaliseLegacyPw(to Kind) (*Cred, error) {
	if c.password == nil {
		return nil, fmt.Errorf("credential %s has no password: %w", c.id, types.ErrInvalidState)
	}
	return &Cred{kind: to, id: c.id, password: c.password}, nil
}

// AddTotp attaches a labelled TOTP. A V2PasswordMfa holding one TOTP is
// upgraded to V3PasswordMfa when the second arrives; V2Password becomes
// V3PasswordMfa directly. The uuid is preserved throughout.
func (c *Cred) AddTotp(label string, t Totp) (*Cred, error) {
	switch c.kind {
	case KindV2Password, KindV2GenPassword:
		return &Cred{
			kind:     KindV3PasswordMfa,
			id:       c.id,
			password: c.password,
			totps:    []LabelledTotp{{Label: label, Totp: t}},
		}, nil
	case KindV2PasswordMfa:
		up, err := c.Normalise()
		if err != nil {
			return nil, err
		}
		up.totps = append(up.totps, LabelledTotp{Label: label, Totp: t})
		return up, nil
	case KindV3PasswordMfa:
		next := *c
		next.totps = append(append([]LabelledTotp{}, c.totps...), LabelledTotp{Label: label, Totp: t})
		return &next, nil
	default:
		return nil, fmt.Errorf("credential %s (%s) cannot hold a totp: %w", c.id, c.kind, types.ErrInvalidState)
	}
}

// TotpCount returns the number of attached TOTP secrets.
func (c *Cred) TotpCount() int {
	if c.legacyTotp != nil {
		return 1
	}
	return len(c.totps)
}

// SecurityKeyCount returns the number of attached webauthn factors.
func (c *Cred) SecurityKeyCount() int {
	if len(c.legacyWebauthn) > 0 {
		return len(c.legacyWebauthn)
	}
	if len(c.tmpPasskeys) > 0 {
		return len(c.tmpPasskeys)
	}
	return len(c.securityKeys)
}

// HasBackupCodes reports whether backup codes remain.
func (c *Cred) HasBackupCodes() bool {
	return c.backupCode != nil && c.backupCode.Remaining() > 0
}

// credWire is the persisted shape. The type_ field is the internal tag;
// absent optional fields stay absent on disk.
type credWire struct {
	Type       Kind                  `json:"type_"`
	Password   *Password             `json:"password,omitempty"`
	Webauthn   json.RawMessage       `json:"webauthn,omitempty"`
	Totp       json.RawMessage       `json:"totp,omitempty"`
	BackupCode *BackupCode           `json:"backup_code,omitempty"`
	Claims     []string              `json:"claims,omitempty"`
	UUID       uuid.UUID             `json:"uuid"`
}

// MarshalJSON persists the credential with its stable type_ discriminant.
func (c *Cred) MarshalJSON() ([]byte, error) {
	w := credWire{Type: c.kind, UUID: c.id}
	var err error
	switch c.kind {
	case KindPw, KindGPw, KindPwMfa, KindWn:
		w.Password = c.password
		w.BackupCode = c.backupCode
		w.Claims = c.claims
		if w.Claims == nil {
			w.Claims = []string{}
		}
		if len(c.legacyWebauthn) > 0 {
			if w.Webauthn, err = json.Marshal(c.legacyWebauthn); err != nil {
				return nil, err
			}
		}
		if c.legacyTotp != nil {
			if w.Totp, err = json.Marshal(c.legacyTotp); err != nil {
				return nil, err
			}
		}
	case KindTmpWn:
		keys := c.tmpPasskeys
		if keys == nil {
			keys = []LabelledPasskey{}
		}
		if w.Webauthn, err = json.Marshal(keys); err != nil {
			return nil, err
		}
	case KindV2Password, KindV2GenPassword:
		w.Password = c.password
	case KindV2PasswordMfa:
		w.Password = c.password
		w.BackupCode = c.backupCode
		keys := c.securityKeys
		if keys == nil {
			keys = []LabelledSecurityKey{}
		}
		if w.Webauthn, err = json.Marshal(keys); err != nil {
			return nil, err
		}
		if c.legacyTotp != nil {
			if w.Totp, err = json.Marshal(c.legacyTotp); err != nil {
				return nil, err
			}
		}
	case KindV3PasswordMfa:
		w.Password = c.password
		w.BackupCode = c.backupCode
		keys := c.securityKeys
		if keys == nil {
			keys = []LabelledSecurityKey{}
		}
		if w.Webauthn, err = json.Marshal(keys); err != nil {
			return nil, err
		}
		totps := c.totps
		if totps == nil {
			totps = []LabelledTotp{}
		}
		if w.Totp, err = json.Marshal(totps); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("cannot persist credential of unknown kind %q", c.kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes any shipped credential generation. Unknown type_
// tags fail decoding.
func (c *Cred) UnmarshalJSON(data []byte) error {
	var w credWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Cred{kind: w.Type, id: w.UUID}
	switch w.Type {
	case KindPw, KindGPw, KindPwMfa, KindWn:
		out.password = w.Password
		out.backupCode = w.BackupCode
		out.claims = w.Claims
		if len(w.Webauthn) > 0 {
			if err := json.Unmarshal(w.Webauthn, &out.legacyWebauthn); err != nil {
				return err
			}
		}
		if len(w.Totp) > 0 {
			var t Totp
			if err := json.Unmarshal(w.Totp, &t); err != nil {
				return err
			}
			out.legacyTotp = &t
		}
	case KindTmpWn:
		if len(w.Webauthn) > 0 {
			if err := json.Unmarshal(w.Webauthn, &out.tmpPasskeys); err != nil {
				return err
			}
		}
	case KindV2Password, KindV2GenPassword:
		out.password = w.Password
	case KindV2PasswordMfa:
		out.password = w.Password
		out.backupCode = w.BackupCode
		if len(w.Webauthn) > 0 {
			if err := json.Unmarshal(w.Webauthn, &out.securityKeys); err != nil {
				return err
			}
		}
		if len(w.Totp) > 0 {
			var t Totp
			if err := json.Unmarshal(w.Totp, &t); err != nil {
				return err
			}
			out.legacyTotp = &t
		}
	case KindV3PasswordMfa:
		out.password = w.Password
		out.backupCode = w.BackupCode
		if len(w.Webauthn) > 0 {
			if err := json.Unmarshal(w.Webauthn, &out.securityKeys); err != nil {
				return err
			}
		}
		if len(w.Totp) > 0 {
			if err := json.Unmarshal(w.Totp, &out.totps); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown credential type_ %q", w.Type)
	}
	*c = out
	return nil
}

// Tagged is the value-set element for credentials: the attribute-level tag
// (for example "primary") alongside the credential payload.
type Tagged struct {
	Tag  string `json:"t"`
	Cred *Cred  `json:"d"`
}
