package credential

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/cuemby/warden/pkg/cid"
)

// AccessScope is the coarse permission level bound to a session.
type AccessScope string

const (
	ScopeIdentityOnly     AccessScope = "i"
	ScopeReadOnly         AccessScope = "r"
	ScopeReadWrite        AccessScope = "w"
	ScopePrivilegeCapable AccessScope = "p"
	ScopeSynchronise      AccessScope = "s"
)

// ApiTokenScope is the permission level of an api token.
type ApiTokenScope string

const (
	ApiScopeReadOnly    ApiTokenScope = "r"
	ApiScopeReadWrite   ApiTokenScope = "w"
	ApiScopeSynchronise ApiTokenScope = "s"
)

// AuthType records how a session was authenticated.
type AuthType string

const (
	AuthAnonymous          AuthType = "an"
	AuthPassword           AuthType = "po"
	AuthGeneratedPassword  AuthType = "pg"
	AuthPasswordTotp       AuthType = "pt"
	AuthPasswordBackupCode AuthType = "pb"
	AuthPasswordSecurityKey AuthType = "ps"
	AuthPasskey            AuthType = "as"
	AuthAttestedPasskey    AuthType = "ap"
)

// IdentityKind discriminates who issued a session.
type IdentityKind string

const (
	IssuedInternal IdentityKind = "v1i"
	IssuedByUser   IdentityKind = "v1u"
	IssuedBySync   IdentityKind = "v1s"
)

// IdentityID is the issuing identity of a session or token: the server
// itself, an account, or a sync agreement.
type IdentityID struct {
	Kind IdentityKind
	UUID uuid.UUID
}

// MarshalJSON persists the internal form as the bare tag and the other
// forms as single-key objects carrying the uuid.
func (i IdentityID) MarshalJSON() ([]byte, error) {
	switch i.Kind {
	case IssuedInternal:
		return json.Marshal(string(IssuedInternal))
	case IssuedByUser, IssuedBySync:
		return json.Marshal(map[string]uuid.UUID{string(i.Kind): i.UUID})
	}
	return nil, fmt.Errorf("unknown identity id kind %q", i.Kind)
}

func (i *IdentityID) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		if bare != string(IssuedInternal) {
			return fmt.Errorf("unknown identity id tag %q", bare)
		}
		*i = IdentityID{Kind: IssuedInternal}
		return nil
	}
	var raw map[string]uuid.UUID
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("identity id must carry exactly one tag")
	}
	for tag, u := range raw {
		switch IdentityKind(tag) {
		case IssuedByUser, IssuedBySync:
			*i = IdentityID{Kind: IdentityKind(tag), UUID: u}
		default:
			return fmt.Errorf("unknown identity id tag %q", tag)
		}
	}
	return nil
}

// SessionStateKind discriminates session lifecycle states.
type SessionStateKind string

const (
	StateExpiresAt SessionStateKind = "ea"
	StateNever     SessionStateKind = "nv"
	StateRevokedAt SessionStateKind = "ra"
)

// SessionState is the lifecycle of a session: bounded by a timestamp,
// unbounded, or revoked at a known cid.
type SessionState struct {
	Kind      SessionStateKind
	ExpiresAt string
	RevokedAt cid.Cid
}

func (s SessionState) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case StateExpiresAt:
		return json.Marshal(map[string]string{string(StateExpiresAt): s.ExpiresAt})
	case StateNever:
		return json.Marshal(string(StateNever))
	case StateRevokedAt:
		return json.Marshal(map[string]cid.Cid{string(StateRevokedAt): s.RevokedAt})
	}
	return nil, fmt.Errorf("unknown session state kind %q", s.Kind)
}

func (s *SessionState) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		if bare != string(StateNever) {
			return fmt.Errorf("unknown session state tag %q", bare)
		}
		*s = SessionState{Kind: StateNever}
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("session state must carry exactly one tag")
	}
	for tag, payload := range raw {
		switch SessionStateKind(tag) {
		case StateExpiresAt:
			var ts string
			if err := json.Unmarshal(payload, &ts); err != nil {
				return err
			}
			*s = SessionState{Kind: StateExpiresAt, ExpiresAt: ts}
		case StateRevokedAt:
			var at cid.Cid
			if err := json.Unmarshal(payload, &at); err != nil {
				return err
			}
			*s = SessionState{Kind: StateRevokedAt, RevokedAt: at}
		default:
			return fmt.Errorf("unknown session state tag %q", tag)
		}
	}
	return nil
}

// Session is an issued authentication session. Four generations persist;
// V4 is written today, the rest decode for back-compat. V1/V2 predate the
// tri-state lifecycle and carry only an optional expiry.
type Session struct {
	Version  int
	Refer    uuid.UUID
	Label    string
	Expiry   *string      // V1, V2
	State    SessionState // V3, V4
	IssuedAt string
	IssuedBy IdentityID
	CredID   uuid.UUID // V2 onward
	Scope    AccessScope
	Type     AuthType // V4 only
}

type sessionWireV12 struct {
	Refer    uuid.UUID   `json:"u"`
	Label    string      `json:"l"`
	Expiry   *string     `json:"e"`
	IssuedAt string      `json:"i"`
	IssuedBy IdentityID  `json:"b"`
	CredID   *uuid.UUID  `json:"c,omitempty"`
	Scope    AccessScope `json:"s"`
}

type sessionWireV34 struct {
	Refer    uuid.UUID    `json:"u"`
	Label    string       `json:"l"`
	State    SessionState `json:"e"`
	IssuedAt string       `json:"i"`
	IssuedBy IdentityID   `json:"b"`
	CredID   uuid.UUID    `json:"c"`
	Scope    AccessScope  `json:"s"`
	Type     *AuthType    `json:"t,omitempty"`
}

func (s Session) MarshalJSON() ([]byte, error) {
	switch s.Version {
	case 1, 2:
		w := sessionWireV12{
			Refer: s.Refer, Label: s.Label, Expiry: s.Expiry,
			IssuedAt: s.IssuedAt, IssuedBy: s.IssuedBy, Scope: s.Scope,
		}
		tag := "V1"
		if s.Version == 2 {
			tag = "V2"
			c := s.CredID
			w.CredID = &c
		}
		return json.Marshal(map[string]sessionWireV12{tag: w})
	case 3:
		w := sessionWireV34{
			Refer: s.Refer, Label: s.Label, State: s.State,
			IssuedAt: s.IssuedAt, IssuedBy: s.IssuedBy, CredID: s.CredID, Scope: s.Scope,
		}
		return json.Marshal(map[string]sessionWireV34{"V3": w})
	case 4:
		t := s.Type
		w := sessionWireV34{
			Refer: s.Refer, Label: s.Label, State: s.State,
			IssuedAt: s.IssuedAt, IssuedBy: s.IssuedBy, CredID: s.CredID, Scope: s.Scope,
			Type: &t,
		}
		return json.Marshal(map[string]sessionWireV34{"V4": w})
	}
	return nil, fmt.Errorf("unknown session version %d", s.Version)
}

func (s *Session) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("session must carry exactly one version tag")
	}
	for tag, payload := range raw {
		switch tag {
		case "V1", "V2":
			var w sessionWireV12
			if err := json.Unmarshal(payload, &w); err != nil {
				return err
			}
			out := Session{
				Version: 1, Refer: w.Refer, Label: w.Label, Expiry: w.Expiry,
				IssuedAt: w.IssuedAt, IssuedBy: w.IssuedBy, Scope: w.Scope,
			}
			if out.Scope == "" {
				out.Scope = ScopeReadOnly
			}
			if tag == "V2" {
				out.Version = 2
				if w.CredID != nil {
					out.CredID = *w.CredID
				}
			}
			*s = out
		case "V3", "V4":
			var w sessionWireV34
			if err := json.Unmarshal(payload, &w); err != nil {
				return err
			}
			out := Session{
				Version: 3, Refer: w.Refer, Label: w.Label, State: w.State,
				IssuedAt: w.IssuedAt, IssuedBy: w.IssuedBy, CredID: w.CredID, Scope: w.Scope,
			}
			if out.Scope == "" {
				out.Scope = ScopeReadOnly
			}
			if tag == "V4" {
				out.Version = 4
				if w.Type != nil {
					out.Type = *w.Type
				}
			}
			*s = out
		default:
			return fmt.Errorf("unknown session version tag %q", tag)
		}
	}
	return nil
}

// ApiToken is an issued api token. Only one generation exists.
type ApiToken struct {
	Refer    uuid.UUID
	Label    string
	Expiry   *string
	IssuedAt string
	IssuedBy IdentityID
	Scope    ApiTokenScope
}

type apiTokenWire struct {
	Refer    uuid.UUID     `json:"u"`
	Label    string        `json:"l"`
	Expiry   *string       `json:"e"`
	IssuedAt string        `json:"i"`
	IssuedBy IdentityID    `json:"b"`
	Scope    ApiTokenScope `json:"s"`
}

func (t ApiToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]apiTokenWire{"V1": apiTokenWire(t)})
}

func (t *ApiToken) UnmarshalJSON(data []byte) error {
	var raw map[string]apiTokenWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	w, ok := raw["V1"]
	if !ok || len(raw) != 1 {
		return fmt.Errorf("unknown api token version")
	}
	*t = ApiToken(w)
	if t.Scope == "" {
		t.Scope = ApiScopeReadOnly
	}
	return nil
}

// OAuth2Session is an issued oauth2 session. Three generations persist; V3
// is written today. V3 made the parent session optional to support client
// credential grants.
type OAuth2Session struct {
	Version  int
	Refer    uuid.UUID
	Parent   *uuid.UUID
	Expiry   *string      // V1
	State    SessionState // V2, V3
	IssuedAt string
	RsUUID   uuid.UUID
}

type oauth2WireV1 struct {
	Refer    uuid.UUID `json:"u"`
	Parent   uuid.UUID `json:"p"`
	Expiry   *string   `json:"e"`
	IssuedAt string    `json:"i"`
	RsUUID   uuid.UUID `json:"r"`
}

type oauth2WireV23 struct {
	Refer    uuid.UUID    `json:"u"`
	Parent   *uuid.UUID   `json:"p"`
	State    SessionState `json:"e"`
	IssuedAt string       `json:"i"`
	RsUUID   uuid.UUID    `json:"r"`
}

func (o OAuth2Session) MarshalJSON() ([]byte, error) {
	switch o.Version {
	case 1:
		w := oauth2WireV1{Refer: o.Refer, Expiry: o.Expiry, IssuedAt: o.IssuedAt, RsUUID: o.RsUUID}
		if o.Parent != nil {
			w.Parent = *o.Parent
		}
		return json.Marshal(map[string]oauth2WireV1{"V1": w})
	case 2:
		w := oauth2WireV23{Refer: o.Refer, Parent: o.Parent, State: o.State, IssuedAt: o.IssuedAt, RsUUID: o.RsUUID}
		return json.Marshal(map[string]oauth2WireV23{"V2": w})
	case 3:
		w := oauth2WireV23{Refer: o.Refer, Parent: o.Parent, State: o.State, IssuedAt: o.IssuedAt, RsUUID: o.RsUUID}
		return json.Marshal(map[string]oauth2WireV23{"V3": w})
	}
	return nil, fmt.Errorf("unknown oauth2 session version %d", o.Version)
}

func (o *OAuth2Session) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("oauth2 session must carry exactly one version tag")
	}
	for tag, payload := range raw {
		switch tag {
		case "V1":
			var w oauth2WireV1
			if err := json.Unmarshal(payload, &w); err != nil {
				return err
			}
			p := w.Parent
			*o = OAuth2Session{Version: 1, Refer: w.Refer, Parent: &p, Expiry: w.Expiry, IssuedAt: w.IssuedAt, RsUUID: w.RsUUID}
		case "V2", "V3":
			var w oauth2WireV23
			if err := json.Unmarshal(payload, &w); err != nil {
				return err
			}
			v := 2
			if tag == "V3" {
				v = 3
			}
			*o = OAuth2Session{Version: v, Refer: w.Refer, Parent: w.Parent, State: w.State, IssuedAt: w.IssuedAt, RsUUID: w.RsUUID}
		default:
			return fmt.Errorf("unknown oauth2 session version tag %q", tag)
		}
	}
	return nil
}
