package value

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/cuemby/warden/pkg/cid"
	"github.com/cuemby/warden/pkg/credential"
)

// Tag is the persisted discriminant of a value set. Tags are short, stable
// and permanent: a tag that has ever shipped is never renamed or
// reassigned. Adding a tag is safe; removing one requires a migration that
// rewrites every occurrence first.
type Tag string

const (
	TagUtf8              Tag = "U8"
	TagIutf8             Tag = "I8"
	TagIname             Tag = "N8"
	TagUuid              Tag = "UU"
	TagBool              Tag = "BO"
	TagSyntaxType        Tag = "SY"
	TagIndexType         Tag = "IN"
	TagReference         Tag = "RF"
	TagJsonFilter        Tag = "JF"
	TagCredential        Tag = "CR"
	TagSecret            Tag = "RU"
	TagSshKey            Tag = "SK"
	TagSpn               Tag = "SP"
	TagUint32            Tag = "UI"
	TagCid               Tag = "CI"
	TagNsUniqueId        Tag = "NU"
	TagDateTime          Tag = "DT"
	TagEmailAddress      Tag = "EM"
	TagPhoneNumber       Tag = "PN"
	TagAddress           Tag = "AD"
	TagUrl               Tag = "UR"
	TagOauthScope        Tag = "OS"
	TagOauthScopeMap     Tag = "OM"
	TagOauthClaimMap     Tag = "OC"
	TagPrivateBinary     Tag = "E2"
	TagPublicBinary      Tag = "PB"
	TagRestrictedString  Tag = "RS"
	TagIntentToken       Tag = "IT"
	TagPasskey           Tag = "PK"
	TagAttestedPasskey   Tag = "DK"
	TagTrustedDevice     Tag = "TE"
	TagSession           Tag = "AS"
	TagJwsKeyEs256       Tag = "JE"
	TagJwsKeyRs256       Tag = "JR"
	TagOauth2Session     Tag = "OZ"
	TagUiHint            Tag = "UH"
	TagTotpSecret        Tag = "TO"
	TagApiToken          Tag = "AT"
	TagAuditLogString    Tag = "SA"
	TagEcKeyPrivate      Tag = "EK"
	TagImage             Tag = "IM"
	TagCredentialType    Tag = "CT"
	TagAttestationCaList Tag = "WC"
	TagKeyInternal       Tag = "KI"
	TagHexString         Tag = "HS"
	TagCertificate       Tag = "X509"
	TagApplicationPassword Tag = "AP"
)

// EmailSet is the payload of an email or phone attribute: the primary value
// plus the full value list. The primary must appear in the list. Persisted
// as the tuple [primary, values].
type EmailSet struct {
	Primary string
	Values  []string
}

func (e EmailSet) MarshalJSON() ([]byte, error) {
	vals := e.Values
	if vals == nil {
		vals = []string{}
	}
	return json.Marshal([]any{e.Primary, vals})
}

func (e *EmailSet) UnmarshalJSON(data []byte) error {
	return unmarshalPair(data, &e.Primary, &e.Values)
}

// Set holds every persisted value of one attribute on one entry as exactly
// one tagged variant. The zero Set is invalid; build sets through the
// typed constructors.
type Set struct {
	tag  Tag
	data any
}

// Typed constructors. Scalar-list constructors deduplicate under the
// attribute's equality predicate; ordered payloads (addresses, scope maps,
// claim maps, attestation roots) preserve insertion order for display.

func NewUtf8(vals ...string) Set       { return Set{TagUtf8, dedupStrings(vals)} }
func NewIutf8(vals ...string) Set      { return Set{TagIutf8, dedupStrings(vals)} }
func NewIname(vals ...string) Set      { return Set{TagIname, dedupStrings(vals)} }
func NewUuid(vals ...uuid.UUID) Set    { return Set{TagUuid, dedupUuids(vals)} }
func NewBool(vals ...bool) Set         { return Set{TagBool, dedupBools(vals)} }
func NewSyntaxType(vals ...uint16) Set { return Set{TagSyntaxType, dedupU16(vals)} }
func NewIndexType(vals ...uint16) Set  { return Set{TagIndexType, dedupU16(vals)} }
func NewReference(vals ...uuid.UUID) Set { return Set{TagReference, dedupUuids(vals)} }
func NewJsonFilter(vals ...string) Set { return Set{TagJsonFilter, dedupStrings(vals)} }
func NewCredential(vals ...credential.Tagged) Set { return Set{TagCredential, vals} }
func NewSecret(vals ...string) Set     { return Set{TagSecret, dedupStrings(vals)} }
func NewSshKey(vals ...TaggedString) Set { return Set{TagSshKey, vals} }
func NewSpn(vals ...Spn) Set           { return Set{TagSpn, vals} }
func NewUint32(vals ...uint32) Set     { return Set{TagUint32, dedupU32(vals)} }
func NewCid(vals ...cid.Cid) Set       { return Set{TagCid, vals} }
func NewNsUniqueId(vals ...string) Set { return Set{TagNsUniqueId, dedupStrings(vals)} }
func NewDateTime(vals ...string) Set   { return Set{TagDateTime, dedupStrings(vals)} }
func NewEmailAddress(primary string, vals []string) Set {
	return Set{TagEmailAddress, EmailSet{Primary: primary, Values: dedupStrings(vals)}}
}
func NewPhoneNumber(primary string, vals []string) Set {
	return Set{TagPhoneNumber, EmailSet{Primary: primary, Values: dedupStrings(vals)}}
}
func NewAddress(vals ...Address) Set   { return Set{TagAddress, vals} }
func NewUrl(vals ...string) Set        { return Set{TagUrl, dedupStrings(vals)} }
func NewOauthScope(vals ...string) Set { return Set{TagOauthScope, dedupStrings(vals)} }
func NewOauthScopeMap(vals ...OauthScopeMap) Set { return Set{TagOauthScopeMap, vals} }
func NewOauthClaimMap(vals ...OauthClaimMap) Set { return Set{TagOauthClaimMap, vals} }
func NewPrivateBinary(vals ...[]byte) Set { return Set{TagPrivateBinary, vals} }
func NewPublicBinary(vals ...PublicBinary) Set { return Set{TagPublicBinary, vals} }
func NewRestrictedString(vals ...string) Set { return Set{TagRestrictedString, dedupStrings(vals)} }
func NewIntentToken(vals ...IntentToken) Set { return Set{TagIntentToken, vals} }
func NewPasskey(vals ...PasskeyV4) Set { return Set{TagPasskey, vals} }
func NewAttestedPasskey(vals ...AttestedPasskeyV4) Set { return Set{TagAttestedPasskey, vals} }
func NewTrustedDevice(vals ...uuid.UUID) Set { return Set{TagTrustedDevice, dedupUuids(vals)} }
func NewSession(vals ...credential.Session) Set { return Set{TagSession, vals} }
func NewJwsKeyEs256(vals ...[]byte) Set { return Set{TagJwsKeyEs256, vals} }
func NewJwsKeyRs256(vals ...[]byte) Set { return Set{TagJwsKeyRs256, vals} }
func NewOauth2Session(vals ...credential.OAuth2Session) Set { return Set{TagOauth2Session, vals} }
func NewUiHint(vals ...uint16) Set     { return Set{TagUiHint, dedupU16(vals)} }
func NewTotpSecret(vals ...TotpSecret) Set { return Set{TagTotpSecret, vals} }
func NewApiToken(vals ...credential.ApiToken) Set { return Set{TagApiToken, vals} }
func NewAuditLogString(vals ...AuditLogString) Set { return Set{TagAuditLogString, vals} }
func NewImage(vals ...Image) Set       { return Set{TagImage, vals} }
func NewCredentialType(vals ...uint16) Set { return Set{TagCredentialType, dedupU16(vals)} }
func NewAttestationCaList(l AttestationCaList) Set { return Set{TagAttestationCaList, l} }
func NewKeyInternal(vals ...KeyInternal) Set { return Set{TagKeyInternal, vals} }
func NewHexString(vals ...string) Set  { return Set{TagHexString, dedupStrings(vals)} }
func NewCertificate(vals ...Certificate) Set { return Set{TagCertificate, vals} }
func NewApplicationPassword(vals ...ApplicationPassword) Set { return Set{TagApplicationPassword, vals} }

// NewEcKeyPrivate holds the DER bytes of a single EC private key. The
// payload is a scalar, not a list; Len reports 1.
func NewEcKeyPrivate(der []byte) Set { return Set{TagEcKeyPrivate, der} }

// Tag returns the persisted discriminant.
func (s Set) Tag() Tag {
	return s.tag
}

// Len returns the number of values in the set. The EC private key variant
// always reports 1: the payload is the bytes of a single key.
func (s Set) Len() int {
	switch d := s.data.(type) {
	case []string:
		return len(d)
	case []uuid.UUID:
		return len(d)
	case []bool:
		return len(d)
	case []uint16:
		return len(d)
	case []uint32:
		return len(d)
	case []cid.Cid:
		return len(d)
	case []credential.Tagged:
		return len(d)
	case []TaggedString:
		return len(d)
	case []Spn:
		return len(d)
	case EmailSet:
		return len(d.Values)
	case []Address:
		return len(d)
	case []OauthScopeMap:
		return len(d)
	case []OauthClaimMap:
		return len(d)
	case [][]byte:
		return len(d)
	case []PublicBinary:
		return len(d)
	case []IntentToken:
		return len(d)
	case []PasskeyV4:
		return len(d)
	case []AttestedPasskeyV4:
		return len(d)
	case []credential.Session:
		return len(d)
	case []credential.OAuth2Session:
		return len(d)
	case []TotpSecret:
		return len(d)
	case []credential.ApiToken:
		return len(d)
	case []AuditLogString:
		return len(d)
	case []byte:
		// A single EC private key.
		return 1
	case []Image:
		return len(d)
	case AttestationCaList:
		return d.Len()
	case []KeyInternal:
		return len(d)
	case []Certificate:
		return len(d)
	case []ApplicationPassword:
		return len(d)
	}
	return 0
}

// IsEmpty reports whether the set holds no values.
func (s Set) IsEmpty() bool {
	return s.Len() == 0
}

// Typed accessors. Each returns the payload when the tag matches and the
// zero value otherwise.

func (s Set) Strings() []string {
	if d, ok := s.data.([]string); ok {
		return d
	}
	return nil
}

func (s Set) Uuids() []uuid.UUID {
	if d, ok := s.data.([]uuid.UUID); ok {
		return d
	}
	return nil
}

func (s Set) Bools() []bool {
	if d, ok := s.data.([]bool); ok {
		return d
	}
	return nil
}

func (s Set) Uint16s() []uint16 {
	if d, ok := s.data.([]uint16); ok {
		return d
	}
	return nil
}

func (s Set) Cids() []cid.Cid {
	if d, ok := s.data.([]cid.Cid); ok {
		return d
	}
	return nil
}

func (s Set) Credentials() []credential.Tagged {
	if d, ok := s.data.([]credential.Tagged); ok {
		return d
	}
	return nil
}

func (s Set) Spns() []Spn {
	if d, ok := s.data.([]Spn); ok {
		return d
	}
	return nil
}

func (s Set) Emails() (EmailSet, bool) {
	d, ok := s.data.(EmailSet)
	return d, ok
}

func (s Set) Sessions() []credential.Session {
	if d, ok := s.data.([]credential.Session); ok {
		return d
	}
	return nil
}

func (s Set) OAuth2Sessions() []credential.OAuth2Session {
	if d, ok := s.data.([]credential.OAuth2Session); ok {
		return d
	}
	return nil
}

func (s Set) ApiTokens() []credential.ApiToken {
	if d, ok := s.data.([]credential.ApiToken); ok {
		return d
	}
	return nil
}

func (s Set) AuditLogStrings() []AuditLogString {
	if d, ok := s.data.([]AuditLogString); ok {
		return d
	}
	return nil
}

func (s Set) KeyInternals() []KeyInternal {
	if d, ok := s.data.([]KeyInternal); ok {
		return d
	}
	return nil
}

func (s Set) EcKeyPrivate() []byte {
	if s.tag != TagEcKeyPrivate {
		return nil
	}
	d, _ := s.data.([]byte)
	return d
}

func (s Set) ScopeMaps() []OauthScopeMap {
	if d, ok := s.data.([]OauthScopeMap); ok {
		return d
	}
	return nil
}

// ProjectStrings returns the comparable string projection of the set, used
// by search filters and the name index. Variants carrying secret material
// project nothing.
func (s Set) ProjectStrings() []string {
	switch s.tag {
	case TagUtf8, TagIutf8, TagIname, TagJsonFilter, TagNsUniqueId,
		TagDateTime, TagUrl, TagOauthScope, TagRestrictedString, TagHexString:
		return s.Strings()
	case TagUuid, TagReference, TagTrustedDevice:
		out := make([]string, 0, len(s.Uuids()))
		for _, u := range s.Uuids() {
			out = append(out, u.String())
		}
		return out
	case TagBool:
		out := make([]string, 0, len(s.Bools()))
		for _, b := range s.Bools() {
			out = append(out, fmt.Sprintf("%t", b))
		}
		return out
	case TagSpn:
		out := make([]string, 0, len(s.Spns()))
		for _, sp := range s.Spns() {
			out = append(out, sp.String())
		}
		return out
	case TagEmailAddress, TagPhoneNumber:
		if d, ok := s.Emails(); ok {
			return d.Values
		}
	case TagCid:
		out := make([]string, 0, len(s.Cids()))
		for _, c := range s.Cids() {
			out = append(out, c.String())
		}
		return out
	case TagSyntaxType, TagIndexType, TagUiHint, TagCredentialType:
		out := make([]string, 0, len(s.Uint16s()))
		for _, v := range s.Uint16s() {
			out = append(out, fmt.Sprintf("%d", v))
		}
		return out
	}
	return nil
}

// ContainsString reports whether v appears in the set's string projection.
func (s Set) ContainsString(v string) bool {
	for _, p := range s.ProjectStrings() {
		if p == v {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the set as a single-key object: the tag names the
// variant, the value is the payload.
func (s Set) MarshalJSON() ([]byte, error) {
	if s.tag == "" {
		return nil, fmt.Errorf("cannot persist an untagged value set")
	}
	return json.Marshal(map[Tag]any{s.tag: s.data})
}

// UnmarshalJSON decodes a tagged set. An unknown tag is an error: older
// servers must never silently drop values written by newer ones.
func (s *Set) UnmarshalJSON(data []byte) error {
	var raw map[Tag]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("value set must carry exactly one tag, got %d", len(raw))
	}
	for tag, payload := range raw {
		dec, ok := decoders[tag]
		if !ok {
			return fmt.Errorf("unknown value set tag %q", tag)
		}
		d, err := dec(payload)
		if err != nil {
			return fmt.Errorf("value set %s: %w", tag, err)
		}
		*s = Set{tag: tag, data: d}
	}
	return nil
}

func decodeInto[T any](payload []byte) (any, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// decoders maps every known tag to its payload decoder. Decode through
// this table keeps the tag set closed: adding a variant means adding a tag
// constant, a constructor and one row here.
var decoders = map[Tag]func([]byte) (any, error){
	TagUtf8:              decodeInto[[]string],
	TagIutf8:             decodeInto[[]string],
	TagIname:             decodeInto[[]string],
	TagUuid:              decodeInto[[]uuid.UUID],
	TagBool:              decodeInto[[]bool],
	TagSyntaxType:        decodeInto[[]uint16],
	TagIndexType:         decodeInto[[]uint16],
	TagReference:         decodeInto[[]uuid.UUID],
	TagJsonFilter:        decodeInto[[]string],
	TagCredential:        decodeInto[[]credential.Tagged],
	TagSecret:            decodeInto[[]string],
	TagSshKey:            decodeInto[[]TaggedString],
	TagSpn:               decodeInto[[]Spn],
	TagUint32:            decodeInto[[]uint32],
	TagCid:               decodeInto[[]cid.Cid],
	TagNsUniqueId:        decodeInto[[]string],
	TagDateTime:          decodeInto[[]string],
	TagEmailAddress:      decodeInto[EmailSet],
	TagPhoneNumber:       decodeInto[EmailSet],
	TagAddress:           decodeInto[[]Address],
	TagUrl:               decodeInto[[]string],
	TagOauthScope:        decodeInto[[]string],
	TagOauthScopeMap:     decodeInto[[]OauthScopeMap],
	TagOauthClaimMap:     decodeInto[[]OauthClaimMap],
	TagPrivateBinary:     decodeInto[[][]byte],
	TagPublicBinary:      decodeInto[[]PublicBinary],
	TagRestrictedString:  decodeInto[[]string],
	TagIntentToken:       decodeInto[[]IntentToken],
	TagPasskey:           decodeInto[[]PasskeyV4],
	TagAttestedPasskey:   decodeInto[[]AttestedPasskeyV4],
	TagTrustedDevice:     decodeInto[[]uuid.UUID],
	TagSession:           decodeInto[[]credential.Session],
	TagJwsKeyEs256:       decodeInto[[][]byte],
	TagJwsKeyRs256:       decodeInto[[][]byte],
	TagOauth2Session:     decodeInto[[]credential.OAuth2Session],
	TagUiHint:            decodeInto[[]uint16],
	TagTotpSecret:        decodeInto[[]TotpSecret],
	TagApiToken:          decodeInto[[]credential.ApiToken],
	TagAuditLogString:    decodeInto[[]AuditLogString],
	TagEcKeyPrivate:      decodeInto[[]byte],
	TagImage:             decodeInto[[]Image],
	TagCredentialType:    decodeInto[[]uint16],
	TagAttestationCaList: decodeInto[AttestationCaList],
	TagKeyInternal:       decodeInto[[]KeyInternal],
	TagHexString:         decodeInto[[]string],
	TagCertificate:       decodeInto[[]Certificate],
	TagApplicationPassword: decodeInto[[]ApplicationPassword],
}

// Validate checks payload invariants that the type system cannot: an email
// or phone primary must appear in its value list.
func (s Set) Validate() error {
	switch s.tag {
	case TagEmailAddress, TagPhoneNumber:
		d, _ := s.Emails()
		if d.Primary == "" && len(d.Values) == 0 {
			return nil
		}
		for _, v := range d.Values {
			if v == d.Primary {
				return nil
			}
		}
		return fmt.Errorf("primary value %q is not in the value list", d.Primary)
	}
	return nil
}

func dedupStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupUuids(in []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(in))
	out := make([]uuid.UUID, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupBools(in []bool) []bool {
	seen := make(map[bool]struct{}, 2)
	out := make([]bool, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupU16(in []uint16) []uint16 {
	seen := make(map[uint16]struct{}, len(in))
	out := make([]uint16, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupU32(in []uint32) []uint32 {
	seen := make(map[uint32]struct{}, len(in))
	out := make([]uint32, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
