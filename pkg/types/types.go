package types

import (
	"github.com/google/uuid"
)

// Attribute is the name of an entry attribute. Attribute names are
// case-sensitive and normalised to lower-snake at the API boundary.
type Attribute string

const (
	AttrClass               Attribute = "class"
	AttrUUID                Attribute = "uuid"
	AttrName                Attribute = "name"
	AttrDisplayName         Attribute = "displayname"
	AttrDescription         Attribute = "description"
	AttrSpn                 Attribute = "spn"
	AttrMember              Attribute = "member"
	AttrDynMember           Attribute = "dynmember"
	AttrDynGroupFilter      Attribute = "dyngroup_filter"
	AttrMemberOf            Attribute = "memberof"
	AttrDirectMemberOf      Attribute = "directmemberof"
	AttrNameHistory         Attribute = "name_history"
	AttrIDVerificationEcKey Attribute = "id_verification_eckey"
	AttrPrimaryCredential   Attribute = "primary_credential"
	AttrPasskeys            Attribute = "passkeys"
	AttrAttestedPasskeys    Attribute = "attested_passkeys"
	AttrUserAuthTokenSession Attribute = "user_auth_token_session"
	AttrAPITokenSession     Attribute = "api_token_session"
	AttrOAuth2Session       Attribute = "oauth2_session"
	AttrOAuth2RsName        Attribute = "oauth2_rs_name"
	AttrOAuth2RsOrigin      Attribute = "oauth2_rs_origin"
	AttrOAuth2RsScopeMap    Attribute = "oauth2_rs_scope_map"
	AttrOAuth2RsClaimMap    Attribute = "oauth2_rs_claim_map"
	AttrOAuth2RsTokenKey    Attribute = "oauth2_rs_token_key"
	AttrKeyInternalData     Attribute = "key_internal_data"
	AttrKeyProviderRef      Attribute = "key_provider"
	AttrDomainName          Attribute = "domain_name"
	AttrDomainUUID          Attribute = "domain_uuid"
	AttrVersion             Attribute = "version"
	AttrLastModifiedCid     Attribute = "last_modified_cid"
	AttrCreatedAtCid        Attribute = "created_at_cid"
	AttrSyntax              Attribute = "syntax"
	AttrMultiValue          Attribute = "multivalue"
	AttrSystemMust          Attribute = "systemmust"
	AttrSystemMay           Attribute = "systemmay"
	AttrACPTargetScope      Attribute = "acp_targetscope"
	AttrACPReceiverGroup    Attribute = "acp_receiver_group"
	AttrACPCreateClass      Attribute = "acp_create_class"
	AttrACPCreateAttr       Attribute = "acp_create_attr"
	AttrMail                Attribute = "mail"
	AttrSSHPublicKey        Attribute = "ssh_publickey"
	AttrAccountExpire       Attribute = "account_expire"
	AttrAccountValidFrom    Attribute = "account_valid_from"
	AttrRecycledDirect      Attribute = "recycled_direct"
)

// EntryClass is an object class an entry may carry. The class set of an
// entry decides which schema rules apply and which caches must reload when
// the entry changes.
type EntryClass string

const (
	ClassObject               EntryClass = "object"
	ClassPerson               EntryClass = "person"
	ClassAccount              EntryClass = "account"
	ClassServiceAccount       EntryClass = "service_account"
	ClassGroup                EntryClass = "group"
	ClassDynGroup             EntryClass = "dyngroup"
	ClassOAuth2ResourceServer EntryClass = "oauth2_resource_server"
	ClassSyncAccount          EntryClass = "sync_account"
	ClassKeyProvider          EntryClass = "key_provider"
	ClassKeyObject            EntryClass = "key_object"
	ClassAccessControlProfile EntryClass = "access_control_profile"
	ClassClassType            EntryClass = "classtype"
	ClassAttributeType        EntryClass = "attributetype"
	ClassApplication          EntryClass = "application"
	ClassMemberOf             EntryClass = "memberof"
	ClassDomainInfo           EntryClass = "domain_info"
	ClassSystemConfig         EntryClass = "system_config"
	ClassSystemInfo           EntryClass = "system_info"
	ClassRecycled             EntryClass = "recycled"
	ClassTombstone            EntryClass = "tombstone"
)

// Well-known UUIDs. These are fixed identifiers shared by every server in a
// topology; they never change once a domain is provisioned.
var (
	UUIDDomainInfo   = uuid.MustParse("00000000-0000-0000-0000-ffffff000025")
	UUIDSystemConfig = uuid.MustParse("00000000-0000-0000-0000-ffffff000027")
	UUIDSystemInfo   = uuid.MustParse("00000000-0000-0000-0000-ffffff000001")
	UUIDAdmin        = uuid.MustParse("00000000-0000-0000-0000-000000000000")
	UUIDIdmAdmin     = uuid.MustParse("00000000-0000-0000-0000-000000000018")
	UUIDAnonymous    = uuid.MustParse("00000000-0000-0000-0000-ffffffffffff")

	UUIDIdmAllPersons          = uuid.MustParse("00000000-0000-0000-0000-000000000035")
	UUIDIdmAllAccounts         = uuid.MustParse("00000000-0000-0000-0000-000000000036")
	UUIDIdmPeopleSelfNameWrite = uuid.MustParse("00000000-0000-0000-0000-000000000064")
)

// Identity describes who initiated an operation.
type IdentityKind int

const (
	// IdentityInternal is the server acting on its own behalf: bootstrap,
	// migrations and plugin-initiated writes. Internal identities bypass
	// access control.
	IdentityInternal IdentityKind = iota
	// IdentityUser is an authenticated account.
	IdentityUser
	// IdentitySync is a synchronisation peer acting under a sync agreement.
	IdentitySync
)

// Identity is the origin of an event. User and sync identities carry the
// uuid of the acting entry.
type Identity struct {
	Kind IdentityKind
	UUID uuid.UUID
}

// InternalIdentity returns the server's own identity.
func InternalIdentity() Identity {
	return Identity{Kind: IdentityInternal}
}

// UserIdentity returns an identity for the given account uuid.
func UserIdentity(u uuid.UUID) Identity {
	return Identity{Kind: IdentityUser, UUID: u}
}

// SyncIdentity returns an identity for the given sync account uuid.
func SyncIdentity(u uuid.UUID) Identity {
	return Identity{Kind: IdentitySync, UUID: u}
}

// IsInternal reports whether the identity is the server itself.
func (i Identity) IsInternal() bool {
	return i.Kind == IdentityInternal
}

func (i Identity) String() string {
	switch i.Kind {
	case IdentityInternal:
		return "internal"
	case IdentitySync:
		return "sync(" + i.UUID.String() + ")"
	default:
		return "user(" + i.UUID.String() + ")"
	}
}
