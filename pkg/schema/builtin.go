package schema

import (
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// Builtin returns the schema every server boots with. Administrators extend
// it by creating attributetype and classtype entries; the builtin portion
// itself is not modifiable.
func Builtin() *Snapshot {
	return NewSnapshot(builtinAttrs(), builtinClasses())
}

func builtinAttrs() []AttributeDef {
	return []AttributeDef{
		{Name: types.AttrClass, Syntax: value.TagIutf8, MultiValue: true},
		{Name: types.AttrUUID, Syntax: value.TagUuid},
		{Name: types.AttrName, Syntax: value.TagIname},
		{Name: types.AttrDisplayName, Syntax: value.TagUtf8},
		{Name: types.AttrDescription, Syntax: value.TagUtf8},
		{Name: types.AttrSpn, Syntax: value.TagSpn},
		{Name: types.AttrMember, Syntax: value.TagReference, MultiValue: true},
		{Name: types.AttrDynMember, Syntax: value.TagReference, MultiValue: true},
		{Name: types.AttrDynGroupFilter, Syntax: value.TagJsonFilter},
		{Name: types.AttrMemberOf, Syntax: value.TagReference, MultiValue: true},
		{Name: types.AttrDirectMemberOf, Syntax: value.TagReference, MultiValue: true},
		{Name: types.AttrNameHistory, Syntax: value.TagAuditLogString, MultiValue: true},
		{Name: types.AttrIDVerificationEcKey, Syntax: value.TagEcKeyPrivate},
		{Name: types.AttrPrimaryCredential, Syntax: value.TagCredential},
		{Name: types.AttrPasskeys, Syntax: value.TagPasskey, MultiValue: true},
		{Name: types.AttrAttestedPasskeys, Syntax: value.TagAttestedPasskey, MultiValue: true},
		{Name: types.AttrUserAuthTokenSession, Syntax: value.TagSession, MultiValue: true},
		{Name: types.AttrAPITokenSession, Syntax: value.TagApiToken, MultiValue: true},
		{Name: types.AttrOAuth2Session, Syntax: value.TagOauth2Session, MultiValue: true},
		{Name: types.AttrOAuth2RsName, Syntax: value.TagIname},
		{Name: types.AttrOAuth2RsOrigin, Syntax: value.TagUrl},
		{Name: types.AttrOAuth2RsScopeMap, Syntax: value.TagOauthScopeMap, MultiValue: true},
		{Name: types.AttrOAuth2RsClaimMap, Syntax: value.TagOauthClaimMap, MultiValue: true},
		{Name: types.AttrOAuth2RsTokenKey, Syntax: value.TagSecret},
		{Name: types.AttrKeyInternalData, Syntax: value.TagKeyInternal, MultiValue: true},
		{Name: types.AttrKeyProviderRef, Syntax: value.TagReference},
		{Name: types.AttrDomainName, Syntax: value.TagIname},
		{Name: types.AttrDomainUUID, Syntax: value.TagUuid},
		{Name: types.AttrVersion, Syntax: value.TagUint32},
		{Name: types.AttrSyntax, Syntax: value.TagUtf8},
		{Name: types.AttrMultiValue, Syntax: value.TagBool},
		{Name: types.AttrSystemMust, Syntax: value.TagIutf8, MultiValue: true},
		{Name: types.AttrSystemMay, Syntax: value.TagIutf8, MultiValue: true},
		{Name: types.AttrACPTargetScope, Syntax: value.TagJsonFilter},
		{Name: types.AttrACPReceiverGroup, Syntax: value.TagReference},
		{Name: types.AttrACPCreateClass, Syntax: value.TagIutf8, MultiValue: true},
		{Name: types.AttrACPCreateAttr, Syntax: value.TagIutf8, MultiValue: true},
		{Name: types.AttrMail, Syntax: value.TagEmailAddress, MultiValue: true},
		{Name: types.AttrSSHPublicKey, Syntax: value.TagSshKey, MultiValue: true},
		{Name: types.AttrAccountExpire, Syntax: value.TagDateTime},
		{Name: types.AttrAccountValidFrom, Syntax: value.TagDateTime},
		{Name: types.AttrRecycledDirect, Syntax: value.TagBool},
	}
}

func builtinClasses() []ClassDef {
	return []ClassDef{
		{
			Name: types.ClassObject,
			May:  []types.Attribute{types.AttrDescription},
		},
		{
			Name: types.ClassPerson,
			Must: []types.Attribute{types.AttrName, types.AttrDisplayName},
			May: []types.Attribute{
				types.AttrMail, types.AttrIDVerificationEcKey, types.AttrNameHistory,
			},
		},
		{
			Name: types.ClassAccount,
			Must: []types.Attribute{types.AttrName, types.AttrSpn},
			May: []types.Attribute{
				types.AttrDisplayName, types.AttrPrimaryCredential, types.AttrPasskeys,
				types.AttrAttestedPasskeys, types.AttrUserAuthTokenSession,
				types.AttrAPITokenSession, types.AttrOAuth2Session, types.AttrSSHPublicKey,
				types.AttrAccountExpire, types.AttrAccountValidFrom, types.AttrNameHistory,
			},
		},
		{
			Name: types.ClassServiceAccount,
			Must: []types.Attribute{types.AttrName},
			May:  []types.Attribute{types.AttrAPITokenSession, types.AttrDisplayName},
		},
		{
			Name: types.ClassGroup,
			Must: []types.Attribute{types.AttrName},
			May:  []types.Attribute{types.AttrMember, types.AttrSpn, types.AttrNameHistory},
		},
		{
			Name: types.ClassDynGroup,
			Must: []types.Attribute{types.AttrDynGroupFilter},
			May:  []types.Attribute{types.AttrDynMember},
		},
		{
			Name: types.ClassMemberOf,
			May:  []types.Attribute{types.AttrMemberOf, types.AttrDirectMemberOf},
		},
		{
			Name: types.ClassOAuth2ResourceServer,
			Must: []types.Attribute{types.AttrOAuth2RsName, types.AttrOAuth2RsOrigin},
			May: []types.Attribute{
				types.AttrName, types.AttrDisplayName, types.AttrOAuth2RsScopeMap,
				types.AttrOAuth2RsClaimMap, types.AttrOAuth2RsTokenKey,
			},
		},
		{
			Name: types.ClassSyncAccount,
			Must: []types.Attribute{types.AttrName},
			May:  []types.Attribute{types.AttrDescription},
		},
		{
			Name: types.ClassKeyProvider,
			Must: []types.Attribute{types.AttrName},
		},
		{
			Name: types.ClassKeyObject,
			Must: []types.Attribute{types.AttrKeyProviderRef},
			May:  []types.Attribute{types.AttrKeyInternalData, types.AttrName},
		},
		{
			Name: types.ClassAccessControlProfile,
			Must: []types.Attribute{types.AttrName, types.AttrACPReceiverGroup, types.AttrACPTargetScope},
			May:  []types.Attribute{types.AttrACPCreateClass, types.AttrACPCreateAttr},
		},
		{
			Name: types.ClassClassType,
			Must: []types.Attribute{types.AttrName},
			May:  []types.Attribute{types.AttrSystemMust, types.AttrSystemMay},
		},
		{
			Name: types.ClassAttributeType,
			Must: []types.Attribute{types.AttrName, types.AttrSyntax},
			May:  []types.Attribute{types.AttrMultiValue},
		},
		{
			Name: types.ClassApplication,
			Must: []types.Attribute{types.AttrName},
			May:  []types.Attribute{types.AttrDisplayName},
		},
		{
			Name: types.ClassDomainInfo,
			Must: []types.Attribute{types.AttrDomainName, types.AttrDomainUUID},
			May:  []types.Attribute{types.AttrName, types.AttrVersion},
		},
		{
			Name: types.ClassSystemConfig,
			May:  []types.Attribute{types.AttrName, types.AttrVersion},
		},
		{
			Name: types.ClassSystemInfo,
			May:  []types.Attribute{types.AttrName, types.AttrVersion},
		},
		// Recycled and tombstone entries keep their attributes; validation
		// relaxes presence rules when these classes are present.
		{Name: types.ClassRecycled, May: []types.Attribute{types.AttrRecycledDirect}},
		{Name: types.ClassTombstone},
	}
}
