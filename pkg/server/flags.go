package server

import (
	"strings"

	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/types"
)

// ChangeFlag marks a category of process-wide cache that must reload after
// the owning transaction commits.
type ChangeFlag uint16

const (
	FlagSchema ChangeFlag = 1 << iota
	FlagACP
	FlagOAuth2
	FlagDomain
	FlagKeyMaterial
	FlagSystemConfig
	FlagApplication
	FlagSyncAgreement
)

// reloadOrder is the fixed evaluation order on commit. Schema must reload
// before access control, since profiles are compiled against schema.
var reloadOrder = []ChangeFlag{
	FlagSchema,
	FlagACP,
	FlagOAuth2,
	FlagDomain,
	FlagKeyMaterial,
	FlagSystemConfig,
	FlagApplication,
	FlagSyncAgreement,
}

var flagNames = map[ChangeFlag]string{
	FlagSchema:        "SCHEMA",
	FlagACP:           "ACP",
	FlagOAuth2:        "OAUTH2",
	FlagDomain:        "DOMAIN",
	FlagKeyMaterial:   "KEY_MATERIAL",
	FlagSystemConfig:  "SYSTEM_CONFIG",
	FlagApplication:   "APPLICATION",
	FlagSyncAgreement: "SYNC_AGREEMENT",
}

// Has reports whether the flag is set.
func (f ChangeFlag) Has(flag ChangeFlag) bool {
	return f&flag != 0
}

func (f ChangeFlag) String() string {
	var names []string
	for _, flag := range reloadOrder {
		if f.Has(flag) {
			names = append(names, flagNames[flag])
		}
	}
	return strings.Join(names, "|")
}

// flagsFor derives the change flags one committed entry triggers.
func flagsFor(e *entry.Sealed) ChangeFlag {
	var f ChangeFlag
	if e.HasClass(types.ClassClassType) || e.HasClass(types.ClassAttributeType) {
		f |= FlagSchema
	}
	if e.HasClass(types.ClassAccessControlProfile) {
		f |= FlagACP
	}
	if e.HasClass(types.ClassApplication) {
		f |= FlagApplication
	}
	if e.HasClass(types.ClassOAuth2ResourceServer) {
		f |= FlagOAuth2
	}
	if e.UUID() == types.UUIDDomainInfo {
		f |= FlagDomain
	}
	if e.UUID() == types.UUIDSystemConfig {
		f |= FlagSystemConfig
	}
	if e.HasClass(types.ClassSyncAccount) {
		f |= FlagSyncAgreement
	}
	if e.HasClass(types.ClassKeyProvider) || e.HasClass(types.ClassKeyObject) {
		f |= FlagKeyMaterial
	}
	return f
}
