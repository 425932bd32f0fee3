package server

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/keys"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// bootstrap seeds a fresh database with the entries every domain needs:
// domain info, system config, the administrative accounts, the builtin
// groups and the initial key material. Idempotent: an already provisioned
// database is left untouched.
func (s *Server) bootstrap() error {
	rt, err := s.Read()
	if err != nil {
		return err
	}
	_, err = rt.be.GetUUID(types.UUIDSystemInfo)
	rt.End()
	if err == nil {
		return nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return err
	}

	wt, err := s.Write()
	if err != nil {
		return err
	}
	defer wt.Abort()

	domainUUID := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(s.cfg.Domain))

	systemInfo := entry.NewInit().
		Set(types.AttrClass, valueClassSet(types.ClassObject, types.ClassSystemInfo)).
		Set(types.AttrUUID, value.NewUuid(types.UUIDSystemInfo)).
		Set(types.AttrVersion, value.NewUint32(1))

	domainInfo := entry.NewInit().
		Set(types.AttrClass, valueClassSet(types.ClassObject, types.ClassDomainInfo)).
		Set(types.AttrUUID, value.NewUuid(types.UUIDDomainInfo)).
		Set(types.AttrName, value.NewIname("domain_local")).
		Set(types.AttrDomainName, value.NewIname(s.cfg.Domain)).
		Set(types.AttrDomainUUID, value.NewUuid(domainUUID)).
		Set(types.AttrVersion, value.NewUint32(1))

	systemConfig := entry.NewInit().
		Set(types.AttrClass, valueClassSet(types.ClassObject, types.ClassSystemConfig)).
		Set(types.AttrUUID, value.NewUuid(types.UUIDSystemConfig)).
		Set(types.AttrName, value.NewIname("system_config"))

	admin := entry.NewInit().
		Set(types.AttrClass, valueClassSet(types.ClassObject, types.ClassAccount)).
		Set(types.AttrUUID, value.NewUuid(types.UUIDAdmin)).
		Set(types.AttrName, value.NewIname("admin")).
		Set(types.AttrDisplayName, value.NewUtf8("System Administrator"))

	idmAdmin := entry.NewInit().
		Set(types.AttrClass, valueClassSet(types.ClassObject, types.ClassAccount)).
		Set(types.AttrUUID, value.NewUuid(types.UUIDIdmAdmin)).
		Set(types.AttrName, value.NewIname("idm_admin")).
		Set(types.AttrDisplayName, value.NewUtf8("IDM Administrator"))

	allPersons := entry.NewInit().
		Set(types.AttrClass, valueClassSet(types.ClassObject, types.ClassGroup, types.ClassDynGroup)).
		Set(types.AttrUUID, value.NewUuid(types.UUIDIdmAllPersons)).
		Set(types.AttrName, value.NewIname("idm_all_persons")).
		Set(types.AttrDynGroupFilter, value.NewJsonFilter(`{"eq":["class","person"]}`))

	allAccounts := entry.NewInit().
		Set(types.AttrClass, valueClassSet(types.ClassObject, types.ClassGroup, types.ClassDynGroup)).
		Set(types.AttrUUID, value.NewUuid(types.UUIDIdmAllAccounts)).
		Set(types.AttrName, value.NewIname("idm_all_accounts")).
		Set(types.AttrDynGroupFilter, value.NewJsonFilter(`{"eq":["class","account"]}`))

	peopleSelfWrite := entry.NewInit().
		Set(types.AttrClass, valueClassSet(types.ClassObject, types.ClassGroup)).
		Set(types.AttrUUID, value.NewUuid(types.UUIDIdmPeopleSelfNameWrite)).
		Set(types.AttrName, value.NewIname("idm_people_self_name_write")).
		Set(types.AttrMember, value.NewReference(types.UUIDIdmAllPersons))

	keyProviderUUID := uuid.New()
	keyProvider := entry.NewInit().
		Set(types.AttrClass, valueClassSet(types.ClassObject, types.ClassKeyProvider)).
		Set(types.AttrUUID, value.NewUuid(keyProviderUUID)).
		Set(types.AttrName, value.NewIname("key_provider_internal"))

	signingKey, err := keys.GenerateInternal(s.sealer, value.KeyUsageJwsEs256, 0, wt.Cid())
	if err != nil {
		return fmt.Errorf("failed to generate domain signing key: %w", err)
	}
	keyObject := entry.NewInit().
		Set(types.AttrClass, valueClassSet(types.ClassObject, types.ClassKeyObject)).
		Set(types.AttrUUID, value.NewUuid(keys.NewKeyObjectUUID())).
		Set(types.AttrName, value.NewIname("key_object_domain")).
		Set(types.AttrKeyProviderRef, value.NewReference(keyProviderUUID)).
		Set(types.AttrKeyInternalData, value.NewKeyInternal(signingKey))

	if err := wt.InternalCreate(
		systemInfo, domainInfo, systemConfig,
		admin, idmAdmin,
		allPersons, allAccounts, peopleSelfWrite,
		keyProvider, keyObject,
	); err != nil {
		return err
	}

	if err := wt.Commit(); err != nil {
		return err
	}

	s.logger.Info().Str("domain", s.cfg.Domain).Msg("database provisioned")
	return nil
}
