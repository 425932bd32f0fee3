package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/warden/pkg/cid"
	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/metrics"
	"github.com/cuemby/warden/pkg/plugins"
	"github.com/cuemby/warden/pkg/schema"
	"github.com/cuemby/warden/pkg/storage"
	"github.com/cuemby/warden/pkg/types"
)

// WriteTxn is one write transaction: the single writer over the entry
// store. All mutations inside the transaction share one cid; operations
// observe each other's uncommitted writes. End the transaction with
// exactly one of Commit or Abort.
type WriteTxn struct {
	srv    *Server
	be     storage.Txn
	cid    cid.Cid
	schema *schema.Snapshot
	logger zerolog.Logger

	changedFlags ChangeFlag
	changedUUIDs []uuid.UUID

	done bool
}

// Cid returns the transaction's causal identifier.
func (t *WriteTxn) Cid() cid.Cid {
	return t.cid
}

// DomainName returns the authority domain for spn derivation.
func (t *WriteTxn) DomainName() string {
	return t.srv.cfg.Domain
}

// ChangedFlags returns the reloads this transaction has accumulated.
func (t *WriteTxn) ChangedFlags() ChangeFlag {
	return t.changedFlags
}

// ChangedUUIDs returns every uuid committed by this transaction, for
// in-memory cache invalidation downstream.
func (t *WriteTxn) ChangedUUIDs() []uuid.UUID {
	return t.changedUUIDs
}

// Create validates, transforms and persists new entries.
//
// The order is load-bearing: access check, replication-state check, cid
// assignment, pre-transform plugins, schema validation and sealing, pre
// plugins, backend create, post plugins, changed-flag accumulation.
func (t *WriteTxn) Create(ce *CreateEvent) ([]uuid.UUID, error) {
	start := time.Now()
	created, err := t.create(ce)
	metrics.ObserveWrite("create", start, err)
	return created, err
}

func (t *WriteTxn) create(ce *CreateEvent) ([]uuid.UUID, error) {
	if !ce.Ident.IsInternal() {
		log.Security().Info().Str("ident", ce.Ident.String()).Msg("create initiator")
	}

	if len(ce.Entries) == 0 {
		t.logger.Error().Msg("create: empty create request")
		return nil, types.ErrEmptyRequest
	}

	candidates := make([]*entry.Init, 0, len(ce.Entries))
	for _, e := range ce.Entries {
		candidates = append(candidates, e.Clone())
	}

	memberOf, err := t.identMemberOf(ce.Ident)
	if err != nil {
		return nil, err
	}
	allowed, err := t.srv.access.CreateAllowOperation(ce.Ident, memberOf, candidates)
	if err != nil {
		log.Admin().Error().Err(err).Msg("failed to check create access")
		return nil, err
	}
	if !allowed {
		return nil, types.ErrAccessDenied
	}

	// Before replication metadata is assigned, the candidates must be
	// legal within the set of replication state transitions: a recycled or
	// tombstoned entry can never be created. The failure is reported as
	// access denied so a caller cannot probe whether such a uuid exists.
	for _, c := range candidates {
		if c.MaskedRecycledTs() {
			log.Admin().Warn().Msg("refusing to create entries that bypass the replication state machine")
			return nil, types.ErrAccessDenied
		}
	}

	invalid := make([]*entry.Invalid, 0, len(candidates))
	for _, c := range candidates {
		invalid = append(invalid, c.AssignCid(t.cid))
	}

	if err := plugins.RunPreCreateTransform(t, invalid, ce.Ident); err != nil {
		log.Admin().Error().Err(err).Msg("create operation failed (pre_transform plugin)")
		return nil, err
	}

	sealed, err := t.validateAll(invalid)
	if err != nil {
		return nil, err
	}

	if err := plugins.RunPreCreate(t, sealed, ce.Ident); err != nil {
		log.Admin().Error().Err(err).Msg("create operation failed (pre plugin)")
		return nil, err
	}

	committed, err := t.be.Create(t.cid, sealed)
	if err != nil {
		log.Admin().Error().Err(err).Msg("backend create failure")
		return nil, err
	}

	if err := plugins.RunPostCreate(t, committed, ce.Ident); err != nil {
		log.Admin().Error().Err(err).Msg("create operation failed (post plugin)")
		return nil, err
	}

	t.accumulate(committed)

	if ce.Ident.IsInternal() {
		t.logger.Debug().Int("entries", len(committed)).Msg("create operation success")
	} else {
		log.Admin().Info().Int("entries", len(committed)).Msg("create operation success")
	}

	if ce.ReturnCreatedUUIDs {
		out := make([]uuid.UUID, 0, len(committed))
		for _, e := range committed {
			out = append(out, e.UUID())
		}
		return out, nil
	}
	return nil, nil
}

// InternalCreate creates entries as the server itself, bypassing access
// control. Bootstrap and plugin-initiated writes use this.
func (t *WriteTxn) InternalCreate(entries ...*entry.Init) error {
	_, err := t.create(NewInternalCreate(entries...))
	return err
}

// Modify applies the event's modlist to every entry the filter selects.
func (t *WriteTxn) Modify(me *ModifyEvent) error {
	start := time.Now()
	err := t.modify(me, false)
	metrics.ObserveWrite("modify", start, err)
	return err
}

// InternalModify modifies as the server itself.
func (t *WriteTxn) InternalModify(f *types.Filter, mods ...Mod) error {
	return t.modify(&ModifyEvent{Ident: types.InternalIdentity(), Filter: f, ModList: mods}, false)
}

func (t *WriteTxn) modify(me *ModifyEvent, includeMasked bool) error {
	if !me.Ident.IsInternal() {
		log.Security().Info().Str("ident", me.Ident.String()).Msg("modify initiator")
	}

	if len(me.ModList) == 0 {
		t.logger.Error().Msg("modify: empty modification list")
		return types.ErrEmptyRequest
	}

	targets, err := t.searchTargets(me.Filter, includeMasked)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("modify: %w", types.ErrNotFound)
	}

	memberOf, err := t.identMemberOf(me.Ident)
	if err != nil {
		return err
	}
	allowed, err := t.srv.access.ModifyAllowOperation(me.Ident, memberOf, targets)
	if err != nil {
		log.Admin().Error().Err(err).Msg("failed to check modify access")
		return err
	}
	if !allowed {
		return types.ErrAccessDenied
	}

	invalid := make([]*entry.Invalid, 0, len(targets))
	for _, e := range targets {
		inv := e.AsInvalid(t.cid)
		for _, m := range me.ModList {
			if err := m.apply(inv); err != nil {
				return err
			}
		}
		invalid = append(invalid, inv)
	}

	if err := plugins.RunPreModifyTransform(t, invalid, me.Ident); err != nil {
		log.Admin().Error().Err(err).Msg("modify operation failed (pre_transform plugin)")
		return err
	}

	sealed, err := t.validateAll(invalid)
	if err != nil {
		return err
	}

	if err := plugins.RunPreModify(t, sealed, me.Ident); err != nil {
		log.Admin().Error().Err(err).Msg("modify operation failed (pre plugin)")
		return err
	}

	committed, err := t.be.Modify(t.cid, targets, sealed)
	if err != nil {
		log.Admin().Error().Err(err).Msg("backend modify failure")
		return err
	}

	if err := plugins.RunPostModify(t, committed, me.Ident); err != nil {
		log.Admin().Error().Err(err).Msg("modify operation failed (post plugin)")
		return err
	}

	t.accumulate(committed)

	if me.Ident.IsInternal() {
		t.logger.Debug().Int("entries", len(committed)).Msg("modify operation success")
	} else {
		log.Admin().Info().Int("entries", len(committed)).Msg("modify operation success")
	}
	return nil
}

// Delete soft-deletes every entry the filter selects: each gains the
// recycled class, keeps its attributes and drops out of normal searches
// until the retention window tombstones it.
func (t *WriteTxn) Delete(de *DeleteEvent) error {
	start := time.Now()
	err := t.recycle(de)
	metrics.ObserveWrite("delete", start, err)
	return err
}

// Recycle is Delete under its lifecycle name.
func (t *WriteTxn) Recycle(de *DeleteEvent) error {
	return t.Delete(de)
}

// InternalDelete deletes as the server itself.
func (t *WriteTxn) InternalDelete(f *types.Filter) error {
	return t.recycle(&DeleteEvent{Ident: types.InternalIdentity(), Filter: f})
}

func (t *WriteTxn) recycle(de *DeleteEvent) error {
	if !de.Ident.IsInternal() {
		log.Security().Info().Str("ident", de.Ident.String()).Msg("delete initiator")
	}

	targets, err := t.searchTargets(de.Filter, false)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("delete: %w", types.ErrNotFound)
	}

	memberOf, err := t.identMemberOf(de.Ident)
	if err != nil {
		return err
	}
	allowed, err := t.srv.access.DeleteAllowOperation(de.Ident, memberOf, targets)
	if err != nil {
		log.Admin().Error().Err(err).Msg("failed to check delete access")
		return err
	}
	if !allowed {
		return types.ErrAccessDenied
	}

	invalid := make([]*entry.Invalid, 0, len(targets))
	for _, e := range targets {
		inv := e.AsInvalid(t.cid)
		inv.AddClass(types.ClassRecycled)
		invalid = append(invalid, inv)
	}

	if err := plugins.RunPreDeleteTransform(t, invalid, de.Ident); err != nil {
		log.Admin().Error().Err(err).Msg("delete operation failed (pre_transform plugin)")
		return err
	}

	sealed, err := t.validateAll(invalid)
	if err != nil {
		return err
	}

	if err := plugins.RunPreDelete(t, sealed, de.Ident); err != nil {
		log.Admin().Error().Err(err).Msg("delete operation failed (pre plugin)")
		return err
	}

	committed, err := t.be.Modify(t.cid, targets, sealed)
	if err != nil {
		log.Admin().Error().Err(err).Msg("backend delete failure")
		return err
	}

	if err := plugins.RunPostDelete(t, committed, de.Ident); err != nil {
		log.Admin().Error().Err(err).Msg("delete operation failed (post plugin)")
		return err
	}

	t.accumulate(committed)

	if de.Ident.IsInternal() {
		t.logger.Debug().Int("entries", len(committed)).Msg("delete operation success")
	} else {
		log.Admin().Info().Int("entries", len(committed)).Msg("delete operation success")
	}
	return nil
}

// Revive restores recycled entries selected by the filter: the recycled
// class is removed and the entry rejoins normal search. A tombstone cannot
// be revived.
func (t *WriteTxn) Revive(de *DeleteEvent) error {
	if !de.Ident.IsInternal() {
		log.Security().Info().Str("ident", de.Ident.String()).Msg("revive initiator")
	}

	f := types.And(de.Filter, types.Eq(types.AttrClass, string(types.ClassRecycled)))
	targets, err := t.searchTargets(f, true)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("revive: %w", types.ErrNotFound)
	}

	memberOf, err := t.identMemberOf(de.Ident)
	if err != nil {
		return err
	}
	allowed, err := t.srv.access.ModifyAllowOperation(de.Ident, memberOf, targets)
	if err != nil {
		return err
	}
	if !allowed {
		return types.ErrAccessDenied
	}

	invalid := make([]*entry.Invalid, 0, len(targets))
	for _, e := range targets {
		if e.HasClass(types.ClassTombstone) {
			return fmt.Errorf("entry %s is tombstoned: %w", e.UUID(), types.ErrInvalidState)
		}
		inv := e.AsInvalid(t.cid)
		inv.RemoveClass(types.ClassRecycled)
		invalid = append(invalid, inv)
	}

	sealed, err := t.validateAll(invalid)
	if err != nil {
		return err
	}

	committed, err := t.be.Modify(t.cid, targets, sealed)
	if err != nil {
		return err
	}

	if err := plugins.RunPostModify(t, committed, de.Ident); err != nil {
		return err
	}

	t.accumulate(committed)
	return nil
}

// InternalTombstone advances a recycled entry whose retention window has
// passed: every attribute except identity is stripped and the class set
// becomes tombstone. A live entry cannot be tombstoned.
func (t *WriteTxn) InternalTombstone(u uuid.UUID) error {
	e, err := t.InternalSearchUUID(u)
	if err != nil {
		return err
	}
	if e.HasClass(types.ClassTombstone) {
		return fmt.Errorf("entry %s is already tombstoned: %w", u, types.ErrInvalidState)
	}
	if !e.HasClass(types.ClassRecycled) {
		return fmt.Errorf("entry %s is live: %w", u, types.ErrInvalidState)
	}

	inv := e.AsInvalid(t.cid)
	inv.Keep(types.AttrUUID, types.AttrClass)
	inv.Set(types.AttrClass, valueClassSet(types.ClassObject, types.ClassTombstone))

	sealed, err := t.validateAll([]*entry.Invalid{inv})
	if err != nil {
		return err
	}
	committed, err := t.be.Modify(t.cid, []*entry.Sealed{e}, sealed)
	if err != nil {
		return err
	}
	t.accumulate(committed)
	return nil
}

// validateAll schema-validates and seals a candidate set.
func (t *WriteTxn) validateAll(invalid []*entry.Invalid) ([]*entry.Sealed, error) {
	sealed := make([]*entry.Sealed, 0, len(invalid))
	for _, inv := range invalid {
		valid, err := inv.Validate(t.schema)
		if err != nil {
			log.Admin().Error().Err(err).Msg("schema violation in validate")
			var sv *types.SchemaViolationError
			if errors.As(err, &sv) {
				return nil, err
			}
			return nil, types.SchemaViolation("%v", err)
		}
		sealed = append(sealed, valid.Seal())
	}
	return sealed, nil
}

// searchTargets selects write targets within the transaction's view.
func (t *WriteTxn) searchTargets(f *types.Filter, includeMasked bool) ([]*entry.Sealed, error) {
	hits, err := t.be.Search(f, nil)
	if err != nil {
		return nil, err
	}
	if includeMasked {
		return hits, nil
	}
	out := make([]*entry.Sealed, 0, len(hits))
	for _, e := range hits {
		if e.MaskedRecycledTs() {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// identMemberOf resolves the initiating identity's group membership.
func (t *WriteTxn) identMemberOf(ident types.Identity) ([]uuid.UUID, error) {
	if ident.IsInternal() {
		return nil, nil
	}
	e, err := t.InternalSearchUUID(ident.UUID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrAccessDenied
		}
		return nil, err
	}
	mo, ok := e.Get(types.AttrMemberOf)
	if !ok {
		return nil, nil
	}
	return mo.Uuids(), nil
}

// InternalSearch searches within the transaction's own view, observing
// uncommitted writes. Masked entries are included; plugin callers filter
// them as needed.
func (t *WriteTxn) InternalSearch(f *types.Filter) ([]*entry.Sealed, error) {
	return t.be.Search(f, nil)
}

// InternalSearchUUID fetches one entry by uuid within the transaction.
func (t *WriteTxn) InternalSearchUUID(u uuid.UUID) (*entry.Sealed, error) {
	return t.be.GetUUID(u)
}

// InternalApply validates, seals and persists plugin-produced
// modifications inside the transaction, then folds the results into the
// changed sets.
func (t *WriteTxn) InternalApply(pre []*entry.Sealed, post []*entry.Invalid) ([]*entry.Sealed, error) {
	sealed, err := t.validateAll(post)
	if err != nil {
		return nil, err
	}
	committed, err := t.be.Modify(t.cid, pre, sealed)
	if err != nil {
		return nil, err
	}
	t.accumulate(committed)
	return committed, nil
}

// AppendChangeLog records the committed uuids under the transaction cid.
func (t *WriteTxn) AppendChangeLog(uuids []uuid.UUID) error {
	return t.be.AppendChangeLog(t.cid, uuids)
}

// accumulate folds committed entries into the transaction's changed flags
// and changed uuid set.
func (t *WriteTxn) accumulate(committed []*entry.Sealed) {
	for _, e := range committed {
		t.changedFlags |= flagsFor(e)
		t.changedUUIDs = append(t.changedUUIDs, e.UUID())
	}
	if t.changedFlags != 0 {
		t.logger.Trace().Str("changed", t.changedFlags.String()).Msg("changed flags")
	}
}
