package plugins

import (
	"github.com/google/uuid"

	"github.com/cuemby/warden/pkg/cid"
	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/metrics"
	"github.com/cuemby/warden/pkg/types"
)

// TxnView is the read side of the live write transaction that plugins run
// inside. Searches observe the transaction's own uncommitted writes.
type TxnView interface {
	Cid() cid.Cid
	DomainName() string
	InternalSearch(f *types.Filter) ([]*entry.Sealed, error)
	InternalSearchUUID(u uuid.UUID) (*entry.Sealed, error)
}

// TxnMutator extends TxnView for post plugins that maintain derived state
// the backend cannot compute itself: memberOf closure, reference cleanup
// and the replication change log. Post entries are validated against the
// schema, sealed and stamped with the transaction's cid before they hit
// the backend.
type TxnMutator interface {
	TxnView
	InternalApply(pre []*entry.Sealed, post []*entry.Invalid) ([]*entry.Sealed, error)
	AppendChangeLog(uuids []uuid.UUID) error
}

// The pipeline is a fixed, ordered composition decided at build time.
// Plugins are free functions over the transaction handle; there is no
// runtime registration.

type preTransformFn struct {
	name string
	fn   func(t TxnView, cands []*entry.Invalid, ident types.Identity) error
}

type preFn struct {
	name string
	fn   func(t TxnView, cands []*entry.Sealed, ident types.Identity) error
}

type postFn struct {
	name string
	fn   func(t TxnMutator, committed []*entry.Sealed, ident types.Identity) error
}

var preCreateTransform = []preTransformFn{
	{"base", baseCreateTransform},
	{"cred_adjust", credAdjustTransform},
	{"spn", spnCreateTransform},
	{"eckey_gen", ecKeyGenTransform},
	{"oauth2_defaults", oauth2CreateTransform},
	{"name_history", nameHistoryCreateTransform},
}

var preCreate = []preFn{
	{"attr_unique", attrUniquePreCreate},
	{"refint", refintPreCreate},
}

var postCreate = []postFn{
	{"memberof", memberOfPostCreate},
	{"changelog", changeLogPost},
}

var preModifyTransform = []preTransformFn{
	{"cred_adjust", credAdjustTransform},
	{"spn", spnCreateTransform},
	{"name_history", nameHistoryModifyTransform},
}

var preModify = []preFn{
	{"refint", refintPreCreate},
}

var postModify = []postFn{
	{"memberof", memberOfPostModify},
	{"changelog", changeLogPost},
}

var preDeleteTransform = []preTransformFn{}

var preDelete = []preFn{}

var postDelete = []postFn{
	{"refint_cleanup", refintPostDelete},
	{"memberof", memberOfPostModify},
	{"changelog", changeLogPost},
}

// RunPreCreateTransform runs the mutable pre-transform phase for create.
func RunPreCreateTransform(t TxnView, cands []*entry.Invalid, ident types.Identity) error {
	return runPreTransform(preCreateTransform, "pre_create_transform", t, cands, ident)
}

// RunPreCreate runs the read-only pre phase for create on sealed entries.
func RunPreCreate(t TxnView, cands []*entry.Sealed, ident types.Identity) error {
	return runPre(preCreate, "pre_create", t, cands, ident)
}

// RunPostCreate runs the post phase for create on persisted entries.
func RunPostCreate(t TxnMutator, committed []*entry.Sealed, ident types.Identity) error {
	return runPost(postCreate, "post_create", t, committed, ident)
}

// RunPreModifyTransform runs the mutable pre-transform phase for modify.
func RunPreModifyTransform(t TxnView, cands []*entry.Invalid, ident types.Identity) error {
	return runPreTransform(preModifyTransform, "pre_modify_transform", t, cands, ident)
}

// RunPreModify runs the read-only pre phase for modify.
func RunPreModify(t TxnView, cands []*entry.Sealed, ident types.Identity) error {
	return runPre(preModify, "pre_modify", t, cands, ident)
}

// RunPostModify runs the post phase for modify.
func RunPostModify(t TxnMutator, committed []*entry.Sealed, ident types.Identity) error {
	return runPost(postModify, "post_modify", t, committed, ident)
}

// RunPreDeleteTransform runs the mutable pre-transform phase for delete.
func RunPreDeleteTransform(t TxnView, cands []*entry.Invalid, ident types.Identity) error {
	return runPreTransform(preDeleteTransform, "pre_delete_transform", t, cands, ident)
}

// RunPreDelete runs the read-only pre phase for delete.
func RunPreDelete(t TxnView, cands []*entry.Sealed, ident types.Identity) error {
	return runPre(preDelete, "pre_delete", t, cands, ident)
}

// RunPostDelete runs the post phase for delete.
func RunPostDelete(t TxnMutator, committed []*entry.Sealed, ident types.Identity) error {
	return runPost(postDelete, "post_delete", t, committed, ident)
}

func runPreTransform(fns []preTransformFn, phase string, t TxnView, cands []*entry.Invalid, ident types.Identity) error {
	for _, p := range fns {
		if err := p.fn(t, cands, ident); err != nil {
			return failed(p.name, phase, ident, err)
		}
	}
	return nil
}

func runPre(fns []preFn, phase string, t TxnView, cands []*entry.Sealed, ident types.Identity) error {
	for _, p := range fns {
		if err := p.fn(t, cands, ident); err != nil {
			return failed(p.name, phase, ident, err)
		}
	}
	return nil
}

func runPost(fns []postFn, phase string, t TxnMutator, committed []*entry.Sealed, ident types.Identity) error {
	for _, p := range fns {
		if err := p.fn(t, committed, ident); err != nil {
			return failed(p.name, phase, ident, err)
		}
	}
	return nil
}

// failed logs and wraps a plugin abort. The wrapped error surfaces
// unchanged to the caller.
func failed(name, phase string, ident types.Identity, err error) error {
	metrics.PluginFailuresTotal.WithLabelValues(name, phase).Inc()
	if !ident.IsInternal() {
		log.Admin().Error().Err(err).
			Str("plugin", name).
			Str("phase", phase).
			Msg("plugin aborted operation")
	}
	return &types.PluginError{Which: name, Err: err}
}
