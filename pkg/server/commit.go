package server

import (
	"fmt"

	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/events"
	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/metrics"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// Commit finishes the transaction: the accumulated change flags drive the
// cache reloads in fixed order, then the backend transaction commits. A
// reload failure aborts the commit and rolls the backend back; no partial
// state becomes visible.
func (t *WriteTxn) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}

	if t.changedFlags != 0 {
		all, err := t.be.Search(nil, nil)
		if err != nil {
			t.Abort()
			return err
		}
		for _, flag := range reloadOrder {
			if !t.changedFlags.Has(flag) {
				continue
			}
			if err := t.reload(flag, all); err != nil {
				metrics.ReloadFailuresTotal.WithLabelValues(flagNames[flag]).Inc()
				log.Admin().Error().Err(err).Str("flag", flagNames[flag]).Msg("reload failed, aborting commit")
				t.Abort()
				return err
			}
			metrics.ReloadsTotal.WithLabelValues(flagNames[flag]).Inc()
		}
	}

	t.done = true
	err := t.be.Commit()
	t.srv.writeMu.Unlock()
	if err != nil {
		return err
	}

	t.publish()
	return nil
}

// Abort rolls the transaction back. No changed-flag reloads fire and no
// notifications publish. Safe to call after a failed Commit.
func (t *WriteTxn) Abort() {
	if t.done {
		return
	}
	t.done = true
	if err := t.be.Rollback(); err != nil {
		t.logger.Error().Err(err).Msg("rollback failed")
	}
	t.srv.writeMu.Unlock()
}

// reload refreshes the cache a change flag names. The reloads are
// idempotent: re-running one after a partial failure converges on the
// committed state.
func (t *WriteTxn) reload(flag ChangeFlag, all []*entry.Sealed) error {
	switch flag {
	case FlagSchema:
		return t.srv.schema.Reload(all)
	case FlagACP:
		return t.srv.access.Reload(all)
	case FlagKeyMaterial:
		return t.srv.keys.Reload(all)
	case FlagDomain:
		return t.reloadDomain(all)
	case FlagOAuth2, FlagSystemConfig, FlagApplication, FlagSyncAgreement:
		// These consumers subscribe to the broker; the flag only forces
		// the notification below.
		return nil
	}
	return nil
}

// reloadDomain re-reads the domain info entry and verifies it still names
// this server's domain.
func (t *WriteTxn) reloadDomain(all []*entry.Sealed) error {
	for _, e := range all {
		if e.UUID() != types.UUIDDomainInfo {
			continue
		}
		name, ok := e.Get(types.AttrDomainName)
		if !ok || len(name.Strings()) != 1 {
			return fmt.Errorf("domain info entry has no domain name: %w", types.ErrConsistency)
		}
		if name.Strings()[0] != t.srv.cfg.Domain {
			return fmt.Errorf("domain info names %q but server is configured for %q", name.Strings()[0], t.srv.cfg.Domain)
		}
		return nil
	}
	return fmt.Errorf("domain info entry missing: %w", types.ErrConsistency)
}

// publish announces the commit to broker subscribers.
func (t *WriteTxn) publish() {
	if len(t.changedUUIDs) == 0 {
		return
	}
	meta := map[string]string{
		"cid":     t.cid.String(),
		"changed": t.changedFlags.String(),
	}
	t.srv.broker.Publish(&events.Event{
		ID:       t.cid.String(),
		Type:     events.EventEntryModified,
		Message:  fmt.Sprintf("%d entries changed", len(t.changedUUIDs)),
		Metadata: meta,
	})
}

// valueClassSet builds a class attribute set.
func valueClassSet(classes ...types.EntryClass) value.Set {
	names := make([]string, 0, len(classes))
	for _, c := range classes {
		names = append(names, string(c))
	}
	return value.NewIutf8(names...)
}
