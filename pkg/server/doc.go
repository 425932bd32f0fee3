/*
Package server implements the transactional write path of the directory:
the create, modify, delete, recycle and revive operations, the single
writer discipline, and the post-commit cache reload machinery.

# Architecture

One server owns one entry database. Writes are serialised; reads run
concurrently against stable snapshots:

	┌──────────────────── WRITE TRANSACTION ───────────────────┐
	│                                                           │
	│  CreateEvent / ModifyEvent / DeleteEvent                  │
	│       │                                                   │
	│  ┌────▼────────────────────────────────────┐             │
	│  │ 1. identity + access check              │             │
	│  │ 2. replication-state check              │             │
	│  │    (recycled/tombstone → AccessDenied)  │             │
	│  │ 3. cid assignment        → Invalid      │             │
	│  │ 4. pre-transform plugins (mutable)      │             │
	│  │ 5. schema validate + seal → Sealed      │             │
	│  │ 6. pre plugins (read-only)              │             │
	│  │ 7. backend create/modify                │             │
	│  │ 8. post plugins (derived state)         │             │
	│  │ 9. changed-flag accumulation            │             │
	│  └────┬────────────────────────────────────┘             │
	│       │ Commit                                           │
	│  ┌────▼────────────────────────────────────┐             │
	│  │ reloads in fixed order:                 │             │
	│  │ SCHEMA → ACP → OAUTH2 → DOMAIN →        │             │
	│  │ KEY_MATERIAL → SYSTEM_CONFIG →          │             │
	│  │ APPLICATION → SYNC_AGREEMENT            │             │
	│  │ then backend commit, then notify        │             │
	│  └─────────────────────────────────────────┘             │
	└───────────────────────────────────────────────────────────┘

A reload failure aborts the commit and rolls the backend back; partially
committed state is never visible to readers.

# Usage

	srv, err := server.New(&server.Config{
		Domain:  "example.com",
		DataDir: "/var/lib/warden",
	})

	wt, _ := srv.Write()
	_, err = wt.Create(&server.CreateEvent{
		Ident:   types.UserIdentity(actor),
		Entries: []*entry.Init{person},
	})
	if err != nil {
		wt.Abort()
		return err
	}
	return wt.Commit()

The Internal* operation family bypasses the access check and is reserved
for bootstrap and plugin-initiated writes.

# Ordering Guarantees

Operations within one transaction observe each other. Between committed
transactions, order is the cid order; the generator guarantees no two
transactions on one server share a cid even across wall-clock regression.

# See Also

  - pkg/entry for the Init → Invalid → Valid → Sealed typestates
  - pkg/plugins for the statically composed pipeline
  - pkg/storage for the BoltDB entry backend
*/
package server
