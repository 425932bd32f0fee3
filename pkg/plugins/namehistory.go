package plugins

import (
	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// Name history records every name an entry has carried as audit-log
// strings: the transaction cid that set the name, plus the name itself.

func nameHistoryCreateTransform(t TxnView, cands []*entry.Invalid, ident types.Identity) error {
	for _, c := range cands {
		appendNameHistory(t, c)
	}
	return nil
}

// nameHistoryModifyTransform appends only when the name actually changed.
func nameHistoryModifyTransform(t TxnView, cands []*entry.Invalid, ident types.Identity) error {
	for _, c := range cands {
		names, ok := c.Get(types.AttrName)
		if !ok || names.IsEmpty() {
			continue
		}
		cur := names.Strings()[0]
		hist, _ := c.Get(types.AttrNameHistory)
		logs := hist.AuditLogStrings()
		if len(logs) > 0 && logs[len(logs)-1].Text == cur {
			continue
		}
		appendNameHistory(t, c)
	}
	return nil
}

func appendNameHistory(t TxnView, c *entry.Invalid) {
	if !c.HasClass(types.ClassPerson) && !c.HasClass(types.ClassAccount) && !c.HasClass(types.ClassGroup) {
		return
	}
	names, ok := c.Get(types.AttrName)
	if !ok || names.IsEmpty() {
		return
	}
	hist, _ := c.Get(types.AttrNameHistory)
	logs := append(hist.AuditLogStrings(), value.AuditLogString{
		Cid:  t.Cid(),
		Text: names.Strings()[0],
	})
	c.Set(types.AttrNameHistory, value.NewAuditLogString(logs...))
}
