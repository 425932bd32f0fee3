package plugins

import (
	"github.com/google/uuid"

	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/metrics"
	"github.com/cuemby/warden/pkg/types"
)

// changeLogPost appends the committed uuids to the replication change log
// under the transaction's cid. The replication layer drains this log; the
// write path only guarantees it is complete and in causal order.
func changeLogPost(t TxnMutator, committed []*entry.Sealed, ident types.Identity) error {
	if len(committed) == 0 {
		return nil
	}
	uuids := make([]uuid.UUID, 0, len(committed))
	for _, e := range committed {
		uuids = append(uuids, e.UUID())
	}
	if err := t.AppendChangeLog(uuids); err != nil {
		return err
	}
	metrics.ChangeLogAppendsTotal.Inc()
	return nil
}
