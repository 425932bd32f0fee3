package cid

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Cid is a causal identifier: the stamp attached to every value written by
// a transaction. It is the pair of a duration since the unix epoch and the
// uuid of the server that performed the write. Cids order totally:
// timestamp first, then server uuid.
type Cid struct {
	Ts       time.Duration
	ServerID uuid.UUID
}

// New builds a Cid for the given server at the given offset from the epoch.
func New(ts time.Duration, serverID uuid.UUID) Cid {
	return Cid{Ts: ts, ServerID: serverID}
}

// Compare returns -1, 0 or 1 ordering c against other lexicographically on
// (timestamp, server uuid).
func (c Cid) Compare(other Cid) int {
	switch {
	case c.Ts < other.Ts:
		return -1
	case c.Ts > other.Ts:
		return 1
	}
	a, b := c.ServerID.String(), other.ServerID.String()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Less reports whether c orders before other.
func (c Cid) Less(other Cid) bool {
	return c.Compare(other) < 0
}

// String renders the display form: the zero-padded 32-digit nanosecond
// count, a dash, then the server uuid. String ordering of the display form
// matches Cid ordering.
func (c Cid) String() string {
	return fmt.Sprintf("%032d-%s", c.Ts.Nanoseconds(), c.ServerID)
}

// wire is the persisted form: t carries the duration split into seconds and
// nanoseconds, s carries the server uuid. This layout is a stable disk
// contract.
type wire struct {
	T wireTs    `json:"t"`
	S uuid.UUID `json:"s"`
}

type wireTs struct {
	Secs  int64 `json:"secs"`
	Nanos int64 `json:"nanos"`
}

// MarshalJSON encodes the Cid wire form.
func (c Cid) MarshalJSON() ([]byte, error) {
	return json.Marshal(wire{
		T: wireTs{
			Secs:  int64(c.Ts / time.Second),
			Nanos: int64(c.Ts % time.Second),
		},
		S: c.ServerID,
	})
}

// UnmarshalJSON decodes the Cid wire form.
func (c *Cid) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Ts = time.Duration(w.T.Secs)*time.Second + time.Duration(w.T.Nanos)
	c.ServerID = w.S
	return nil
}

// Generator produces Cids for one server. It guards against wall-clock
// regression: if the clock reads at or before the last issued timestamp,
// the new Cid is bumped to last + 1ns so that no two transactions on the
// same server ever share a Cid.
type Generator struct {
	serverID uuid.UUID
	now      func() time.Duration

	mu   sync.Mutex
	last time.Duration
}

// NewGenerator builds a generator for the given server uuid using the
// system clock.
func NewGenerator(serverID uuid.UUID) *Generator {
	return &Generator{
		serverID: serverID,
		now: func() time.Duration {
			return time.Duration(time.Now().UnixNano())
		},
	}
}

// NewGeneratorWithClock builds a generator with an injected clock. Used by
// tests that need deterministic timestamps.
func NewGeneratorWithClock(serverID uuid.UUID, now func() time.Duration) *Generator {
	return &Generator{serverID: serverID, now: now}
}

// Next issues the next Cid. Successive calls always return strictly
// increasing Cids.
func (g *Generator) Next() Cid {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now()
	if ts <= g.last {
		ts = g.last + time.Nanosecond
	}
	g.last = ts
	return Cid{Ts: ts, ServerID: g.serverID}
}

// ServerID returns the server uuid this generator stamps.
func (g *Generator) ServerID() uuid.UUID {
	return g.serverID
}
