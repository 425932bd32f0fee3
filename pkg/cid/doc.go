/*
Package cid implements causal identifiers.

A Cid is the pair (duration since the unix epoch, server uuid), stamped on
every value a write transaction produces. Cids order totally — timestamp
first, then server uuid — which gives replication a total order over
writes from any set of servers.

The display form is the zero-padded 32-digit nanosecond count, a dash,
then the server uuid; string ordering of display forms matches cid
ordering, so they double as sortable storage keys.

Generator issues cids for one server with a monotonic-forward guard: if
the wall clock regresses, the next cid is bumped to last + 1ns, so no two
transactions on the same server ever share a cid.
*/
package cid
