/*
Package access evaluates access-control profiles for the write path.

Profiles are compiled from access_control_profile entries: each grants a
receiver group a set of create classes and attributes. The registry is a
process-wide snapshot, reloaded by the write transaction's commit when the
ACP change flag is set — always after the schema reload.

Internal identities bypass every check. For everyone else, create requires
a received profile covering all candidate classes; modify and delete
require any received profile. The search filter strips masked entries for
non-internal identities; finer redaction belongs to the front-end.

Note the deliberate conflation upstream: a creation candidate that is
recycled or tombstoned reports access denied, not a state error, so
callers cannot probe for the existence of masked uuids.
*/
package access
