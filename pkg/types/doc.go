/*
Package types holds the shared vocabulary of the directory: attribute and
class names, well-known uuids, operation identities, search filters and
the error taxonomy.

The error kinds are the write path's contract with callers:

	ErrEmptyRequest       no candidates supplied
	ErrAccessDenied       no permission, or a replication-state
	                      precondition failed (deliberately conflated)
	SchemaViolationError  schema validation failed, with detail
	PluginError           a named plugin aborted the operation
	BackendError          storage layer failure
	ErrInvalidState       illegal lifecycle transition
	ErrConsistency        a post-commit invariant failed

Errors surfaced to users never leak cids, uuids of unrelated entries or
secret material.
*/
package types
