/*
Package log provides structured logging for Warden using zerolog.

Init configures the global logger once at startup; components take child
loggers with WithComponent. Two extra altitudes exist for the identity
domain: Admin() for operational write-path failures an operator should
audit, and Security() for security-relevant events such as recording the
initiator of an external write.

Log payloads never include attribute values, cids of unrelated entries or
secret material — entry identities (uuid, classes) only.
*/
package log
