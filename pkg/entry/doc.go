/*
Package entry implements the typestate entry model.

An entry is a uuid-keyed record mapping attribute names to tagged value
sets. Entries move through four states, each a distinct type so that
skipping a step does not compile:

	Init ──AssignCid──► Invalid ──Validate──► Valid ──Seal──► Sealed

Init is caller supplied and carries no replication metadata. AssignCid
stamps the entry with the owning transaction's cid; Invalid entries are
what pre-transform plugins mutate. Validate runs the schema, and Sealed is
the immutable form the backend persists and returns.

Every attribute records the cid of the transaction that last wrote it.
Values written inside one transaction are causally indistinguishable from
each other and strictly precede the next transaction's writes.

Entries carrying the recycled or tombstone class are "masked": invisible
to normal searches and banned as creation candidates.
*/
package entry
