/*
Package schema defines and enforces the attribute and class registries.

Every attribute has a value syntax (a value-set tag) and a cardinality;
every class lists the attributes its entries must and may carry. Validate
checks an entry against the closure of its classes: unknown classes,
unknown or unpermitted attributes, missing requirements, cardinality and
syntax mismatches are all schema violations.

Recycled and tombstoned entries relax presence rules: they retain whatever
attributes they held when live, so a later schema change cannot break the
retention window.

The Registry is a process-wide read-mostly snapshot. Readers take the
current snapshot for the duration of a transaction; only the write
transaction's commit path builds and swaps in a new one, from the builtin
definitions extended by committed attributetype and classtype entries.
Schema reloads before access control on commit, since profiles compile
against it.
*/
package schema
