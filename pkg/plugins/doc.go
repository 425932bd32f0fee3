/*
Package plugins is the statically composed write-path pipeline.

Each operation kind (create, modify, delete) runs three ordered phases.
The composition is fixed at build time; there is no runtime registration.

	pre-transform  mutable Invalid entries   defaults, spn derivation,
	                                         credential normalisation,
	                                         id-verification key, name
	                                         history, oauth2 defaults
	pre            read-only Sealed entries  name uniqueness,
	                                         referential integrity
	post           persisted entries         memberOf closure, dynmember,
	                                         reference cleanup, change log

Plugin bodies are free functions over the transaction handle (TxnView for
reads, TxnMutator for post plugins that maintain derived state). Any
plugin error aborts the whole operation; the error is wrapped as a
PluginError naming the plugin and surfaced unchanged.

# MemberOf

Group membership is derived state. Static groups hold member references;
dynamic groups hold a json filter ({"eq": ["class", "person"]}) and
collect matching entries into dynmember. directmemberof lists the groups
holding an entry directly, memberof adds every group reachable through
nesting. The post phase recomputes both after each commit.
*/
package plugins
