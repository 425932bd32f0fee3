/*
Package keys caches domain signing keys and performs JWS operations.

Key objects persist their keys as internal key values: id, usage (ES256 /
RS256), validity, lifecycle status with the cid that set it, and the DER
sealed for rest with the domain key. The store indexes the non-revoked
keys by id and signs or verifies JWTs on their behalf; it reloads when a
commit sets the KEY_MATERIAL change flag.

GenerateInternal mints fresh key material sealed and stamped for storage
on a key object entry. Bootstrap uses it to provision the initial domain
signing key.
*/
package keys
