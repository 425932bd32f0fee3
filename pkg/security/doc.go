/*
Package security handles at-rest sealing of private key material.

Sealer wraps AES-256-GCM with a key derived from the domain, nonce
prepended to the ciphertext. Every server in a domain derives the same
sealing key, so sealed key objects replicate between them without
re-encryption.
*/
package security
