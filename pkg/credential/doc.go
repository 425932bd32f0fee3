/*
Package credential models stored credentials, sessions and tokens.

Cred is a sum over every credential format generation still on disk. The
type_ discriminants (Pw, GPw, PwMfa, Wn, TmpWn, V2Pw, V2GPw, V2PwMfa,
V3PwMfa) are a stable wire and disk contract and are never renamed. A
credential's uuid is its identity across format migrations: equality is
uuid equality and nothing else.

# Format Lifecycle

	Pw  ──┐
	GPw ──┼──► V2Password / V2GenPassword
	PwMfa ┘
	V2PasswordMfa ──► V3PasswordMfa   (single TOTP → list of TOTPs)

Legacy formats keep decoding forever; Normalise upgrades them on the next
write, preserving the uuid. Adding a second TOTP to a V2PasswordMfa
triggers the V2 → V3 upgrade. A webauthn-only Wn credential has no
password and cannot be normalised until an administrator sets one; TmpWn
is an in-progress enrolment and is replaced rather than migrated.

# Secret Handling

String and GoString on credentials, TOTP secrets and backup codes reveal
presence booleans and counts only. The JSON marshallers are the one
dangerous serialisation path, used exclusively by the storage layer.

Sessions (V1..V4), api tokens and oauth2 sessions (V1..V3) follow the same
rules: versions that have shipped decode forever, the newest version is
written, and short serde-style field tags are part of the disk contract.
*/
package credential
