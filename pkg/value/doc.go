/*
Package value defines the persisted form of attribute values: the tagged
value set every stored attribute flows through.

A Set holds all values of one attribute on one entry as exactly one tagged
variant. The discriminants are short stable strings (U8, N8, RF, CR, AS,
KI, ...) and form a permanent disk contract: a tag that has ever shipped is
never renamed or reassigned, and unknown tags fail decoding so an older
server cannot silently drop values written by a newer one.

# Encoding

Sets serialise as single-key JSON objects, the tag naming the variant:

	{"U8": ["hello"]}
	{"SP": [["testperson", "example.com"]]}
	{"EM": ["a@example.com", ["a@example.com", "b@example.com"]]}
	{"SA": [[{"t": {"secs": 1, "nanos": 0}, "s": "..."}, "testperson"]]}

Tuple payloads (spn, email primary + list, labelled totp, audit-log
string, intent token) encode as two element arrays. Structured payloads
with their own generations (sessions, credentials, internal keys, images,
certificates) nest their version tag inside the element.

# Invariants

  - Len and IsEmpty agree for every variant.
  - The EC private key variant (EK) holds the bytes of a single key and
    reports Len() == 1.
  - An email or phone primary must appear in its value list (Validate).
  - Scalar constructors deduplicate; ordered payloads (addresses, scope
    maps, claim maps, attestation roots) preserve insertion order for
    display while comparing as sets.

Secret-bearing variants project no strings, so filters and indexes can
never match on secret material.
*/
package value
