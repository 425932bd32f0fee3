package credential

import (
	"fmt"
)

// TotpAlgo selects the HMAC hash for a TOTP secret.
type TotpAlgo string

const (
	TotpAlgoSha1   TotpAlgo = "S1"
	TotpAlgoSha256 TotpAlgo = "S256"
	TotpAlgoSha512 TotpAlgo = "S512"
)

// Totp is a stored TOTP secret. The key is secret material: String renders
// only label, step and algo, and the struct must never be logged directly.
type Totp struct {
	Label  string   `json:"l"`
	Key    []byte   `json:"k"`
	Step   uint64   `json:"s"`
	Algo   TotpAlgo `json:"a"`
	Digits *uint8   `json:"d,omitempty"`
}

// String renders the non-secret fields only.
func (t *Totp) String() string {
	return fmt.Sprintf("totp (l %s, s %d, a %s)", t.Label, t.Step, t.Algo)
}

// GoString matches String so %#v formatting cannot leak the key.
func (t *Totp) GoString() string {
	return t.String()
}

// BackupCode is the set of remaining one-time backup codes. The codes are
// secret material with the same printing rules as Totp.
type BackupCode struct {
	CodeSet []string `json:"code_set"`
}

// Remaining returns the count of unused codes.
func (b *BackupCode) Remaining() int {
	return len(b.CodeSet)
}

// Consume removes code from the set, reporting whether it was present.
func (b *BackupCode) Consume(code string) bool {
	for i, c := range b.CodeSet {
		if c == code {
			b.CodeSet = append(b.CodeSet[:i], b.CodeSet[i+1:]...)
			return true
		}
	}
	return false
}

func (b *BackupCode) String() string {
	return fmt.Sprintf("codes remaining: %d", len(b.CodeSet))
}

// GoString matches String so %#v formatting cannot leak codes.
func (b *BackupCode) GoString() string {
	return b.String()
}
