package plugins

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"fmt"

	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// ecKeyGenTransform equips every person entry with an identity
// verification EC key at creation. The key is a P-256 private key stored
// as DER; it never leaves the server and exists so two parties can verify
// each other's identity out of band.
func ecKeyGenTransform(t TxnView, cands []*entry.Invalid, ident types.Identity) error {
	for _, c := range cands {
		if !c.HasClass(types.ClassPerson) {
			continue
		}
		if _, ok := c.Get(types.AttrIDVerificationEcKey); ok {
			continue
		}
		pk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return fmt.Errorf("failed to generate id verification key: %w", err)
		}
		der, err := x509.MarshalECPrivateKey(pk)
		if err != nil {
			return fmt.Errorf("failed to encode id verification key: %w", err)
		}
		c.Set(types.AttrIDVerificationEcKey, value.NewEcKeyPrivate(der))
	}
	return nil
}
