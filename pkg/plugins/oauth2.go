package plugins

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// oauth2CreateTransform applies resource-server defaults: a fresh token
// signing secret when none exists, and scope-map sanity (a scope map must
// actually grant scopes).
func oauth2CreateTransform(t TxnView, cands []*entry.Invalid, ident types.Identity) error {
	for _, c := range cands {
		if !c.HasClass(types.ClassOAuth2ResourceServer) {
			continue
		}

		if _, ok := c.Get(types.AttrOAuth2RsTokenKey); !ok {
			buf := make([]byte, 32)
			if _, err := io.ReadFull(rand.Reader, buf); err != nil {
				return fmt.Errorf("failed to generate token key: %w", err)
			}
			c.Set(types.AttrOAuth2RsTokenKey, value.NewSecret(hex.EncodeToString(buf)))
		}

		if sm, ok := c.Get(types.AttrOAuth2RsScopeMap); ok {
			for _, m := range sm.ScopeMaps() {
				if len(m.Scopes) == 0 {
					return fmt.Errorf("scope map for group %s grants no scopes", m.Refer)
				}
			}
		}
	}
	return nil
}
