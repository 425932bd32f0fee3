package plugins

import (
	"fmt"

	"github.com/cuemby/warden/pkg/credential"
	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// credAdjustTransform normalises stored credentials on the way through a
// write: legacy pre-v2 formats are upgraded to the newest format that can
// represent them, preserving their uuid. A webauthn-only legacy credential
// has no password and cannot be normalised; it is left untouched rather
// than aborting an otherwise unrelated write.
func credAdjustTransform(t TxnView, cands []*entry.Invalid, ident types.Identity) error {
	for _, c := range cands {
		set, ok := c.Get(types.AttrPrimaryCredential)
		if !ok {
			continue
		}
		creds := set.Credentials()
		changed := false
		out := make([]credential.Tagged, 0, len(creds))
		for _, tc := range creds {
			if tc.Cred == nil {
				return fmt.Errorf("entry %s has an empty credential slot", c.UUID())
			}
			if !tc.Cred.IsLegacy() {
				out = append(out, tc)
				continue
			}
			up, err := tc.Cred.Normalise()
			if err != nil {
				if tc.Cred.Kind() == credential.KindWn {
					// Keeps decoding until an administrator sets a password.
					out = append(out, tc)
					continue
				}
				return err
			}
			out = append(out, credential.Tagged{Tag: tc.Tag, Cred: up})
			changed = true
		}
		if changed {
			c.Set(types.AttrPrimaryCredential, value.NewCredential(out...))
		}
	}
	return nil
}
