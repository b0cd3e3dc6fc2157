// Package identity validates participant addresses. Identities are base58
// encoded ed25519 public keys; privileged operations compare them by
// string equality.
package identity

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidIdentity is returned for malformed or off-curve identities.
var ErrInvalidIdentity = errors.New("invalid identity")

// Validate checks that s decodes to a 32-byte point on the ed25519 curve.
func Validate(s string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidIdentity, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidIdentity, len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("%w: point not on curve", ErrInvalidIdentity)
	}
	return nil
}

// Encode returns the canonical base58 form of a raw 32-byte public key.
func Encode(raw []byte) string {
	return base58.Encode(raw)
}
