// Package auth verifies the bearer credentials clients present when
// authenticating a live connection. The hub only depends on the Verifier
// interface; token issuance belongs to the identity provider, not this
// process (the CLI ships a dev-only minting helper).
package auth

import (
	"context"
	"errors"
)

// ErrInvalidCredential is returned when a credential fails verification for
// any reason: bad signature, expired, malformed, or unknown subject.
var ErrInvalidCredential = errors.New("invalid credential")

// Verifier validates a bearer credential and returns the owning account ID.
type Verifier interface {
	Verify(ctx context.Context, credential string) (accountID string, err error)
}
