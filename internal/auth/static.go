package auth

import "context"

// StaticVerifier maps fixed credentials to account IDs. Used in tests and
// local development.
type StaticVerifier struct {
	tokens map[string]string
}

// NewStaticVerifier builds a verifier from a credential -> accountID map.
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	copied := make(map[string]string, len(tokens))
	for k, v := range tokens {
		copied[k] = v
	}
	return &StaticVerifier{tokens: copied}
}

var _ Verifier = (*StaticVerifier)(nil)

func (v *StaticVerifier) Verify(ctx context.Context, credential string) (string, error) {
	accountID, ok := v.tokens[credential]
	if !ok {
		return "", ErrInvalidCredential
	}
	return accountID, nil
}
