package hub

import "errors"

// Operation failures reported to the originating connection. None of these
// are ever broadcast to other subscribers.
var (
	// ErrAuthenticationFailed covers a rejected credential or a verified
	// account that does not match the claimed account ID.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrUnauthenticated is returned when a connection attempts any
	// operation before completing authentication.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrAccessDenied is returned for a join request on a channel the
	// account holds no membership for.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotAMember is returned for a send or typing event on a channel the
	// connection is not subscribed to.
	ErrNotAMember = errors.New("not a member of this channel")

	// ErrPersistence is returned when the membership store rejects a write.
	// The triggering send is aborted entirely; nothing is broadcast.
	ErrPersistence = errors.New("persistence error")
)

// Wire error codes for the error taxonomy.
const (
	CodeAuthenticationFailed = "authentication_failed"
	CodeUnauthenticated      = "unauthenticated"
	CodeAccessDenied         = "access_denied"
	CodeNotAMember           = "not_a_member"
	CodePersistence          = "persistence_error"
	CodeInvalidPayload       = "invalid_payload"
	CodeInternal             = "internal"
)

// errorCode maps a failure to its wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuthenticationFailed):
		return CodeAuthenticationFailed
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrAccessDenied):
		return CodeAccessDenied
	case errors.Is(err, ErrNotAMember):
		return CodeNotAMember
	case errors.Is(err, ErrPersistence):
		return CodePersistence
	default:
		return CodeInternal
	}
}
