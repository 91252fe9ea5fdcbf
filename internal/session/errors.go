package session

import "errors"

var (
	// ErrNoCredential means the request carried neither a session cookie nor a bearer token.
	ErrNoCredential = errors.New("no session credential")
	// ErrInvalidCredential means the credential was present but did not verify.
	ErrInvalidCredential = errors.New("invalid session credential")
	// ErrRevoked means the credential verified but its token id is on the revocation list.
	ErrRevoked = errors.New("session credential revoked")
)
