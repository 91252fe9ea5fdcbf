package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, sinks and external
// validators return these (optionally wrapped) so callers can branch with
// errors.Is without knowing which backend produced them.
//
//   - ErrNotFound: entity does not exist in the backing store
//   - ErrExpired: credential or session is past its expiry
//   - ErrInvalidState: value is malformed or in the wrong state for the operation
//   - ErrUnavailable: backend or upstream temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
