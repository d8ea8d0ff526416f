package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for a wrong password and for an
	// unknown email alike; callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidToken covers malformed tokens, bad signatures, expired
	// tokens and tokens bound to missing or revoked sessions.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrWrongTokenType is returned when an access token is presented where
	// a refresh token is expected, or vice versa.
	ErrWrongTokenType = errors.New("auth: wrong token type")

	// ErrTokenReuse signals that a superseded refresh token was presented
	// again. Handling it revokes the whole session.
	ErrTokenReuse = errors.New("auth: refresh token reuse detected")

	ErrDuplicate    = errors.New("auth: already exists")
	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrUnauthorized = errors.New("auth: unauthorized")

	// errStaleJTI is the session store's report that a compare-and-swap on
	// the live jti found a different value. The service maps it to the
	// reuse path.
	errStaleJTI = errors.New("auth: stale refresh jti")
)
