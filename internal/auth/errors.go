package auth

import "errors"

var (
	// ErrAuthenticationFailed covers bad credentials. It deliberately carries
	// no detail about which of username or password was wrong.
	ErrAuthenticationFailed = errors.New("auth: authentication failed")

	// ErrInvalidToken indicates a malformed token, a bad signature, or an
	// unexpected signing algorithm.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrTokenExpired indicates an expired or already-rotated refresh token.
	// Mismatch and expiry share this error so responses cannot be used as an
	// oracle to distinguish "expired" from "stolen".
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrUnauthorized indicates a policy denied the request.
	ErrUnauthorized = errors.New("auth: unauthorized")

	ErrConflict     = errors.New("auth: already exists")
	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")
)
