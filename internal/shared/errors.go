package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoSession occurs when the request carries no live session.
	ErrNoSession = errors.New("session not found")
	// ErrInactiveUser occurs when a disabled account tries to log in.
	ErrInactiveUser = errors.New("user inactive")
)
