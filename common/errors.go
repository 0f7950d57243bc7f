// Package common provides shared constants, types, and utilities
// used across the VPN client.
package common

import "errors"

// Sentinel errors for session operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Session start rejections.
	ErrAlreadyConnected  = errors.New("can't connect, we're already connected")
	ErrAlreadyConnecting = errors.New("can't connect, we're already connecting")
	ErrQuitting          = errors.New("can't connect, we're quitting")

	ErrTimeout = errors.New("operation timed out")

	// Credential errors.
	ErrCredentialStorage = errors.New("failed to store credentials")
	ErrEncryption        = errors.New("encryption error")
	ErrDecryption        = errors.New("decryption error")

	// Configuration errors.
	ErrConfigLoad      = errors.New("failed to load configuration")
	ErrConfigSave      = errors.New("failed to save configuration")
	ErrInvalidLogLevel = errors.New("invalid log filter")

	ErrElevated = errors.New("the GUI should run as a normal user, not elevated")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
