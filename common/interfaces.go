package common

// CredentialStore defines the interface for secret storage.
// Implementations may use system keyring, encrypted files, etc.
type CredentialStore interface {
	// Store saves a secret under key.
	Store(key string, secret Secret) error
	// Get retrieves the secret stored under key.
	Get(key string) (Secret, error)
	// Delete removes the secret stored under key.
	Delete(key string) error
}

// Logger defines the interface for leveled logging.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}
