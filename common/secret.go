package common

import (
	"crypto/subtle"
	"fmt"
)

const redacted = "<redacted>"

// Secret holds a sensitive string such as an auth token. Every formatting
// and serialization path prints a fixed placeholder; only Expose returns the
// underlying value.
type Secret struct {
	value string
}

// NewSecret wraps s.
func NewSecret(s string) Secret {
	return Secret{value: s}
}

// Expose returns the wrapped value.
func (s Secret) Expose() string {
	return s.value
}

// IsEmpty reports whether the secret holds no value.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}

// Equal compares two secrets in constant time.
func (s Secret) Equal(other Secret) bool {
	return subtle.ConstantTimeCompare([]byte(s.value), []byte(other.value)) == 1
}

func (s Secret) String() string {
	return redacted
}

// GoString covers %#v.
func (s Secret) GoString() string {
	return redacted
}

// Format covers every verb, including %+v inside structs.
func (s Secret) Format(f fmt.State, verb rune) {
	_, _ = f.Write([]byte(redacted))
}

// MarshalJSON never emits the value.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// MarshalYAML never emits the value.
func (s Secret) MarshalYAML() (interface{}, error) {
	return redacted, nil
}
