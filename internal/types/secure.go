package types

const redactedPlaceholder = "***REDACTED***"

// SecretString holds a credential (database URL, push access token, Redis
// password) that must never appear in logs or JSON. fmt and encoding/json
// both see the redacted placeholder; Unmask returns the raw value for the
// driver or client that needs it.
type SecretString string

// String implements fmt.Stringer.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON implements json.Marshaler.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// Unmask returns the plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether a non-empty value was configured.
func (s SecretString) IsSet() bool {
	return s != ""
}
