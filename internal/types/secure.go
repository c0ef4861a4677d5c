package types

// redactedPlaceholder replaces secret values in logs and serialized output.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a credential (provider auth token, account SID) and
// renders as a placeholder through fmt and encoding/json. Call Unmask only at
// the point the raw value is handed to the provider client.
type SecretString string

// String returns the redacted placeholder.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether a non-empty value is present.
func (s SecretString) IsSet() bool {
	return s != ""
}
