package types

import "log/slog"

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds credentials (database and Redis URLs carry passwords)
// and renders as a placeholder through fmt, encoding/json and slog.
//
// Use Unmask() when the raw value must be handed to a driver.
type SecretString string

// String returns a redacted placeholder instead of the raw value. fmt
// verbs and anything else that relies on fmt.Stringer go through here.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON encodes the redacted placeholder as a JSON string, so secrets
// never reach serialized config dumps, API responses or log entries.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// LogValue keeps the raw value out of structured log records.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// IsZero reports whether no secret was configured.
func (s SecretString) IsZero() bool {
	return s == ""
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string {
	return string(s)
}
