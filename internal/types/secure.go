package types

const redacted = "***REDACTED***"

// SecretString holds a sensitive configuration value (API keys, connection
// strings). It redacts itself through fmt and JSON so a config dump or log
// line never carries the plaintext; call Unmask where the raw value is
// genuinely needed.
type SecretString string

// String returns the redacted placeholder. Invoked by fmt via the
// fmt.Stringer interface.
func (s SecretString) String() string {
	return redacted
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}
