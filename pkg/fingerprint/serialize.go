package fingerprint

import "fmt"

// MarshalText renders the key as its hex representation
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a hex encoded key
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := KeyFromString(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalYAML renders the key as its hex representation
func (k Key) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// UnmarshalYAML parses a hex encoded key
func (k *Key) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var repr string
	if err := unmarshal(&repr); err != nil {
		return fmt.Errorf("fingerprint key: %v", err)
	}
	return k.UnmarshalText([]byte(repr))
}
