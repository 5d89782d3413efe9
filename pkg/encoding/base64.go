// Package encoding provides JSON-serializable byte-slice types.
package encoding

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// Base64Bytes is a byte slice that serializes to/from standard base64 in
// JSON. Camera snapshot payloads carry their JPEG bytes this way.
type Base64Bytes []byte

// MarshalJSON implements json.Marshaler.
func (b Base64Bytes) MarshalJSON() ([]byte, error) {
	return []byte(`"` + base64.StdEncoding.EncodeToString(b) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Base64Bytes) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return errors.New("unmarshal base64 bytes: empty data")
	}
	switch data[0] {
	case 'n': // null
		return nil
	case '"':
		if len(data) < 2 || data[len(data)-1] != '"' {
			return errors.New("unmarshal base64 bytes: invalid string")
		}
		decoded, err := base64.StdEncoding.DecodeString(string(data[1 : len(data)-1]))
		if err != nil {
			return err
		}
		*b = decoded
		return nil
	default:
		return fmt.Errorf("invalid base64 bytes: %s", string(data))
	}
}

// String returns the base64-encoded string representation.
func (b Base64Bytes) String() string {
	return base64.StdEncoding.EncodeToString(b)
}
