package jsontime

import (
	"encoding/json"
	"time"
)

// DurationMS is a time.Duration that serializes to/from integer milliseconds
// in JSON. Timer durations on the wire use this representation so that
// non-Go peers never have to parse Go duration strings.
type DurationMS time.Duration

// Duration returns the underlying time.Duration value.
func (d DurationMS) Duration() time.Duration {
	return time.Duration(d)
}

// Milliseconds returns the duration as an integer number of milliseconds.
func (d DurationMS) Milliseconds() int64 {
	return time.Duration(d).Milliseconds()
}

// String returns the duration formatted as a string.
func (d DurationMS) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d DurationMS) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Milliseconds())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DurationMS) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return err
	}
	*d = DurationMS(time.Duration(ms) * time.Millisecond)
	return nil
}
