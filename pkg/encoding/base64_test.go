package encoding

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestBase64Bytes_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", []byte{}},
		{"ascii", []byte("hello")},
		{"binary", []byte{0x00, 0xff, 0x10, 0x80}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(Base64Bytes(tc.in))
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}

			var back Base64Bytes
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}
			if !bytes.Equal(back, tc.in) {
				t.Errorf("round trip = %v, want %v", []byte(back), tc.in)
			}
		})
	}
}

func TestBase64Bytes_UnmarshalJSON_Null(t *testing.T) {
	b := Base64Bytes("keep")
	if err := json.Unmarshal([]byte("null"), &b); err != nil {
		t.Fatalf("Unmarshal null error: %v", err)
	}
	if string(b) != "keep" {
		t.Errorf("null should leave value untouched, got %q", b)
	}
}

func TestBase64Bytes_UnmarshalJSON_Invalid(t *testing.T) {
	var b Base64Bytes
	for _, in := range []string{``, `123`, `"not base64!!!"`} {
		if err := json.Unmarshal([]byte(in), &b); err == nil && in != "" {
			t.Errorf("expected error for %q", in)
		}
	}
}
