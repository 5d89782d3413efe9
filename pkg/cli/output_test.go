package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type sampleResult struct {
	Room   string   `json:"room"`
	Timers []string `json:"timers"`
}

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	err := Output(sampleResult{Room: "home", Timers: []string{"pasta"}}, OutputOptions{
		Format: FormatJSON,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	var decoded sampleResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded.Room != "home" {
		t.Errorf("Room = %q", decoded.Room)
	}
}

func TestOutput_YAMLDefault(t *testing.T) {
	var buf bytes.Buffer
	err := Output(map[string]string{"room": "home"}, OutputOptions{Writer: &buf})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if !strings.Contains(buf.String(), "room: home") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestOutput_Raw(t *testing.T) {
	var buf bytes.Buffer
	if err := Output([]byte("binary"), OutputOptions{Format: FormatRaw, Writer: &buf}); err != nil {
		t.Fatalf("Output: %v", err)
	}
	if buf.String() != "binary" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestOutput_UnknownFormat(t *testing.T) {
	if err := Output("x", OutputOptions{Format: "csv", Writer: &bytes.Buffer{}}); err == nil {
		t.Error("unknown format should error")
	}
}

func TestOutput_JQ(t *testing.T) {
	result := sampleResult{Room: "home", Timers: []string{"pasta", "rice"}}

	tests := []struct {
		name string
		jq   string
		want []string
	}{
		{"field", ".room", []string{"home"}},
		{"iterate", ".timers[]", []string{"pasta", "rice"}},
		{"length", ".timers | length", []string{"2"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Output(result, OutputOptions{Format: FormatJSON, JQ: tc.jq, Writer: &buf})
			if err != nil {
				t.Fatalf("Output: %v", err)
			}
			var got []string
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				got = append(got, strings.Trim(line, `"`))
			}
			if len(got) != len(tc.want) {
				t.Fatalf("lines = %v; want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("line %d = %q; want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestOutput_JQInvalid(t *testing.T) {
	err := Output("x", OutputOptions{JQ: ".[", Writer: &bytes.Buffer{}})
	if err == nil {
		t.Error("invalid jq expression should error")
	}
}
