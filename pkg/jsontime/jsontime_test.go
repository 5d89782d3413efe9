package jsontime

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMilli_RoundTrip(t *testing.T) {
	tm := time.Date(2024, 6, 1, 18, 45, 0, 0, time.UTC)
	ep := Milli(tm)

	data, err := json.Marshal(ep)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(data) != "1717267500000" {
		t.Errorf("Marshal = %s, want 1717267500000", data)
	}

	var back Milli
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !back.Equal(ep) {
		t.Errorf("round trip = %v, want %v", back.Time(), tm)
	}
}

func TestMilli_UnmarshalJSON_Invalid(t *testing.T) {
	var ep Milli
	if err := json.Unmarshal([]byte(`"not a number"`), &ep); err == nil {
		t.Error("expected error for string input")
	}
}

func TestMilli_SubAdd(t *testing.T) {
	base := Milli(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	later := base.Add(90 * time.Second)

	if got := later.Sub(base); got != 90*time.Second {
		t.Errorf("Sub = %v, want 90s", got)
	}
	if !later.After(base) || !base.Before(later) {
		t.Error("After/Before ordering wrong")
	}
}

func TestDurationMS_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "0"},
		{"ninety_seconds", 90 * time.Second, "90000"},
		{"one_hour", time.Hour, "3600000"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(DurationMS(tc.d))
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}
			if string(data) != tc.want {
				t.Errorf("Marshal = %s, want %s", data, tc.want)
			}

			var back DurationMS
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}
			if back.Duration() != tc.d {
				t.Errorf("round trip = %v, want %v", back.Duration(), tc.d)
			}
		})
	}
}

func TestDurationMS_UnmarshalJSON_Null(t *testing.T) {
	d := DurationMS(time.Second)
	if err := json.Unmarshal([]byte("null"), &d); err != nil {
		t.Fatalf("Unmarshal null error: %v", err)
	}
	if d.Duration() != time.Second {
		t.Errorf("null should leave value untouched, got %v", d.Duration())
	}
}
