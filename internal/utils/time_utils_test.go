package utils

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		timeString string
		expected   time.Duration
	}{
		{"10s", 10 * time.Second},
		{"20M", 20 * time.Minute},
		{"48h", 48 * time.Hour},
		{"2d", 2 * time.Hour * 24},
		{" 0s ", 0},
		{"1m30s", 90 * time.Second},
		{"250ms", 250 * time.Millisecond},
	}

	for _, test := range tests {
		result, err := ParseDuration(test.timeString)
		if err != nil {
			t.Errorf("ParseDuration(%q): unexpected error %v", test.timeString, err)
			continue
		}
		if result != test.expected {
			t.Errorf("ParseDuration(%q): expected %v, got %v", test.timeString, test.expected, result)
		}
	}
}

func TestParseDurationInvalid(t *testing.T) {
	for _, s := range []string{"", "abc", "10x", "-5s", "s"} {
		if _, err := ParseDuration(s); err == nil {
			t.Errorf("ParseDuration(%q): expected error", s)
		}
	}
}

func TestMustParseDuration(t *testing.T) {
	if d := MustParseDuration("bogus", 3*time.Second); d != 3*time.Second {
		t.Errorf("expected fallback, got %v", d)
	}
	if d := MustParseDuration("2d", 0); d != 48*time.Hour {
		t.Errorf("expected 48h, got %v", d)
	}
}
