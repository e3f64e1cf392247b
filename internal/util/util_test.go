package util

import (
	"strings"
	"testing"
)

func TestParseBoolEnv(t *testing.T) {
	const key = "HABITPING_TEST_BOOL"

	tests := []struct {
		value    string
		def      bool
		expected bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
		{"maybe", false, false},
		{" true ", false, true},
	}

	for _, tt := range tests {
		t.Setenv(key, tt.value)
		if got := ParseBoolEnv(key, tt.def); got != tt.expected {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.expected)
		}
	}
}

func TestGenerateRandomHex(t *testing.T) {
	hex := GenerateRandomHex(16)
	if len(hex) != 16 {
		t.Errorf("expected 16 characters, got %d", len(hex))
	}
	for _, r := range hex {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Errorf("non-hex character %q in %q", r, hex)
		}
	}
	if GenerateRandomHex(0) != "" {
		t.Error("zero length should return empty string")
	}
	if GenerateRandomHex(-3) != "" {
		t.Error("negative length should return empty string")
	}
}

func TestGenerateRandomID(t *testing.T) {
	id := GenerateRandomID("chart-", 8)
	if !strings.HasPrefix(id, "chart-") || len(id) != len("chart-")+8 {
		t.Errorf("unexpected id format: %q", id)
	}
}

func TestGenerateTempSuffixDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := GenerateTempSuffix()
		if len(s) != 8 {
			t.Fatalf("suffix length = %d, want 8", len(s))
		}
		seen[s] = true
	}
	if len(seen) < 2 {
		t.Error("suffixes do not vary")
	}
}
