package credentials

import (
	"strings"
	"testing"
)

func TestGenerateInviteCode(t *testing.T) {
	code, err := GenerateInviteCode("TXTEST-DEMO", "Emma", "S", 5)
	if err != nil {
		t.Fatalf("GenerateInviteCode() error = %v", err)
	}

	parts := strings.Split(code, "-")
	if len(parts) != InviteCodeSegments {
		t.Fatalf("expected %d segments, got %d (%s)", InviteCodeSegments, len(parts), code)
	}

	if parts[0] != "TXTEST" || parts[1] != "DEMO" {
		t.Errorf("school segments = %s-%s, want TXTEST-DEMO", parts[0], parts[1])
	}
	if parts[2] != "EMMAS5" {
		t.Errorf("student segment = %s, want EMMAS5", parts[2])
	}
	if len(parts[3]) != 8 {
		t.Errorf("suffix length = %d, want 8", len(parts[3]))
	}
}

func TestGenerateInviteCodeSuffixVaries(t *testing.T) {
	first, err := GenerateInviteCode("TXTEST-DEMO", "Emma", "S", 5)
	if err != nil {
		t.Fatalf("GenerateInviteCode() error = %v", err)
	}
	second, err := GenerateInviteCode("TXTEST-DEMO", "Emma", "S", 5)
	if err != nil {
		t.Fatalf("GenerateInviteCode() error = %v", err)
	}
	if first == second {
		t.Errorf("two generated codes are identical: %s", first)
	}
}

func TestValidInviteCodeFormat(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		valid bool
	}{
		{name: "well formed", code: "TXTEST-DEMO-EMMAS5TEST-A1B2C3D4", valid: true},
		{name: "too few segments", code: "TXTEST-DEMO-EMMAS5", valid: false},
		{name: "too many segments", code: "TX-TEST-DEMO-EMMAS5-A1B2C3D4", valid: false},
		{name: "empty segment", code: "TXTEST--EMMAS5-A1B2C3D4", valid: false},
		{name: "empty string", code: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidInviteCodeFormat(tt.code); got != tt.valid {
				t.Errorf("ValidInviteCodeFormat(%q) = %v, want %v", tt.code, got, tt.valid)
			}
		})
	}
}

func TestGenerateStudentSignInCode(t *testing.T) {
	if got := GenerateStudentSignInCode("Emma", "S", 5); got != "EmmaS5" {
		t.Errorf("GenerateStudentSignInCode() = %s, want EmmaS5", got)
	}
}
