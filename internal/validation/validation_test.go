package validation

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "valid email", email: "parent@example.com", wantErr: false},
		{name: "valid with plus", email: "parent+kids@example.com", wantErr: false},
		{name: "empty", email: "", wantErr: true},
		{name: "missing domain", email: "parent@", wantErr: true},
		{name: "missing at", email: "parent.example.com", wantErr: true},
		{name: "whitespace only", email: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid", password: "longenough", wantErr: false},
		{name: "too short", password: "short", wantErr: true},
		{name: "empty", password: "", wantErr: true},
		{name: "exactly eight", password: "12345678", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestValidateGrade(t *testing.T) {
	tests := []struct {
		name    string
		grade   int
		wantErr bool
	}{
		{name: "kindergarten", grade: 0, wantErr: false},
		{name: "fifth", grade: 5, wantErr: false},
		{name: "twelfth", grade: 12, wantErr: false},
		{name: "negative", grade: -1, wantErr: true},
		{name: "too high", grade: 13, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGrade(tt.grade)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGrade(%d) error = %v, wantErr %v", tt.grade, err, tt.wantErr)
			}
		})
	}
}
