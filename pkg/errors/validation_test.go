package errors

import (
	"strings"
	"testing"
)

func TestValidateProjectName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "family", false},
		{"valid with spaces", "Banu Hashim tree", false},
		{"valid arabic", "شجرة العائلة", false},

		{"empty", "", true},
		{"whitespace", "   ", true},
		{"too long", strings.Repeat("a", MaxProjectNameLength+1), true},
		{"null byte", "foo\x00bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProjectName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProjectName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("code = %v, want %v", GetCode(err), ErrCodeInvalidInput)
			}
		})
	}
}

func TestValidateColor(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", false},
		{"short", "#fff", false},
		{"long", "#A0b1C2", false},

		{"no hash", "ffffff", true},
		{"named", "red", true},
		{"too long", "#fffffff", true},
		{"bad digit", "#ggg", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateColor(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateColor(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "tree.csv", false},
		{"absolute", "/home/user/tree.csv", false},

		{"empty", "", true},
		{"null byte", "tree\x00.csv", true},
		{"control", "tree\x01.csv", true},
		{"too long", strings.Repeat("a", 5000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
