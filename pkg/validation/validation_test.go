package validation

import (
	"strings"
	"testing"
)

func TestValidateStableID(t *testing.T) {
	tests := []struct {
		name     string
		stableID string
		wantErr  bool
	}{
		{"valid uuid", "3f0c3c0e-6a36-4f57-a1b2-6c1f2a0e9d11", false},
		{"valid with dots", "pixel.kitchen_01", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 129), true},
		{"spaces", "my phone", true},
		{"slash", "a/b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStableID(tt.stableID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStableID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConnectionID(t *testing.T) {
	tests := []struct {
		name    string
		connID  string
		wantErr bool
	}{
		{"valid", "0b6c1e34-9c2d-4a6e-8f00-1d2e3f4a5b6c", false},
		{"empty", "", true},
		{"invalid chars", "conn#1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConnectionID(tt.connID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConnectionID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRecordID(t *testing.T) {
	tests := []struct {
		name     string
		recordID string
		wantErr  bool
	}{
		{"valid", "1709294400000-a1b2", false},
		{"empty", "", true},
		{"no suffix", "1709294400000", true},
		{"path traversal", "../1709294400000-a1b2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecordID(tt.recordID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRecordID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	tests := []struct {
		name        string
		displayName string
		wantErr     bool
	}{
		{"valid", "Kitchen iPad", false},
		{"empty allowed", "", false},
		{"unicode", "Téléphone 📱", false},
		{"too long", strings.Repeat("a", 101), true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDisplayName(tt.displayName)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDisplayName() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePrompt(t *testing.T) {
	if err := ValidatePrompt("what is this?"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidatePrompt("   "); err == nil {
		t.Error("expected error for blank prompt")
	}
	if err := ValidatePrompt(strings.Repeat("x", 8001)); err == nil {
		t.Error("expected error for oversized prompt")
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid http", "http://localhost:11434", false},
		{"valid https", "https://generativelanguage.googleapis.com/v1beta", false},
		{"empty", "", true},
		{"invalid scheme", "ftp://example.com", true},
		{"no host", "http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStringLength(t *testing.T) {
	if err := ValidateStringLength("abc", 1, 5, "field"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateStringLength("", 1, 5, "field"); err == nil {
		t.Error("expected error for too short string")
	}
	if err := ValidateStringLength("abcdef", 1, 5, "field"); err == nil {
		t.Error("expected error for too long string")
	}
}
