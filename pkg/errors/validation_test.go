package errors

import (
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"numeric", "101", false},
		{"alnum", "walter-johnson", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 129), true},
		{"control char", "ab\x07", true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("ValidateID(%q) code = %v, want %v", tt.id, GetCode(err), ErrCodeInvalidInput)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"relative", "data/clusters.topojson", false},
		{"absolute", "/srv/data/capacity.csv", false},
		{"empty", "", true},
		{"null byte", "data\x00.csv", true},
		{"too long", strings.Repeat("a", 501), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.org/data/capacity.csv", false},
		{"http://localhost:8080/clusters.topojson", false},
		{"ftp://example.org/file", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestValidateLocation(t *testing.T) {
	if err := ValidateLocation("https://example.org/a.csv"); err != nil {
		t.Errorf("URL location should pass: %v", err)
	}
	if err := ValidateLocation("data/a.csv"); err != nil {
		t.Errorf("path location should pass: %v", err)
	}
	if err := ValidateLocation(""); err == nil {
		t.Error("empty location should fail")
	}
}

func TestValidateYear(t *testing.T) {
	tests := []struct {
		year    string
		wantErr bool
	}{
		{"2016", false},
		{"1999", false},
		{"16", true},
		{"20166", true},
		{"twenty", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateYear(tt.year)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateYear(%q) error = %v, wantErr %v", tt.year, err, tt.wantErr)
		}
		if err != nil && !Is(err, ErrCodeInvalidYear) {
			t.Errorf("ValidateYear(%q) code = %v", tt.year, GetCode(err))
		}
	}
}
