package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidYear, "year must be four digits: %q", "16")

	if err.Code != ErrCodeInvalidYear {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidYear)
	}
	want := `INVALID_YEAR: year must be four digits: "16"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeNetwork, cause, "fetch %s", "https://example.org/clusters.json")

	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	want := "NETWORK_ERROR: fetch https://example.org/clusters.json: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCodes(t *testing.T) {
	school := New(ErrCodeSchoolNotFound, "unknown school %q", "999")
	wrapped := fmt.Errorf("focus: %w", school)

	tests := []struct {
		name     string
		err      error
		code     Code
		is       bool
		notFound bool
		message  string
	}{
		{"direct", school, ErrCodeSchoolNotFound, true, true, `unknown school "999"`},
		{"wrapped by fmt", wrapped, ErrCodeSchoolNotFound, true, true, `unknown school "999"`},
		{"other code", New(ErrCodeNoSelection, "select a cluster first"), ErrCodeNoSelection, true, false, "select a cluster first"},
		{"plain error", errors.New("boom"), "", false, false, "boom"},
		{"session", New(ErrCodeSessionNotFound, "expired"), ErrCodeSessionNotFound, true, true, "expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.code {
				t.Errorf("GetCode() = %q, want %q", got, tt.code)
			}
			if got := Is(tt.err, tt.code); got != tt.is {
				t.Errorf("Is(%q) = %v, want %v", tt.code, got, tt.is)
			}
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.notFound)
			}
			if got := UserMessage(tt.err); got != tt.message {
				t.Errorf("UserMessage() = %q, want %q", got, tt.message)
			}
		})
	}

	if Is(nil, ErrCodeInternal) || GetCode(nil) != "" {
		t.Error("nil error should carry no code")
	}
}
