package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateID validates a cluster or school identifier taken from user input
// (flags, URL path segments).
//
// The rules are conservative:
//   - No empty identifiers
//   - Maximum length of 128 characters
//   - No control characters or null bytes
//   - No path separators
func ValidateID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "identifier cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "identifier too long (max 128 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "identifier contains invalid control characters")
		}
	}

	if strings.ContainsAny(id, "/\\") {
		return New(ErrCodeInvalidInput, "identifier cannot contain path separators: %q", id)
	}

	return nil
}

// ValidatePath validates a local input or output file path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !IsURL(rawURL) {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// IsURL reports whether location looks like an http(s) URL rather than a
// local path.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// ValidateLocation validates an input resource location, which may be
// either an http(s) URL or a local path.
func ValidateLocation(location string) error {
	if IsURL(location) {
		return ValidateURL(location)
	}
	return ValidatePath(location)
}

var yearRegex = regexp.MustCompile(`^[0-9]{4}$`)

// ValidateYear validates a school-year key as found in the capacity table.
func ValidateYear(year string) error {
	if !yearRegex.MatchString(year) {
		return New(ErrCodeInvalidYear, "year must be four digits: %q", year)
	}
	return nil
}
