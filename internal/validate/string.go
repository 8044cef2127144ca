// Package validate provides input validation for names, synonyms and other
// strings that enter the service through the HTTP API.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

var (
	iconPattern     = regexp.MustCompile(`^[a-z0-9][a-z0-9 \-]*$`)
	functionPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowControl   bool           // Whether control characters (newlines, tabs, NUL) are allowed
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidCharacters)
	}

	// Character count, not byte count
	length := utf8.RuneCountInString(s)
	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if !constraints.AllowControl && strings.IndexFunc(s, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%w: control characters are not allowed", ErrInvalidCharacters)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// LocationName validates a location name:
// - 1-100 characters after trimming
// - No control characters
// Case is preserved; names are matched case-sensitively.
func LocationName(name string) (string, error) {
	return String(name, StringConstraints{
		MinLength: 1,
		MaxLength: 100,
		TrimSpace: true,
	})
}

// Synonym validates a location synonym. Same rules as LocationName.
func Synonym(synonym string) (string, error) {
	return String(synonym, StringConstraints{
		MinLength: 1,
		MaxLength: 100,
		TrimSpace: true,
	})
}

// PageIcon validates an icon class list such as "fas fa-biohazard":
// - 1-64 characters
// - Lowercase letters, digits, spaces and dashes
func PageIcon(icon string) (string, error) {
	return String(icon, StringConstraints{
		MinLength:      1,
		MaxLength:      64,
		AllowedPattern: iconPattern,
		TrimSpace:      true,
	})
}

// FunctionName validates a widget function name: an identifier of at most
// 64 characters starting with a letter.
func FunctionName(name string) (string, error) {
	return String(name, StringConstraints{
		MinLength:      1,
		MaxLength:      64,
		AllowedPattern: functionPattern,
	})
}
