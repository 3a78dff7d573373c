package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxProjectNameLength bounds session names.
const MaxProjectNameLength = 128

// ValidateProjectName validates a project name used as a session key.
//
// Validation rules:
//   - No empty or whitespace-only names
//   - No control characters
//   - Maximum length of [MaxProjectNameLength] runes
func ValidateProjectName(name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidInput, "project name cannot be empty")
	}

	if len([]rune(name)) > MaxProjectNameLength {
		return New(ErrCodeInvalidInput, "project name too long (max %d characters)", MaxProjectNameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "project name contains invalid control characters")
		}
	}

	return nil
}

// colorRegex matches #rgb and #rrggbb hex colors.
var colorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidateColor validates a hex color. The empty string is accepted and
// means "use the default".
func ValidateColor(color string) error {
	if color == "" {
		return nil
	}
	if !colorRegex.MatchString(color) {
		return New(ErrCodeInvalidInput, "invalid color %q (want #rgb or #rrggbb)", color)
	}
	return nil
}

// ValidatePath validates a file path given on the command line or in a
// request.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
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
