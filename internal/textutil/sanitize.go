package textutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyName reports a name that sanitizes to nothing usable.
var ErrEmptyName = errors.New("could not derive file name")

// unsafeFileRune matches everything outside the allowed file name alphabet:
// letters, digits, underscore, whitespace, and - . % { } [ ] 【 】 「 」.
var unsafeFileRune = regexp.MustCompile(`[^-\p{L}\p{N}_.%{}\[\]【】「」\s\v\p{Z}]`)

// ValidFileName strips every character outside the allowed alphabet. Spaces
// are preserved; path separators never survive. The result is rejected when it
// is empty, "." or "..". Applying it twice yields the same value.
func ValidFileName(name string) (string, error) {
	cleaned := unsafeFileRune.ReplaceAllString(norm.NFC.String(name), "")
	switch cleaned {
	case "", ".", "..":
		return "", fmt.Errorf("%w from %q", ErrEmptyName, name)
	}
	return cleaned, nil
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
