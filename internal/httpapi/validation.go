package httpapi

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	minNameLen      = 2
	maxNameLen      = 100
	maxTextFieldLen = 500
)

func validName(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < minNameLen || n > maxNameLen {
		return false
	}
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
		case r == ' ', r == '-', r == '\'':
		default:
			return false
		}
	}
	return true
}

// fieldSanitizer reduces free-text profile fields to plain text. The output
// stays HTML-escaped, so entity-encoded markup never comes back as live tags.
type fieldSanitizer struct {
	policy *bluemonday.Policy
}

func newFieldSanitizer() *fieldSanitizer {
	return &fieldSanitizer{policy: bluemonday.StrictPolicy()}
}

func (s *fieldSanitizer) Text(in string) string {
	out := s.policy.Sanitize(in)
	out = strings.Join(strings.Fields(out), " ")
	if utf8.RuneCountInString(out) > maxTextFieldLen {
		out = string([]rune(out)[:maxTextFieldLen])
	}
	return out
}
