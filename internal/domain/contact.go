package domain

import "strings"

const (
	minContactDigits = 10
	maxContactDigits = 15
)

// NormalizeContact drops the separators people type into phone numbers.
func NormalizeContact(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, s)
}

// ValidContact reports whether s is an already normalized phone number.
func ValidContact(s string) bool {
	if len(s) < minContactDigits || len(s) > maxContactDigits {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
