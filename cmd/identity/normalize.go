package identity

import (
	"regexp"
	"strings"
)

var rollNumberRe = regexp.MustCompile(`^\d{2}ERW[A-Z]{2,3}\d{3}$`)

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeRollNumber trims and upper-cases a college roll number.
func NormalizeRollNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidRollNumber reports whether s (already normalized) looks like
// "23ERWCS029": two-digit year, "ERW", a 2-3 letter department code and a
// three-digit sequence.
func ValidRollNumber(s string) bool {
	return rollNumberRe.MatchString(s)
}
