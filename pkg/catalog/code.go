package catalog

import (
	"strings"
	"unicode"
)

// SplitCourseCode splits "HOSF 9489" into its department prefix and course
// number. ok is false unless the code has the form "<3-4 letters> <digits>";
// in that case prefix is the input and number is empty.
func SplitCourseCode(code string) (prefix, number string, ok bool) {
	p, n, found := strings.Cut(code, " ")
	if !found || !isAlpha(p) || len(p) < 3 || len(p) > 4 || !isDigits(n) {
		return code, "", false
	}
	return p, n, true
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
