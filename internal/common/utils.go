package common

import "strings"

// HasAny returns true if s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Present reports whether s holds something other than whitespace.
func Present(s string) bool {
	return strings.TrimSpace(s) != ""
}

// Boolify parses "true"/"false" in any case. ok is false for anything else.
func Boolify(s string) (value bool, ok bool) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, true
	case strings.EqualFold(s, "false"):
		return false, true
	default:
		return false, false
	}
}
