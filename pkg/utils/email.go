package utils

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsAllowedDomain reports whether email ends with one of the allowed
// institutional suffixes. Matching is case-insensitive.
func IsAllowedDomain(email string, domains []string) bool {
	e := strings.ToLower(strings.TrimSpace(email))
	for _, d := range domains {
		if strings.HasSuffix(e, strings.ToLower(d)) {
			return true
		}
	}
	return false
}

// ValidateEmail checks format first, then the domain allowlist.
// Returns an empty string when the email is acceptable.
func ValidateEmail(email string, domains []string) string {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return "Invalid email format"
	}
	if !IsAllowedDomain(email, domains) {
		return "Only CSPC email addresses (@cspc.edu.ph or @my.cspc.edu.ph) are allowed"
	}
	return ""
}

// EmailDomain returns the allowlisted suffix email falls under, or ""
// when none matches.
func EmailDomain(email string, domains []string) string {
	e := strings.ToLower(strings.TrimSpace(email))
	for _, d := range domains {
		if strings.HasSuffix(e, strings.ToLower(d)) {
			return d
		}
	}
	return ""
}

// HasLetter returns true if s contains at least one ASCII letter (a-zA-Z)
func HasLetter(s string) bool {
	for _, r := range s {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			return true
		}
	}
	return false
}

// HasNumber returns true if s contains at least one ASCII digit (0-9)
func HasNumber(s string) bool {
	for _, r := range s {
		if '0' <= r && r <= '9' {
			return true
		}
	}
	return false
}
