package access

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeIdentity trims and lower-cases an email and reports whether it
// is well formed.  Every map in this package is keyed by the normalized form.
func NormalizeIdentity(email string) (string, bool) {
	e := strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(e) {
		return "", false
	}
	return e, true
}

// MaskEmail hides an email for logs and shared responses: first character,
// stars, last character, domain.  Local parts of two characters or fewer
// keep only the first character.
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if len(email) < 3 || at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return local[:1] + "*" + domain
	}
	return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + domain
}
