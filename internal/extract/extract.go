// Package extract finds structured contact identifiers (emails, phone
// numbers) in free-form message text.
package extract

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)

// phonePatterns are tried in order, most specific first. The first pattern
// that matches anywhere in the text wins; later patterns are never consulted.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+\d{1,4}(?:[\s\-]?\d){6,14}`),  // international
	regexp.MustCompile(`\(\d{3}\)\s?\d{3}[\s\-]?\d{4}`), // (xxx) xxx-xxxx
	regexp.MustCompile(`\d{3}[\s\-]?\d{3}[\s\-]?\d{4}`), // xxx-xxx-xxxx
	regexp.MustCompile(`\d{10,15}`),                     // bare digit run
}

// phoneJunk matches every character that is not part of a cleaned phone
// number. A leading + is preserved separately.
var phoneJunk = regexp.MustCompile(`[^\d\s\-\(\)\+]`)

// FindEmail returns the first email address in text.
func FindEmail(text string) (string, bool) {
	m := emailPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return m, true
}

// FindPhone returns the first phone number in text, trying the pattern list
// in priority order.
func FindPhone(text string) (string, bool) {
	for _, p := range phonePatterns {
		if m := p.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}

// NormalizePhone strips everything from raw except digits, spaces,
// parentheses, hyphens and a leading plus sign. Any non-empty residue is
// accepted; length policy is enforced by the store, not here.
func NormalizePhone(raw string) (string, bool) {
	cleaned := strings.TrimSpace(phoneJunk.ReplaceAllString(raw, ""))
	// Interior plus signs are junk; only a leading one is meaningful.
	if i := strings.IndexByte(cleaned, '+'); i > 0 {
		cleaned = strings.ReplaceAll(cleaned, "+", "")
	} else if i == 0 {
		cleaned = "+" + strings.ReplaceAll(cleaned[1:], "+", "")
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" || cleaned == "+" {
		return "", false
	}
	return cleaned, true
}
