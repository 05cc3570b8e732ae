package auth

import "strings"

// emailRule folds a lowercased local part for one mail domain and returns
// the canonical local part and domain.
type emailRule func(local string) (string, string)

// gmailRule drops "+tag" suffixes and dots, and maps googlemail.com onto gmail.com.
func gmailRule(local string) (string, string) {
	if i := strings.IndexByte(local, '+'); i >= 0 {
		local = local[:i]
	}
	return strings.ReplaceAll(local, ".", ""), "gmail.com"
}

// emailRules is keyed by lowercase domain. Changing a rule changes stored
// keys, so existing rows must be backfilled alongside it.
var emailRules = map[string]emailRule{
	"gmail.com":      gmailRule,
	"googlemail.com": gmailRule,
}

// NormalizeEmail returns the matching key for an email address.
// Empty input yields "", which callers must treat as absent.
// Input without an "@" is returned lowercased and otherwise untouched.
func NormalizeEmail(email string) string {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return ""
	}

	at := strings.LastIndexByte(e, '@')
	if at < 0 {
		return e
	}

	local, domain := e[:at], e[at+1:]
	rule, ok := emailRules[domain]
	if !ok {
		return e
	}

	local, domain = rule(local)
	return local + "@" + domain
}
