// Package redact masks credential-bearing values before they reach logs.
package redact

import (
	"regexp"
	"strings"
)

// Mask replaces every redacted value.
const Mask = "[REDACTED]"

var sensitiveFragments = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"credential",
	"authorization",
	"cookie",
}

var (
	// key=value, key: value and "key":"value" forms
	inlinePattern = regexp.MustCompile(
		`(?i)("?[a-z_\-]*(?:password|passwd|pwd|_pw|token|secret|credential)"?\s*[:=]\s*"?)([^\s"',&}]+)`,
	)
	jwtPattern    = regexp.MustCompile(`eyJ[A-Za-z0-9_\-]+\.eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+`)
	bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9_\-\.=]+`)
)

// IsSensitiveKey reports whether a field name alone marks its value as secret.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if k == "pw" || k == "pwd" || strings.HasSuffix(k, "_pw") {
		return true
	}
	for _, f := range sensitiveFragments {
		if strings.Contains(k, f) {
			return true
		}
	}
	return false
}

// pairedLogin reports whether key is the login half of an id/pw pair
// present in fields, e.g. naver_id next to naver_pw.
func pairedLogin(key string, fields map[string]any) bool {
	k := strings.ToLower(key)
	if !strings.HasSuffix(k, "_id") {
		return false
	}
	prefix := strings.TrimSuffix(k, "_id")
	for other := range fields {
		o := strings.ToLower(other)
		if o == prefix+"_pw" || o == prefix+"_password" {
			return true
		}
	}
	return false
}

// Fields returns a copy of fields with sensitive values masked.
// Nested maps are walked; errors and strings are scrubbed with Text.
func Fields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if IsSensitiveKey(k) || pairedLogin(k, fields) {
			out[k] = Mask
			continue
		}

		switch val := v.(type) {
		case map[string]any:
			out[k] = Fields(val)
		case map[string]string:
			nested := make(map[string]any, len(val))
			for nk, nv := range val {
				nested[nk] = nv
			}
			out[k] = Fields(nested)
		case error:
			out[k] = Text(val.Error())
		case string:
			out[k] = Text(val)
		default:
			out[k] = v
		}
	}
	return out
}

// Text scrubs inline secrets from free-form text such as error messages.
func Text(s string) string {
	if s == "" {
		return s
	}
	s = jwtPattern.ReplaceAllString(s, Mask)
	s = bearerPattern.ReplaceAllString(s, "${1}"+Mask)
	return inlinePattern.ReplaceAllString(s, "${1}"+Mask)
}
