package security

import (
	"regexp"
	"strings"
)

// sensitiveFields contains field names whose values are always masked.
var sensitiveFields = map[string]bool{
	"api_key":      true,
	"apikey":       true,
	"secret":       true,
	"password":     true,
	"token":        true,
	"access_token": true,
	"credential":   true,
	"master_key":   true,
}

// sensitivePatterns find secrets embedded in URLs, headers and messages.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)((?:api[_-]?key|apikey|token|access[_-]?token|x-finnhub-token)=)([^&\s"']+)`),
	regexp.MustCompile(`(?i)((?:authorization|x-finnhub-token):\s*(?:token\s+|bearer\s+)?)([^\s"']+)`),
	regexp.MustCompile(`(/bot)([0-9]+:[A-Za-z0-9_\-]+)`),
	regexp.MustCompile(`(sk-[A-Za-z0-9_\-]{20,})`),
}

// IsSensitiveField reports whether a field name holds a secret.
func IsSensitiveField(field string) bool {
	return sensitiveFields[strings.ToLower(field)]
}

// Redact masks secrets found in s. Transport errors quote full request URLs,
// so everything that can reach a log or terminal goes through here.
func Redact(s string) string {
	for i, pattern := range sensitivePatterns {
		if i == len(sensitivePatterns)-1 {
			s = pattern.ReplaceAllStringFunc(s, MaskCredential)
			continue
		}
		s = pattern.ReplaceAllStringFunc(s, func(match string) string {
			sub := pattern.FindStringSubmatch(match)
			return sub[1] + MaskCredential(sub[2])
		})
	}
	return s
}

// MaskCredential masks a credential for display, keeping at most four
// characters at each end.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// RedactedError wraps an error so its message is redacted while errors.Is
// and errors.As still see the original chain.
type RedactedError struct {
	Err error
}

func (e *RedactedError) Error() string { return Redact(e.Err.Error()) }

func (e *RedactedError) Unwrap() error { return e.Err }

// RedactError wraps err in a RedactedError. A nil err stays nil.
func RedactError(err error) error {
	if err == nil {
		return nil
	}
	return &RedactedError{Err: err}
}
