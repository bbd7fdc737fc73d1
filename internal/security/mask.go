// Package security masks credentials before they reach logs and checks API
// bearer tokens.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// sensitivePatterns match credentials embedded in free text such as provider
// error messages.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|x-api-key|secret[_-]?key|access[_-]?token|auth[_-]?token|password)([=:\s]+)["']?([^\s"',]+)["']?`),
	regexp.MustCompile(`(?i)(bearer)(\s+)([A-Za-z0-9_\-\.=]+)`),
	regexp.MustCompile(`(sk-ant-[A-Za-z0-9_\-]{16,})`), // Anthropic keys
	regexp.MustCompile(`(sk-[A-Za-z0-9_\-]{20,})`),     // OpenAI keys
}

// MaskCredential masks a credential value for logging.
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

// MaskSecrets masks every credential found in input.
func MaskSecrets(input string) string {
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			sub := pattern.FindStringSubmatch(match)
			if len(sub) == 4 {
				return sub[1] + sub[2] + MaskCredential(sub[3])
			}
			return MaskCredential(match)
		})
	}
	return result
}

// MaskError returns err with credentials masked out of its message. An error
// carrying no credential is returned as is; otherwise the chain is dropped,
// so use the result only for logging and responses.
func MaskError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !ContainsSensitiveData(msg) {
		return err
	}
	return fmt.Errorf("%s", MaskSecrets(msg))
}

// ContainsSensitiveData reports whether input carries a credential pattern.
func ContainsSensitiveData(input string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}
