// Package ids provides deterministic identifier normalization and
// opaque id generation used throughout the world runtime.
package ids

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// New returns a fresh opaque identifier, suitable for messageId,
// chatId, requestId and toolUseId values.
func New() string {
	return uuid.New().String()
}

// Kebab normalizes name into a stable kebab-case identifier: unicode
// letters are lowercased, runs of non alphanumeric characters collapse
// into a single hyphen, and leading/trailing hyphens are trimmed.
// Digits are preserved as-is.
func Kebab(name string) string {
	lowered := strings.Map(unicode.ToLower, name)

	var b strings.Builder
	lastHyphen := false
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.Trim(b.String(), "-")
}

// DeriveWorldID derives a world id from a display name.
func DeriveWorldID(name string) string {
	return Kebab(name)
}

// DeriveAgentID derives an agent id from a display name.
func DeriveAgentID(name string) string {
	return Kebab(name)
}
