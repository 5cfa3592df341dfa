package security

import (
	"crypto/rand"
	"errors"
	"strings"
)

// secretAlphabet is the character set onboarding secrets are drawn from.
// Uppercase alphanumerics only, so secrets survive being read aloud or typed.
const secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// secretLength is the number of alphabet characters in a secret, excluding dashes.
const secretLength = 16

// ErrSecretFormat is returned when a presented secret cannot be normalized to
// the onboarding secret format.
var ErrSecretFormat = errors.New("secret is not in the expected format")

// GenerateSecret returns a fresh onboarding secret: 16 characters drawn from a
// cryptographically secure random source, rendered as four dash-separated
// groups of four (e.g. LCAH-WCYX-BSOM-GYDB).
func GenerateSecret() (string, error) {
	buf := make([]byte, secretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(secretLength + 3)
	for i, c := range buf {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(secretAlphabet[int(c)%len(secretAlphabet)])
	}
	return b.String(), nil
}

// NormalizeSecret strips dashes and whitespace from a presented secret,
// uppercases it, and validates the remaining characters. Sanitized input of
// 12–16 alphanumerics is accepted so partially typed or reformatted secrets
// still reach the comparator; anything else is ErrSecretFormat.
func NormalizeSecret(s string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		switch {
		case r == '-' || r == ' ':
			continue
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteByte(byte(r))
		default:
			return "", ErrSecretFormat
		}
	}
	out := b.String()
	if len(out) < 12 || len(out) > secretLength {
		return "", ErrSecretFormat
	}
	return out, nil
}

// FormatSecret re-chunks a normalized 16-character secret into the canonical
// dash-separated display form. Shorter normalized inputs are returned as-is.
func FormatSecret(normalized string) string {
	if len(normalized) != secretLength {
		return normalized
	}
	return normalized[0:4] + "-" + normalized[4:8] + "-" + normalized[8:12] + "-" + normalized[12:16]
}
