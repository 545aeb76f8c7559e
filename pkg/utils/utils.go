// Package utils provides small helpers shared by the server packages:
// environment lookups, secret masking and request identifiers.
package utils

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GetEnvWithDefault retrieves an environment variable or returns a default value if not set.
//
// Parameters:
//   - name: The name of the environment variable
//   - defaultValue: The default value to return if the environment variable is not set
//
// Returns the value of the environment variable, or the default value if not set.
func GetEnvWithDefault(name, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvInt reads an integer environment variable. Unset or unparsable values
// fall back to defaultValue.
func GetEnvInt(name string, defaultValue int) int {
	value := GetEnvWithDefault(name, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetEnvBool reports whether the variable is set to "true" or "1".
func GetEnvBool(name string) bool {
	value := strings.ToLower(GetEnvWithDefault(name, ""))
	return value == "true" || value == "1"
}

// GetEnvDuration parses a Go duration string ("30s", "24h") from the environment.
func GetEnvDuration(name string, defaultValue time.Duration) time.Duration {
	value := GetEnvWithDefault(name, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// SplitList splits a comma-separated value, trimming blanks and dropping empty items.
func SplitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// minMaskedLen is the shortest token MaskToken shows any part of.
const minMaskedLen = 16

// MaskToken replaces most of a token with asterisks for secure display.
// Tokens shorter than minMaskedLen are hidden entirely; longer ones keep at most
// an eighth of their length at each end, never more than four characters.
func MaskToken(token string) string {
	if token == "" {
		return "[empty token]"
	}
	if len(token) < minMaskedLen {
		return "***"
	}
	keep := len(token) / 8
	if keep > 4 {
		keep = 4
	}
	return token[:keep] + "..." + token[len(token)-keep:]
}

// Redact replaces every occurrence of the given secrets in s with a masked form.
// Secrets shorter than four characters are ignored; masking them would only
// mangle ordinary text.
func Redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if len(secret) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, secret, MaskToken(secret))
	}
	return s
}

// NewRequestID generates a unique request ID of the form
// <timestamp>-<8 hex chars>.
func NewRequestID() string {
	return time.Now().UTC().Format("20060102T150405.000Z") + "-" + uuid.New().String()[:8]
}
