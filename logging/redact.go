package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the placeholder logged in place of sensitive values
const RedactedValue = "[REDACTED]"

var redactionAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"component": {},
	"run_id":    {},
	"action":    {},
	"symbol":    {},
	"state":     {},
	"tx_hash":   {},
}

// IsAllowlisted reports whether key may be logged in the clear
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// RedactionAllowlist returns the sorted allowlisted keys
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField redacts value unless key is allowlisted. Empty values pass through.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// ShortHex keeps the first and last four hex digits of long values such as
// addresses, enough to correlate log lines without printing the whole value.
func ShortHex(key, value string) slog.Attr {
	s := strings.TrimPrefix(value, "0x")
	if len(s) <= 12 {
		return slog.String(key, value)
	}
	return slog.String(key, "0x"+s[:4]+"…"+s[len(s)-4:])
}
