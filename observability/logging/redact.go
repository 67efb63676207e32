package logging

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

var (
	allowMu            sync.RWMutex
	redactionAllowlist = map[string]struct{}{
		"service":   {},
		"env":       {},
		"message":   {},
		"severity":  {},
		"timestamp": {},
		"error":     {},
		"reason":    {},
		"component": {},
	}
)

// Allow exempts additional keys from redaction, typically from the
// [logging] AllowFields setting.
func Allow(keys ...string) {
	allowMu.Lock()
	defer allowMu.Unlock()
	for _, key := range keys {
		if key = strings.ToLower(strings.TrimSpace(key)); key != "" {
			redactionAllowlist[key] = struct{}{}
		}
	}
}

// IsAllowlisted reports whether the provided key is exempt from automatic redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	allowMu.RLock()
	defer allowMu.RUnlock()
	_, ok := redactionAllowlist[normalized]
	return ok
}

// RedactionAllowlist returns a sorted copy of the log keys that are allowed to be emitted
// without redaction.
func RedactionAllowlist() []string {
	allowMu.RLock()
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	allowMu.RUnlock()
	sort.Strings(keys)
	return keys
}

// MaskField returns a slog.Attr that redacts the supplied value unless the key is
// explicitly allowlisted. Friend names and other user-entered text go through here.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
