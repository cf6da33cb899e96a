package services

import (
	"context"
	"sort"
	"strings"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normaliseUsername(username string) string {
	return strings.TrimSpace(username)
}

// attemptSubject keys attempt counters by the exact username, matching the case-sensitive
// username index: "Alice" and "alice" are distinct accounts with distinct budgets.
func attemptSubject(username string) string {
	return normaliseUsername(username)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
