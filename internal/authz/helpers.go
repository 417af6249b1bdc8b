package authz

import (
	"context"
	"strings"
)

func trimID(value string) string {
	return strings.TrimSpace(value)
}

// normaliseIDs trims, drops empties, and de-duplicates while preserving the
// first occurrence order. Diff results stay reproducible for a given input.
func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
