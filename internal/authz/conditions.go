package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"gorm.io/datatypes"
)

// ConditionMatcher evaluates a policy's opaque attribute predicate against a
// request evaluation context. The predicate language is an extension point;
// implementations can be swapped without touching the resolution core.
type ConditionMatcher interface {
	Matches(ctx context.Context, conditions datatypes.JSON, eval map[string]any) (bool, error)
}

// EqualityMatcher is the default matcher: the conditions blob is read as a
// flat JSON object and every key must equal the corresponding evaluation
// attribute. Empty or absent conditions match everything.
type EqualityMatcher struct{}

// Matches implements ConditionMatcher.
func (EqualityMatcher) Matches(_ context.Context, conditions datatypes.JSON, eval map[string]any) (bool, error) {
	if len(conditions) == 0 {
		return true, nil
	}

	var want map[string]any
	if err := json.Unmarshal(conditions, &want); err != nil {
		return false, fmt.Errorf("authz: parse policy conditions: %w", err)
	}
	if len(want) == 0 {
		return true, nil
	}

	for key, expected := range want {
		actual, ok := eval[key]
		if !ok {
			return false, nil
		}
		if !reflect.DeepEqual(normaliseValue(expected), normaliseValue(actual)) {
			return false, nil
		}
	}
	return true, nil
}

// normaliseValue folds numeric types so JSON-decoded float64 values compare
// equal to native ints supplied by callers.
func normaliseValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
