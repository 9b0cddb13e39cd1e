package resolver

import (
	"encoding/json"
	"fmt"
)

// stringArg reads a string argument, returning "" when absent or of the
// wrong type. The executor has already validated arguments against the
// schema, so a missing required argument cannot happen here.
func stringArg(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return s
}

// intArg reads an integer argument. Inline literals arrive as int64, values
// passed through JSON variables as float64.
func intArg(args map[string]interface{}, name string) (int, error) {
	switch v := args[name].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("argument %q is not an integer", name)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("argument %q is not an integer", name)
	}
}

// stringListArg reads a list-of-strings argument, skipping non-string
// elements.
func stringListArg(args map[string]interface{}, name string) []string {
	raw, ok := args[name].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
