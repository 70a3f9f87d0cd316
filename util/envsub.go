package util

import "regexp"

// Variable references use the [[ NAME ]] form, with optional whitespace
// inside the brackets.
var varPattern = regexp.MustCompile(`\[\[\s*([A-Za-z_][A-Za-z0-9_]*)\s*\]\]`)

// ExpandVarsString replaces every [[ NAME ]] reference in s with its
// value from vars. References to unknown variables are left untouched.
func ExpandVarsString(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}

// ExpandVars walks an arbitrary decoded configuration value and expands
// variable references in every string it contains, including strings
// nested in maps and slices. Non-string values pass through unchanged.
func ExpandVars(value any, vars map[string]string) any {
	switch v := value.(type) {
	case string:
		return ExpandVarsString(v, vars)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = ExpandVars(item, vars)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = ExpandVars(item, vars)
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = ExpandVarsString(item, vars)
		}
		return out
	default:
		return value
	}
}
