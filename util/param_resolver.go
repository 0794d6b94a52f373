package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenPattern = regexp.MustCompile(`{(.*?)}`)

// SubstituteTokens replaces every `{$.path}` token in s with the value found
// at that jsonpath in data. Unresolvable paths substitute as "<nil>", which
// keeps prompt construction total.
func SubstituteTokens(data map[string]any, s string) string {
	tokens := tokenPattern.FindAllString(s, -1)
	out := s
	for _, token := range tokens {
		path := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		if !strings.HasPrefix(path, "$") {
			continue
		}
		value, _ := jsonpath.JsonPathLookup(data, path)
		out = strings.ReplaceAll(out, token, fmt.Sprintf("%v", value))
	}
	return out
}

// ResolveParams walks params and substitutes jsonpath tokens in every string
// leaf against data, recursing through nested maps and lists.
func ResolveParams(data map[string]any, params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = resolveValue(data, v)
	}
	return out
}

func resolveValue(data map[string]any, v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return ResolveParams(data, tv)
	case []any:
		out := make([]any, 0, len(tv))
		for _, item := range tv {
			out = append(out, resolveValue(data, item))
		}
		return out
	case string:
		return SubstituteTokens(data, tv)
	default:
		return v
	}
}
