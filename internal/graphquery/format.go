package graphquery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NoResults is rendered for a query that matched nothing.
const NoResults = "Query executed successfully but returned no results."

// Format renders up to limit records as numbered blocks, columns in RETURN
// order. Lists render as [a, b].
func Format(res *Result, limit int) string {
	if res == nil || len(res.Records) == 0 {
		return NoResults
	}
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Query returned %d result(s):\n", len(res.Records))
	sb.WriteString(strings.Repeat("=", 80))
	sb.WriteByte('\n')

	shown := res.Records
	if len(shown) > limit {
		shown = shown[:limit]
	}
	for i, rec := range shown {
		fmt.Fprintf(&sb, "\nResult %d:\n", i+1)
		for j, key := range rec.Keys {
			fmt.Fprintf(&sb, "  %s: %s\n", key, FormatValue(rec.Values[j]))
		}
	}

	if extra := len(res.Records) - len(shown); extra > 0 {
		fmt.Fprintf(&sb, "\n... and %d more results (limited to %d)", extra, limit)
	}
	return sb.String()
}

// FormatValue renders one record value.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		return "[" + strings.Join(x, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + FormatValue(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}
