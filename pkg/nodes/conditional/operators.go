package conditional

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// evaluate applies one structured operator to an actual variable value and
// the expected value from the condition. Unknown operators and unparseable
// numeric operands count as a non-match rather than an error.
func evaluate(actual any, operator string, expected any) bool {
	switch operator {
	case "==":
		return stringify(actual) == stringify(expected)
	case "!=":
		return stringify(actual) != stringify(expected)
	case ">", "<", ">=", "<=":
		return compareNumbers(actual, operator, expected)
	case "contains":
		return strings.Contains(stringify(actual), stringify(expected))
	case "not_contains":
		return !strings.Contains(stringify(actual), stringify(expected))
	case "starts_with":
		return strings.HasPrefix(stringify(actual), stringify(expected))
	case "ends_with":
		return strings.HasSuffix(stringify(actual), stringify(expected))
	case "matches":
		pattern, err := regexp.Compile(stringify(expected))
		if err != nil {
			return false
		}

		return pattern.MatchString(stringify(actual))
	case "length_eq", "length_gt", "length_lt":
		return compareLength(actual, operator, expected)
	case "is_empty":
		return length(actual) == 0
	case "is_not_empty":
		return length(actual) > 0
	default:
		return false
	}
}

func compareNumbers(actual any, operator string, expected any) bool {
	left, ok := toFloat(actual)
	if !ok {
		return false
	}

	right, ok := toFloat(expected)
	if !ok {
		return false
	}

	switch operator {
	case ">":
		return left > right
	case "<":
		return left < right
	case ">=":
		return left >= right
	case "<=":
		return left <= right
	default:
		return false
	}
}

func compareLength(actual any, operator string, expected any) bool {
	want, ok := toFloat(expected)
	if !ok {
		return false
	}

	got := float64(length(actual))

	switch operator {
	case "length_eq":
		return got == want
	case "length_gt":
		return got > want
	case "length_lt":
		return got < want
	default:
		return false
	}
}

func length(value any) int {
	switch v := value.(type) {
	case nil:
		return 0
	case string:
		return len(v)
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	default:
		return len(stringify(v))
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case bool:
		return 0, false
	default:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(stringify(v)), 64)
		if err != nil {
			return 0, false
		}

		return parsed, true
	}
}

func stringify(value any) string {
	if value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", value)
}
