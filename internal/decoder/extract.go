package decoder

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/nameplate-cli/internal/rules"
)

// extractRaw obtains the raw code an Extraction points at within an
// identifier. Position indexes are 1-based inclusive; anything out of range
// for this particular identifier is a non-extraction, not an error.
func extractRaw(s string, e rules.Extraction) (string, bool) {
	switch e.Method() {
	case rules.MethodSpan:
		start, end := e.Positions.Start, e.Positions.End
		if start < 1 || end < start || end > len(s) {
			return "", false
		}
		return s[start-1 : end], true

	case rules.MethodPositionList:
		var b strings.Builder
		for _, p := range e.PositionList {
			if p < 1 || p > len(s) {
				return "", false
			}
			b.WriteByte(s[p-1])
		}
		return b.String(), true

	case rules.MethodPattern:
		rx, err := regexp.Compile(e.Pattern.Regex)
		if err != nil {
			return "", false
		}
		m := rx.FindStringSubmatch(s)
		if m == nil {
			return "", false
		}
		if !e.Pattern.HasGroup {
			return m[0], true
		}
		if e.Pattern.Group < 0 || e.Pattern.Group >= len(m) {
			return "", false
		}
		return m[e.Pattern.Group], true

	default:
		return "", false
	}
}

// resolveCode turns a raw extracted code into an integer, via the declared
// reverse transform and mapping table when present. Mapping lookups try the
// exact code first, then uppercase.
func resolveCode(raw string, e rules.Extraction) (int, bool) {
	code := raw
	if e.Transform != nil && e.Transform.Kind == rules.TransformReverse {
		code = reverse(code)
	}
	if n, ok := parseDigits(code); ok {
		return n, true
	}
	if mapped, ok := lookupMapping(code, e.Mapping); ok {
		return parseDigits(mapped)
	}
	return 0, false
}

func lookupMapping(code string, mapping map[string]string) (string, bool) {
	if len(mapping) == 0 {
		return "", false
	}
	key := strings.TrimSpace(code)
	if key == "" {
		return "", false
	}
	if v, ok := mapping[key]; ok {
		return v, true
	}
	v, ok := mapping[strings.ToUpper(key)]
	return v, ok
}

func parseDigits(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if !isDigits(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
