package arvos

import (
	"fmt"
	"strings"
)

// maxScanIterations bounds the substitution and escaping loops. Input that
// needs more steps than this is treated as corrupt.
const maxScanIterations = 1_000_000

type substitutionMarker struct {
	start, end string
}

var substitutionMarkers = [...]substitutionMarker{
	{start: "<!--?", end: "-->"},
	{start: "<?", end: ">"},
}

// Substitute replaces every <?KEY?> and <!--?KEY?--> marker in line with the
// value of KEY in values. Inside a FOR block iteration selects KEY_i ahead of
// KEY; pass NoIteration elsewhere.
//
// Any "<" in a substituted value is written as "&lt;". A marker without its
// closing delimiter is left in the output as literal text.
func Substitute(values *Values, line string, iteration int) (string, error) {
	first := strings.IndexByte(line, '<')
	if first < 0 {
		return line, nil
	}
	start, marker := nextMarker(line, first)
	if start < 0 {
		return line, nil
	}

	var out strings.Builder
	out.Grow(len(line))
	pos := 0
	for i := 0; i < maxScanIterations; i++ {
		out.WriteString(line[pos:start])

		keyStart := start + len(marker.start)
		keyLen := strings.Index(line[keyStart:], marker.end)
		if keyLen < 0 {
			out.WriteString(line[start:])
			return out.String(), nil
		}

		value := values.Lookup(markerKey(line[keyStart:keyStart+keyLen]), iteration)
		if value != "" {
			escaped, err := escapeLessThan(value)
			if err != nil {
				return "", err
			}
			out.WriteString(escaped)
		}

		pos = keyStart + keyLen + len(marker.end)
		start, marker = nextMarker(line, pos)
		if start < 0 {
			out.WriteString(line[pos:])
			return out.String(), nil
		}
	}
	return "", fmt.Errorf("%w: more than %d substitutions in one line", ErrRunawayInput, maxScanIterations)
}

// nextMarker returns the offset and kind of the first substitution marker at
// or after from, or -1 if there is none.
func nextMarker(line string, from int) (int, substitutionMarker) {
	best := -1
	var found substitutionMarker
	for _, marker := range substitutionMarkers {
		idx := strings.Index(line[from:], marker.start)
		if idx < 0 {
			continue
		}
		if best < 0 || from+idx < best {
			best = from + idx
			found = marker
		}
	}
	return best, found
}

// markerKey extracts the key from the text between a marker's delimiters.
// The trailing "?" belongs to the closing "?>" or "?-->".
func markerKey(raw string) string {
	key := strings.TrimSpace(raw)
	key = strings.TrimSuffix(key, "?")
	return strings.TrimSpace(key)
}

func escapeLessThan(value string) (string, error) {
	n := strings.Count(value, "<")
	if n == 0 {
		return value, nil
	}
	if n > maxScanIterations {
		return "", fmt.Errorf("%w: more than %d '<' characters to escape in one value", ErrRunawayInput, maxScanIterations)
	}
	return strings.ReplaceAll(value, "<", "&lt;"), nil
}
