package arvos

import (
	"strings"
)

const (
	directiveStart = "<!--#"
	directiveEnd   = "-->"
)

type directiveKind int

const (
	directiveUnknown directiveKind = iota
	directiveIfdef
	directiveIfndef
	directiveEndif
	directiveFor
	directiveEndfor
	directiveInclude
)

// keywords are matched as prefixes of the text following "<!--#", so their
// order matters only where one keyword is a prefix of another, and none are.
var keywords = []struct {
	word string
	kind directiveKind
}{
	{"IFDEF", directiveIfdef},
	{"IFNDEF", directiveIfndef},
	{"ENDIF", directiveEndif},
	{"FOR", directiveFor},
	{"ENDFOR", directiveEndfor},
	{"INCLUDE", directiveInclude},
}

func (k directiveKind) String() string {
	for _, kw := range keywords {
		if kw.kind == k {
			return kw.word
		}
	}
	return "unknown"
}

// directive is a block marker found in a line of template text.
//
// start is the offset of "<!--#" and end the offset just past the closing
// "-->". tag is the raw, trimmed text between the keyword and "-->".
type directive struct {
	kind       directiveKind
	tag        string
	start, end int

	// terminated is false when the line has no "-->" after the keyword,
	// in which case end is len(line) and the directive is treated as
	// literal text.
	terminated bool
}

// nextDirective finds the first directive in line. ok is false if the line
// contains no "<!--#" at all.
func nextDirective(line string) (directive, bool) {
	start := strings.Index(line, directiveStart)
	if start < 0 {
		return directive{}, false
	}
	rest := line[start+len(directiveStart):]
	d := directive{start: start, end: len(line)}
	offset := 0
	for _, kw := range keywords {
		if strings.HasPrefix(rest, kw.word) {
			d.kind = kw.kind
			offset = len(kw.word)
			break
		}
	}
	closing := strings.Index(rest[offset:], directiveEnd)
	if closing < 0 {
		return d, true
	}
	d.tag = strings.TrimSpace(rest[offset : offset+closing])
	d.end = start + len(directiveStart) + offset + closing + len(directiveEnd)
	d.terminated = true
	return d, true
}

// isBlank reports whether s holds nothing but whitespace.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
