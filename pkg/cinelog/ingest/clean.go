package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Unknown is the cleaned form of an empty or missing value.
const Unknown = "unknown"

// missing is the placeholder some exports use for empty cells.
const missing = "UNK"

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CleanText turns a display string into an atom-safe identifier:
// diacritics are folded, everything except ASCII letters, digits and
// whitespace is dropped, whitespace becomes "_" and the result is lowercased.
// Empty input and "UNK" clean to Unknown.
func CleanText(s string) string {
	if s == missing {
		return Unknown
	}
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range strings.TrimSpace(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return Unknown
	}
	return b.String()
}

// ParseList reads a multi-valued cell. It accepts a Python-style list
// literal of strings or of dicts carrying a 'name' key, then falls back to
// "|"-separated and finally ","-separated text.
func ParseList(cell string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell == missing {
		return nil
	}
	if items, ok := parseLiteralList(cell); ok {
		return items
	}
	for _, sep := range []string{"|", ","} {
		if strings.Contains(cell, sep) {
			return splitNonEmpty(cell, sep)
		}
	}
	return nil
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// literalScanner walks a Python list literal such as
// [{'id': 28, 'name': 'Action'}, 'Drama'].
type literalScanner struct {
	s   string
	pos int
}

func parseLiteralList(s string) ([]string, bool) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, false
	}
	sc := &literalScanner{s: s, pos: 1}
	var out []string
	for {
		sc.skipSpace()
		if sc.peek() == ']' {
			sc.pos++
			break
		}
		switch sc.peek() {
		case '\'', '"':
			v, ok := sc.quoted()
			if !ok {
				return nil, false
			}
			out = append(out, v)
		case '{':
			name, ok := sc.dict()
			if !ok {
				return nil, false
			}
			if name != "" {
				out = append(out, name)
			}
		default:
			if !sc.scalar() {
				return nil, false
			}
		}
		sc.skipSpace()
		if sc.peek() == ',' {
			sc.pos++
		} else if sc.peek() != ']' {
			return nil, false
		}
	}
	sc.skipSpace()
	return out, sc.pos == len(sc.s)
}

func (sc *literalScanner) peek() byte {
	if sc.pos >= len(sc.s) {
		return 0
	}
	return sc.s[sc.pos]
}

func (sc *literalScanner) skipSpace() {
	for sc.pos < len(sc.s) && unicode.IsSpace(rune(sc.s[sc.pos])) {
		sc.pos++
	}
}

func (sc *literalScanner) quoted() (string, bool) {
	quote := sc.s[sc.pos]
	sc.pos++
	var b strings.Builder
	for sc.pos < len(sc.s) {
		c := sc.s[sc.pos]
		switch {
		case c == '\\' && sc.pos+1 < len(sc.s):
			b.WriteByte(sc.s[sc.pos+1])
			sc.pos += 2
		case c == quote:
			sc.pos++
			return b.String(), true
		default:
			b.WriteByte(c)
			sc.pos++
		}
	}
	return "", false
}

// scalar skips an unquoted value such as a number or None.
func (sc *literalScanner) scalar() bool {
	start := sc.pos
	for sc.pos < len(sc.s) && !strings.ContainsRune(",]}:", rune(sc.s[sc.pos])) {
		sc.pos++
	}
	return sc.pos > start
}

// dict reads a flat dict and returns its 'name' value.
func (sc *literalScanner) dict() (string, bool) {
	sc.pos++
	name := ""
	for {
		sc.skipSpace()
		if sc.peek() == '}' {
			sc.pos++
			return name, true
		}
		if c := sc.peek(); c != '\'' && c != '"' {
			return "", false
		}
		key, ok := sc.quoted()
		if !ok {
			return "", false
		}
		sc.skipSpace()
		if sc.peek() != ':' {
			return "", false
		}
		sc.pos++
		sc.skipSpace()
		if c := sc.peek(); c == '\'' || c == '"' {
			v, ok := sc.quoted()
			if !ok {
				return "", false
			}
			if key == "name" {
				name = v
			}
		} else if !sc.scalar() {
			return "", false
		}
		sc.skipSpace()
		if sc.peek() == ',' {
			sc.pos++
		} else if sc.peek() != '}' {
			return "", false
		}
	}
}
