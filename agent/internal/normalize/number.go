package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Ratio is a "used of limit" pair read from text.
type Ratio struct {
	Used  float64
	Limit float64
}

// numberPattern matches one numeric token as it appears on the dashboards:
// grouped thousands ("10,000", "10 000", "10'000"), plain integers and
// decimals, with an optional attached k/M suffix.
const numberPattern = `\d{1,3}(?:[,' ]\d{3})+(?:\.\d+)?[kKM]?|\d+(?:\.\d+)?[kKM]?`

var ratioRe = regexp.MustCompile(`(?i)(` + numberPattern + `)\s*(?:/|out\s+of|of)\s*(` + numberPattern + `)`)

var tokenRe = regexp.MustCompile(numberPattern)

// Clean applies compatibility normalisation and folds every kind of
// whitespace to a single ASCII space.
func Clean(text string) string {
	s := norm.NFKC.String(text)
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// ToNumber parses the leading numeric token of text. Grouping separators,
// currency symbols, percent signs and unit words around the token are
// ignored. It returns false when text contains no digits.
func ToNumber(text string) (float64, bool) {
	s := Clean(text)
	start := strings.IndexFunc(s, isDigit)
	if start < 0 {
		return 0, false
	}
	neg := start > 0 && s[start-1] == '-' && (start == 1 || s[start-2] == ' ')
	v, _, ok := scanNumber(s[start:])
	if !ok {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

// ToInt is ToNumber rounded to the nearest integer.
func ToInt(text string) (int, bool) {
	v, ok := ToNumber(text)
	if !ok || math.IsInf(v, 0) || math.IsNaN(v) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return int(math.Round(v)), true
}

// Numbers returns every numeric token in text, in order of appearance.
func Numbers(text string) []float64 {
	s := Clean(text)
	var out []float64
	for _, tok := range tokenRe.FindAllString(s, -1) {
		if v, _, ok := scanNumber(tok); ok {
			out = append(out, v)
		}
	}
	return out
}

// ExtractRatio scans text for "<number> of <number>" or "<number> / <number>".
func ExtractRatio(text string) (Ratio, bool) {
	m := ratioRe.FindStringSubmatch(Clean(text))
	if m == nil {
		return Ratio{}, false
	}
	used, _, ok1 := scanNumber(m[1])
	limit, _, ok2 := scanNumber(m[2])
	if !ok1 || !ok2 {
		return Ratio{}, false
	}
	return Ratio{Used: used, Limit: limit}, true
}

// scanNumber reads a number from the start of s, which must begin with a
// digit. It returns the value and the number of bytes consumed.
func scanNumber(s string) (float64, int, bool) {
	var digits strings.Builder
	i := 0
scan:
	for i < len(s) {
		c := s[i]
		switch {
		case isDigitByte(c):
			digits.WriteByte(c)
			i++
		case (c == ',' || c == '\'' || c == ' ') && groupFollows(s[i+1:]):
			i++
		case c == '.' && i+1 < len(s) && isDigitByte(s[i+1]) && !strings.Contains(digits.String(), "."):
			digits.WriteByte('.')
			i++
		default:
			break scan
		}
	}
	if digits.Len() == 0 {
		return 0, 0, false
	}
	v, err := strconv.ParseFloat(digits.String(), 64)
	if err != nil {
		return 0, 0, false
	}
	if i < len(s) {
		mult := 1.0
		switch s[i] {
		case 'k', 'K':
			mult = 1e3
		case 'M':
			mult = 1e6
		}
		if mult != 1 && (i+1 == len(s) || !isLetterByte(s[i+1])) {
			v *= mult
			i++
		}
	}
	return v, i, true
}

// groupFollows reports whether s starts with exactly three digits that are
// not followed by a fourth.
func groupFollows(s string) bool {
	if len(s) < 3 {
		return false
	}
	for j := 0; j < 3; j++ {
		if !isDigitByte(s[j]) {
			return false
		}
	}
	return len(s) == 3 || !isDigitByte(s[3])
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isDigitByte(c byte) bool { return c >= '0' && c <= '9' }

func isLetterByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
