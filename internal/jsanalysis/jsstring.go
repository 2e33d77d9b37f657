package jsanalysis

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// decodeStringLiteral turns the source text of a quoted JS string literal
// into its runtime value.
func decodeStringLiteral(raw string) string {
	if len(raw) >= 2 {
		q := raw[0]
		if (q == '\'' || q == '"') && raw[len(raw)-1] == q {
			raw = raw[1 : len(raw)-1]
		}
	}
	if !strings.Contains(raw, `\`) {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			b.WriteByte(c)
			i++
			continue
		}

		e := raw[i+1]
		i += 2
		switch e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case '\r':
			if i < len(raw) && raw[i] == '\n' {
				i++
			}
		case 'x':
			if v, ok := parseHex(raw, i, 2); ok {
				b.WriteRune(rune(v))
				i += 2
			} else {
				b.WriteByte('x')
			}
		case 'u':
			r, n := decodeUnicodeEscape(raw, i)
			if n == 0 {
				b.WriteByte('u')
				continue
			}
			b.WriteRune(r)
			i += n
		default:
			b.WriteByte(e)
		}
	}
	return b.String()
}

// decodeUnicodeEscape decodes what follows a "\u" at raw[i:], returning the
// rune and the number of bytes consumed (0 when malformed).
func decodeUnicodeEscape(raw string, i int) (rune, int) {
	if i < len(raw) && raw[i] == '{' {
		end := strings.IndexByte(raw[i:], '}')
		if end < 2 {
			return 0, 0
		}
		v, err := strconv.ParseUint(raw[i+1:i+end], 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, 0
		}
		return rune(v), end + 1
	}

	v, ok := parseHex(raw, i, 4)
	if !ok {
		return 0, 0
	}
	r := rune(v)
	if utf16.IsSurrogate(r) && i+10 <= len(raw) && raw[i+4] == '\\' && raw[i+5] == 'u' {
		if low, ok := parseHex(raw, i+6, 4); ok {
			if pair := utf16.DecodeRune(r, rune(low)); pair != utf8.RuneError {
				return pair, 10
			}
		}
	}
	if utf16.IsSurrogate(r) {
		return utf8.RuneError, 4
	}
	return r, 4
}

func parseHex(raw string, i, n int) (uint64, bool) {
	if i+n > len(raw) {
		return 0, false
	}
	v, err := strconv.ParseUint(raw[i:i+n], 16, 32)
	if err != nil {
		return 0, false
	}
	return v, true
}
