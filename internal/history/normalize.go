// Package history reconstructs message state from persisted AG-UI event logs.
// Older backends serialized the log with Python literal syntax (mixed quote
// styles, True/False/None); Normalize bridges that format to strict JSON so
// the logs stay readable until they are rewritten. New logs are plain JSON and
// pass through unchanged.
package history

import "strings"

// Normalize converts a Python-literal-ish serialized event array into strict
// JSON in a single forward scan: inside strings both quote styles become `"`
// and embedded double quotes are escaped; outside strings the literals True,
// False and None become true, false and null. The scan never backtracks, so
// it stays linear on arbitrarily long logs.
func Normalize(src string) string {
	var b strings.Builder
	b.Grow(len(src) + len(src)/16)

	var (
		inString bool
		quote    byte
	)

	for i := 0; i < len(src); i++ {
		c := src[i]

		if inString {
			switch {
			case c == '\\' && i+1 < len(src):
				next := src[i+1]
				i++
				if next == '\'' {
					// \' is legal Python, illegal JSON.
					b.WriteByte('\'')
				} else {
					b.WriteByte('\\')
					b.WriteByte(next)
				}
			case c == quote:
				inString = false
				b.WriteByte('"')
			case c == '"':
				// A bare double quote inside a single-quoted string.
				b.WriteString(`\"`)
			case c == '\n':
				b.WriteString(`\n`)
			case c == '\r':
				b.WriteString(`\r`)
			case c == '\t':
				b.WriteString(`\t`)
			default:
				b.WriteByte(c)
			}
			continue
		}

		switch {
		case c == '\'' || c == '"':
			inString = true
			quote = c
			b.WriteByte('"')
		case isWordByte(c):
			j := i
			for j < len(src) && isWordByte(src[j]) {
				j++
			}
			b.WriteString(translateWord(src[i:j]))
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

func translateWord(w string) string {
	switch w {
	case "True":
		return "true"
	case "False":
		return "false"
	case "None":
		return "null"
	}
	return w
}

func isWordByte(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_'
}
