package url

import (
	"strconv"
	"strings"
)

// isFormSafe reports whether c is left as is by the application/x-www-form-urlencoded
// byte serializer: ASCII alphanumerics and *-._
func isFormSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '*', c == '-', c == '.', c == '_':
		return true
	}
	return false
}

const upperhex = "0123456789ABCDEF"

func queryEscape(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ':
			builder.WriteByte('+')
		case isFormSafe(c):
			builder.WriteByte(c)
		default:
			builder.WriteByte('%')
			builder.WriteByte(upperhex[c>>4])
			builder.WriteByte(upperhex[c&0x0F])
		}
	}
	return builder.String()
}

// queryUnescape decodes percent escapes and '+'. Malformed escapes are kept verbatim.
func queryUnescape(s string) string {
	i := strings.IndexAny(s, "%+")
	if i == -1 {
		return s
	}

	var builder strings.Builder
	builder.Grow(len(s))
	builder.WriteString(s[:i])
	for ; i < len(s); i++ {
		switch s[i] {
		case '%':
			if i+2 < len(s) {
				if b, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
					builder.WriteByte(byte(b))
					i += 2
					continue
				}
			}
			builder.WriteByte('%')
		case '+':
			builder.WriteByte(' ')
		default:
			builder.WriteByte(s[i])
		}
	}
	return builder.String()
}
