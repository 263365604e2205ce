package elfx

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxStringLength bounds the bytes read for a string literal.
const MaxStringLength = 256

// minStringLength keeps short byte runs that merely look printable from
// being taken for strings.
const minStringLength = 2

// EscapeUnprintable returns a string where printable Unicode runes are preserved.
// Control and unprintable runes are escaped as \uXXXX. Invalid UTF-8 is escaped as \xXX.
func EscapeUnprintable(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		switch {
		case r == utf8.RuneError && size == 1:
			fmt.Fprintf(&sb, "\\x%02X", b[0])
		case r == '"' || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case unicode.IsPrint(r):
			sb.WriteRune(r)
		default:
			fmt.Fprintf(&sb, "\\u%04X", r)
		}
		b = b[size:]
	}
	return sb.String()
}

// StringAt reads the NUL-terminated string at va in the read-only data.
// It fails unless the bytes before the terminator are text.
func (im *Image) StringAt(va uint64) (string, bool) {
	if !im.Rodata.Contains(va) {
		return "", false
	}
	n := min(uint64(MaxStringLength), im.Rodata.VA+im.Rodata.Size-va)
	raw, ok := im.SliceVA(va, n)
	if !ok {
		return "", false
	}
	end := bytes.IndexByte(raw, 0)
	if end < minStringLength || !utf8.Valid(raw[:end]) {
		return "", false
	}
	for _, r := range string(raw[:end]) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return "", false
		}
	}
	return EscapeUnprintable(raw[:end]), true
}

// Strings names addresses of string literals by their quoted text.
type Strings struct {
	im *Image
}

func (im *Image) Strings() Strings {
	return Strings{im: im}
}

func (s Strings) NameAt(va uint64) string {
	str, ok := s.im.StringAt(va)
	if !ok {
		return ""
	}
	return `"` + str + `"`
}
