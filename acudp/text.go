package acudp

import (
	"strings"
	"unicode"
	"unicode/utf8"

	xunicode "golang.org/x/text/encoding/unicode"
)

var utf16le = xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM)

// Sanitize returns logical content of fixed width text field.
// Server terminates strings with NUL or '%' and leaves garbage after it.
func Sanitize(s string) string {
	if i := strings.IndexAny(s, "\x00%"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRightFunc(s, func(r rune) bool {
		return r == utf8.RuneError || unicode.IsSpace(r) || unicode.IsControl(r)
	})
}

// DecodeText converts raw UTF-16LE field to sanitized string.
func DecodeText(raw []byte) string {
	b, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	return Sanitize(string(b))
}

// EncodeText is reverse of DecodeText, used to emulate server.
// Long strings are truncated to keep NUL terminator.
func EncodeText(s string) Text {
	var t Text
	b, err := utf16le.NewEncoder().String(s)
	if err != nil {
		return t
	}
	if len(b) > TextFieldSize-2 {
		b = b[:TextFieldSize-2]
	}
	copy(t[:], b)
	return t
}
