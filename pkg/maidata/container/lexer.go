package container

import (
	"fmt"
	"strings"

	"github.com/himanishpuri/maidata/pkg/maidata/span"
)

const bom = "\ufeff"

// Error is a malformed maidata.txt file or field.
type Error struct {
	Pos span.Position
	Key string
	Msg string
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Key, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// KeyVal is one `&key=value` pair with the location of both halves.
type KeyVal struct {
	Key     string
	Val     string
	KeySpan span.Span
	ValSpan span.Span
}

// Lex splits a maidata.txt file into its key-value pairs, in file order.
// A leading byte order mark is skipped; positions are relative to the text
// after it. Trailing whitespace is trimmed from every value.
func Lex(text string) ([]KeyVal, error) {
	text = strings.TrimPrefix(text, bom)
	lines := span.NewLineIndex(text)

	var kvs []KeyVal
	pos := 0
	for {
		for pos < len(text) && isSpace(text[pos]) {
			pos++
		}
		if pos >= len(text) {
			return kvs, nil
		}
		if text[pos] != '&' {
			return nil, &Error{Pos: lines.Position(pos), Msg: fmt.Sprintf("expected '&', found %q", text[pos])}
		}
		pos++

		keyStart := pos
		eq := strings.IndexByte(text[pos:], '=')
		if eq < 0 {
			return nil, &Error{Pos: lines.Position(keyStart), Msg: "key without '='"}
		}
		keyEnd := pos + eq
		pos = keyEnd + 1

		valStart := pos
		next := strings.IndexByte(text[pos:], '&')
		if next < 0 {
			pos = len(text)
		} else {
			pos += next
		}
		valEnd := valStart + len(strings.TrimRight(text[valStart:pos], " \t\r\n"))

		kvs = append(kvs, KeyVal{
			Key:     text[keyStart:keyEnd],
			Val:     text[valStart:valEnd],
			KeySpan: lines.Span(keyStart, keyEnd),
			ValSpan: lines.Span(valStart, valEnd),
		})
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
