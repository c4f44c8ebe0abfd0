package span

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// Position is a single location in a source text.
// Line and Col are 1-based; Col counts runes, not bytes.
type Position struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Col    int `json:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Span is a half-open [start, end) range of source text.
type Span struct {
	ByteOffset int `json:"byte_offset"`
	Line       int `json:"line"`
	Col        int `json:"col"`
	EndLine    int `json:"end_line"`
	EndCol     int `json:"end_col"`
	Len        int `json:"len"`
}

// FromPositions builds the span covering start up to (not including) end.
func FromPositions(start, end Position) Span {
	return Span{
		ByteOffset: start.Offset,
		Line:       start.Line,
		Col:        start.Col,
		EndLine:    end.Line,
		EndCol:     end.Col,
		Len:        end.Offset - start.Offset,
	}
}

// Start returns the first position covered by the span.
func (s Span) Start() Position {
	return Position{Offset: s.ByteOffset, Line: s.Line, Col: s.Col}
}

// End returns the position just past the span.
func (s Span) End() Position {
	return Position{Offset: s.ByteOffset + s.Len, Line: s.EndLine, Col: s.EndCol}
}

// Text returns the slice of src covered by the span.
func (s Span) Text(src string) string {
	end := s.ByteOffset + s.Len
	if s.ByteOffset < 0 || end > len(src) || s.Len < 0 {
		return ""
	}
	return src[s.ByteOffset:end]
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.Line, s.Col, s.EndLine, s.EndCol)
}

// Spanned pairs a parsed value with the source range it came from.
type Spanned[T any] struct {
	Value T    `json:"value"`
	Span  Span `json:"span"`
}

// New attaches sp to v.
func New[T any](v T, sp Span) Spanned[T] {
	return Spanned[T]{Value: v, Span: sp}
}

func (s Spanned[T]) String() string {
	return fmt.Sprintf("[%s]%v", s.Span, s.Value)
}

// LineIndex converts byte offsets of one source text into positions.
type LineIndex struct {
	src        string
	lineStarts []int
}

// NewLineIndex scans src once and records where every line begins.
func NewLineIndex(src string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{src: src, lineStarts: starts}
}

// Position resolves a byte offset. Offsets past the end clamp to len(src).
func (li *LineIndex) Position(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(li.src) {
		offset = len(li.src)
	}
	// index of the last line start <= offset
	line := sort.Search(len(li.lineStarts), func(i int) bool {
		return li.lineStarts[i] > offset
	}) - 1
	col := utf8.RuneCountInString(li.src[li.lineStarts[line]:offset]) + 1
	return Position{Offset: offset, Line: line + 1, Col: col}
}

// Span resolves the byte range [start, end).
func (li *LineIndex) Span(start, end int) Span {
	return FromPositions(li.Position(start), li.Position(end))
}

// Rebase moves p, taken relative to a sub-text, into the coordinates of
// the text the sub-text starts at base in.
func (p Position) Rebase(base Position) Position {
	if p.Line == 1 {
		p.Col += base.Col - 1
	}
	p.Line += base.Line - 1
	p.Offset += base.Offset
	return p
}

// Rebase moves s the same way Position.Rebase does.
func (s Span) Rebase(base Position) Span {
	return FromPositions(s.Start().Rebase(base), s.End().Rebase(base))
}
