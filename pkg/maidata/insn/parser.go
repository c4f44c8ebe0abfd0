package insn

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/himanishpuri/maidata/pkg/maidata/span"
)

// ParseError reports the first position the instruction text could not be
// parsed at. Numeric literal errors carry the literal's span in Span.
type ParseError struct {
	Pos      span.Position
	Span     span.Span
	Expected []string
	Found    string
	Msg      string
}

func (e *ParseError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
	}
	found := "end of input"
	if e.Found != "" {
		found = e.Found
	}
	if len(e.Expected) == 0 {
		return fmt.Sprintf("%s: unexpected %s", e.Pos, found)
	}
	return fmt.Sprintf("%s: unexpected %s, expected %s", e.Pos, found, strings.Join(e.Expected, " or "))
}

// Parse turns one difficulty's instruction text into its ordered,
// span-tagged instruction list. The whole input must parse; on failure no
// instructions are returned.
func Parse(text string) ([]SpannedInsn, error) {
	p := &parser{src: text, lines: span.NewLineIndex(text)}

	insns := make([]SpannedInsn, 0, strings.Count(text, ",")+2)
	for {
		p.skipSpace()
		if p.eof() {
			return insns, nil
		}

		p.failPos = -1
		p.expected = p.expected[:0]

		insn, ok := p.instruction()
		if p.fatal != nil {
			return nil, p.fatal
		}
		if !ok {
			return nil, p.failure()
		}
		insns = append(insns, insn)
	}
}

type parser struct {
	src   string
	pos   int
	lines *span.LineIndex

	// furthest failure within the instruction being parsed
	failPos  int
	expected []string

	// set for errors that must not be backtracked over
	fatal *ParseError
}

// attempt runs fn and rewinds the input if it fails.
func attempt[T any](p *parser, fn func() (T, bool)) (T, bool) {
	saved := p.pos
	v, ok := fn()
	if !ok || p.fatal != nil {
		p.pos = saved
		var zero T
		return zero, false
	}
	return v, true
}

// alt tries each alternative in order and keeps the first that succeeds.
func alt[T any](p *parser, fns ...func() (T, bool)) (T, bool) {
	for _, fn := range fns {
		if v, ok := attempt(p, fn); ok {
			return v, true
		}
		if p.fatal != nil {
			break
		}
	}
	var zero T
	return zero, false
}

// many applies fn until it fails, returning everything it produced.
func many[T any](p *parser, fn func() (T, bool)) []T {
	var out []T
	for {
		v, ok := attempt(p, fn)
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) fail(expected string) {
	switch {
	case p.pos > p.failPos:
		p.failPos = p.pos
		p.expected = append(p.expected[:0], expected)
	case p.pos == p.failPos:
		for _, e := range p.expected {
			if e == expected {
				return
			}
		}
		p.expected = append(p.expected, expected)
	}
}

func (p *parser) failure() *ParseError {
	pos := p.failPos
	if pos < 0 {
		pos = p.pos
	}
	err := &ParseError{
		Pos:      p.lines.Position(pos),
		Expected: append([]string(nil), p.expected...),
	}
	if pos < len(p.src) {
		r, _ := utf8.DecodeRuneInString(p.src[pos:])
		err.Found = strconv.QuoteRune(r)
	}
	return err
}

func (p *parser) fatalf(start, end int, format string, args ...any) {
	if p.fatal != nil {
		return
	}
	p.fatal = &ParseError{
		Pos:  p.lines.Position(start),
		Span: p.lines.Span(start, end),
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (p *parser) spanFrom(start int) span.Span {
	return p.lines.Span(start, p.pos)
}

// char consumes c after optional whitespace.
func (p *parser) char(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	p.fail(strconv.QuoteRune(rune(c)))
	return false
}

// literal consumes s after optional whitespace.
func (p *parser) literal(s string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], s) {
		p.pos += len(s)
		return true
	}
	p.fail(strconv.Quote(s))
	return false
}

func (p *parser) digits() (string, int, bool) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		p.fail("digit")
		return "", start, false
	}
	return p.src[start:p.pos], start, true
}

func (p *parser) uint32() (uint32, bool) {
	lit, start, ok := p.digits()
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(lit, 10, 32)
	if err != nil {
		p.fatalf(start, p.pos, "integer %s out of range", lit)
		return 0, false
	}
	return uint32(n), true
}

// float accepts [+-]digits[.digits][e[+-]digits], with digits on at least
// one side of the point.
func (p *parser) float() (float64, bool) {
	p.skipSpace()
	start := p.pos
	i := p.pos
	if i < len(p.src) && (p.src[i] == '+' || p.src[i] == '-') {
		i++
	}
	mantissa := 0
	for i < len(p.src) && isDigit(p.src[i]) {
		i++
		mantissa++
	}
	if i < len(p.src) && p.src[i] == '.' {
		i++
		for i < len(p.src) && isDigit(p.src[i]) {
			i++
			mantissa++
		}
	}
	if mantissa == 0 {
		p.fail("number")
		return 0, false
	}
	if i < len(p.src) && (p.src[i] == 'e' || p.src[i] == 'E') {
		j := i + 1
		if j < len(p.src) && (p.src[j] == '+' || p.src[j] == '-') {
			j++
		}
		if j < len(p.src) && isDigit(p.src[j]) {
			for j < len(p.src) && isDigit(p.src[j]) {
				j++
			}
			i = j
		}
	}
	p.pos = i

	lit := p.src[start:i]
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		p.fatalf(start, i, "number %s out of range", lit)
		return 0, false
	}
	return f, true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (p *parser) key() (Key, bool) {
	p.skipSpace()
	if p.pos < len(p.src) {
		if k, err := ParseKey(rune(p.src[p.pos])); err == nil {
			p.pos++
			return k, true
		}
	}
	p.fail("key (1-8)")
	return 0, false
}

func (p *parser) tapParam() (TapParams, bool) {
	k, ok := p.key()
	if !ok {
		return TapParams{}, false
	}
	params := TapParams{Variant: TapNormal, Key: k}

	saved := p.pos
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == 'b' {
		p.pos++
		params.Variant = TapBreak
	} else {
		p.pos = saved
	}
	return params, true
}

// ---- instructions ----

func (p *parser) instruction() (SpannedInsn, bool) {
	return alt(p,
		p.tempo,
		p.subdivision,
		p.rest,
		p.singleTap,
		p.multiTapSimplified,
		p.singleHold,
		p.singleSlide,
		p.bundle,
		p.endMark,
	)
}

func (p *parser) tempo() (SpannedInsn, bool) {
	p.skipSpace()
	start := p.pos
	if !p.char('(') {
		return SpannedInsn{}, false
	}
	bpm, ok := p.float()
	if !ok || !p.char(')') {
		return SpannedInsn{}, false
	}
	return span.New[RawInsn](SetTempo{BPM: bpm}, p.spanFrom(start)), true
}

func (p *parser) subdivision() (SpannedInsn, bool) {
	p.skipSpace()
	start := p.pos
	if !p.char('{') {
		return SpannedInsn{}, false
	}
	// integer form first, absolute duration second
	sub, ok := alt(p,
		func() (SetSubdivision, bool) {
			d, ok := p.uint32()
			return SetSubdivision{Divisor: d}, ok
		},
		func() (SetSubdivision, bool) {
			secs, ok := p.absoluteDuration()
			return SetSubdivision{Absolute: true, Seconds: secs}, ok
		},
	)
	if !ok || !p.char('}') {
		return SpannedInsn{}, false
	}
	return span.New[RawInsn](sub, p.spanFrom(start)), true
}

func (p *parser) absoluteDuration() (float64, bool) {
	if !p.char('#') {
		return 0, false
	}
	return p.float()
}

func (p *parser) rest() (SpannedInsn, bool) {
	p.skipSpace()
	start := p.pos
	if !p.char(',') {
		return SpannedInsn{}, false
	}
	return span.New[RawInsn](Rest{}, p.spanFrom(start)), true
}

func (p *parser) endMark() (SpannedInsn, bool) {
	p.skipSpace()
	start := p.pos
	if !p.char('E') {
		return SpannedInsn{}, false
	}
	return span.New[RawInsn](EndMark{}, p.spanFrom(start)), true
}

// single wraps one note rule into a comma-terminated instruction.
func (p *parser) single(note func() (SpannedNote, bool)) (SpannedInsn, bool) {
	p.skipSpace()
	start := p.pos
	n, ok := note()
	if !ok || !p.char(',') {
		return SpannedInsn{}, false
	}
	return span.New[RawInsn](SingleNote{Note: n}, p.spanFrom(start)), true
}

func (p *parser) singleTap() (SpannedInsn, bool)   { return p.single(p.tap) }
func (p *parser) singleHold() (SpannedInsn, bool)  { return p.single(p.hold) }
func (p *parser) singleSlide() (SpannedInsn, bool) { return p.single(p.slide) }

// multiTapSimplified parses adjacent bare keys such as `12,`. Every key gets
// its own span; all taps are regular ones.
func (p *parser) multiTapSimplified() (SpannedInsn, bool) {
	p.skipSpace()
	start := p.pos
	notes := many(p, func() (SpannedNote, bool) {
		p.skipSpace()
		s := p.pos
		k, ok := p.key()
		if !ok {
			return SpannedNote{}, false
		}
		tap := TapNote{TapParams{Variant: TapNormal, Key: k}}
		return span.New[RawNoteInsn](tap, p.spanFrom(s)), true
	})
	if len(notes) == 0 || !p.char(',') {
		return SpannedInsn{}, false
	}
	return span.New[RawInsn](NoteBundle{Notes: notes}, p.spanFrom(start)), true
}

// bundle parses `/`-separated heterogeneous notes sharing one slot.
func (p *parser) bundle() (SpannedInsn, bool) {
	p.skipSpace()
	start := p.pos
	first, ok := p.bundleNote()
	if !ok {
		return SpannedInsn{}, false
	}
	rest := many(p, func() (SpannedNote, bool) {
		if !p.char('/') {
			return SpannedNote{}, false
		}
		return p.bundleNote()
	})
	if len(rest) == 0 || !p.char(',') {
		return SpannedInsn{}, false
	}
	notes := make([]SpannedNote, 0, len(rest)+1)
	notes = append(notes, first)
	notes = append(notes, rest...)
	return span.New[RawInsn](NoteBundle{Notes: notes}, p.spanFrom(start)), true
}

// bundleNote tries tap last: a bare key is a prefix of both holds and slides.
func (p *parser) bundleNote() (SpannedNote, bool) {
	return alt(p, p.hold, p.slide, p.tap)
}

// ---- notes ----

func (p *parser) tap() (SpannedNote, bool) {
	p.skipSpace()
	start := p.pos
	params, ok := p.tapParam()
	if !ok {
		return SpannedNote{}, false
	}
	return span.New[RawNoteInsn](TapNote{params}, p.spanFrom(start)), true
}

func (p *parser) hold() (SpannedNote, bool) {
	p.skipSpace()
	start := p.pos
	k, ok := p.key()
	if !ok || !p.char('h') {
		return SpannedNote{}, false
	}
	l, ok := p.lengthBracket()
	if !ok {
		return SpannedNote{}, false
	}
	return span.New[RawNoteInsn](HoldNote{HoldParams{Key: k, Len: l}}, p.spanFrom(start)), true
}

func (p *parser) slide() (SpannedNote, bool) {
	p.skipSpace()
	start := p.pos
	origin, ok := p.tapParam()
	if !ok {
		return SpannedNote{}, false
	}
	first, ok := p.slideTrack()
	if !ok {
		return SpannedNote{}, false
	}
	chained := many(p, func() (SlideTrack, bool) {
		if !p.char('*') {
			return SlideTrack{}, false
		}
		return p.slideTrack()
	})

	tracks := make([]SlideTrack, 0, len(chained)+1)
	tracks = append(tracks, first)
	tracks = append(tracks, chained...)
	note := SlideNote{SlideParams{Start: origin, Tracks: tracks}}
	return span.New[RawNoteInsn](note, p.spanFrom(start)), true
}

// slideTrackOrder lists shape markers in the order they are tried. The
// two-letter markers come before their one-letter prefixes.
var slideTrackOrder = []SlideShape{
	ShapePP,
	ShapeQQ,
	ShapeLine,
	ShapeArc,
	ShapeCircumferenceLeft,
	ShapeCircumferenceRight,
	ShapeV,
	ShapeP,
	ShapeQ,
	ShapeS,
	ShapeZ,
	ShapeAngle,
	ShapeSpread,
}

func (p *parser) slideTrack() (SlideTrack, bool) {
	rules := make([]func() (SlideTrack, bool), len(slideTrackOrder))
	for i, shape := range slideTrackOrder {
		rules[i] = p.slideTrackOf(shape)
	}
	return alt(p, rules...)
}

func (p *parser) slideTrackOf(shape SlideShape) func() (SlideTrack, bool) {
	return func() (SlideTrack, bool) {
		if !p.literal(shape.Marker()) {
			return SlideTrack{}, false
		}
		var params SlideTrackParams
		if shape == ShapeAngle {
			interim, ok := p.tapParam()
			if !ok {
				return SlideTrack{}, false
			}
			params.Interim = &interim
		}
		dest, ok := p.tapParam()
		if !ok {
			return SlideTrack{}, false
		}
		params.Destination = dest
		l, ok := p.slideLengthBracket()
		if !ok {
			return SlideTrack{}, false
		}
		params.Len = l
		return SlideTrack{Shape: shape, Params: params}, true
	}
}

// ---- lengths ----

func (p *parser) lengthBracket() (Length, bool) {
	if !p.char('[') {
		return Length{}, false
	}
	l, ok := p.lengthSpec()
	if !ok || !p.char(']') {
		return Length{}, false
	}
	return l, true
}

func (p *parser) lengthSpec() (Length, bool) {
	return alt(p, p.beatsLength, p.absoluteLength)
}

// beatsLength parses `divisor:count`. The divisor is range checked only
// once the ':' is seen, so a large stop time in `[x##secs]` still parses.
func (p *parser) beatsLength() (Length, bool) {
	lit, start, ok := p.digits()
	if !ok || !p.char(':') {
		return Length{}, false
	}
	divisor, err := strconv.ParseUint(lit, 10, 32)
	if err != nil {
		p.fatalf(start, start+len(lit), "integer %s out of range", lit)
		return Length{}, false
	}
	count, ok := p.uint32()
	if !ok {
		return Length{}, false
	}
	return Beats(uint32(divisor), count), true
}

func (p *parser) absoluteLength() (Length, bool) {
	secs, ok := p.absoluteDuration()
	if !ok {
		return Length{}, false
	}
	return Seconds(secs), true
}

// slideLengthBracket tries the plain bracket before the stop-time override
// form, which would otherwise also accept a plain prefix.
func (p *parser) slideLengthBracket() (SlideLength, bool) {
	return alt(p,
		func() (SlideLength, bool) {
			l, ok := p.lengthBracket()
			return SlideLength{Len: l}, ok
		},
		p.overrideLengthBracket,
	)
}

// overrideLengthBracket parses `[x#divisor:count]` (x is a BPM) and
// `[x##seconds]` (x is seconds).
func (p *parser) overrideLengthBracket() (SlideLength, bool) {
	if !p.char('[') {
		return SlideLength{}, false
	}
	x, ok := p.float()
	if !ok || !p.char('#') {
		return SlideLength{}, false
	}
	sl, ok := alt(p,
		func() (SlideLength, bool) {
			l, ok := p.beatsLength()
			return SlideLength{Len: l, StopTime: StopTime{Kind: StopTimeBPM, Value: x}}, ok
		},
		func() (SlideLength, bool) {
			l, ok := p.absoluteLength()
			return SlideLength{Len: l, StopTime: StopTime{Kind: StopTimeSeconds, Value: x}}, ok
		},
	)
	if !ok || !p.char(']') {
		return SlideLength{}, false
	}
	return sl, true
}
