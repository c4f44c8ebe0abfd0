package insn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustParse parses text and fails the test on error
func mustParse(t *testing.T, text string) []SpannedInsn {
	t.Helper()

	insns, err := Parse(text)
	require.NoError(t, err, "parsing %q", text)
	return insns
}

// singleNote returns the note carried by a SingleNote instruction
func singleNote(t *testing.T, in SpannedInsn) RawNoteInsn {
	t.Helper()

	single, ok := in.Value.(SingleNote)
	require.True(t, ok, "expected SingleNote, got %T", in.Value)
	return single.Note.Value
}

// singleSlide parses text and returns its only instruction as a slide
func singleSlide(t *testing.T, text string) SlideNote {
	t.Helper()

	insns := mustParse(t, text)
	require.Len(t, insns, 1)
	slide, ok := singleNote(t, insns[0]).(SlideNote)
	require.True(t, ok, "expected SlideNote for %q", text)
	return slide
}

// TestParseBasicSequence tests tempo, subdivision and single taps with spans
func TestParseBasicSequence(t *testing.T) {
	src := "(120){4}1,2,"
	insns := mustParse(t, src)
	require.Len(t, insns, 4)

	assert.Equal(t, SetTempo{BPM: 120}, insns[0].Value)
	assert.Equal(t, "(120)", insns[0].Span.Text(src))
	assert.Equal(t, SetSubdivision{Divisor: 4}, insns[1].Value)
	assert.Equal(t, "{4}", insns[1].Span.Text(src))

	assert.Equal(t, TapNote{TapParams{Variant: TapNormal, Key: K1}}, singleNote(t, insns[2]))
	assert.Equal(t, TapNote{TapParams{Variant: TapNormal, Key: K2}}, singleNote(t, insns[3]))

	// the instruction span includes the terminating comma, the note span does not
	assert.Equal(t, "1,", insns[2].Span.Text(src))
	note := insns[2].Value.(SingleNote).Note
	assert.Equal(t, "1", note.Span.Text(src))
	assert.Equal(t, 8, note.Span.ByteOffset)
	assert.Equal(t, 9, note.Span.Col)
	assert.Equal(t, 10, note.Span.EndCol)
}

func TestParseEmpty(t *testing.T) {
	for _, src := range []string{"", "   ", "\n\t\r\n"} {
		insns, err := Parse(src)
		require.NoError(t, err)
		assert.Empty(t, insns)
	}
}

// TestParseSimplifiedMultiTap tests that adjacent keys become one bundle
func TestParseSimplifiedMultiTap(t *testing.T) {
	src := "12,"
	insns := mustParse(t, src)
	require.Len(t, insns, 1)

	bundle, ok := insns[0].Value.(NoteBundle)
	require.True(t, ok, "expected NoteBundle, got %T", insns[0].Value)
	require.Len(t, bundle.Notes, 2)

	assert.Equal(t, TapNote{TapParams{Key: K1}}, bundle.Notes[0].Value)
	assert.Equal(t, TapNote{TapParams{Key: K2}}, bundle.Notes[1].Value)
	assert.Equal(t, "1", bundle.Notes[0].Span.Text(src))
	assert.Equal(t, "2", bundle.Notes[1].Span.Text(src))
	assert.Equal(t, 2, bundle.Notes[1].Span.Col)
	assert.Equal(t, "12,", insns[0].Span.Text(src))
}

// TestParseHold tests that a hold is never split into a tap plus leftovers
func TestParseHold(t *testing.T) {
	insns := mustParse(t, "1h[4:4],")
	require.Len(t, insns, 1)

	assert.Equal(t, HoldNote{HoldParams{Key: K1, Len: Beats(4, 4)}}, singleNote(t, insns[0]))

	insns = mustParse(t, "8h[#1.25],")
	require.Len(t, insns, 1)
	assert.Equal(t, HoldNote{HoldParams{Key: K8, Len: Seconds(1.25)}}, singleNote(t, insns[0]))
}

func TestParseBreakTap(t *testing.T) {
	insns := mustParse(t, "3b,")
	require.Len(t, insns, 1)
	assert.Equal(t, TapNote{TapParams{Variant: TapBreak, Key: K3}}, singleNote(t, insns[0]))
}

// TestParseSlideShapes tests every track marker, two-letter ones included
func TestParseSlideShapes(t *testing.T) {
	tests := []struct {
		text  string
		shape SlideShape
	}{
		{"1-5[4:1],", ShapeLine},
		{"1^5[4:1],", ShapeArc},
		{"1<5[4:1],", ShapeCircumferenceLeft},
		{"1>5[4:1],", ShapeCircumferenceRight},
		{"1v5[4:1],", ShapeV},
		{"1p5[4:1],", ShapeP},
		{"1q5[4:1],", ShapeQ},
		{"1s5[4:1],", ShapeS},
		{"1z5[4:1],", ShapeZ},
		{"1pp5[4:1],", ShapePP},
		{"1qq5[4:1],", ShapeQQ},
		{"1w5[4:1],", ShapeSpread},
	}

	for _, tt := range tests {
		t.Run(tt.shape.String(), func(t *testing.T) {
			slide := singleSlide(t, tt.text)

			assert.Equal(t, TapParams{Key: K1}, slide.Start)
			require.Len(t, slide.Tracks, 1)
			track := slide.Tracks[0]
			assert.Equal(t, tt.shape, track.Shape)
			assert.Equal(t, TapParams{Key: K5}, track.Params.Destination)
			assert.Nil(t, track.Params.Interim)
			assert.Equal(t, SlideLength{Len: Beats(4, 1)}, track.Params.Len)
		})
	}
}

func TestParseAngleSlide(t *testing.T) {
	slide := singleSlide(t, "1V35[4:1],")

	require.Len(t, slide.Tracks, 1)
	track := slide.Tracks[0]
	assert.Equal(t, ShapeAngle, track.Shape)
	require.NotNil(t, track.Params.Interim)
	assert.Equal(t, K3, track.Params.Interim.Key)
	assert.Equal(t, K5, track.Params.Destination.Key)
}

func TestParseChainedSlide(t *testing.T) {
	slide := singleSlide(t, "1b-5[4:1]*^3b[8:3],")

	assert.Equal(t, TapParams{Variant: TapBreak, Key: K1}, slide.Start)
	require.Len(t, slide.Tracks, 2)
	assert.Equal(t, ShapeLine, slide.Tracks[0].Shape)
	assert.Equal(t, ShapeArc, slide.Tracks[1].Shape)
	assert.Equal(t, TapParams{Variant: TapBreak, Key: K3}, slide.Tracks[1].Params.Destination)
	assert.Equal(t, Beats(8, 3), slide.Tracks[1].Params.Len.Len)
}

// TestParseSlideLengthForms tests plain and stop-time override brackets
func TestParseSlideLengthForms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want SlideLength
	}{
		{"plain beats", "1-5[8:3],", SlideLength{Len: Beats(8, 3)}},
		{"plain seconds", "1-5[#2],", SlideLength{Len: Seconds(2)}},
		{
			"bpm override", "1-5[160#8:3],",
			SlideLength{Len: Beats(8, 3), StopTime: StopTime{Kind: StopTimeBPM, Value: 160}},
		},
		{
			"seconds override", "1-5[3##1.5],",
			SlideLength{Len: Seconds(1.5), StopTime: StopTime{Kind: StopTimeSeconds, Value: 3}},
		},
		{
			"integer stop time past uint32", "1-5[5000000000##1],",
			SlideLength{Len: Seconds(1), StopTime: StopTime{Kind: StopTimeSeconds, Value: 5000000000}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slide := singleSlide(t, tt.text)
			require.Len(t, slide.Tracks, 1)
			assert.Equal(t, tt.want, slide.Tracks[0].Params.Len)
		})
	}
}

// TestParseBundle tests heterogeneous bundles and per-note spans
func TestParseBundle(t *testing.T) {
	src := "1h[4:1]/2-6[4:1]/3b,"
	insns := mustParse(t, src)
	require.Len(t, insns, 1)

	bundle, ok := insns[0].Value.(NoteBundle)
	require.True(t, ok)
	require.Len(t, bundle.Notes, 3)

	assert.IsType(t, HoldNote{}, bundle.Notes[0].Value)
	assert.IsType(t, SlideNote{}, bundle.Notes[1].Value)
	assert.Equal(t, TapNote{TapParams{Variant: TapBreak, Key: K3}}, bundle.Notes[2].Value)

	assert.Equal(t, "1h[4:1]", bundle.Notes[0].Span.Text(src))
	assert.Equal(t, "2-6[4:1]", bundle.Notes[1].Span.Text(src))
	assert.Equal(t, "3b", bundle.Notes[2].Span.Text(src))
	assert.Equal(t, src, insns[0].Span.Text(src))
}

func TestParseSubdivisionForms(t *testing.T) {
	insns := mustParse(t, "{16}{#0.25}")
	require.Len(t, insns, 2)
	assert.Equal(t, SetSubdivision{Divisor: 16}, insns[0].Value)
	assert.Equal(t, SetSubdivision{Absolute: true, Seconds: 0.25}, insns[1].Value)
}

func TestParseEndMarkAndRests(t *testing.T) {
	insns := mustParse(t, "(60){4},,1,E")
	require.Len(t, insns, 6)
	assert.Equal(t, Rest{}, insns[2].Value)
	assert.Equal(t, Rest{}, insns[3].Value)
	assert.Equal(t, EndMark{}, insns[5].Value)
}

// TestParseWhitespace tests that whitespace may appear between any tokens
func TestParseWhitespace(t *testing.T) {
	src := " ( 120 ) { 4 }\n 1 b ,\n2 h [ 4 : 1 ] ,\n 3 - 7 [ 120 # 4 : 1 ] * > 1 [ # 1 ] ,\n4 / 5 ,"
	insns := mustParse(t, src)
	require.Len(t, insns, 6)

	assert.Equal(t, SetTempo{BPM: 120}, insns[0].Value)
	assert.Equal(t, TapNote{TapParams{Variant: TapBreak, Key: K1}}, singleNote(t, insns[2]))
	assert.Equal(t, HoldNote{HoldParams{Key: K2, Len: Beats(4, 1)}}, singleNote(t, insns[3]))

	slide, ok := singleNote(t, insns[4]).(SlideNote)
	require.True(t, ok)
	require.Len(t, slide.Tracks, 2)
	assert.Equal(t, StopTime{Kind: StopTimeBPM, Value: 120}, slide.Tracks[0].Params.Len.StopTime)
	assert.Equal(t, Seconds(1), slide.Tracks[1].Params.Len.Len)

	bundle, ok := insns[5].Value.(NoteBundle)
	require.True(t, ok)
	assert.Len(t, bundle.Notes, 2)

	// spans start at the first token, not at the leading whitespace
	assert.Equal(t, 2, insns[2].Span.Line)
	assert.Equal(t, 2, insns[2].Span.Col)
	assert.Equal(t, 4, insns[4].Span.Line)
}

// TestParseErrors tests error positions and expected-token reporting
func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		line     int
		col      int
		expected string
		found    string
	}{
		{"invalid key", "9,", 1, 1, "key (1-8)", "'9'"},
		{"unterminated hold", "(120){4}1h[4:4", 1, 15, "']'", ""},
		{"trailing garbage", "(120){4}1,x", 1, 11, "'('", "'x'"},
		{"unknown shape", "(120)\n{4}\n1x5[4:1],", 3, 2, "','", "'x'"},
		{"missing tempo close", "(120{4}", 1, 5, "')'", "'{'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insns, err := Parse(tt.text)
			require.Error(t, err)
			assert.Nil(t, insns)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.line, perr.Pos.Line)
			assert.Equal(t, tt.col, perr.Pos.Col)
			assert.Contains(t, perr.Expected, tt.expected)
			assert.Equal(t, tt.found, perr.Found)
			assert.Empty(t, perr.Msg)
		})
	}
}

// TestParseNumericOverflow tests that out-of-range literals are reported
// at the literal and not backtracked into a different alternative
func TestParseNumericOverflow(t *testing.T) {
	src := "(120){99999999999}"
	_, err := Parse(src)
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Msg, "out of range")
	assert.Equal(t, 1, perr.Pos.Line)
	assert.Equal(t, 7, perr.Pos.Col)
	assert.Equal(t, "99999999999", perr.Span.Text(src))

	_, err = Parse("1h[4:99999999999],")
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Msg, "99999999999")

	src = "1-5[99999999999:1],"
	_, err = Parse(src)
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "99999999999", perr.Span.Text(src))
}

func TestParseErrorMessage(t *testing.T) {
	_, err := Parse("1h[4:4")
	require.Error(t, err)
	assert.Equal(t, "1:7: unexpected end of input, expected ']'", err.Error())
}

func TestInsnStrings(t *testing.T) {
	insns := mustParse(t, "(120){#0.5}1-5[160#8:3]*V37[2##1.5]/2h[4:1],")
	require.Len(t, insns, 3)

	assert.Equal(t, "Tempo(120)", insns[0].Value.String())
	assert.Equal(t, "Subdivision(#0.5)", insns[1].Value.String())
	assert.Equal(t, "Bundle(Slide(1-5[160#8:3]*V37[2##1.5])/Hold(2h[4:1]))", insns[2].Value.String())
}
