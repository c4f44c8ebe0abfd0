package insn

import (
	"fmt"
	"strconv"

	"github.com/himanishpuri/maidata/pkg/maidata/span"
)

// Key is one of the 8 lane positions around the play field.
type Key uint8

const (
	K1 Key = iota + 1
	K2
	K3
	K4
	K5
	K6
	K7
	K8
)

// ParseKey maps the characters '1'..'8' to a Key.
func ParseKey(c rune) (Key, error) {
	if c < '1' || c > '8' {
		return 0, fmt.Errorf("invalid key %q", c)
	}
	return Key(c - '0'), nil
}

// Valid reports whether k is one of K1..K8.
func (k Key) Valid() bool {
	return k >= K1 && k <= K8
}

func (k Key) String() string {
	return strconv.Itoa(int(k))
}

// TapVariant distinguishes regular taps from break taps.
type TapVariant uint8

const (
	TapNormal TapVariant = iota
	TapBreak
)

func (v TapVariant) String() string {
	if v == TapBreak {
		return "break"
	}
	return "tap"
}

// LengthKind selects how a Length is expressed.
type LengthKind uint8

const (
	// LengthBeats is Count Divisor-th fractions of a whole note (4 beats).
	LengthBeats LengthKind = iota
	// LengthSeconds is an absolute duration, independent of tempo.
	LengthSeconds
)

// Length is the duration of a hold or slide track.
type Length struct {
	Kind    LengthKind `json:"kind"`
	Divisor uint32     `json:"divisor,omitempty"`
	Count   uint32     `json:"count,omitempty"`
	Seconds float64    `json:"seconds,omitempty"`
}

// Beats returns a beat-fraction length of count divisor-th notes.
func Beats(divisor, count uint32) Length {
	return Length{Kind: LengthBeats, Divisor: divisor, Count: count}
}

// Seconds returns an absolute length.
func Seconds(secs float64) Length {
	return Length{Kind: LengthSeconds, Seconds: secs}
}

func (l Length) String() string {
	if l.Kind == LengthSeconds {
		return "#" + strconv.FormatFloat(l.Seconds, 'g', -1, 64)
	}
	return fmt.Sprintf("%d:%d", l.Divisor, l.Count)
}

// StopTimeKind selects how a slide's stop time is chosen.
type StopTimeKind uint8

const (
	// StopTimeDefault waits exactly one beat at the current tempo.
	StopTimeDefault StopTimeKind = iota
	// StopTimeBPM waits one beat at an overriding tempo.
	StopTimeBPM
	// StopTimeSeconds waits an absolute number of seconds.
	StopTimeSeconds
)

// StopTime is the optional override carried by a slide-length bracket.
type StopTime struct {
	Kind  StopTimeKind `json:"kind"`
	Value float64      `json:"value,omitempty"`
}

// SlideLength is a slide track's travel length plus its stop time.
type SlideLength struct {
	Len      Length   `json:"len"`
	StopTime StopTime `json:"stop_time"`
}

func (l SlideLength) String() string {
	if l.StopTime.Kind == StopTimeDefault {
		return l.Len.String()
	}
	// seconds lengths already print their own '#', giving the x##secs form
	return strconv.FormatFloat(l.StopTime.Value, 'g', -1, 64) + "#" + l.Len.String()
}

// SlideShape is the path a slide track travels along.
type SlideShape uint8

const (
	ShapeLine SlideShape = iota
	ShapeArc
	ShapeCircumferenceLeft
	ShapeCircumferenceRight
	ShapeV
	ShapeP
	ShapeQ
	ShapeS
	ShapeZ
	ShapePP
	ShapeQQ
	ShapeAngle
	ShapeSpread
)

var shapeMarkers = [...]string{
	ShapeLine:               "-",
	ShapeArc:                "^",
	ShapeCircumferenceLeft:  "<",
	ShapeCircumferenceRight: ">",
	ShapeV:                  "v",
	ShapeP:                  "p",
	ShapeQ:                  "q",
	ShapeS:                  "s",
	ShapeZ:                  "z",
	ShapePP:                 "pp",
	ShapeQQ:                 "qq",
	ShapeAngle:              "V",
	ShapeSpread:             "w",
}

var shapeNames = [...]string{
	ShapeLine:               "line",
	ShapeArc:                "arc",
	ShapeCircumferenceLeft:  "circumference_left",
	ShapeCircumferenceRight: "circumference_right",
	ShapeV:                  "v",
	ShapeP:                  "p",
	ShapeQ:                  "q",
	ShapeS:                  "s",
	ShapeZ:                  "z",
	ShapePP:                 "pp",
	ShapeQQ:                 "qq",
	ShapeAngle:              "angle",
	ShapeSpread:             "spread",
}

// Marker returns the notation used for the shape.
func (s SlideShape) Marker() string {
	if int(s) < len(shapeMarkers) {
		return shapeMarkers[s]
	}
	return "?"
}

func (s SlideShape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("SlideShape(%d)", uint8(s))
}

// SlideShapeByName is the inverse of SlideShape.String.
func SlideShapeByName(name string) (SlideShape, bool) {
	for i, n := range shapeNames {
		if n == name {
			return SlideShape(i), true
		}
	}
	return 0, false
}

// TapParams describes a tap-like point.
type TapParams struct {
	Variant TapVariant `json:"variant"`
	Key     Key        `json:"key"`
}

func (p TapParams) String() string {
	if p.Variant == TapBreak {
		return p.Key.String() + "b"
	}
	return p.Key.String()
}

// HoldParams describes a hold on one lane.
type HoldParams struct {
	Key Key    `json:"key"`
	Len Length `json:"len"`
}

// SlideTrackParams describes one segment of a slide.
// Interim is set only for ShapeAngle.
type SlideTrackParams struct {
	Destination TapParams   `json:"destination"`
	Interim     *TapParams  `json:"interim,omitempty"`
	Len         SlideLength `json:"len"`
}

// SlideTrack is one shaped segment of a slide.
type SlideTrack struct {
	Shape  SlideShape       `json:"shape"`
	Params SlideTrackParams `json:"params"`
}

func (t SlideTrack) String() string {
	s := t.Shape.Marker()
	if t.Params.Interim != nil {
		s += t.Params.Interim.String()
	}
	return s + t.Params.Destination.String() + "[" + t.Params.Len.String() + "]"
}

// SlideParams is a star followed by one or more chained tracks.
type SlideParams struct {
	Start  TapParams    `json:"start"`
	Tracks []SlideTrack `json:"tracks"`
}

// RawNoteInsn is a note that can occupy a single time slot:
// TapNote, HoldNote or SlideNote.
type RawNoteInsn interface {
	isRawNote()
	fmt.Stringer
}

type TapNote struct{ TapParams }

type HoldNote struct{ HoldParams }

type SlideNote struct{ SlideParams }

func (TapNote) isRawNote()   {}
func (HoldNote) isRawNote()  {}
func (SlideNote) isRawNote() {}

func (n TapNote) String() string { return "Tap(" + n.TapParams.String() + ")" }

func (n HoldNote) String() string {
	return fmt.Sprintf("Hold(%sh[%s])", n.Key, n.Len)
}

func (n SlideNote) String() string {
	s := "Slide(" + n.Start.String()
	for i, t := range n.Tracks {
		if i > 0 {
			s += "*"
		}
		s += t.String()
	}
	return s + ")"
}

// SpannedNote is a note with its source location.
type SpannedNote = span.Spanned[RawNoteInsn]

// RawInsn is one parsed instruction: SetTempo, SetSubdivision, Rest,
// SingleNote, NoteBundle or EndMark.
type RawInsn interface {
	isRawInsn()
	fmt.Stringer
}

// SetTempo changes the beat duration to 60/BPM seconds.
type SetTempo struct {
	BPM float64
}

// SetSubdivision changes the slot duration. Exactly one of the two forms is
// active: Absolute selects Seconds, otherwise Divisor is used.
type SetSubdivision struct {
	Divisor  uint32
	Absolute bool
	Seconds  float64
}

// Rest consumes one slot without emitting anything.
type Rest struct{}

// SingleNote occupies one slot with one note.
type SingleNote struct {
	Note SpannedNote
}

// NoteBundle occupies one slot with several simultaneous notes.
type NoteBundle struct {
	Notes []SpannedNote
}

// EndMark is the chart end marker `E`.
type EndMark struct{}

func (SetTempo) isRawInsn()       {}
func (SetSubdivision) isRawInsn() {}
func (Rest) isRawInsn()           {}
func (SingleNote) isRawInsn()     {}
func (NoteBundle) isRawInsn()     {}
func (EndMark) isRawInsn()        {}

func (i SetTempo) String() string {
	return "Tempo(" + strconv.FormatFloat(i.BPM, 'g', -1, 64) + ")"
}

func (i SetSubdivision) String() string {
	if i.Absolute {
		return "Subdivision(#" + strconv.FormatFloat(i.Seconds, 'g', -1, 64) + ")"
	}
	return fmt.Sprintf("Subdivision(%d)", i.Divisor)
}

func (Rest) String() string    { return "Rest" }
func (EndMark) String() string { return "EndMark" }

func (i SingleNote) String() string { return i.Note.Value.String() }

func (i NoteBundle) String() string {
	s := "Bundle("
	for j, n := range i.Notes {
		if j > 0 {
			s += "/"
		}
		s += n.Value.String()
	}
	return s + ")"
}

// SpannedInsn is an instruction with its source location.
type SpannedInsn = span.Spanned[RawInsn]
