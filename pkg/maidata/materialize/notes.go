package materialize

import (
	"fmt"

	"github.com/himanishpuri/maidata/pkg/maidata/insn"
)

// TapShape is how a tap-like event is presented.
type TapShape uint8

const (
	Ring TapShape = iota
	Break
	Star
)

func (s TapShape) String() string {
	switch s {
	case Ring:
		return "ring"
	case Break:
		return "break"
	case Star:
		return "star"
	}
	return fmt.Sprintf("TapShape(%d)", uint8(s))
}

// ParseTapShape is the inverse of TapShape.String.
func ParseTapShape(s string) (TapShape, error) {
	switch s {
	case "ring":
		return Ring, nil
	case "break":
		return Break, nil
	case "star":
		return Star, nil
	}
	return 0, fmt.Errorf("unknown tap shape %q", s)
}

// Note is one materialized event: Tap, Hold or SlideTrack.
type Note interface {
	isNote()
	// Timestamp is the absolute time of the slot the note belongs to.
	Timestamp() float64
	fmt.Stringer
}

// Tap is a momentary note. Slide origins are taps with the Star shape.
type Tap struct {
	Ts    float64  `json:"ts"`
	Key   insn.Key `json:"key"`
	Shape TapShape `json:"shape"`
}

// Hold keeps Key pressed from Ts for Dur seconds.
type Hold struct {
	Ts  float64  `json:"ts"`
	Dur float64  `json:"dur"`
	Key insn.Key `json:"key"`
}

// SlideTrack is one travelling segment of a slide. Ts is the slot of the
// star; travel begins at StartTs and lasts Dur seconds.
type SlideTrack struct {
	Ts          float64         `json:"ts"`
	StartTs     float64         `json:"start_ts"`
	Dur         float64         `json:"dur"`
	Start       insn.Key        `json:"start"`
	Destination insn.Key        `json:"destination"`
	Interim     *insn.Key       `json:"interim,omitempty"`
	Shape       insn.SlideShape `json:"shape"`
}

func (Tap) isNote()        {}
func (Hold) isNote()       {}
func (SlideTrack) isNote() {}

func (n Tap) Timestamp() float64        { return n.Ts }
func (n Hold) Timestamp() float64       { return n.Ts }
func (n SlideTrack) Timestamp() float64 { return n.Ts }

// End returns the time the track finishes travelling.
func (n SlideTrack) End() float64 { return n.StartTs + n.Dur }

func (n Tap) String() string {
	return fmt.Sprintf("Tap(%.4f, %s, %s)", n.Ts, n.Key, n.Shape)
}

func (n Hold) String() string {
	return fmt.Sprintf("Hold(%.4f, %s, dur=%.4f)", n.Ts, n.Key, n.Dur)
}

func (n SlideTrack) String() string {
	path := n.Start.String() + n.Shape.Marker()
	if n.Interim != nil {
		path += n.Interim.String()
	}
	path += n.Destination.String()
	return fmt.Sprintf("Slide(%.4f, %s, start=%.4f, dur=%.4f)", n.Ts, path, n.StartTs, n.Dur)
}
