package materialize

import (
	"errors"
	"fmt"
	"math"

	"github.com/himanishpuri/maidata/pkg/maidata/insn"
	"github.com/himanishpuri/maidata/pkg/maidata/span"
)

var (
	ErrTempoNotSet       = errors.New("tempo not set")
	ErrSubdivisionNotSet = errors.New("subdivision not set")
	ErrInvalidTempo      = errors.New("invalid tempo")
	ErrInvalidDivisor    = errors.New("invalid divisor")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrUnknownVariant    = errors.New("unknown variant")
)

// Error is a state error tied to the instruction or note that caused it.
// Err is one of the Err* sentinels.
type Error struct {
	Span span.Span
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Span.Line, e.Span.Col, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorf(sp span.Span, kind error, format string, args ...any) *Error {
	return &Error{Span: sp, Err: kind, Msg: kind.Error() + ": " + fmt.Sprintf(format, args...)}
}

// Context carries the timing state of one materialization pass. A Context
// must not be shared between goroutines.
type Context struct {
	beatDur float64

	// slotDur is fixed when the subdivision is set; later tempo changes
	// only affect durations.
	hasSlot bool
	slotDur float64

	cursor float64
}

// NewContext returns a context whose first slot starts at offset seconds.
func NewContext(offset float64) *Context {
	return &Context{cursor: offset}
}

// Cursor returns the timestamp the next slot will be placed at.
func (c *Context) Cursor() float64 { return c.cursor }

// BeatDuration returns the seconds per beat, or 0 before any tempo change.
func (c *Context) BeatDuration() float64 { return c.beatDur }

// SlotDuration returns the seconds per slot, or 0 before any subdivision.
func (c *Context) SlotDuration() float64 { return c.slotDur }

// Materialize replays insns from offset and returns the timed notes.
// The first error aborts the pass and no notes are returned.
func Materialize(offset float64, insns []insn.SpannedInsn) ([]Note, error) {
	return NewContext(offset).MaterializeInsns(insns)
}

// MaterializeInsns feeds every instruction through the context in order.
func (c *Context) MaterializeInsns(insns []insn.SpannedInsn) ([]Note, error) {
	notes := make([]Note, 0, len(insns))
	for _, in := range insns {
		out, err := c.MaterializeInsn(in)
		if err != nil {
			return nil, err
		}
		notes = append(notes, out...)
	}
	return notes, nil
}

// MaterializeInsn applies one instruction and returns the notes it produces.
func (c *Context) MaterializeInsn(in insn.SpannedInsn) ([]Note, error) {
	switch v := in.Value.(type) {
	case insn.SetTempo:
		return nil, c.setTempo(in.Span, v.BPM)

	case insn.SetSubdivision:
		if v.Absolute {
			return nil, c.setAbsoluteSlot(in.Span, v.Seconds)
		}
		return nil, c.setDivisor(in.Span, v.Divisor)

	case insn.Rest:
		_, err := c.advance(in.Span)
		return nil, err

	case insn.EndMark:
		return nil, nil

	case insn.SingleNote:
		ts, err := c.advance(in.Span)
		if err != nil {
			return nil, err
		}
		return c.materializeNote(ts, v.Note, nil)

	case insn.NoteBundle:
		ts, err := c.advance(in.Span)
		if err != nil {
			return nil, err
		}
		notes := make([]Note, 0, len(v.Notes))
		for _, n := range v.Notes {
			if notes, err = c.materializeNote(ts, n, notes); err != nil {
				return nil, err
			}
		}
		return notes, nil
	}
	return nil, errorf(in.Span, ErrUnknownVariant, "instruction %T", in.Value)
}

func (c *Context) setTempo(sp span.Span, bpm float64) error {
	if !isFinite(bpm) || bpm <= 0 {
		return errorf(sp, ErrInvalidTempo, "bpm must be positive, got %g", bpm)
	}
	c.beatDur = 60 / bpm
	return nil
}

func (c *Context) setDivisor(sp span.Span, divisor uint32) error {
	if divisor == 0 {
		return errorf(sp, ErrInvalidDivisor, "divisor must be positive")
	}
	if c.beatDur == 0 {
		return errorf(sp, ErrTempoNotSet, "subdivision {%d} needs a tempo", divisor)
	}
	c.hasSlot = true
	c.slotDur = divideBeat(c.beatDur, divisor)
	return nil
}

func (c *Context) setAbsoluteSlot(sp span.Span, secs float64) error {
	if !isFinite(secs) || secs <= 0 {
		return errorf(sp, ErrInvalidDuration, "slot duration must be positive, got %g", secs)
	}
	c.hasSlot = true
	c.slotDur = secs
	return nil
}

// advance returns the current slot's timestamp and moves the cursor to the
// next slot.
func (c *Context) advance(sp span.Span) (float64, error) {
	if c.beatDur == 0 {
		return 0, errorf(sp, ErrTempoNotSet, "slot used before any tempo change")
	}
	if !c.hasSlot {
		return 0, errorf(sp, ErrSubdivisionNotSet, "slot used before any subdivision change")
	}
	ts := c.cursor
	c.cursor += c.slotDur
	return ts, nil
}

// materializeNote appends the events of one note at ts to dst.
func (c *Context) materializeNote(ts float64, n insn.SpannedNote, dst []Note) ([]Note, error) {
	switch v := n.Value.(type) {
	case insn.TapNote:
		shape := Ring
		if v.Variant == insn.TapBreak {
			shape = Break
		}
		return append(dst, Tap{Ts: ts, Key: v.Key, Shape: shape}), nil

	case insn.HoldNote:
		dur, err := c.resolve(n.Span, v.Len)
		if err != nil {
			return nil, err
		}
		return append(dst, Hold{Ts: ts, Dur: dur, Key: v.Key}), nil

	case insn.SlideNote:
		return c.materializeSlide(ts, n.Span, v.SlideParams, dst)
	}
	return nil, errorf(n.Span, ErrUnknownVariant, "note %T", n.Value)
}

// materializeSlide emits the star followed by one event per track.
func (c *Context) materializeSlide(ts float64, sp span.Span, p insn.SlideParams, dst []Note) ([]Note, error) {
	if len(p.Tracks) == 0 {
		return nil, errorf(sp, ErrUnknownVariant, "slide without tracks")
	}
	dst = append(dst, Tap{Ts: ts, Key: p.Start.Key, Shape: Star})

	for _, track := range p.Tracks {
		stop, err := c.stopTime(sp, track.Params.Len.StopTime)
		if err != nil {
			return nil, err
		}
		dur, err := c.resolve(sp, track.Params.Len.Len)
		if err != nil {
			return nil, err
		}

		event := SlideTrack{
			Ts:          ts,
			StartTs:     ts + stop,
			Dur:         dur,
			Start:       p.Start.Key,
			Destination: track.Params.Destination.Key,
			Shape:       track.Shape,
		}
		if track.Params.Interim != nil {
			k := track.Params.Interim.Key
			event.Interim = &k
		}
		dst = append(dst, event)
	}
	return dst, nil
}

// stopTime uses the tempo in effect at the slide's own slot.
func (c *Context) stopTime(sp span.Span, st insn.StopTime) (float64, error) {
	switch st.Kind {
	case insn.StopTimeDefault:
		return c.beatDur, nil
	case insn.StopTimeBPM:
		if !isFinite(st.Value) || st.Value <= 0 {
			return 0, errorf(sp, ErrInvalidTempo, "stop time bpm must be positive, got %g", st.Value)
		}
		return 60 / st.Value, nil
	case insn.StopTimeSeconds:
		if !isFinite(st.Value) || st.Value < 0 {
			return 0, errorf(sp, ErrInvalidDuration, "stop time must not be negative, got %g", st.Value)
		}
		return st.Value, nil
	}
	return 0, errorf(sp, ErrUnknownVariant, "stop time kind %d", st.Kind)
}

// resolve converts a length to seconds at the current tempo.
func (c *Context) resolve(sp span.Span, l insn.Length) (float64, error) {
	switch l.Kind {
	case insn.LengthBeats:
		if l.Divisor == 0 {
			return 0, errorf(sp, ErrInvalidDivisor, "length %s has a zero divisor", l)
		}
		return divideBeat(c.beatDur, l.Divisor) * float64(l.Count), nil
	case insn.LengthSeconds:
		if !isFinite(l.Seconds) || l.Seconds < 0 {
			return 0, errorf(sp, ErrInvalidDuration, "length must not be negative, got %g", l.Seconds)
		}
		return l.Seconds, nil
	}
	return 0, errorf(sp, ErrUnknownVariant, "length kind %d", l.Kind)
}

// divideBeat is the duration of one divisor-th of a four-beat whole note.
func divideBeat(beatDur float64, divisor uint32) float64 {
	return beatDur * 4 / float64(divisor)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
