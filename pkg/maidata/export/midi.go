package export

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/himanishpuri/maidata/pkg/maidata/insn"
	"github.com/himanishpuri/maidata/pkg/maidata/materialize"
)

const (
	// TicksPerQuarter is the MIDI file resolution.
	TicksPerQuarter = 960
	// MIDITempo is fixed so seconds map linearly onto ticks.
	MIDITempo = 120.0

	ticksPerSecond = TicksPerQuarter * MIDITempo / 60
	tapTicks       = TicksPerQuarter / 4

	noteChannel  uint8 = 0
	slideChannel uint8 = 1

	velocityNormal uint8 = 96
	velocityAccent uint8 = 127
)

// MIDIKey is the MIDI note number a lane key sounds as; K1 is middle C.
func MIDIKey(k insn.Key) uint8 {
	return 59 + uint8(k)
}

// SecondsToTicks converts a timestamp to ticks at MIDITempo. Negative
// timestamps clamp to 0.
func SecondsToTicks(secs float64) uint32 {
	if secs <= 0 {
		return 0
	}
	return uint32(math.Round(secs * ticksPerSecond))
}

type midiEvent struct {
	tick    uint32
	off     bool
	channel uint8
	key     uint8
	vel     uint8
}

// WriteMIDI writes notes as a format 1 Standard MIDI File: a tempo track
// followed by a track for taps and holds and one for slide travel.
func WriteMIDI(w io.Writer, notes []materialize.Note, title string) error {
	var taps, slides []midiEvent
	add := func(dst *[]midiEvent, ch uint8, key insn.Key, vel uint8, start, dur uint32) {
		if dur == 0 {
			dur = 1
		}
		k := MIDIKey(key)
		*dst = append(*dst,
			midiEvent{tick: start, channel: ch, key: k, vel: vel},
			midiEvent{tick: start + dur, off: true, channel: ch, key: k},
		)
	}

	for _, n := range notes {
		switch v := n.(type) {
		case materialize.Tap:
			vel := velocityNormal
			if v.Shape != materialize.Ring {
				vel = velocityAccent
			}
			add(&taps, noteChannel, v.Key, vel, SecondsToTicks(v.Ts), tapTicks)
		case materialize.Hold:
			add(&taps, noteChannel, v.Key, velocityNormal, SecondsToTicks(v.Ts), SecondsToTicks(v.Dur))
		case materialize.SlideTrack:
			start := SecondsToTicks(v.StartTs)
			add(&slides, slideChannel, v.Destination, velocityNormal, start, SecondsToTicks(v.End())-start)
		default:
			return fmt.Errorf("unsupported note %T", n)
		}
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var tempo smf.Track
	if title != "" {
		tempo.Add(0, smf.MetaTrackSequenceName(title))
	}
	tempo.Add(0, smf.MetaTempo(MIDITempo))
	tempo.Close(0)

	for _, tr := range []smf.Track{tempo, buildTrack("notes", taps), buildTrack("slides", slides)} {
		if err := s.Add(tr); err != nil {
			return fmt.Errorf("failed to add track: %w", err)
		}
	}

	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write MIDI file: %w", err)
	}
	return nil
}

// buildTrack orders events by tick, releasing before striking at equal
// ticks, and encodes them as delta times.
func buildTrack(name string, events []midiEvent) smf.Track {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})

	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(name))
	var last uint32
	for _, e := range events {
		delta := e.tick - last
		last = e.tick
		if e.off {
			tr.Add(delta, midi.NoteOff(e.channel, e.key))
		} else {
			tr.Add(delta, midi.NoteOn(e.channel, e.key, e.vel))
		}
	}
	tr.Close(0)
	return tr
}
