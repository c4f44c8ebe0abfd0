// Package export encodes materialized notes for downstream consumers.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/himanishpuri/maidata/pkg/maidata/insn"
	"github.com/himanishpuri/maidata/pkg/maidata/materialize"
)

const (
	TypeTap   = "tap"
	TypeHold  = "hold"
	TypeSlide = "slide"
)

// Record is the flat, self-describing form of one note. Type selects which
// of the optional fields are set.
type Record struct {
	Type        string    `json:"type"`
	Ts          float64   `json:"ts"`
	Key         insn.Key  `json:"key"`
	Shape       string    `json:"shape"`
	Dur         *float64  `json:"dur,omitempty"`
	StartTs     *float64  `json:"start_ts,omitempty"`
	Destination *insn.Key `json:"destination,omitempty"`
	Interim     *insn.Key `json:"interim,omitempty"`
}

// NewRecord flattens n. For slide tracks Key is the start key.
func NewRecord(n materialize.Note) (Record, error) {
	switch v := n.(type) {
	case materialize.Tap:
		return Record{Type: TypeTap, Ts: v.Ts, Key: v.Key, Shape: v.Shape.String()}, nil
	case materialize.Hold:
		dur := v.Dur
		return Record{Type: TypeHold, Ts: v.Ts, Key: v.Key, Dur: &dur}, nil
	case materialize.SlideTrack:
		dur, start, dest := v.Dur, v.StartTs, v.Destination
		r := Record{
			Type:        TypeSlide,
			Ts:          v.Ts,
			Key:         v.Start,
			Shape:       v.Shape.String(),
			Dur:         &dur,
			StartTs:     &start,
			Destination: &dest,
		}
		if v.Interim != nil {
			k := *v.Interim
			r.Interim = &k
		}
		return r, nil
	}
	return Record{}, fmt.Errorf("unsupported note %T", n)
}

// Records flattens every note, keeping order.
func Records(notes []materialize.Note) ([]Record, error) {
	out := make([]Record, 0, len(notes))
	for _, n := range notes {
		r, err := NewRecord(n)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Note rebuilds the materialized note r was made from.
func (r Record) Note() (materialize.Note, error) {
	switch r.Type {
	case TypeTap:
		shape, err := materialize.ParseTapShape(r.Shape)
		if err != nil {
			return nil, err
		}
		return materialize.Tap{Ts: r.Ts, Key: r.Key, Shape: shape}, nil

	case TypeHold:
		if r.Dur == nil {
			return nil, fmt.Errorf("hold at %g without duration", r.Ts)
		}
		return materialize.Hold{Ts: r.Ts, Dur: *r.Dur, Key: r.Key}, nil

	case TypeSlide:
		if r.Dur == nil || r.StartTs == nil || r.Destination == nil {
			return nil, fmt.Errorf("slide at %g is missing fields", r.Ts)
		}
		shape, ok := insn.SlideShapeByName(r.Shape)
		if !ok {
			return nil, fmt.Errorf("unknown slide shape %q", r.Shape)
		}
		n := materialize.SlideTrack{
			Ts:          r.Ts,
			StartTs:     *r.StartTs,
			Dur:         *r.Dur,
			Start:       r.Key,
			Destination: *r.Destination,
			Shape:       shape,
		}
		if r.Interim != nil {
			k := *r.Interim
			n.Interim = &k
		}
		return n, nil
	}
	return nil, fmt.Errorf("unknown record type %q", r.Type)
}

// NotesFromRecords is the inverse of Records.
func NotesFromRecords(records []Record) ([]materialize.Note, error) {
	out := make([]materialize.Note, 0, len(records))
	for _, r := range records {
		n, err := r.Note()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// WriteJSON writes notes as an indented JSON array of records.
func WriteJSON(w io.Writer, notes []materialize.Note) error {
	records, err := Records(notes)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
