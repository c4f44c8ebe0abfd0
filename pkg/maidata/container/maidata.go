package container

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/himanishpuri/maidata/pkg/maidata/insn"
	"github.com/himanishpuri/maidata/pkg/maidata/materialize"
	"github.com/himanishpuri/maidata/pkg/maidata/span"
)

// Maidata is a parsed maidata.txt: song metadata plus one Chart per
// difficulty that has any field set.
type Maidata struct {
	Title    string
	Artist   string
	Designer string
	Message  string
	// Offset is the global `first` value, nil when absent.
	Offset *float64

	charts map[Difficulty]*Chart
	raw    map[string]KeyVal
}

// Chart is the data of one difficulty. Empty fields fall back to the song
// level values through the accessor methods.
type Chart struct {
	difficulty Difficulty
	song       *Maidata

	level    *Level
	designer string
	message  string
	offset   *float64

	inote      string
	inoteStart span.Position
}

// Parse lexes text and interprets the known keys. Unknown keys are kept and
// can be read with Get.
func Parse(text string) (*Maidata, error) {
	kvs, err := Lex(text)
	if err != nil {
		return nil, err
	}

	m := &Maidata{
		charts: make(map[Difficulty]*Chart),
		raw:    make(map[string]KeyVal, len(kvs)),
	}
	for _, kv := range kvs {
		m.raw[kv.Key] = kv
		if err := m.apply(kv); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Maidata) apply(kv KeyVal) error {
	switch kv.Key {
	case "title":
		m.Title = kv.Val
		return nil
	case "artist":
		m.Artist = kv.Val
		return nil
	case "des":
		m.Designer = kv.Val
		return nil
	case "smsg":
		m.Message = kv.Val
		return nil
	case "first":
		f, err := parseOffset(kv)
		if err != nil {
			return err
		}
		m.Offset = &f
		return nil
	}

	name, diff, ok := splitDifficultyKey(kv.Key)
	if !ok {
		return nil
	}
	c := m.chart(diff)
	switch name {
	case "lv":
		lv, err := ParseLevel(kv.Val)
		if err != nil {
			return &Error{Pos: kv.ValSpan.Start(), Key: kv.Key, Msg: err.Error()}
		}
		c.level = &lv
	case "des":
		c.designer = kv.Val
	case "smsg":
		c.message = kv.Val
	case "first":
		f, err := parseOffset(kv)
		if err != nil {
			return err
		}
		c.offset = &f
	case "inote":
		c.inote = kv.Val
		c.inoteStart = kv.ValSpan.Start()
	}
	return nil
}

// splitDifficultyKey splits keys like "inote_5" into ("inote", Master).
func splitDifficultyKey(key string) (string, Difficulty, bool) {
	name, num, ok := strings.Cut(key, "_")
	if !ok {
		return "", 0, false
	}
	switch name {
	case "lv", "des", "smsg", "first", "inote":
	default:
		return "", 0, false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 || !Difficulty(n).Valid() {
		return "", 0, false
	}
	return name, Difficulty(n), true
}

func parseOffset(kv KeyVal) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(kv.Val), 64)
	if err != nil {
		return 0, &Error{Pos: kv.ValSpan.Start(), Key: kv.Key, Msg: "invalid offset " + strconv.Quote(kv.Val)}
	}
	return f, nil
}

func (m *Maidata) chart(d Difficulty) *Chart {
	c, ok := m.charts[d]
	if !ok {
		c = &Chart{difficulty: d, song: m}
		m.charts[d] = c
	}
	return c
}

// Get returns the raw value of any key in the file.
func (m *Maidata) Get(key string) (string, bool) {
	kv, ok := m.raw[key]
	return kv.Val, ok
}

// Chart returns the chart of difficulty d.
func (m *Maidata) Chart(d Difficulty) (*Chart, bool) {
	c, ok := m.charts[d]
	return c, ok
}

// Difficulties returns the charts sorted by difficulty.
func (m *Maidata) Difficulties() []*Chart {
	out := make([]*Chart, 0, len(m.charts))
	for _, c := range m.charts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].difficulty < out[j].difficulty
	})
	return out
}

func (c *Chart) Difficulty() Difficulty { return c.difficulty }

// Level returns the chart level, if set.
func (c *Chart) Level() (Level, bool) {
	if c.level == nil {
		return Level{}, false
	}
	return *c.level, true
}

// Designer returns the chart designer, falling back to the song designer.
func (c *Chart) Designer() string {
	if c.designer != "" {
		return c.designer
	}
	return c.song.Designer
}

// Message returns the static message, falling back to the song message.
func (c *Chart) Message() string {
	if c.message != "" {
		return c.message
	}
	return c.song.Message
}

// Offset returns the chart offset in seconds: its own `first_N`, then the
// song `first`, then 0.
func (c *Chart) Offset() float64 {
	if c.offset != nil {
		return *c.offset
	}
	if c.song.Offset != nil {
		return *c.song.Offset
	}
	return 0
}

// HasOffset reports whether an offset was set for the chart or the song.
func (c *Chart) HasOffset() bool {
	return c.offset != nil || c.song.Offset != nil
}

// Inote returns the raw instruction text of the chart.
func (c *Chart) Inote() string { return c.inote }

// ParseInstructions parses the chart's instruction text. Spans and parse
// error positions are relative to the whole maidata.txt.
func (c *Chart) ParseInstructions() ([]insn.SpannedInsn, error) {
	insns, err := insn.Parse(c.inote)
	if err != nil {
		var perr *insn.ParseError
		if errors.As(err, &perr) {
			rebased := *perr
			rebased.Pos = perr.Pos.Rebase(c.inoteStart)
			// only fatal errors carry a span
			if perr.Span.Len > 0 || perr.Span.Line > 0 {
				rebased.Span = perr.Span.Rebase(c.inoteStart)
			}
			return nil, &rebased
		}
		return nil, err
	}

	for i := range insns {
		insns[i].Span = insns[i].Span.Rebase(c.inoteStart)
		switch v := insns[i].Value.(type) {
		case insn.SingleNote:
			v.Note.Span = v.Note.Span.Rebase(c.inoteStart)
			insns[i].Value = v
		case insn.NoteBundle:
			for j := range v.Notes {
				v.Notes[j].Span = v.Notes[j].Span.Rebase(c.inoteStart)
			}
		}
	}
	return insns, nil
}

// Materialize parses the chart and materializes it from its offset.
func (c *Chart) Materialize() ([]materialize.Note, error) {
	insns, err := c.ParseInstructions()
	if err != nil {
		return nil, err
	}
	return materialize.Materialize(c.Offset(), insns)
}
