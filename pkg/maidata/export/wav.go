package export

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/himanishpuri/maidata/pkg/maidata/materialize"
)

const (
	DefaultSampleRate = 44100

	clickFreq     = 1500.0
	clickLen      = 0.03
	clickAmp      = 0.6
	assistTailLen = 0.5
)

// AssistTimes returns the distinct timestamps that get an assist click:
// every tap (stars included) and every hold start. Negative times are
// dropped.
func AssistTimes(notes []materialize.Note) []float64 {
	seen := make(map[float64]struct{}, len(notes))
	var out []float64
	for _, n := range notes {
		switch n.(type) {
		case materialize.Tap, materialize.Hold:
		default:
			continue
		}
		ts := n.Timestamp()
		if ts < 0 {
			continue
		}
		if _, ok := seen[ts]; ok {
			continue
		}
		seen[ts] = struct{}{}
		out = append(out, ts)
	}
	sort.Float64s(out)
	return out
}

// WriteAssistTicks renders a 16-bit mono WAV with a short click at every
// assist timestamp, the way rhythm game editors play back a chart.
func WriteAssistTicks(w io.WriteSeeker, notes []materialize.Note, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	times := AssistTimes(notes)
	total := int(assistTailLen * float64(sampleRate))
	if len(times) > 0 {
		total += int(math.Ceil(times[len(times)-1] * float64(sampleRate)))
	}

	click := renderClick(sampleRate)
	data := make([]int, total+len(click))
	for _, ts := range times {
		at := int(math.Round(ts * float64(sampleRate)))
		for i, s := range click {
			data[at+i] = clamp16(data[at+i] + s)
		}
	}

	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}
	return nil
}

// renderClick is a decaying sine burst.
func renderClick(sampleRate int) []int {
	n := int(clickLen * float64(sampleRate))
	out := make([]int, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		env := 1 - float64(i)/float64(n)
		out[i] = int(clickAmp * math.MaxInt16 * env * math.Sin(2*math.Pi*clickFreq*t))
	}
	return out
}

func clamp16(v int) int {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return v
}
