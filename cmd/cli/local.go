package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/maidata/pkg/logger"
	"github.com/himanishpuri/maidata/pkg/maidata/container"
	"github.com/himanishpuri/maidata/pkg/maidata/export"
	"github.com/himanishpuri/maidata/pkg/maidata/insn"
	"github.com/himanishpuri/maidata/pkg/maidata/materialize"
)

// Flags shared by the commands that read a chart file directly
var (
	difficultyName string
	rawInote       bool
	asJSON         bool
)

func init() {
	for _, cmd := range []*cobra.Command{parseCmd, materializeCmd} {
		cmd.Flags().StringVarP(&difficultyName, "difficulty", "d", "master", "Difficulty to read (name or 1-7)")
		cmd.Flags().BoolVar(&rawInote, "raw", false, "Treat the file as bare instruction text instead of maidata.txt")
	}
	materializeCmd.Flags().BoolVar(&asJSON, "json", false, "Print notes as JSON")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(materializeCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <maidata.txt>",
	Short: "Shows song metadata and a summary of every difficulty",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		inspect(cmd.OutOrStdout(), args[0])
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parses one difficulty and prints its instructions with their spans",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		insns, _ := loadInstructions(args[0])
		for _, in := range insns {
			fmt.Fprintf(out, "%-16s %v\n", in.Span, in.Value)
		}
		logger.GetLogger().Infof("Parsed %d instructions", len(insns))
	},
}

var materializeCmd = &cobra.Command{
	Use:   "materialize <file>",
	Short: "Materializes one difficulty into timed notes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		insns, offset := loadInstructions(args[0])
		notes, err := materialize.Materialize(offset, insns)
		if err != nil {
			fail("%s:%v", args[0], err)
		}

		if asJSON {
			if err := export.WriteJSON(out, notes); err != nil {
				fail("Failed to write JSON: %v", err)
			}
			return
		}
		for _, n := range notes {
			fmt.Fprintln(out, n)
		}
		logger.GetLogger().Infof("Materialized %d notes", len(notes))
	},
}

func readSource(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		fail("Failed to read %s: %v", path, err)
	}
	logger.GetLogger().Debugf("Read %s (%s)", path, humanize.Bytes(uint64(len(data))))
	return string(data)
}

// loadInstructions parses the selected difficulty of path, or the whole file
// with --raw, and returns the instructions with the offset to start from.
func loadInstructions(path string) ([]insn.SpannedInsn, float64) {
	src := readSource(path)

	if rawInote {
		insns, err := insn.Parse(src)
		if err != nil {
			fail("%s:%v", path, err)
		}
		return insns, defaultOffset
	}

	d, err := container.ParseDifficulty(difficultyName)
	if err != nil {
		fail("%v", err)
	}
	m, err := container.Parse(src)
	if err != nil {
		fail("%s:%v", path, err)
	}
	c, ok := m.Chart(d)
	if !ok || c.Inote() == "" {
		fail("%s has no instructions for %s", path, d)
	}

	insns, err := c.ParseInstructions()
	if err != nil {
		fail("%s:%v", path, err)
	}
	offset := defaultOffset
	if c.HasOffset() {
		offset = c.Offset()
	}
	return insns, offset
}

func inspect(out io.Writer, path string) {
	m, err := container.Parse(readSource(path))
	if err != nil {
		fail("%s:%v", path, err)
	}

	fmt.Fprintf(out, "\n🎵 \"%s\" by %s\n", m.Title, m.Artist)
	if m.Designer != "" {
		fmt.Fprintf(out, "   Designer: %s\n", m.Designer)
	}
	if m.Offset != nil {
		fmt.Fprintf(out, "   Offset:   %.3fs\n", *m.Offset)
	}
	if bpm, ok := m.Get("wholebpm"); ok {
		fmt.Fprintf(out, "   BPM:      %s\n", bpm)
	}

	charts := m.Difficulties()
	if len(charts) == 0 {
		fmt.Fprintln(out, "\n📭 No difficulties defined")
		return
	}

	fmt.Fprintf(out, "\n📚 %d difficulties:\n\n", len(charts))
	for _, c := range charts {
		level := "-"
		if lv, ok := c.Level(); ok {
			level = lv.String()
		}
		fmt.Fprintf(out, "%-10s Lv.%-4s by %s\n", c.Difficulty(), level, c.Designer())
		if c.Inote() == "" {
			fmt.Fprintln(out, "   (no instructions)")
			continue
		}

		notes, err := c.Materialize()
		var perr *insn.ParseError
		var merr *materialize.Error
		switch {
		case errors.As(err, &perr), errors.As(err, &merr):
			fmt.Fprintf(out, "   ❌ %v\n", err)
		case err != nil:
			fail("%s: %v", c.Difficulty(), err)
		default:
			fmt.Fprintf(out, "   %s notes, %s of instructions\n",
				humanize.Comma(int64(len(notes))), humanize.Bytes(uint64(len(c.Inote()))))
			if len(notes) > 0 {
				last := notes[len(notes)-1].Timestamp()
				fmt.Fprintf(out, "   last note at %.3fs\n", last)
			}
		}
	}
	fmt.Fprintln(out)
}
