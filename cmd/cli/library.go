package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/maidata/pkg/logger"
	"github.com/himanishpuri/maidata/pkg/maidata"
	"github.com/himanishpuri/maidata/pkg/maidata/container"
	"github.com/himanishpuri/maidata/pkg/maidata/export"
)

var (
	exportDifficulty string
	exportFormat     string
	exportOut        string
	sampleRate       int
)

func init() {
	exportCmd.Flags().StringVarP(&exportDifficulty, "difficulty", "d", "master", "Difficulty to export (name or 1-7)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json, midi or wav")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default: <chart id>.<ext>, json goes to stdout)")
	exportCmd.Flags().IntVar(&sampleRate, "rate", export.DefaultSampleRate, "Sample rate for wav output")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <maidata.txt>...",
	Short: "Parses, materializes and stores charts in the library",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleImport(cmd.OutOrStdout(), args)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the charts in the library",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		handleList(cmd.OutOrStdout())
	},
}

var showCmd = &cobra.Command{
	Use:   "show <chart id>",
	Short: "Shows a stored chart and its difficulties",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleShow(cmd.OutOrStdout(), args[0])
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <chart id>",
	Short: "Removes a chart from the library",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleDelete(cmd.OutOrStdout(), args[0])
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <chart id>",
	Short: "Writes the notes of a stored difficulty as JSON, MIDI or WAV",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleExport(cmd.OutOrStdout(), args[0])
	},
}

func handleImport(out io.Writer, paths []string) {
	log := logger.GetLogger()

	svc := mustService()
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	failed := 0
	for _, path := range paths {
		fmt.Fprintf(out, "🎵 Importing %s...\n", path)
		id, err := svc.ImportChart(ctx, readSource(path))
		if err != nil {
			failed++
			fmt.Fprintf(out, "   ❌ %s:%v\n", path, err)
			log.Errorf("ImportChart %s failed: %v", path, err)
			continue
		}

		chart, err := svc.GetChart(id)
		if err != nil {
			fail("Imported chart %s could not be read back: %v", id, err)
		}
		fmt.Fprintf(out, "   ✅ \"%s\" by %s\n", chart.Title, chart.Artist)
		fmt.Fprintf(out, "   ID:    %s\n", chart.ID)
		fmt.Fprintf(out, "   Notes: %s in %d difficulties\n", humanize.Comma(int64(chart.TotalNotes())), len(chart.Difficulties))
	}

	if failed > 0 {
		fail("%d of %d imports failed", failed, len(paths))
	}
}

func handleList(out io.Writer) {
	svc := mustService()
	defer svc.Close()

	charts, err := svc.ListCharts()
	if err != nil {
		fail("Failed to list charts: %v", err)
	}

	if len(charts) == 0 {
		fmt.Fprintln(out, "\n📭 No charts in library")
		return
	}

	fmt.Fprintf(out, "\n📚 Found %d chart(s):\n\n", len(charts))
	for i, c := range charts {
		fmt.Fprintf(out, "%d. \"%s\" by %s (ID: %s)\n", i+1, c.Title, c.Artist, c.ID)
		names := make([]string, 0, len(c.Difficulties))
		for _, d := range c.Difficulties {
			names = append(names, fmt.Sprintf("%s %s", d.Name, d.Level))
		}
		fmt.Fprintf(out, "   %s\n", strings.Join(names, " | "))
		fmt.Fprintf(out, "   Imported %s\n\n", humanize.Time(c.CreatedAt))
	}
	logger.GetLogger().Infof("Listed %d charts", len(charts))
}

func handleShow(out io.Writer, id string) {
	svc := mustService()
	defer svc.Close()

	chart, err := svc.GetChart(id)
	if err != nil {
		fail("Chart not found (ID: %s): %v", id, err)
	}

	fmt.Fprintf(out, "\n🎵 \"%s\" by %s\n", chart.Title, chart.Artist)
	fmt.Fprintf(out, "   ID:       %s\n", chart.ID)
	if chart.Designer != "" {
		fmt.Fprintf(out, "   Designer: %s\n", chart.Designer)
	}
	fmt.Fprintf(out, "   Offset:   %.3fs\n", chart.Offset)
	fmt.Fprintf(out, "   Imported: %s\n\n", humanize.Time(chart.CreatedAt))

	for _, d := range chart.Difficulties {
		fmt.Fprintf(out, "%-10s Lv.%-4s %6s notes  by %s\n", d.Name, d.Level, humanize.Comma(int64(d.NoteCount)), d.Designer)
		if d.Message != "" {
			fmt.Fprintf(out, "   💬 %s\n", d.Message)
		}
	}
	fmt.Fprintln(out)
}

func handleDelete(out io.Writer, id string) {
	svc := mustService()
	defer svc.Close()

	// Get chart info before deletion
	chart, err := svc.GetChart(id)
	if err != nil {
		fail("Chart not found (ID: %s): %v", id, err)
	}

	if err := svc.DeleteChart(id); err != nil {
		fail("Failed to delete chart: %v", err)
	}

	fmt.Fprintf(out, "\n✅ Successfully deleted chart:\n")
	fmt.Fprintf(out, "   ID:     %s\n", chart.ID)
	fmt.Fprintf(out, "   Title:  %s\n", chart.Title)
	fmt.Fprintf(out, "   Artist: %s\n", chart.Artist)
}

func handleExport(w io.Writer, id string) {
	d, err := container.ParseDifficulty(exportDifficulty)
	if err != nil {
		fail("%v", err)
	}

	svc := mustService()
	defer svc.Close()

	notes, err := svc.GetNotes(id, d)
	switch {
	case errors.Is(err, maidata.ErrChartNotFound):
		fail("Chart not found (ID: %s)", id)
	case errors.Is(err, maidata.ErrDifficultyNotFound):
		fail("Chart %s has no %s difficulty", id, d)
	case err != nil:
		fail("Failed to load notes: %v", err)
	}

	format := strings.ToLower(exportFormat)
	ext := map[string]string{"json": ".json", "midi": ".mid", "wav": ".wav"}[format]
	if ext == "" {
		fail("Unknown format %q (want json, midi or wav)", exportFormat)
	}

	if format == "json" && exportOut == "" {
		if err := export.WriteJSON(w, notes); err != nil {
			fail("Failed to write JSON: %v", err)
		}
		return
	}

	path := exportOut
	if path == "" {
		path = id + ext
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		fail("Failed to create %s: %v", path, err)
	}
	defer f.Close()

	switch format {
	case "json":
		err = export.WriteJSON(f, notes)
	case "midi":
		title := id
		if chart, cerr := svc.GetChart(id); cerr == nil {
			title = fmt.Sprintf("%s [%s]", chart.Title, d)
		}
		err = export.WriteMIDI(f, notes, title)
	case "wav":
		err = export.WriteAssistTicks(f, notes, sampleRate)
	}
	if err != nil {
		fail("Failed to write %s: %v", path, err)
	}

	info, err := f.Stat()
	size := "?"
	if err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	fmt.Fprintf(w, "✅ Wrote %d notes to %s (%s)\n", len(notes), path, size)
}
