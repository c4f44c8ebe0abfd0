package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/maidata/pkg/maidata/export"
)

const testMaidata = "&title=CLI Song\n" +
	"&artist=Someone\n" +
	"&first=1\n" +
	"&lv_4=10+\n" +
	"&inote_4=(120)1,\n" +
	"&lv_5=12\n" +
	"&inote_5=(120){4}1,(60)2,3h[4:1],\n"

const libraryMaidata = "&title=Library Song\n" +
	"&artist=Someone Else\n" +
	"&lv_3=7\n" +
	"&inote_3=(120){4}1,2,\n" +
	"&lv_5=12\n" +
	"&inote_5=(120){4}1/5,2h[4:1],\n"

// writeFixture writes content to a file in a temporary directory
func writeFixture(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

// executeCLI runs the root command with args and returns what it printed.
// Flag variables outlive a single Execute, so they are reset first.
func executeCLI(t *testing.T, args ...string) string {
	t.Helper()

	dbPath = filepath.Join(t.TempDir(), "cli.sqlite3")
	logLevel = ""
	defaultOffset = 0
	difficultyName = "master"
	rawInote = false
	asJSON = false
	exportDifficulty = "master"
	exportFormat = "json"
	exportOut = ""
	sampleRate = export.DefaultSampleRate

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func decodeRecords(t *testing.T, out string) []export.Record {
	t.Helper()

	var records []export.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records), out)
	return records
}

func TestMaterializeCommand(t *testing.T) {
	path := writeFixture(t, "maidata.txt", testMaidata)

	records := decodeRecords(t, executeCLI(t, "materialize", "--json", path))
	require.Len(t, records, 3)

	// the (60) keeps the {4} slot of 0.5s, the hold follows the new tempo
	assert.InDelta(t, 1.0, records[0].Ts, 1e-9)
	assert.InDelta(t, 1.5, records[1].Ts, 1e-9)
	assert.InDelta(t, 2.0, records[2].Ts, 1e-9)
	assert.Equal(t, "hold", records[2].Type)
	require.NotNil(t, records[2].Dur)
	assert.InDelta(t, 1.0, *records[2].Dur, 1e-9)

	out := executeCLI(t, "materialize", path)
	assert.Contains(t, out, "Tap(1.0000")
	assert.Contains(t, out, "Hold(2.0000")
}

func TestMaterializeRawCommand(t *testing.T) {
	path := writeFixture(t, "inote.txt", "(120){4}1,2h[4:1],")

	records := decodeRecords(t, executeCLI(t, "materialize", "--raw", "--json", "--offset", "0.5", path))
	require.Len(t, records, 2)
	assert.InDelta(t, 0.5, records[0].Ts, 1e-9)
	assert.Equal(t, "tap", records[0].Type)
	assert.InDelta(t, 1.0, records[1].Ts, 1e-9)
	assert.Equal(t, "hold", records[1].Type)
}

func TestParseCommand(t *testing.T) {
	path := writeFixture(t, "maidata.txt", testMaidata)

	out := executeCLI(t, "parse", "-d", "expert", path)
	assert.Contains(t, out, "5:10")
	assert.Contains(t, out, "Tempo(120)")
	assert.Contains(t, out, "Tap(")
}

func TestInspectCommand(t *testing.T) {
	path := writeFixture(t, "maidata.txt", testMaidata)

	out := executeCLI(t, "inspect", path)
	assert.Contains(t, out, `"CLI Song" by Someone`)
	assert.Contains(t, out, "Offset:   1.000s")
	assert.Contains(t, out, "2 difficulties")
	assert.Contains(t, out, "Lv.10+")
	assert.Contains(t, out, "Lv.12")
	assert.Contains(t, out, "3 notes")
	assert.Contains(t, out, "last note at 2.000s")

	// a timing error in one difficulty is reported inline
	assert.Contains(t, out, "❌")
	assert.Contains(t, out, "subdivision not set")
}

func TestLibraryCommands(t *testing.T) {
	path := writeFixture(t, "maidata.txt", libraryMaidata)
	db := filepath.Join(t.TempDir(), "library.sqlite3")

	out := executeCLI(t, "--db", db, "import", path)
	assert.Contains(t, out, `"Library Song" by Someone Else`)
	assert.Contains(t, out, "Notes: 5 in 2 difficulties")

	out = executeCLI(t, "--db", db, "list")
	assert.Contains(t, out, "Found 1 chart(s)")
	assert.Contains(t, out, "Advanced 7 | Master 12")
}
