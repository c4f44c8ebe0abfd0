package maidata

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/himanishpuri/maidata/pkg/maidata/container"
	"github.com/himanishpuri/maidata/pkg/maidata/export"
	"github.com/himanishpuri/maidata/pkg/maidata/insn"
	"github.com/himanishpuri/maidata/pkg/maidata/materialize"
	"github.com/himanishpuri/maidata/pkg/models"
)

const testMaidata = `&title=Test Song
&artist=Someone
&des=chartmaker
&first=0.5
&lv_2=5
&inote_2=(120){4}1,2,
&lv_5=13+
&des_5=someone else
&inote_5=(120){4}1-5[4:1],2h[4:1],
`

// recordingLogger collects log lines for assertions
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Infof(format string, args ...any)  { l.add("INFO", format, args...) }
func (l *recordingLogger) Warnf(format string, args ...any)  { l.add("WARN", format, args...) }
func (l *recordingLogger) Errorf(format string, args ...any) { l.add("ERROR", format, args...) }
func (l *recordingLogger) Debugf(format string, args ...any) { l.add("DEBUG", format, args...) }

// memoryStorage keeps the last stored import in memory
type memoryStorage struct {
	stored []models.ChartImport
	closed bool
}

func (m *memoryStorage) StoreChart(chart models.ChartImport) (string, error) {
	m.stored = append(m.stored, chart)
	return fmt.Sprintf("chart-%d", len(m.stored)), nil
}

func (m *memoryStorage) GetChart(chartID string) (*models.Chart, error) {
	return nil, ErrChartNotFound
}

func (m *memoryStorage) ListCharts() ([]models.Chart, error) { return nil, nil }

func (m *memoryStorage) GetNotes(chartID string, difficulty uint8) ([]export.Record, error) {
	return nil, ErrChartNotFound
}

func (m *memoryStorage) GetInote(chartID string, difficulty uint8) (string, error) {
	return "", ErrChartNotFound
}

func (m *memoryStorage) DeleteChartByID(chartID string) error { return ErrChartNotFound }

func (m *memoryStorage) Close() error {
	m.closed = true
	return nil
}

// setupTestService creates a service backed by a temporary database
func setupTestService(t *testing.T) Service {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_service_maidata.sqlite3")
	svc, err := NewService(WithDBPath(dbPath), WithLogger(&recordingLogger{}))
	if err != nil {
		t.Fatalf("Failed to create test service: %v", err)
	}

	t.Cleanup(func() {
		svc.Close()
	})

	return svc
}

// TestImportAndReadBack tests a full import through SQLite
func TestImportAndReadBack(t *testing.T) {
	svc := setupTestService(t)

	id, err := svc.ImportChart(context.Background(), testMaidata)
	if err != nil {
		t.Fatalf("ImportChart failed: %v", err)
	}

	chart, err := svc.GetChart(id)
	if err != nil {
		t.Fatalf("GetChart failed: %v", err)
	}
	if chart.Title != "Test Song" || chart.Offset != 0.5 {
		t.Errorf("Unexpected chart metadata: %+v", chart)
	}
	if len(chart.Difficulties) != 2 {
		t.Fatalf("Expected 2 difficulties, got %d", len(chart.Difficulties))
	}
	if chart.Difficulties[0].Designer != "chartmaker" {
		t.Errorf("Expected basic designer to fall back to song designer, got %q", chart.Difficulties[0].Designer)
	}
	if chart.Difficulties[1].Designer != "someone else" || chart.Difficulties[1].Level != "13+" {
		t.Errorf("Unexpected master difficulty: %+v", chart.Difficulties[1])
	}

	notes, err := svc.GetNotes(id, container.Master)
	if err != nil {
		t.Fatalf("GetNotes failed: %v", err)
	}
	want := []materialize.Note{
		materialize.Tap{Ts: 0.5, Key: insn.K1, Shape: materialize.Star},
		materialize.SlideTrack{
			Ts: 0.5, StartTs: 1.0, Dur: 0.5,
			Start: insn.K1, Destination: insn.K5, Shape: insn.ShapeLine,
		},
		materialize.Hold{Ts: 1.0, Dur: 0.5, Key: insn.K2},
	}
	if len(notes) != len(want) {
		t.Fatalf("Expected %d notes, got %d: %v", len(want), len(notes), notes)
	}
	for i := range want {
		if fmt.Sprint(notes[i]) != fmt.Sprint(want[i]) {
			t.Errorf("Note %d: expected %v, got %v", i, want[i], notes[i])
		}
	}

	inote, err := svc.GetInote(id, container.Basic)
	if err != nil {
		t.Fatalf("GetInote failed: %v", err)
	}
	if inote != "(120){4}1,2," {
		t.Errorf("Unexpected inote %q", inote)
	}

	charts, err := svc.ListCharts()
	if err != nil {
		t.Fatalf("ListCharts failed: %v", err)
	}
	if len(charts) != 1 || charts[0].ID != id {
		t.Errorf("Expected the imported chart in the list, got %+v", charts)
	}
}

// TestImportErrors tests that failures are reported with their difficulty
func TestImportErrors(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	_, err := svc.ImportChart(ctx, "&title=Nothing\n&lv_5=13\n")
	if !errors.Is(err, ErrNoInstructions) {
		t.Errorf("Expected ErrNoInstructions, got %v", err)
	}

	_, err = svc.ImportChart(ctx, "&title=Broken\n&inote_5=(120){4}1,\n9,\n")
	var perr *insn.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected a parse error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "Master: ") {
		t.Errorf("Expected error to name the difficulty, got %q", err.Error())
	}
	// positions are relative to the whole file
	if perr.Pos.Line != 3 || perr.Pos.Col != 1 {
		t.Errorf("Expected error at 3:1, got %d:%d", perr.Pos.Line, perr.Pos.Col)
	}

	_, err = svc.ImportChart(ctx, "&inote_4=(120)1,\n")
	if !errors.Is(err, materialize.ErrSubdivisionNotSet) {
		t.Errorf("Expected ErrSubdivisionNotSet, got %v", err)
	}

	charts, err := svc.ListCharts()
	if err != nil {
		t.Fatalf("ListCharts failed: %v", err)
	}
	if len(charts) != 0 {
		t.Errorf("Expected failed imports to store nothing, got %d charts", len(charts))
	}
}

// TestDeleteChart tests deletion through the service
func TestDeleteChart(t *testing.T) {
	svc := setupTestService(t)

	id, err := svc.ImportChart(context.Background(), testMaidata)
	if err != nil {
		t.Fatalf("ImportChart failed: %v", err)
	}
	if err := svc.DeleteChart(id); err != nil {
		t.Fatalf("DeleteChart failed: %v", err)
	}
	if _, err := svc.GetChart(id); !errors.Is(err, ErrChartNotFound) {
		t.Errorf("Expected ErrChartNotFound, got %v", err)
	}
	if err := svc.DeleteChart(id); !errors.Is(err, ErrChartNotFound) {
		t.Errorf("Expected ErrChartNotFound on second delete, got %v", err)
	}
	if _, err := svc.GetNotes("missing", container.Master); !errors.Is(err, ErrChartNotFound) {
		t.Errorf("Expected ErrChartNotFound for notes, got %v", err)
	}
}

// TestInjectedStorageAndDefaultOffset tests the functional options
func TestInjectedStorageAndDefaultOffset(t *testing.T) {
	stor := &memoryStorage{}
	log := &recordingLogger{}
	svc, err := NewService(
		WithStorage(stor),
		WithLogger(log),
		WithDefaultOffset(2),
		WithMaxParallel(0),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	text := "&title=No Offset\n&inote_1=(60){1}1,\n&first_3=1\n&inote_3=(60){1}2,\n"
	id, err := svc.ImportChart(context.Background(), text)
	if err != nil {
		t.Fatalf("ImportChart failed: %v", err)
	}
	if id != "chart-1" || len(stor.stored) != 1 {
		t.Fatalf("Expected one stored chart, got id %q and %d imports", id, len(stor.stored))
	}

	got := stor.stored[0]
	if got.Source != text || got.Offset != 2 {
		t.Errorf("Unexpected import: source %q offset %g", got.Source, got.Offset)
	}
	if len(got.Difficulties) != 2 {
		t.Fatalf("Expected 2 difficulties, got %d", len(got.Difficulties))
	}
	if ts := got.Difficulties[0].Notes[0].Ts; ts != 2 {
		t.Errorf("Expected easy tap at the default offset 2, got %g", ts)
	}
	if ts := got.Difficulties[1].Notes[0].Ts; ts != 1 {
		t.Errorf("Expected advanced tap at its own offset 1, got %g", ts)
	}

	if len(log.lines) == 0 || !strings.Contains(log.lines[0], "No Offset") {
		t.Errorf("Expected the import to be logged, got %v", log.lines)
	}

	if err := svc.Close(); err != nil || !stor.closed {
		t.Errorf("Expected Close to reach the storage, got %v", err)
	}
}

func TestMaterializeText(t *testing.T) {
	svc, err := NewService(WithStorage(&memoryStorage{}), WithLogger(&recordingLogger{}))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	notes, err := svc.MaterializeText("(120){4}1,,2,", 1)
	if err != nil {
		t.Fatalf("MaterializeText failed: %v", err)
	}
	if len(notes) != 2 || notes[0].Timestamp() != 1 || notes[1].Timestamp() != 2 {
		t.Errorf("Unexpected notes: %v", notes)
	}

	insns, err := svc.ParseInstructions("(120){4}1,")
	if err != nil {
		t.Fatalf("ParseInstructions failed: %v", err)
	}
	if len(insns) != 3 {
		t.Errorf("Expected 3 instructions, got %d", len(insns))
	}

	if _, err := svc.MaterializeText("1,", 0); !errors.Is(err, materialize.ErrTempoNotSet) {
		t.Errorf("Expected ErrTempoNotSet, got %v", err)
	}
}
