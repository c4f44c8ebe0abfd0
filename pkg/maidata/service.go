package maidata

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/maidata/pkg/logger"
	"github.com/himanishpuri/maidata/pkg/maidata/container"
	"github.com/himanishpuri/maidata/pkg/maidata/export"
	"github.com/himanishpuri/maidata/pkg/maidata/insn"
	"github.com/himanishpuri/maidata/pkg/maidata/materialize"
	"github.com/himanishpuri/maidata/pkg/models"
)

var (
	ErrChartNotFound      = errors.New("chart not found")
	ErrDifficultyNotFound = errors.New("difficulty not found")
	ErrNoInstructions     = errors.New("no difficulty has any instructions")
)

// chartService is the default implementation of the Service interface.
type chartService struct {
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &chartService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// ParseInstructions parses one difficulty's instruction text.
func (s *chartService) ParseInstructions(text string) ([]insn.SpannedInsn, error) {
	return insn.Parse(text)
}

// MaterializeText parses and materializes one difficulty's instruction text.
func (s *chartService) MaterializeText(text string, offset float64) ([]materialize.Note, error) {
	insns, err := insn.Parse(text)
	if err != nil {
		return nil, err
	}
	return materialize.Materialize(offset, insns)
}

// ImportChart parses a whole maidata.txt, materializes every difficulty
// concurrently and stores the result. The first failing difficulty aborts
// the import.
func (s *chartService) ImportChart(ctx context.Context, text string) (string, error) {
	m, err := container.Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse maidata: %w", err)
	}
	s.log.Infof("Importing chart: %s by %s", m.Title, m.Artist)

	charts := m.Difficulties()
	hasInsns := false
	for _, c := range charts {
		if c.Inote() != "" {
			hasInsns = true
			break
		}
	}
	if !hasInsns {
		return "", ErrNoInstructions
	}

	results := make([]models.DifficultyImport, len(charts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxParallel)

	for i, c := range charts {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := s.materializeChart(c)
			if err != nil {
				return fmt.Errorf("%s: %w", c.Difficulty(), err)
			}
			results[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	songOffset := s.config.DefaultOffset
	if m.Offset != nil {
		songOffset = *m.Offset
	}

	chartID, err := s.storage.StoreChart(models.ChartImport{
		Title:        m.Title,
		Artist:       m.Artist,
		Designer:     m.Designer,
		Offset:       songOffset,
		Source:       text,
		Difficulties: results,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store chart: %w", err)
	}

	s.log.Infof("Successfully imported chart ID=%s (%d difficulties)", chartID, len(results))
	return chartID, nil
}

// materializeChart runs one difficulty through both stages.
func (s *chartService) materializeChart(c *container.Chart) (models.DifficultyImport, error) {
	offset := s.config.DefaultOffset
	if c.HasOffset() {
		offset = c.Offset()
	}

	d := models.DifficultyImport{
		Difficulty: uint8(c.Difficulty()),
		Designer:   c.Designer(),
		Offset:     offset,
		Message:    c.Message(),
		Inote:      c.Inote(),
	}
	if lv, ok := c.Level(); ok {
		d.Level = lv.String()
	}
	if c.Inote() == "" {
		return d, nil
	}

	insns, err := c.ParseInstructions()
	if err != nil {
		return d, err
	}
	notes, err := materialize.Materialize(offset, insns)
	if err != nil {
		return d, err
	}
	if d.Notes, err = export.Records(notes); err != nil {
		return d, err
	}

	s.log.Debugf("%s: %d instructions, %d notes", c.Difficulty(), len(insns), len(notes))
	return d, nil
}

// GetChart retrieves a chart's metadata by its database ID.
func (s *chartService) GetChart(chartID string) (*models.Chart, error) {
	return s.storage.GetChart(chartID)
}

// ListCharts returns all stored charts.
func (s *chartService) ListCharts() ([]models.Chart, error) {
	return s.storage.ListCharts()
}

// GetNotes returns the stored notes of one difficulty.
func (s *chartService) GetNotes(chartID string, difficulty container.Difficulty) ([]materialize.Note, error) {
	records, err := s.storage.GetNotes(chartID, uint8(difficulty))
	if err != nil {
		return nil, err
	}
	notes, err := export.NotesFromRecords(records)
	if err != nil {
		return nil, fmt.Errorf("corrupt notes for %s/%s: %w", chartID, difficulty, err)
	}
	return notes, nil
}

// GetInote returns the stored instruction text of one difficulty.
func (s *chartService) GetInote(chartID string, difficulty container.Difficulty) (string, error) {
	return s.storage.GetInote(chartID, uint8(difficulty))
}

// DeleteChart removes a chart with all its difficulties and notes.
func (s *chartService) DeleteChart(chartID string) error {
	if err := s.storage.DeleteChartByID(chartID); err != nil {
		return err
	}
	s.log.Infof("Deleted chart ID=%s", chartID)
	return nil
}

// Close releases all resources held by the service.
func (s *chartService) Close() error {
	return s.storage.Close()
}
