package maidata

import (
	"errors"

	"github.com/himanishpuri/maidata/pkg/maidata/export"
	"github.com/himanishpuri/maidata/pkg/maidata/storage"
	"github.com/himanishpuri/maidata/pkg/models"
)

// storageAdapter adapts the storage.DBClient to implement the Storage
// interface, translating its not-found errors into this package's.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) StoreChart(chart models.ChartImport) (string, error) {
	return s.db.StoreChart(chart)
}

func (s *storageAdapter) GetChart(chartID string) (*models.Chart, error) {
	chart, err := s.db.GetChart(chartID)
	return chart, translate(err)
}

func (s *storageAdapter) ListCharts() ([]models.Chart, error) {
	return s.db.ListCharts()
}

func (s *storageAdapter) GetNotes(chartID string, difficulty uint8) ([]export.Record, error) {
	records, err := s.db.GetNotes(chartID, difficulty)
	return records, translate(err)
}

func (s *storageAdapter) GetInote(chartID string, difficulty uint8) (string, error) {
	inote, err := s.db.GetInote(chartID, difficulty)
	return inote, translate(err)
}

func (s *storageAdapter) DeleteChartByID(chartID string) error {
	return translate(s.db.DeleteChartByID(chartID))
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

func translate(err error) error {
	switch {
	case errors.Is(err, storage.ErrChartNotFound):
		return ErrChartNotFound
	case errors.Is(err, storage.ErrDifficultyNotFound):
		return ErrDifficultyNotFound
	}
	return err
}
