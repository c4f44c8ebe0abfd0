package maidata

import (
	"context"

	"github.com/himanishpuri/maidata/pkg/maidata/container"
	"github.com/himanishpuri/maidata/pkg/maidata/export"
	"github.com/himanishpuri/maidata/pkg/maidata/insn"
	"github.com/himanishpuri/maidata/pkg/maidata/materialize"
	"github.com/himanishpuri/maidata/pkg/models"
)

type Service interface {
	ImportChart(ctx context.Context, text string) (string, error)
	ParseInstructions(text string) ([]insn.SpannedInsn, error)
	MaterializeText(text string, offset float64) ([]materialize.Note, error)
	GetChart(chartID string) (*models.Chart, error)
	ListCharts() ([]models.Chart, error)
	GetNotes(chartID string, difficulty container.Difficulty) ([]materialize.Note, error)
	GetInote(chartID string, difficulty container.Difficulty) (string, error)
	DeleteChart(chartID string) error
	Close() error
}

type Storage interface {
	StoreChart(chart models.ChartImport) (string, error)
	GetChart(chartID string) (*models.Chart, error)
	ListCharts() ([]models.Chart, error)
	GetNotes(chartID string, difficulty uint8) ([]export.Record, error)
	GetInote(chartID string, difficulty uint8) (string, error)
	DeleteChartByID(chartID string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
