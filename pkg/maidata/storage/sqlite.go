package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/maidata/pkg/maidata/container"
	"github.com/himanishpuri/maidata/pkg/maidata/export"
	"github.com/himanishpuri/maidata/pkg/maidata/insn"
	"github.com/himanishpuri/maidata/pkg/models"
)

const DefaultDBFile = "maidata.sqlite3"
const errDBClientNil = "db client is nil"

var (
	ErrChartNotFound      = errors.New("chart not found")
	ErrDifficultyNotFound = errors.New("difficulty not found")
)

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Chart struct {
	ID         string  `gorm:"primaryKey;type:varchar(36)"`
	Title      string  `gorm:"index:idx_chart_meta,priority:1" json:"title"`
	Artist     string  `gorm:"index:idx_chart_meta,priority:2" json:"artist"`
	Designer   string  `json:"designer"`
	Offset     float64 `json:"offset"`
	SourceHash string  `gorm:"uniqueIndex:idx_chart_source;type:varchar(64)" json:"source_hash"`
	Source     string  `gorm:"type:text" json:"-"`
	CreatedAt  time.Time
}

type ChartDifficulty struct {
	ID         uint    `gorm:"primaryKey;autoIncrement"`
	ChartID    string  `gorm:"type:varchar(36);uniqueIndex:idx_chart_difficulty,priority:1" json:"chart_id"`
	Difficulty uint8   `gorm:"uniqueIndex:idx_chart_difficulty,priority:2" json:"difficulty"`
	Level      string  `json:"level"`
	Designer   string  `json:"designer"`
	Offset     float64 `json:"offset"`
	Message    string  `json:"message"`
	Inote      string  `gorm:"type:text" json:"-"`
	NoteCount  int     `json:"note_count"`
}

type ChartNote struct {
	ID          uint     `gorm:"primaryKey;autoIncrement"`
	ChartID     string   `gorm:"type:varchar(36);index:idx_note_chart,priority:1" json:"chart_id"`
	Difficulty  uint8    `gorm:"index:idx_note_chart,priority:2" json:"difficulty"`
	Seq         int      `gorm:"index:idx_note_chart,priority:3" json:"seq"`
	Type        string   `gorm:"type:varchar(8)" json:"type"`
	Ts          float64  `json:"ts"`
	Key         uint8    `json:"key"`
	Shape       string   `gorm:"type:varchar(24)" json:"shape"`
	Dur         *float64 `json:"dur"`
	StartTs     *float64 `json:"start_ts"`
	Destination *uint8   `json:"destination"`
	Interim     *uint8   `json:"interim"`
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("MAIDATA_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// single connection: sqlite allows one writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Chart{}, &ChartDifficulty{}, &ChartNote{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SourceHash identifies a maidata.txt by content.
func SourceHash(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// StoreChart writes a chart with all of its difficulties and notes in one
// transaction. Importing the same source again returns the existing ID.
func (c *DBClient) StoreChart(in models.ChartImport) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}

	hash := SourceHash(in.Source)
	var existing Chart
	err := c.DB.Where("source_hash = ?", hash).First(&existing).Error
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("querying existing chart: %w", err)
	}

	chart := Chart{
		ID:         uuid.NewString(),
		Title:      in.Title,
		Artist:     in.Artist,
		Designer:   in.Designer,
		Offset:     in.Offset,
		SourceHash: hash,
		Source:     in.Source,
	}

	err = c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chart).Error; err != nil {
			return err
		}
		for _, d := range in.Difficulties {
			row := ChartDifficulty{
				ChartID:    chart.ID,
				Difficulty: d.Difficulty,
				Level:      d.Level,
				Designer:   d.Designer,
				Offset:     d.Offset,
				Message:    d.Message,
				Inote:      d.Inote,
				NoteCount:  len(d.Notes),
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("creating difficulty %d: %w", d.Difficulty, err)
			}
			if err := storeNotes(tx, chart.ID, d.Difficulty, d.Notes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isConstraintErr(err) {
			if fetchErr := c.DB.Where("source_hash = ?", hash).First(&existing).Error; fetchErr != nil {
				return "", fmt.Errorf("fetching chart after constraint violation: %w", fetchErr)
			}
			return existing.ID, nil
		}
		return "", fmt.Errorf("creating chart: %w", err)
	}

	return chart.ID, nil
}

func isConstraintErr(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}

func storeNotes(tx *gorm.DB, chartID string, difficulty uint8, records []export.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]ChartNote, len(records))
	for i, r := range records {
		rows[i] = ChartNote{
			ChartID:    chartID,
			Difficulty: difficulty,
			Seq:        i,
			Type:       r.Type,
			Ts:         r.Ts,
			Key:        uint8(r.Key),
			Shape:      r.Shape,
			Dur:        r.Dur,
			StartTs:    r.StartTs,
		}
		if r.Destination != nil {
			k := uint8(*r.Destination)
			rows[i].Destination = &k
		}
		if r.Interim != nil {
			k := uint8(*r.Interim)
			rows[i].Interim = &k
		}
	}
	if err := tx.CreateInBatches(rows, 500).Error; err != nil {
		return fmt.Errorf("batch insert notes: %w", err)
	}
	return nil
}

func (c *DBClient) GetChart(chartID string) (*models.Chart, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var row Chart
	if err := c.DB.Where("id = ?", chartID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChartNotFound
		}
		return nil, fmt.Errorf("querying chart: %w", err)
	}

	var diffs []ChartDifficulty
	if err := c.DB.Where("chart_id = ?", chartID).Order("difficulty").Find(&diffs).Error; err != nil {
		return nil, fmt.Errorf("querying difficulties: %w", err)
	}

	chart := toModel(row, diffs)
	return &chart, nil
}

// ListCharts returns every chart, newest first.
func (c *DBClient) ListCharts() ([]models.Chart, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var rows []Chart
	if err := c.DB.Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing charts: %w", err)
	}

	var diffs []ChartDifficulty
	if err := c.DB.Order("chart_id, difficulty").Find(&diffs).Error; err != nil {
		return nil, fmt.Errorf("listing difficulties: %w", err)
	}
	byChart := make(map[string][]ChartDifficulty, len(rows))
	for _, d := range diffs {
		byChart[d.ChartID] = append(byChart[d.ChartID], d)
	}

	out := make([]models.Chart, 0, len(rows))
	for _, r := range rows {
		out = append(out, toModel(r, byChart[r.ID]))
	}
	return out, nil
}

func toModel(row Chart, diffs []ChartDifficulty) models.Chart {
	chart := models.Chart{
		ID:        row.ID,
		Title:     row.Title,
		Artist:    row.Artist,
		Designer:  row.Designer,
		Offset:    row.Offset,
		CreatedAt: row.CreatedAt,
	}
	for _, d := range diffs {
		chart.Difficulties = append(chart.Difficulties, models.Difficulty{
			Difficulty: d.Difficulty,
			Name:       container.Difficulty(d.Difficulty).String(),
			Level:      d.Level,
			Designer:   d.Designer,
			Offset:     d.Offset,
			Message:    d.Message,
			NoteCount:  d.NoteCount,
		})
	}
	return chart
}

// GetNotes returns the stored notes of one difficulty in emission order.
func (c *DBClient) GetNotes(chartID string, difficulty uint8) ([]export.Record, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	if _, err := c.difficulty(chartID, difficulty); err != nil {
		return nil, err
	}

	var rows []ChartNote
	if err := c.DB.Where("chart_id = ? AND difficulty = ?", chartID, difficulty).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}

	out := make([]export.Record, len(rows))
	for i, r := range rows {
		out[i] = export.Record{
			Type:    r.Type,
			Ts:      r.Ts,
			Key:     insn.Key(r.Key),
			Shape:   r.Shape,
			Dur:     r.Dur,
			StartTs: r.StartTs,
		}
		if r.Destination != nil {
			k := insn.Key(*r.Destination)
			out[i].Destination = &k
		}
		if r.Interim != nil {
			k := insn.Key(*r.Interim)
			out[i].Interim = &k
		}
	}
	return out, nil
}

// GetInote returns the stored instruction text of one difficulty.
func (c *DBClient) GetInote(chartID string, difficulty uint8) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}
	diff, err := c.difficulty(chartID, difficulty)
	if err != nil {
		return "", err
	}
	return diff.Inote, nil
}

// difficulty loads one difficulty row, telling a missing chart apart from a
// missing difficulty.
func (c *DBClient) difficulty(chartID string, difficulty uint8) (*ChartDifficulty, error) {
	var diff ChartDifficulty
	err := c.DB.Where("chart_id = ? AND difficulty = ?", chartID, difficulty).First(&diff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var count int64
		if cerr := c.DB.Model(&Chart{}).Where("id = ?", chartID).Count(&count).Error; cerr == nil && count == 0 {
			return nil, ErrChartNotFound
		}
		return nil, ErrDifficultyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying difficulty: %w", err)
	}
	return &diff, nil
}

func (c *DBClient) DeleteChartByID(chartID string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chart_id = ?", chartID).Delete(&ChartNote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chart_id = ?", chartID).Delete(&ChartDifficulty{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", chartID).Delete(&Chart{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrChartNotFound
		}
		return nil
	})
}
