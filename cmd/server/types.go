package main

import (
	"fmt"
	"time"

	"github.com/himanishpuri/maidata/pkg/maidata/export"
	"github.com/himanishpuri/maidata/pkg/maidata/span"
	"github.com/himanishpuri/maidata/pkg/models"
)

// MaxBodyBytes bounds every request body. Real charts stay well below 1MB.
const MaxBodyBytes = 8 << 20

// ParseRequest is the request body for POST /api/parse
type ParseRequest struct {
	// Inote is the instruction text of one difficulty
	Inote string `json:"inote"`
}

// Validate checks if the request is valid
func (r *ParseRequest) Validate() error {
	if r.Inote == "" {
		return fmt.Errorf("inote is required")
	}
	return nil
}

// MaterializeRequest is the request body for POST /api/materialize
type MaterializeRequest struct {
	Inote string `json:"inote"`

	// Offset in seconds; the server default is used when omitted
	Offset *float64 `json:"offset,omitempty"`
}

// Validate checks if the request is valid
func (r *MaterializeRequest) Validate() error {
	if r.Inote == "" {
		return fmt.Errorf("inote is required")
	}
	return nil
}

// ImportChartRequest is the request body for POST /api/charts
type ImportChartRequest struct {
	// Maidata is the full content of a maidata.txt file
	Maidata string `json:"maidata"`
}

// Validate checks if the request is valid
func (r *ImportChartRequest) Validate() error {
	if r.Maidata == "" {
		return fmt.Errorf("maidata is required")
	}
	return nil
}

// InstructionDTO is one parsed instruction
type InstructionDTO struct {
	Kind string    `json:"kind"`
	Text string    `json:"text"`
	Span span.Span `json:"span"`
}

// ParseResponse is the response for POST /api/parse
type ParseResponse struct {
	Instructions []InstructionDTO `json:"instructions"`
	Count        int              `json:"count"`
}

// NotesResponse is the response for materialized or stored notes
type NotesResponse struct {
	Notes []export.Record `json:"notes"`
	Count int             `json:"count"`
}

// DifficultyDTO summarizes one difficulty of a stored chart
type DifficultyDTO struct {
	Difficulty uint8   `json:"difficulty"`
	Name       string  `json:"name"`
	Level      string  `json:"level,omitempty"`
	Designer   string  `json:"designer,omitempty"`
	Offset     float64 `json:"offset"`
	Message    string  `json:"message,omitempty"`
	NoteCount  int     `json:"note_count"`
}

// ChartDTO represents a chart in API responses
type ChartDTO struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Artist       string          `json:"artist"`
	Designer     string          `json:"designer,omitempty"`
	Offset       float64         `json:"offset"`
	CreatedAt    time.Time       `json:"created_at"`
	Difficulties []DifficultyDTO `json:"difficulties"`
}

func newChartDTO(c models.Chart) ChartDTO {
	dto := ChartDTO{
		ID:           c.ID,
		Title:        c.Title,
		Artist:       c.Artist,
		Designer:     c.Designer,
		Offset:       c.Offset,
		CreatedAt:    c.CreatedAt,
		Difficulties: make([]DifficultyDTO, len(c.Difficulties)),
	}
	for i, d := range c.Difficulties {
		dto.Difficulties[i] = DifficultyDTO(d)
	}
	return dto
}

// ListChartsResponse is the response for GET /api/charts
type ListChartsResponse struct {
	Charts []ChartDTO `json:"charts"`
	Count  int        `json:"count"`
}

// ImportChartResponse is the response for successful chart import
type ImportChartResponse struct {
	Message string   `json:"message"`
	Chart   ChartDTO `json:"chart"`
}

// DeleteChartResponse is the response for DELETE /api/charts/{id}
type DeleteChartResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// ErrorResponse is the standard error response format. Line and Col point
// into the submitted text for syntax and timing errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
}
