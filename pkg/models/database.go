package models

import "github.com/himanishpuri/maidata/pkg/maidata/export"

// ChartImport is everything written for one imported maidata.txt.
// Source is the original file text; identical sources are stored once.
type ChartImport struct {
	Title        string
	Artist       string
	Designer     string
	Offset       float64
	Source       string
	Difficulties []DifficultyImport
}

// DifficultyImport is one materialized difficulty of a ChartImport.
type DifficultyImport struct {
	Difficulty uint8
	Level      string
	Designer   string
	Offset     float64
	Message    string
	Inote      string
	Notes      []export.Record
}
