package models

import "time"

// Chart is a stored maidata.txt with its per-difficulty summaries.
type Chart struct {
	ID           string       // Database ID (UUID)
	Title        string       // Song title
	Artist       string       // Artist name
	Designer     string       // Song level designer (des)
	Offset       float64      // Song level offset in seconds (first)
	CreatedAt    time.Time    // Import time
	Difficulties []Difficulty // Sorted by difficulty
}

// Difficulty summarizes one chart of a stored song.
type Difficulty struct {
	Difficulty uint8   // 1 (Easy) to 7 (Original)
	Name       string  // Display name, e.g. "Re:Master"
	Level      string  // Level as written, e.g. "13+"; empty when unset
	Designer   string  // Effective designer
	Offset     float64 // Offset the notes were materialized from
	Message    string  // Static message (smsg)
	NoteCount  int     // Number of materialized notes
}

// TotalNotes sums the note counts of every difficulty.
func (c Chart) TotalNotes() int {
	total := 0
	for _, d := range c.Difficulties {
		total += d.NoteCount
	}
	return total
}
