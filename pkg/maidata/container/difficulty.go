package container

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Difficulty identifies one chart of a song.
type Difficulty uint8

const (
	Easy Difficulty = iota + 1
	Basic
	Advanced
	Expert
	Master
	ReMaster
	// Original was called mai:EDIT in older simulators.
	Original
)

var difficultyNames = [...]string{
	Easy:     "Easy",
	Basic:    "Basic",
	Advanced: "Advanced",
	Expert:   "Expert",
	Master:   "Master",
	ReMaster: "Re:Master",
	Original: "Original",
}

// AllDifficulties lists every difficulty in ascending order.
func AllDifficulties() []Difficulty {
	return []Difficulty{Easy, Basic, Advanced, Expert, Master, ReMaster, Original}
}

func (d Difficulty) Valid() bool {
	return d >= Easy && d <= Original
}

func (d Difficulty) String() string {
	if d.Valid() {
		return difficultyNames[d]
	}
	return fmt.Sprintf("Difficulty(%d)", uint8(d))
}

// ParseDifficulty accepts either the numeric form (1-7) or a name, case
// insensitively. "remaster" and "edit" are accepted aliases.
func ParseDifficulty(s string) (Difficulty, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if d := Difficulty(n); n > 0 && d.Valid() {
			return d, nil
		}
		return 0, fmt.Errorf("difficulty %d out of range 1-7", n)
	}

	switch strings.ToLower(s) {
	case "remaster", "re:master":
		return ReMaster, nil
	case "edit", "mai:edit":
		return Original, nil
	}
	for _, d := range AllDifficulties() {
		if strings.EqualFold(s, difficultyNames[d]) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown difficulty %q", s)
}

// LevelKind selects the form of a Level.
type LevelKind uint8

const (
	// LevelNormal is the "Lv.X" form.
	LevelNormal LevelKind = iota
	// LevelPlus is the "Lv.X+" form.
	LevelPlus
	// LevelChar is the special "Lv.<any char>" form.
	LevelChar
)

// Level is the displayed level of a chart.
type Level struct {
	Kind  LevelKind
	Value uint8
	Char  rune
}

func Normal(n uint8) Level { return Level{Kind: LevelNormal, Value: n} }
func Plus(n uint8) Level   { return Level{Kind: LevelPlus, Value: n} }
func Char(c rune) Level    { return Level{Kind: LevelChar, Char: c} }

// ParseLevel reads "13", "13+" or a single non-numeric character.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Level{}, fmt.Errorf("empty level")
	}

	if digits, plus := strings.CutSuffix(s, "+"); plus {
		n, err := strconv.ParseUint(digits, 10, 8)
		if err != nil {
			return Level{}, fmt.Errorf("invalid level %q", s)
		}
		return Plus(uint8(n)), nil
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		return Normal(uint8(n)), nil
	}

	if r, size := utf8.DecodeRuneInString(s); size == len(s) && r != utf8.RuneError {
		return Char(r), nil
	}
	return Level{}, fmt.Errorf("invalid level %q", s)
}

func (l Level) String() string {
	switch l.Kind {
	case LevelPlus:
		return strconv.Itoa(int(l.Value)) + "+"
	case LevelChar:
		return string(l.Char)
	}
	return strconv.Itoa(int(l.Value))
}
