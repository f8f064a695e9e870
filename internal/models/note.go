// Package models defines the domain types for Cadenza.
package models

import "fmt"

// Articulation values. At most one is attached to a Note.
const (
	ArticulationNone          = ""
	ArticulationStaccato      = "staccato"
	ArticulationAccent        = "accent"
	ArticulationTenuto        = "tenuto"
	ArticulationStaccatissimo = "staccatissimo"
	ArticulationMarcato       = "marcato"
)

var stepSemitones = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

// SemitoneOf returns the semitone offset of a natural step within the octave.
// Unknown steps map to 0 and false.
func SemitoneOf(step string) (int, bool) {
	s, ok := stepSemitones[step]
	return s, ok
}

// Note is a single pitched note extracted from a score. Rests are never
// represented as a Note.
type Note struct {
	Step         string  `json:"step"`
	Octave       int     `json:"octave"`
	Alter        int     `json:"alter"`
	Duration     int     `json:"duration"`
	Divisions    int     `json:"divisions"`
	Type         string  `json:"type,omitempty"`
	Position     float64 `json:"position"`
	TieStart     bool    `json:"tieStart"`
	TieEnd       bool    `json:"tieEnd"`
	SlurStart    bool    `json:"slurStart"`
	SlurEnd      bool    `json:"slurEnd"`
	SlurNumber   string  `json:"slurNumber,omitempty"`
	Articulation string  `json:"articulation,omitempty"`
}

// MidiPitch returns the MIDI note number (C4 = 60).
func (n Note) MidiPitch() int {
	s, _ := SemitoneOf(n.Step)
	return 12 + 12*n.Octave + s + n.Alter
}

// Beats returns the note duration in quarter-note beats.
func (n Note) Beats() float64 {
	if n.Divisions <= 0 {
		return float64(n.Duration)
	}
	return float64(n.Duration) / float64(n.Divisions)
}

// HasSlur reports whether the note starts or ends a slur.
func (n Note) HasSlur() bool {
	return n.SlurStart || n.SlurEnd
}

// Name returns the scientific pitch name, e.g. "F#4" or "Bb3".
func (n Note) Name() string {
	acc := ""
	switch {
	case n.Alter > 0:
		acc = "#"
	case n.Alter < 0:
		acc = "b"
	}
	return fmt.Sprintf("%s%s%d", n.Step, acc, n.Octave)
}
