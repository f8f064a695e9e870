// Package pitch implements semitone arithmetic over note sequences.
package pitch

import "github.com/starford/cadenza/internal/models"

// MaxSemitones bounds a requested transposition to the MIDI key range.
const MaxSemitones = 127

type spelling struct {
	step  string
	alter int
}

// sharpSpelling is the canonical spelling of each pitch class, sharps preferred.
var sharpSpelling = [12]spelling{
	{"C", 0}, {"C", 1}, {"D", 0}, {"D", 1}, {"E", 0}, {"F", 0},
	{"F", 1}, {"G", 0}, {"G", 1}, {"A", 0}, {"A", 1}, {"B", 0},
}

// Spell returns the canonical step, alter and octave for a MIDI note number.
func Spell(midi int) (step string, alter, octave int) {
	rel := midi - 12
	octave = floorDiv(rel, 12)
	s := sharpSpelling[rel-octave*12]
	return s.step, s.alter, octave
}

// Transpose shifts every note by semitones and re-spells it canonically.
// All other attributes are copied unchanged. The input is not modified.
func Transpose(notes []models.Note, semitones int) []models.Note {
	out := make([]models.Note, len(notes))
	for i, n := range notes {
		n.Step, n.Alter, n.Octave = Spell(n.MidiPitch() + semitones)
		out[i] = n
	}
	return out
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
