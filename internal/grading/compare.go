package grading

import (
	"math"
	"strings"

	"github.com/starford/cadenza/internal/models"
)

// DefaultDurationTolerance is the numeric fallback tolerance, in beats.
const DefaultDurationTolerance = 0.1

var typeAliases = map[string]string{
	"breve": "breve",
	"whole": "whole", "1": "whole", "1st": "whole",
	"half": "half", "2": "half", "2nd": "half",
	"quarter": "quarter", "4": "quarter", "4th": "quarter",
	"eighth": "eighth", "8": "eighth", "8th": "eighth",
	"16th": "16th", "16": "16th", "sixteenth": "16th",
	"32nd": "32nd", "32": "32nd", "thirty-second": "32nd",
	"64th": "64th", "64": "64th", "sixty-fourth": "64th",
	"128th": "128th", "128": "128th",
}

// NormalizeType maps a symbolic duration to its canonical bucket. Unknown
// values are returned lower-cased.
func NormalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if canon, ok := typeAliases[t]; ok {
		return canon
	}
	return t
}

// Verdict is the outcome of comparing one matched pair.
type Verdict struct {
	Match  bool
	Reason models.ErrorType
}

// CompareNotes checks pitch, duration, tie, slur and articulation in that
// order and reports the first dimension that differs.
func CompareNotes(expected, actual models.Note, durationTolerance float64) Verdict {
	if expected.MidiPitch() != actual.MidiPitch() {
		return Verdict{Reason: models.ErrorPitch}
	}
	if !sameDuration(expected, actual, durationTolerance) {
		return Verdict{Reason: models.ErrorDuration}
	}
	if expected.TieStart != actual.TieStart || expected.TieEnd != actual.TieEnd {
		return Verdict{Reason: models.ErrorTie}
	}
	if expected.HasSlur() != actual.HasSlur() {
		return Verdict{Reason: models.ErrorSlur}
	}
	if expected.HasSlur() && (expected.SlurStart != actual.SlurStart || expected.SlurEnd != actual.SlurEnd) {
		return Verdict{Reason: models.ErrorSlur}
	}
	if expected.Articulation != actual.Articulation {
		return Verdict{Reason: models.ErrorArticulation}
	}
	return Verdict{Match: true, Reason: models.ErrorNone}
}

// sameDuration compares symbolic types first and falls back to the length
// in beats when the types are absent or differ.
func sameDuration(expected, actual models.Note, tolerance float64) bool {
	et, at := NormalizeType(expected.Type), NormalizeType(actual.Type)
	if et != "" && et == at {
		return true
	}
	return math.Abs(expected.Beats()-actual.Beats()) <= tolerance+epsilon
}
