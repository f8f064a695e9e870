package grading

import (
	"math"
	"sort"

	"github.com/starford/cadenza/internal/models"
)

// DefaultPositionTolerance is the alignment window, in beats.
const DefaultPositionTolerance = 0.25

const epsilon = 1e-9

// Align pairs each expected note with the nearest unconsumed actual note
// within tolerance beats, ties going to the lower actual index. Paired
// notes are compared; leftovers become missing or extra rows. The result
// is sorted by position.
func Align(expected, actual []models.Note, tolerance, durationTolerance float64) []models.ComparisonResult {
	consumed := make([]bool, len(actual))
	out := make([]models.ComparisonResult, 0, len(expected)+len(actual))

	for i := range expected {
		exp := expected[i]
		best := -1
		bestDist := math.Inf(1)
		for j := range actual {
			if consumed[j] {
				continue
			}
			d := math.Abs(actual[j].Position - exp.Position)
			if d > tolerance+epsilon {
				continue
			}
			if d < bestDist-epsilon {
				best, bestDist = j, d
			}
		}

		if best < 0 {
			out = append(out, models.ComparisonResult{
				Position:     exp.Position,
				Expected:     noteRef(exp),
				ErrorType:    models.ErrorMissing,
				ExpectedMidi: intPtr(exp.MidiPitch()),
			})
			continue
		}

		consumed[best] = true
		act := actual[best]
		v := CompareNotes(exp, act, durationTolerance)
		out = append(out, models.ComparisonResult{
			Position:     exp.Position,
			Expected:     noteRef(exp),
			Actual:       noteRef(act),
			IsCorrect:    v.Match,
			ErrorType:    v.Reason,
			ExpectedMidi: intPtr(exp.MidiPitch()),
			ActualMidi:   intPtr(act.MidiPitch()),
		})
	}

	for j := range actual {
		if consumed[j] {
			continue
		}
		act := actual[j]
		out = append(out, models.ComparisonResult{
			Position:   act.Position,
			Actual:     noteRef(act),
			ErrorType:  models.ErrorExtra,
			ActualMidi: intPtr(act.MidiPitch()),
		})
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Position < out[b].Position
	})
	return out
}

func intPtr(v int) *int { return &v }

func noteRef(n models.Note) *models.Note { return &n }
