// Package grading scores a student's transposition of a reference excerpt.
package grading

import (
	"log/slog"
	"math"

	"github.com/starford/cadenza/internal/models"
	"github.com/starford/cadenza/internal/musicxml"
	"github.com/starford/cadenza/internal/pitch"
)

// Engine evaluates transpositions. It holds only immutable settings and is
// safe for concurrent use.
type Engine struct {
	positionTolerance float64
	durationTolerance float64
	logger            *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPositionTolerance sets the alignment window in beats.
func WithPositionTolerance(beats float64) Option {
	return func(e *Engine) {
		if beats > 0 {
			e.positionTolerance = beats
		}
	}
}

// WithDurationTolerance sets the numeric duration fallback tolerance in beats.
func WithDurationTolerance(beats float64) Option {
	return func(e *Engine) {
		if beats >= 0 {
			e.durationTolerance = beats
		}
	}
}

// WithLogger sets the logger used to record degraded inputs.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an Engine with default tolerances.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		positionTolerance: DefaultPositionTolerance,
		durationTolerance: DefaultDurationTolerance,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateTransposition grades student against reference shifted by
// semitones. Both scores may be MusicXML text or zip containers. It never
// fails: degenerate input yields a report with Error set.
func (e *Engine) EvaluateTransposition(reference, student []byte, semitones int) models.EvaluationReport {
	return e.Evaluate(musicxml.Decode(reference), musicxml.Decode(student), semitones)
}

// Evaluate grades already decoded scores.
func (e *Engine) Evaluate(reference, student musicxml.Result, semitones int) models.EvaluationReport {
	if reference.Empty() {
		e.logger.Warn("evaluate: reference has no notes", slog.String("error", causeOf(reference.Err)))
		return models.EvaluationReport{
			Details: []models.ComparisonResult{},
			Error:   "reference score has no notes: " + causeOf(reference.Err),
		}
	}

	expected := pitch.Transpose(reference.Notes, semitones)

	if student.Empty() {
		e.logger.Debug("evaluate: student submission has no notes", slog.String("error", causeOf(student.Err)))
		details := Align(expected, nil, e.positionTolerance, e.durationTolerance)
		return models.EvaluationReport{
			TotalNotes:   len(expected),
			MissingNotes: len(expected),
			Details:      details,
			Error:        "student submission has no notes: " + causeOf(student.Err),
		}
	}

	details := Align(expected, student.Notes, e.positionTolerance, e.durationTolerance)
	return Summarize(details, len(expected))
}

// Summarize aggregates comparison rows into a report. Extra notes are
// counted but do not enter the score's denominator.
func Summarize(details []models.ComparisonResult, totalNotes int) models.EvaluationReport {
	r := models.EvaluationReport{TotalNotes: totalNotes, Details: details}
	for _, d := range details {
		switch {
		case d.ErrorType == models.ErrorMissing:
			r.MissingNotes++
		case d.ErrorType == models.ErrorExtra:
			r.ExtraNotes++
		case d.IsCorrect:
			r.CorrectNotes++
		default:
			r.IncorrectNotes++
		}
	}
	if totalNotes > 0 {
		r.Score = int(math.Round(float64(r.CorrectNotes) / float64(totalNotes) * 100))
		// A full score is reserved for a fully correct answer.
		if r.Score == 100 && r.CorrectNotes < totalNotes {
			r.Score = 99
		}
	}
	return r
}

func causeOf(err error) string {
	if err == nil {
		return musicxml.ErrEmptySequence.Error()
	}
	return err.Error()
}
