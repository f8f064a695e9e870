// Package gradingservice coordinates the grading engine, the gradebook and
// the live event broker.
package gradingservice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/cadenza/internal/apperr"
	"github.com/starford/cadenza/internal/checksum"
	"github.com/starford/cadenza/internal/gradebook"
	"github.com/starford/cadenza/internal/grading"
	"github.com/starford/cadenza/internal/midiexport"
	"github.com/starford/cadenza/internal/models"
	"github.com/starford/cadenza/internal/musicxml"
	"github.com/starford/cadenza/internal/pitch"
	"github.com/starford/cadenza/internal/sse"
)

// Publisher receives grade change notifications.
type Publisher interface {
	PublishGrade(ev sse.GradeEvent)
}

type nopPublisher struct{}

func (nopPublisher) PublishGrade(sse.GradeEvent) {}

// GradeRequest is one answer to grade and record.
type GradeRequest struct {
	QuestionID string
	StudentID  string
	Reference  []byte
	Student    []byte
	Semitones  int
	MaxPoints  float64
}

// Outcome is the stored grade plus whether this call re-evaluated it.
// Graded is false when an identical submission was already on record.
type Outcome struct {
	Grade  gradebook.GradeRow `json:"grade"`
	Graded bool               `json:"graded"`
}

// BatchResult pairs a batch entry with its outcome or error.
type BatchResult struct {
	QuestionID string
	StudentID  string
	Outcome    *Outcome
	Err        error
}

// Service grades submissions and keeps the gradebook current.
type Service struct {
	engine      *grading.Engine
	store       gradebook.Store
	events      Publisher
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the grade event sink.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithTimeout bounds a single evaluation.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithConcurrency sets how many batch entries are graded at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a grading service.
func New(engine *grading.Engine, store gradebook.Store, opts ...Option) *Service {
	s := &Service{
		engine:      engine,
		store:       store,
		events:      nopPublisher{},
		concurrency: 4,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DecodeInput turns a request score field into raw score bytes. XML text is
// passed through; base64 that decodes to a zip container is unwrapped.
func DecodeInput(s string) []byte {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.HasPrefix(trimmed, "<") {
		return []byte(s)
	}
	raw, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil || !musicxml.IsCompressed(raw) {
		return []byte(s)
	}
	return raw
}

// Evaluate grades student against reference without recording anything.
// The engine itself never fails; an error here means ctx ended first.
func (s *Service) Evaluate(ctx context.Context, reference, student []byte, semitones int) (models.EvaluationReport, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	done := make(chan models.EvaluationReport, 1)
	go func() {
		done <- s.engine.EvaluateTransposition(reference, student, semitones)
	}()

	select {
	case report := <-done:
		return report, nil
	case <-ctx.Done():
		return models.EvaluationReport{}, fmt.Errorf("gradingservice: evaluate: %w", ctx.Err())
	}
}

// Grade evaluates req and records the result. An unchanged re-submission
// returns the stored grade without re-evaluating.
func (s *Service) Grade(ctx context.Context, req GradeRequest) (*Outcome, error) {
	if req.QuestionID == "" || req.StudentID == "" {
		return nil, fmt.Errorf("%w: question and student ids are required", apperr.ErrInvalidInput)
	}
	if req.MaxPoints < 0 {
		return nil, fmt.Errorf("%w: max points must not be negative", apperr.ErrInvalidInput)
	}

	sum := checksum.Submission(req.Reference, req.Student, req.Semitones)
	existing, err := s.store.FindGrade(ctx, req.QuestionID, req.StudentID)
	switch {
	case err == nil && existing.Checksum == sum && existing.MaxPoints == req.MaxPoints:
		return &Outcome{Grade: *existing, Graded: false}, nil
	case err != nil && !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	report, err := s.Evaluate(ctx, req.Reference, req.Student, req.Semitones)
	if err != nil {
		return nil, err
	}

	row := gradebook.GradeRow{
		QuestionID: req.QuestionID,
		StudentID:  req.StudentID,
		Checksum:   sum,
		Semitones:  req.Semitones,
		Score:      report.Score,
		MaxPoints:  req.MaxPoints,
		Awarded:    Awarded(report.Score, req.MaxPoints),
		Report:     report,
		GradedAt:   time.Now().UTC(),
	}
	id, err := s.store.UpsertGrade(ctx, row)
	if err != nil {
		return nil, err
	}
	row.ID = id

	s.logger.Info("graded submission",
		slog.String("question", row.QuestionID),
		slog.String("student", row.StudentID),
		slog.Int("score", row.Score),
	)
	s.events.PublishGrade(sse.GradeEvent{
		Kind:       sse.GradeRecorded,
		ID:         row.ID,
		QuestionID: row.QuestionID,
		StudentID:  row.StudentID,
		Score:      row.Score,
	})
	return &Outcome{Grade: row, Graded: true}, nil
}

// GradeBatch grades every request with bounded concurrency. A failing entry
// is reported in its BatchResult and never stops the others. Results keep
// the order of reqs.
func (s *Service) GradeBatch(ctx context.Context, reqs []GradeRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			out, err := s.Grade(ctx, req)
			results[i] = BatchResult{
				QuestionID: req.QuestionID,
				StudentID:  req.StudentID,
				Outcome:    out,
				Err:        err,
			}
			if err != nil {
				s.logger.Warn("batch grade failed",
					slog.String("question", req.QuestionID),
					slog.String("student", req.StudentID),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// GetGrade returns a stored grade.
func (s *Service) GetGrade(ctx context.Context, id string) (*gradebook.GradeRow, error) {
	return s.store.GetGrade(ctx, id)
}

// ListGrades returns a page of grades, optionally filtered by question.
func (s *Service) ListGrades(ctx context.Context, questionID string, limit, offset int) ([]gradebook.GradeRow, int, error) {
	rows, total, err := s.store.ListGrades(ctx, questionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if rows == nil {
		rows = []gradebook.GradeRow{}
	}
	return rows, total, nil
}

// DeleteGrade removes a grade and announces it.
func (s *Service) DeleteGrade(ctx context.Context, id string) error {
	row, err := s.store.GetGrade(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteGrade(ctx, id); err != nil {
		return err
	}
	s.events.PublishGrade(sse.GradeEvent{
		Kind:       sse.GradeDeleted,
		ID:         row.ID,
		QuestionID: row.QuestionID,
		StudentID:  row.StudentID,
		Score:      row.Score,
	})
	return nil
}

// RemoveSubmission deletes the grade recorded for a question and student,
// if any.
func (s *Service) RemoveSubmission(ctx context.Context, questionID, studentID string) error {
	row, err := s.store.FindGrade(ctx, questionID, studentID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.DeleteGrade(ctx, row.ID)
}

// TransposeReference returns the reference notes shifted by semitones.
func (s *Service) TransposeReference(reference []byte, semitones int) ([]models.Note, error) {
	res := musicxml.Decode(reference)
	if res.Empty() {
		cause := musicxml.ErrEmptySequence
		if res.Err != nil {
			cause = res.Err
		}
		return nil, fmt.Errorf("%w: reference: %v", apperr.ErrInvalidInput, cause)
	}
	return pitch.Transpose(res.Notes, semitones), nil
}

// PreviewMIDI renders the transposed reference as a Standard MIDI File.
func (s *Service) PreviewMIDI(reference []byte, semitones int, tempo float64) ([]byte, error) {
	notes, err := s.TransposeReference(reference, semitones)
	if err != nil {
		return nil, err
	}
	data, err := midiexport.Bytes(notes, tempo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return data, nil
}

// Awarded converts a 0..100 score to points out of maxPoints.
func Awarded(score int, maxPoints float64) float64 {
	return float64(score) / 100 * maxPoints
}
