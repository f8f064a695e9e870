package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/cadenza/internal/gradebook"
	"github.com/starford/cadenza/internal/gradingservice"
	"github.com/starford/cadenza/internal/models"
	"github.com/starford/cadenza/internal/pitch"
)

// EvaluateRequest is the request body for POST /api/evaluate. Score fields
// hold MusicXML text or base64 of an MXL container.
type EvaluateRequest struct {
	QuestionID             string `json:"questionId" example:"q-17" validate:"required"`
	StudentMusicXML        string `json:"studentMusicXML" validate:"required"`
	ReferenceMusicXML      string `json:"referenceMusicXML" validate:"required"`
	TranspositionSemitones int    `json:"transpositionSemitones" example:"2"`
}

// Validate implements validation.Validatable.
func (r EvaluateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.QuestionID, validation.Required),
		validation.Field(&r.StudentMusicXML, validation.Required),
		validation.Field(&r.ReferenceMusicXML, validation.Required),
		validation.Field(&r.TranspositionSemitones, validation.Min(-pitch.MaxSemitones), validation.Max(pitch.MaxSemitones)),
	)
}

// GradeRequest is the request body for POST /api/grades.
type GradeRequest struct {
	EvaluateRequest
	StudentID string  `json:"studentId" example:"s-42" validate:"required"`
	MaxPoints float64 `json:"maxPoints" example:"10"`
}

// Validate implements validation.Validatable.
func (r GradeRequest) Validate() error {
	if err := r.EvaluateRequest.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.StudentID, validation.Required),
		validation.Field(&r.MaxPoints, validation.Min(0.0)),
	)
}

// PreviewRequest is the request body for POST /api/preview/midi.
type PreviewRequest struct {
	ReferenceMusicXML      string  `json:"referenceMusicXML" validate:"required"`
	TranspositionSemitones int     `json:"transpositionSemitones" example:"-3"`
	Tempo                  float64 `json:"tempo,omitempty" example:"96"`
}

// Validate implements validation.Validatable.
func (r PreviewRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ReferenceMusicXML, validation.Required),
		validation.Field(&r.TranspositionSemitones, validation.Min(-pitch.MaxSemitones), validation.Max(pitch.MaxSemitones)),
		validation.Field(&r.Tempo, validation.Min(0.0), validation.Max(1000.0)),
	)
}

// EvaluationReport is the response of POST /api/evaluate.
type EvaluationReport = models.EvaluationReport

// GradeRecord is a stored grade (aliased from the gradebook layer).
type GradeRecord = gradebook.GradeRow

// GradeOutcome is the response of POST /api/grades.
type GradeOutcome = gradingservice.Outcome

// GradeListResponse wraps paginated grade listings.
type GradeListResponse struct {
	Grades []GradeRecord `json:"grades" validate:"required"`
	Total  int           `json:"total" example:"42" validate:"required"`
}
