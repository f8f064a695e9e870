package models

// ErrorType classifies a single comparison outcome.
type ErrorType string

const (
	ErrorNone         ErrorType = "none"
	ErrorPitch        ErrorType = "pitch"
	ErrorDuration     ErrorType = "duration"
	ErrorTie          ErrorType = "tie"
	ErrorSlur         ErrorType = "slur"
	ErrorArticulation ErrorType = "articulation"
	ErrorMissing      ErrorType = "missing"
	ErrorExtra        ErrorType = "extra"
)

// ComparisonResult is one row of an evaluation: a matched pair, a missing
// expected note, or an extra student note.
type ComparisonResult struct {
	Position     float64   `json:"position"`
	Expected     *Note     `json:"expected,omitempty"`
	Actual       *Note     `json:"actual,omitempty"`
	IsCorrect    bool      `json:"isCorrect"`
	ErrorType    ErrorType `json:"errorType"`
	ExpectedMidi *int      `json:"expectedMidi,omitempty"`
	ActualMidi   *int      `json:"actualMidi,omitempty"`
}

// EvaluationReport is the outcome of grading one submission.
type EvaluationReport struct {
	Score          int                `json:"score"`
	TotalNotes     int                `json:"totalNotes"`
	CorrectNotes   int                `json:"correctNotes"`
	IncorrectNotes int                `json:"incorrectNotes"`
	MissingNotes   int                `json:"missingNotes"`
	ExtraNotes     int                `json:"extraNotes"`
	Details        []ComparisonResult `json:"details"`
	Error          string             `json:"error,omitempty"`
}
