package musicxml

import "github.com/starford/cadenza/internal/models"

// Result is the fail-soft outcome of Decode. Notes is never nil; Err holds
// the typed cause when Notes is empty.
type Result struct {
	Notes []models.Note
	Err   error
}

// Empty reports whether no notes were extracted.
func (r Result) Empty() bool {
	return len(r.Notes) == 0
}

// Decode unwraps and parses a score without ever failing hard: container
// and parse failures degrade to an empty sequence carrying the cause.
func Decode(data []byte) Result {
	text, err := Extract(data)
	if err != nil {
		return Result{Notes: []models.Note{}, Err: err}
	}
	notes, err := ParseNotes(text)
	return Result{Notes: notes, Err: err}
}
