package mcpserver

// ReportFormat describes the evaluation report returned by the grading
// tools, for LLM consumers that explain results to students.
const ReportFormat = `# Cadenza Evaluation Report

` + "`" + `evaluate_transposition` + "`" + ` and ` + "`" + `record_grade` + "`" + ` return a JSON report.

## Fields

| Field | Meaning |
|---|---|
| score | 0-100, correct notes over reference notes, rounded. 100 only when every reference note is correct. |
| totalNotes | Notes in the transposed reference. |
| correctNotes | Reference notes matched by a correct student note. |
| incorrectNotes | Matched pairs that differ (pitch, duration, tie, slur or articulation). |
| missingNotes | Reference notes with no student note within a quarter beat. |
| extraNotes | Student notes matching no reference note. They do not lower the score. |
| details | One row per matched pair, missing note or extra note, ordered by position (beats). |
| error | Present when an input had no notes, e.g. a corrupt file or a PDF. |

## Detail rows

- ` + "`" + `errorType` + "`" + ` is one of none, pitch, duration, tie, slur, articulation, missing, extra.
  A pair reports only its first difference in that order.
- ` + "`" + `expected` + "`" + ` / ` + "`" + `actual` + "`" + ` hold the notes; ` + "`" + `expectedMidi` + "`" + ` / ` + "`" + `actualMidi` + "`" + ` their MIDI numbers.
- Pitches compare by MIDI number, so F#4 and Gb4 are the same pitch.

## Score inputs

Score arguments accept MusicXML text, base64 of a compressed .mxl container,
a base64 data URI, or an http(s) URL.
`
