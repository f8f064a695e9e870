package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/cadenza/internal/apperr"
	"github.com/starford/cadenza/internal/gradingservice"
	"github.com/starford/cadenza/internal/inbox"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *gradingservice.Service
	inbox    *inbox.Inbox
	maxBytes int64
}

// NewHandler creates a new Handler. in may be nil when the inbox is disabled.
func NewHandler(svc *gradingservice.Service, in *inbox.Inbox, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Handler{svc: svc, inbox: in, maxBytes: maxBytes}
}

// decode reads a JSON body into v and validates it. It writes the 400
// response itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Evaluate handles POST /api/evaluate.
//
//	@Summary		Grade a transposition without recording it
//	@Tags			grading
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EvaluateRequest	true	"Scores to compare"
//	@Success		200		{object}	EvaluationReport
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/evaluate [post]
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !h.decode(w, r, &req) {
		return
	}
	report, err := h.svc.Evaluate(r.Context(),
		gradingservice.DecodeInput(req.ReferenceMusicXML),
		gradingservice.DecodeInput(req.StudentMusicXML),
		req.TranspositionSemitones,
	)
	if err != nil {
		slog.Warn("evaluate timed out", slog.String("question", req.QuestionID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, errorBody("evaluation timed out"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// CreateGrade handles POST /api/grades.
//
//	@Summary		Grade and record a student's transposition
//	@Tags			grades
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GradeRequest	true	"Submission to grade"
//	@Success		201		{object}	GradeOutcome
//	@Success		200		{object}	GradeOutcome	"Unchanged re-submission"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/grades [post]
func (h *Handler) CreateGrade(w http.ResponseWriter, r *http.Request) {
	var req GradeRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.Grade(r.Context(), gradingservice.GradeRequest{
		QuestionID: req.QuestionID,
		StudentID:  req.StudentID,
		Reference:  gradingservice.DecodeInput(req.ReferenceMusicXML),
		Student:    gradingservice.DecodeInput(req.StudentMusicXML),
		Semitones:  req.TranspositionSemitones,
		MaxPoints:  req.MaxPoints,
	})
	if err != nil {
		writeServiceError(w, "create grade", err)
		return
	}
	status := http.StatusCreated
	if !out.Graded {
		status = http.StatusOK
	}
	writeJSON(w, status, out)
}

// ListGrades handles GET /api/grades.
//
//	@Summary		List grades with optional question filter
//	@Tags			grades
//	@Produce		json
//	@Param			question	query		string	false	"Filter by question id"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	GradeListResponse
//	@Security		BearerAuth
//	@Router			/grades [get]
func (h *Handler) ListGrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, total, err := h.svc.ListGrades(r.Context(), q.Get("question"), limit, offset)
	if err != nil {
		writeServiceError(w, "list grades", err)
		return
	}
	writeJSON(w, http.StatusOK, GradeListResponse{Grades: rows, Total: total})
}

// GetGrade handles GET /api/grades/{id}.
//
//	@Summary		Get a stored grade
//	@Tags			grades
//	@Produce		json
//	@Param			id	path		string	true	"Grade id"
//	@Success		200	{object}	GradeRecord
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/grades/{id} [get]
func (h *Handler) GetGrade(w http.ResponseWriter, r *http.Request) {
	row, err := h.svc.GetGrade(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "get grade", err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// DeleteGrade handles DELETE /api/grades/{id}.
//
//	@Summary		Delete a stored grade
//	@Tags			grades
//	@Param			id	path	string	true	"Grade id"
//	@Success		204	"Grade deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/grades/{id} [delete]
func (h *Handler) DeleteGrade(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteGrade(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "delete grade", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewMIDI handles POST /api/preview/midi.
//
//	@Summary		Render the expected answer as MIDI
//	@Tags			grading
//	@Accept			json
//	@Produce		audio/midi
//	@Param			body	body		PreviewRequest	true	"Reference and shift"
//	@Success		200		{file}		binary
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/preview/midi [post]
func (h *Handler) PreviewMIDI(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	data, err := h.svc.PreviewMIDI(gradingservice.DecodeInput(req.ReferenceMusicXML), req.TranspositionSemitones, req.Tempo)
	if err != nil {
		writeServiceError(w, "preview midi", err)
		return
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", `attachment; filename="answer.mid"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// SubmitToInbox handles PUT /api/inbox/{question}/{file}.
//
//	@Summary		Store a raw score file in the inbox and grade it
//	@Tags			inbox
//	@Accept			application/octet-stream
//	@Produce		json
//	@Param			question	path		string	true	"Question id"
//	@Param			file		path		string	true	"Student file, e.g. s-42.mxl"
//	@Success		200			{object}	GradeOutcome
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/inbox/{question}/{file} [put]
func (h *Handler) SubmitToInbox(w http.ResponseWriter, r *http.Request) {
	if h.inbox == nil {
		writeJSON(w, http.StatusNotFound, errorBody("inbox disabled"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
		return
	}

	file := chi.URLParam(r, "file")
	ext := path.Ext(file)
	student := file[:len(file)-len(ext)]
	out, err := h.inbox.Submit(r.Context(), chi.URLParam(r, "question"), student, ext, data)
	if err != nil {
		writeServiceError(w, "inbox submit", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
