// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes cadenza grading tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/cadenza/internal/apperr"
	"github.com/starford/cadenza/internal/gradingservice"
	"github.com/starford/cadenza/internal/pitch"
)

const reportFormatURI = "cadenza://report-format"

// Server wraps the MCP server with cadenza tools.
type Server struct {
	mcp *server.MCPServer
	svc *gradingservice.Service
}

// New creates a new MCP server with all cadenza tools registered.
func New(svc *gradingservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Cadenza",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("evaluate_transposition",
		mcp.WithDescription("Grade a student's transposition of a reference excerpt. "+
			"Returns the evaluation report; see the "+reportFormatURI+" resource for its fields."),
		mcp.WithString("reference", mcp.Required(), mcp.Description("Reference score: MusicXML text, base64 MXL, data URI or URL")),
		mcp.WithString("student", mcp.Required(), mcp.Description("Student score, same encodings as reference")),
		mcp.WithNumber("semitones", mcp.Required(), mcp.Description("Requested transposition in semitones, e.g. 2 or -3")),
	), s.evaluateTransposition)

	s.mcp.AddTool(mcp.NewTool("transpose_notes",
		mcp.WithDescription("List the notes a correct answer must contain: the reference shifted by semitones, "+
			"spelled with sharps."),
		mcp.WithString("reference", mcp.Required(), mcp.Description("Reference score: MusicXML text, base64 MXL, data URI or URL")),
		mcp.WithNumber("semitones", mcp.Required(), mcp.Description("Transposition in semitones")),
	), s.transposeNotes)

	s.mcp.AddTool(mcp.NewTool("record_grade",
		mcp.WithDescription("Grade a submission and store it in the gradebook, replacing the student's earlier grade."),
		mcp.WithString("question_id", mcp.Required(), mcp.Description("Question identifier")),
		mcp.WithString("student_id", mcp.Required(), mcp.Description("Student identifier")),
		mcp.WithString("reference", mcp.Required(), mcp.Description("Reference score")),
		mcp.WithString("student", mcp.Required(), mcp.Description("Student score")),
		mcp.WithNumber("semitones", mcp.Required(), mcp.Description("Transposition in semitones")),
		mcp.WithNumber("max_points", mcp.Description("Points for a perfect answer (default 0)")),
	), s.recordGrade)

	s.mcp.AddTool(mcp.NewTool("get_grade",
		mcp.WithDescription("Read one stored grade by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Grade id")),
	), s.getGrade)

	s.mcp.AddTool(mcp.NewTool("list_grades",
		mcp.WithDescription("List stored grades, newest first."),
		mcp.WithString("question_id", mcp.Description("Optional question filter")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listGrades)

	s.mcp.AddResource(
		mcp.NewResource(reportFormatURI, "Evaluation Report Format",
			mcp.WithResourceDescription("Fields and error types of the evaluation report."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readReportFormat,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) scores(ctx context.Context, req mcp.CallToolRequest) (reference, student []byte, err error) {
	refArg, err := req.RequireString("reference")
	if err != nil {
		return nil, nil, err
	}
	stuArg, err := req.RequireString("student")
	if err != nil {
		return nil, nil, err
	}
	if reference, err = loadScore(ctx, refArg); err != nil {
		return nil, nil, fmt.Errorf("reference: %w", err)
	}
	if student, err = loadScore(ctx, stuArg); err != nil {
		return nil, nil, fmt.Errorf("student: %w", err)
	}
	return reference, student, nil
}

// semitonesArg reads the required semitones argument, bounded like the
// HTTP API.
func semitonesArg(req mcp.CallToolRequest) (int, error) {
	semitones, err := req.RequireInt("semitones")
	if err != nil {
		return 0, err
	}
	err = validation.Validate(semitones, validation.Min(-pitch.MaxSemitones), validation.Max(pitch.MaxSemitones))
	if err != nil {
		return 0, fmt.Errorf("semitones: %w", err)
	}
	return semitones, nil
}

func (s *Server) evaluateTransposition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	semitones, err := semitonesArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reference, student, err := s.scores(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := s.svc.Evaluate(ctx, reference, student, semitones)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report), nil
}

func (s *Server) transposeNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	semitones, err := semitonesArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refArg, err := req.RequireString("reference")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reference, err := loadScore(ctx, refArg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.svc.TransposeReference(reference, semitones)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	type row struct {
		Name     string  `json:"name"`
		Midi     int     `json:"midi"`
		Position float64 `json:"position"`
		Beats    float64 `json:"beats"`
	}
	rows := make([]row, len(notes))
	for i, n := range notes {
		rows[i] = row{Name: n.Name(), Midi: n.MidiPitch(), Position: n.Position, Beats: n.Beats()}
	}
	return jsonResult(rows), nil
}

func (s *Server) recordGrade(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	questionID, err := req.RequireString("question_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	studentID, err := req.RequireString("student_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	semitones, err := semitonesArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reference, student, err := s.scores(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := s.svc.Grade(ctx, gradingservice.GradeRequest{
		QuestionID: questionID,
		StudentID:  studentID,
		Reference:  reference,
		Student:    student,
		Semitones:  semitones,
		MaxPoints:  req.GetFloat("max_points", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out), nil
}

func (s *Server) getGrade(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, err := s.svc.GetGrade(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(row), nil
}

func (s *Server) listGrades(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, total, err := s.svc.ListGrades(ctx,
		req.GetString("question_id", ""),
		req.GetInt("limit", 0),
		req.GetInt("offset", 0),
	)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"grades": rows, "total": total}), nil
}

func (s *Server) readReportFormat(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      reportFormatURI,
			MIMEType: "text/markdown",
			Text:     ReportFormat,
		},
	}, nil
}
