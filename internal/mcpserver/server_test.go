package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/cadenza/internal/gradebook"
	"github.com/starford/cadenza/internal/grading"
	"github.com/starford/cadenza/internal/gradingservice"
	"github.com/starford/cadenza/internal/models"
	"github.com/starford/cadenza/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	svc := gradingservice.New(grading.NewEngine(), testutil.TestDB(t))
	return New(svc, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "evaluate_transposition":
		result, err = srv.evaluateTransposition(ctx, req)
	case "transpose_notes":
		result, err = srv.transposeNotes(ctx, req)
	case "record_grade":
		result, err = srv.recordGrade(ctx, req)
	case "get_grade":
		result, err = srv.getGrade(ctx, req)
	case "list_grades":
		result, err = srv.listGrades(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestEvaluateTransposition(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "evaluate_transposition", map[string]interface{}{
		"reference": string(testutil.Tetrachord()),
		"student":   string(testutil.TetrachordUpWholeTone(0)),
		"semitones": float64(2),
	})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var report models.EvaluationReport
	if err := json.Unmarshal([]byte(resultText(r)), &report); err != nil {
		t.Fatal(err)
	}
	if report.Score != 100 || report.CorrectNotes != 4 {
		t.Errorf("report = %+v", report)
	}
}

func TestEvaluateTransposition_DataURI(t *testing.T) {
	srv := testServer(t)
	mxl := testutil.MXL(t, "score.xml", testutil.TetrachordUpWholeTone(1), false)
	r := callTool(t, srv, "evaluate_transposition", map[string]interface{}{
		"reference": string(testutil.Tetrachord()),
		"student":   "data:application/vnd.recordare.musicxml;base64," + base64.StdEncoding.EncodeToString(mxl),
		"semitones": float64(2),
	})
	var report models.EvaluationReport
	_ = json.Unmarshal([]byte(resultText(r)), &report)
	if report.Score != 75 || report.MissingNotes != 1 {
		t.Errorf("report = %+v (%s)", report, resultText(r))
	}
}

func TestEvaluateTransposition_MissingArgs(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "evaluate_transposition", map[string]interface{}{
		"reference": string(testutil.Tetrachord()),
		"semitones": float64(2),
	})
	if !r.IsError {
		t.Error("expected error for missing student")
	}
}

func TestSemitonesOutOfRange(t *testing.T) {
	srv := testServer(t)
	args := map[string]interface{}{
		"reference":   string(testutil.Tetrachord()),
		"student":     string(testutil.TetrachordUpWholeTone(0)),
		"question_id": "q1",
		"student_id":  "s1",
		"semitones":   float64(128),
	}
	for _, tool := range []string{"evaluate_transposition", "transpose_notes", "record_grade"} {
		r := callTool(t, srv, tool, args)
		if !r.IsError || !strings.Contains(resultText(r), "semitones") {
			t.Errorf("%s: result = %q, want semitones range error", tool, resultText(r))
		}
	}

	args["semitones"] = float64(-127)
	if r := callTool(t, srv, "transpose_notes", args); r.IsError {
		t.Errorf("transpose_notes at the lower bound: %s", resultText(r))
	}
}

func TestTransposeNotes(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "transpose_notes", map[string]interface{}{
		"reference": string(testutil.Tetrachord()),
		"semitones": float64(-1),
	})
	text := resultText(r)
	for _, name := range []string{`"B3"`, `"C#4"`, `"D#4"`, `"E4"`} {
		if !strings.Contains(text, name) {
			t.Errorf("missing %s in %s", name, text)
		}
	}
}

func TestRecordAndGetGrade(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "record_grade", map[string]interface{}{
		"question_id": "q1",
		"student_id":  "alice",
		"reference":   string(testutil.Tetrachord()),
		"student":     string(testutil.TetrachordUpWholeTone(0)),
		"semitones":   float64(2),
		"max_points":  float64(4),
	})
	if r.IsError {
		t.Fatalf("record: %s", resultText(r))
	}
	var out gradingservice.Outcome
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Grade.Awarded != 4 {
		t.Errorf("awarded = %v", out.Grade.Awarded)
	}

	r = callTool(t, srv, "get_grade", map[string]interface{}{"id": out.Grade.ID})
	var row gradebook.GradeRow
	_ = json.Unmarshal([]byte(resultText(r)), &row)
	if row.StudentID != "alice" || row.Score != 100 {
		t.Errorf("get_grade = %+v", row)
	}

	r = callTool(t, srv, "list_grades", map[string]interface{}{"question_id": "q1"})
	if !strings.Contains(resultText(r), `"total": 1`) {
		t.Errorf("list_grades = %s", resultText(r))
	}
}

func TestGetGradeMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_grade", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing grade")
	}
}

func TestLoadScore_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(testutil.Tetrachord())
	}))
	defer ts.Close()

	if _, err := loadScore(context.Background(), ts.URL); err == nil {
		t.Error("expected loopback URL to be blocked")
	}
}

func TestDecodeDataURI(t *testing.T) {
	if _, err := decodeDataURI("data:image/png;base64,AAAA"); err == nil {
		t.Error("expected unsupported MIME type error")
	}
	if _, err := decodeDataURI("data:text/xml,<score/>"); err == nil {
		t.Error("expected non-base64 error")
	}
	data, err := decodeDataURI("data:text/xml;base64," + base64.StdEncoding.EncodeToString([]byte("<a/>")))
	if err != nil || string(data) != "<a/>" {
		t.Errorf("decode = %q, %v", data, err)
	}
}

func TestReportFormatResource(t *testing.T) {
	srv := testServer(t)
	contents, err := srv.readReportFormat(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != reportFormatURI || !strings.Contains(tc.Text, "missingNotes") {
		t.Errorf("resource = %+v", contents[0])
	}
}
