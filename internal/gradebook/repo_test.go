package gradebook

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/cadenza/internal/apperr"
	"github.com/starford/cadenza/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "cadenza-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleGrade(question, student string, score int) GradeRow {
	return GradeRow{
		QuestionID: question,
		StudentID:  student,
		Checksum:   "cs-" + student,
		Semitones:  2,
		Score:      score,
		MaxPoints:  10,
		Awarded:    float64(score) / 10,
		Report: models.EvaluationReport{
			Score:        score,
			TotalNotes:   4,
			CorrectNotes: score / 25,
			Details:      []models.ComparisonResult{},
		},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM grades`).Scan(&count); err != nil {
		t.Fatalf("grades table missing: %v", err)
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	id, err := db.UpsertGrade(ctx, sampleGrade("q1", "alice", 75))
	if err != nil {
		t.Fatalf("UpsertGrade: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	g, err := db.GetGrade(ctx, id)
	if err != nil {
		t.Fatalf("GetGrade: %v", err)
	}
	if g.Score != 75 || g.Awarded != 7.5 || g.Report.CorrectNotes != 3 {
		t.Errorf("grade = %+v", g)
	}
	if g.GradedAt.IsZero() {
		t.Error("graded_at not set")
	}
}

func TestUpsertReplacesSameStudent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first, _ := db.UpsertGrade(ctx, sampleGrade("q1", "alice", 50))
	second, err := db.UpsertGrade(ctx, sampleGrade("q1", "alice", 100))
	if err != nil {
		t.Fatalf("UpsertGrade: %v", err)
	}
	if first != second {
		t.Errorf("id changed on regrade: %s -> %s", first, second)
	}

	g, err := db.FindGrade(ctx, "q1", "alice")
	if err != nil {
		t.Fatalf("FindGrade: %v", err)
	}
	if g.Score != 100 {
		t.Errorf("score = %d, want 100", g.Score)
	}
}

func TestListGrades(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, s := range []string{"alice", "bob", "carol"} {
		g := sampleGrade("q1", s, 25*i)
		g.GradedAt = base.Add(time.Duration(i) * time.Second)
		if _, err := db.UpsertGrade(ctx, g); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.UpsertGrade(ctx, sampleGrade("q2", "alice", 100)); err != nil {
		t.Fatal(err)
	}

	rows, total, err := db.ListGrades(ctx, "q1", 2, 0)
	if err != nil {
		t.Fatalf("ListGrades: %v", err)
	}
	if total != 3 || len(rows) != 2 {
		t.Fatalf("total = %d, len = %d; want 3, 2", total, len(rows))
	}
	if rows[0].StudentID != "carol" {
		t.Errorf("rows[0] = %s, want newest first", rows[0].StudentID)
	}

	_, total, _ = db.ListGrades(ctx, "", 0, 0)
	if total != 4 {
		t.Errorf("unfiltered total = %d, want 4", total)
	}
}

func TestDeleteGrade(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	id, _ := db.UpsertGrade(ctx, sampleGrade("q1", "alice", 75))
	if err := db.DeleteGrade(ctx, id); err != nil {
		t.Fatalf("DeleteGrade: %v", err)
	}
	if _, err := db.GetGrade(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete = %v, want ErrNotFound", err)
	}
	if err := db.DeleteGrade(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestFindGrade_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.FindGrade(context.Background(), "q", "nobody"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
