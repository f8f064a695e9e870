package inbox

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/cadenza/internal/apperr"
	"github.com/starford/cadenza/internal/gradebook"
	"github.com/starford/cadenza/internal/grading"
	"github.com/starford/cadenza/internal/gradingservice"
	"github.com/starford/cadenza/internal/storage"
	"github.com/starford/cadenza/internal/testutil"
)

type env struct {
	root  string
	store *storage.FS
	db    *gradebook.DB
	inbox *Inbox
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root, store := testutil.TestInbox(t)
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := gradingservice.New(grading.NewEngine(), db, gradingservice.WithLogger(logger))
	in := New(store, svc, Defaults{Semitones: 2, MaxPoints: 5}, logger)
	return &env{root: root, store: store, db: db, inbox: in}
}

func (e *env) write(t *testing.T, rel string, data []byte) {
	t.Helper()
	if err := e.store.Write(rel, data); err != nil {
		t.Fatal(err)
	}
}

func (e *env) grade(t *testing.T, question, student string) *gradebook.GradeRow {
	t.Helper()
	row, err := e.db.FindGrade(context.Background(), question, student)
	if err != nil {
		return nil
	}
	return row
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestGradeFile_UsesDescriptor(t *testing.T) {
	e := newEnv(t)
	e.write(t, "q1/question.yaml", []byte("semitones: 2\nmax_points: 10\nreference: excerpt.xml\n"))
	e.write(t, "q1/excerpt.xml", testutil.Tetrachord())
	e.write(t, "q1/alice.xml", testutil.TetrachordUpWholeTone(0))

	out, err := e.inbox.GradeFile(context.Background(), "q1/alice.xml")
	if err != nil {
		t.Fatalf("GradeFile: %v", err)
	}
	if out.Grade.Score != 100 || out.Grade.Awarded != 10 || out.Grade.StudentID != "alice" {
		t.Errorf("grade = %+v", out.Grade)
	}
}

func TestGradeFile_DefaultsAndReferenceLookup(t *testing.T) {
	e := newEnv(t)
	e.write(t, "q2/reference.musicxml", testutil.Tetrachord())
	e.write(t, "q2/bob.mxl", testutil.MXL(t, "score.xml", testutil.TetrachordUpWholeTone(1), true))

	out, err := e.inbox.GradeFile(context.Background(), "q2/bob.mxl")
	if err != nil {
		t.Fatalf("GradeFile: %v", err)
	}
	if out.Grade.Score != 75 || out.Grade.MaxPoints != 5 || out.Grade.Semitones != 2 {
		t.Errorf("grade = %+v", out.Grade)
	}
}

func TestGradeFile_IgnoresReferenceAndOutsideLayout(t *testing.T) {
	e := newEnv(t)
	e.write(t, "q1/reference.xml", testutil.Tetrachord())
	e.write(t, "loose.xml", testutil.Tetrachord())
	e.write(t, "q1/nested/deep.xml", testutil.Tetrachord())

	for _, rel := range []string{"q1/reference.xml", "loose.xml", "q1/nested/deep.xml"} {
		out, err := e.inbox.GradeFile(context.Background(), rel)
		if err != nil || out != nil {
			t.Errorf("GradeFile(%s) = %v, %v; want nil, nil", rel, out, err)
		}
	}
}

func TestGradeFile_MissingReference(t *testing.T) {
	e := newEnv(t)
	e.write(t, "q3/carol.xml", testutil.TetrachordUpWholeTone(0))
	if _, err := e.inbox.GradeFile(context.Background(), "q3/carol.xml"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSync_GradesOnceThenSkipsUnchanged(t *testing.T) {
	e := newEnv(t)
	e.write(t, "q1/reference.xml", testutil.Tetrachord())
	e.write(t, "q1/a.xml", testutil.TetrachordUpWholeTone(0))
	e.write(t, "q1/b.xml", testutil.TetrachordUpWholeTone(2))
	e.write(t, "q9/orphan.xml", testutil.TetrachordUpWholeTone(0))

	if err := e.inbox.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if g := e.grade(t, "q1", "a"); g == nil || g.Score != 100 {
		t.Errorf("a = %+v", g)
	}
	if g := e.grade(t, "q1", "b"); g == nil || g.Score != 50 {
		t.Errorf("b = %+v", g)
	}
	if g := e.grade(t, "q9", "orphan"); g != nil {
		t.Error("question without a reference should be skipped")
	}

	n, err := e.inbox.GradeQuestion(context.Background(), "q1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("regraded %d unchanged submissions", n)
	}
}

func TestChanged_DescriptorRegradesQuestion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.write(t, "q1/reference.xml", testutil.Tetrachord())
	e.write(t, "q1/a.xml", testutil.TetrachordUpWholeTone(0))
	if err := e.inbox.Changed(ctx, "q1/a.xml"); err != nil {
		t.Fatal(err)
	}

	e.write(t, "q1/question.yaml", []byte("semitones: 3\n"))
	if err := e.inbox.Changed(ctx, "q1/question.yaml"); err != nil {
		t.Fatal(err)
	}
	g := e.grade(t, "q1", "a")
	if g == nil || g.Semitones != 3 || g.Score == 100 {
		t.Errorf("after descriptor change grade = %+v", g)
	}
}

func TestChanged_RemovedFileForgetsGrade(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.write(t, "q1/reference.xml", testutil.Tetrachord())
	e.write(t, "q1/a.xml", testutil.TetrachordUpWholeTone(0))
	if err := e.inbox.Changed(ctx, "q1/a.xml"); err != nil {
		t.Fatal(err)
	}
	if err := e.store.Delete("q1/a.xml"); err != nil {
		t.Fatal(err)
	}
	if err := e.inbox.Changed(ctx, "q1/a.xml"); err != nil {
		t.Fatal(err)
	}
	if g := e.grade(t, "q1", "a"); g != nil {
		t.Errorf("grade survived file removal: %+v", g)
	}
}

func TestSubmit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.write(t, "q1/reference.xml", testutil.Tetrachord())

	out, err := e.inbox.Submit(ctx, "q1", "dave", ".musicxml", testutil.TetrachordUpWholeTone(0))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Grade.Score != 100 {
		t.Errorf("score = %d", out.Grade.Score)
	}
	if _, err := os.Stat(filepath.Join(e.root, "q1", "dave.musicxml")); err != nil {
		t.Errorf("submission not stored: %v", err)
	}

	for _, tc := range []struct{ q, s, ext string }{
		{"q1", "../x", ".xml"},
		{"", "a", ".xml"},
		{"q1", "reference", ".xml"},
		{"q1", "a", ".pdf"},
	} {
		if _, err := e.inbox.Submit(ctx, tc.q, tc.s, tc.ext, nil); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("Submit(%q, %q, %q) err = %v", tc.q, tc.s, tc.ext, err)
		}
	}
}

func TestWatch_GradesNewSubmission(t *testing.T) {
	e := newEnv(t)
	e.write(t, "q1/reference.xml", testutil.Tetrachord())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.inbox.Watch(ctx, e.root)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(e.root, "q1", "erin.xml"), testutil.TetrachordUpWholeTone(0), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		g := e.grade(t, "q1", "erin")
		return g != nil && g.Score == 100
	}, "new submission not graded by watcher")

	_ = os.Remove(filepath.Join(e.root, "q1", "erin.xml"))
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return e.grade(t, "q1", "erin") == nil
	}, "removed submission still graded")
}

func TestWatch_NewQuestionDirectory(t *testing.T) {
	e := newEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.inbox.Watch(ctx, e.root)
	time.Sleep(100 * time.Millisecond)

	dir := filepath.Join(e.root, "q5")
	_ = os.MkdirAll(dir, 0o755)
	_ = os.WriteFile(filepath.Join(dir, "reference.xml"), testutil.Tetrachord(), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "frank.xml"), testutil.TetrachordUpWholeTone(1), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		g := e.grade(t, "q5", "frank")
		return g != nil && g.Score == 75
	}, "submission in new directory not graded")
}
