// Package inbox grades score files dropped into a directory tree.
//
// Layout:
//
//	<root>/<questionId>/question.yaml       semitones, max_points, reference
//	<root>/<questionId>/<reference file>    the excerpt to transpose
//	<root>/<questionId>/<studentId>.xml     one answer per student (.xml, .musicxml, .mxl)
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/cadenza/internal/apperr"
	"github.com/starford/cadenza/internal/gradingservice"
	"github.com/starford/cadenza/internal/storage"
)

// DescriptorName is the per-question settings file.
const DescriptorName = "question.yaml"

// Grader is the part of the grading service the inbox drives.
type Grader interface {
	Grade(ctx context.Context, req gradingservice.GradeRequest) (*gradingservice.Outcome, error)
	RemoveSubmission(ctx context.Context, questionID, studentID string) error
}

// Question is a question.yaml descriptor.
type Question struct {
	Semitones *int     `yaml:"semitones"`
	MaxPoints *float64 `yaml:"max_points"`
	Reference string   `yaml:"reference"`
}

// Defaults apply when a descriptor omits a field or is absent.
type Defaults struct {
	Semitones int
	MaxPoints float64
}

// Inbox maps inbox files to grading requests.
type Inbox struct {
	store    storage.Provider
	grader   Grader
	defaults Defaults
	logger   *slog.Logger
}

// New creates an inbox over store.
func New(store storage.Provider, grader Grader, defaults Defaults, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{store: store, grader: grader, defaults: defaults, logger: logger}
}

type question struct {
	id        string
	semitones int
	maxPoints float64
	refPath   string
	reference []byte
}

// load reads a question's descriptor and reference score.
func (in *Inbox) load(questionID string) (*question, error) {
	q := &question{id: questionID, semitones: in.defaults.Semitones, maxPoints: in.defaults.MaxPoints}

	var desc Question
	raw, err := in.store.Read(path.Join(questionID, DescriptorName))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &desc); err != nil {
			return nil, fmt.Errorf("inbox: %s/%s: %w", questionID, DescriptorName, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}
	if desc.Semitones != nil {
		q.semitones = *desc.Semitones
	}
	if desc.MaxPoints != nil {
		q.maxPoints = *desc.MaxPoints
	}

	if desc.Reference != "" {
		q.refPath = path.Join(questionID, desc.Reference)
	} else {
		files, err := in.store.List(questionID)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		for _, f := range files {
			if stem(f.Path) == "reference" && path.Dir(f.Path) == questionID {
				q.refPath = f.Path
				break
			}
		}
	}
	if q.refPath == "" {
		return nil, fmt.Errorf("%w: question %s has no reference score", apperr.ErrNotFound, questionID)
	}

	q.reference, err = in.store.Read(q.refPath)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// split returns the question and student a relative submission path names.
// ok is false for paths outside the <question>/<student>.<ext> layout.
func split(rel string) (questionID, studentID string, ok bool) {
	dir, file := path.Split(rel)
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" || strings.Contains(dir, "/") || !storage.IsScoreFile(file) {
		return "", "", false
	}
	return dir, stem(file), true
}

func stem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// GradeFile grades the submission at rel. The reference file itself and
// paths outside the layout are ignored and return nil, nil.
func (in *Inbox) GradeFile(ctx context.Context, rel string) (*gradingservice.Outcome, error) {
	questionID, studentID, ok := split(rel)
	if !ok {
		return nil, nil
	}
	q, err := in.load(questionID)
	if err != nil {
		return nil, err
	}
	if rel == q.refPath {
		return nil, nil
	}
	return in.grade(ctx, q, rel, studentID)
}

func (in *Inbox) grade(ctx context.Context, q *question, rel, studentID string) (*gradingservice.Outcome, error) {
	data, err := in.store.Read(rel)
	if err != nil {
		return nil, err
	}
	return in.grader.Grade(ctx, gradingservice.GradeRequest{
		QuestionID: q.id,
		StudentID:  studentID,
		Reference:  q.reference,
		Student:    data,
		Semitones:  q.semitones,
		MaxPoints:  q.maxPoints,
	})
}

// GradeQuestion grades every submission of one question. Submissions whose
// grading fails are logged and skipped.
func (in *Inbox) GradeQuestion(ctx context.Context, questionID string) (int, error) {
	q, err := in.load(questionID)
	if err != nil {
		return 0, err
	}
	files, err := in.store.List(questionID)
	if err != nil {
		return 0, err
	}

	graded := 0
	for _, f := range files {
		if f.Path == q.refPath {
			continue
		}
		_, studentID, ok := split(f.Path)
		if !ok {
			continue
		}
		out, err := in.grade(ctx, q, f.Path, studentID)
		if err != nil {
			in.logger.Warn("inbox: grade failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		if out.Graded {
			graded++
		}
	}
	return graded, nil
}

// Changed reacts to a created, modified or removed inbox path. A changed
// descriptor or reference regrades the whole question.
func (in *Inbox) Changed(ctx context.Context, rel string) error {
	if dir, file := path.Split(rel); file == DescriptorName {
		_, err := in.GradeQuestion(ctx, strings.TrimSuffix(dir, "/"))
		return err
	}
	questionID, _, ok := split(rel)
	if !ok {
		return nil
	}

	if _, err := in.store.Read(rel); errors.Is(err, fs.ErrNotExist) {
		return in.Remove(ctx, rel)
	}
	q, err := in.load(questionID)
	if err != nil {
		return err
	}
	if rel == q.refPath {
		_, err := in.GradeQuestion(ctx, questionID)
		return err
	}
	_, err = in.GradeFile(ctx, rel)
	return err
}

// Remove forgets the grade of a submission whose file went away.
func (in *Inbox) Remove(ctx context.Context, rel string) error {
	questionID, studentID, ok := split(rel)
	if !ok || studentID == "reference" {
		return nil
	}
	return in.grader.RemoveSubmission(ctx, questionID, studentID)
}

// Submit stores a student's answer in the inbox and grades it.
func (in *Inbox) Submit(ctx context.Context, questionID, studentID, ext string, data []byte) (*gradingservice.Outcome, error) {
	if !validSegment(questionID) || !validSegment(studentID) || studentID == "reference" {
		return nil, fmt.Errorf("%w: invalid question or student id", apperr.ErrInvalidInput)
	}
	if ext == "" {
		ext = ".xml"
	}
	rel := path.Join(questionID, studentID+ext)
	if !storage.IsScoreFile(rel) {
		return nil, fmt.Errorf("%w: unsupported extension %q", apperr.ErrInvalidInput, ext)
	}
	q, err := in.load(questionID)
	if err != nil {
		return nil, err
	}
	if rel == q.refPath {
		return nil, fmt.Errorf("%w: %s is the question reference", apperr.ErrInvalidInput, rel)
	}
	if err := in.store.Write(rel, data); err != nil {
		return nil, err
	}
	return in.grade(ctx, q, rel, studentID)
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.HasPrefix(s, ".") &&
		!strings.ContainsAny(s, `/\`)
}
