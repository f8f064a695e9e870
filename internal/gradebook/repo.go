package gradebook

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/cadenza/internal/apperr"
	"github.com/starford/cadenza/internal/models"
)

// GradeRow is one graded answer: the latest evaluation of a student's
// submission for a question.
type GradeRow struct {
	ID         string                  `json:"id"`
	QuestionID string                  `json:"questionId"`
	StudentID  string                  `json:"studentId"`
	Checksum   string                  `json:"checksum"`
	Semitones  int                     `json:"semitones"`
	Score      int                     `json:"score"`
	MaxPoints  float64                 `json:"maxPoints"`
	Awarded    float64                 `json:"awarded"`
	Report     models.EvaluationReport `json:"report"`
	GradedAt   time.Time               `json:"gradedAt"`
}

const selectColumns = `id, question_id, student_id, checksum, semitones, score, max_points, awarded, report, graded_at`

// UpsertGrade stores g, replacing any earlier grade for the same question
// and student, and returns the row id.
func (db *DB) UpsertGrade(ctx context.Context, g GradeRow) (string, error) {
	report, err := json.Marshal(g.Report)
	if err != nil {
		return "", fmt.Errorf("gradebook: encode report: %w", err)
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.GradedAt.IsZero() {
		g.GradedAt = time.Now().UTC()
	}

	var id string
	err = db.conn.QueryRowContext(ctx, `
		INSERT INTO grades (id, question_id, student_id, checksum, semitones, score, max_points, awarded, report, graded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(question_id, student_id) DO UPDATE SET
			checksum   = excluded.checksum,
			semitones  = excluded.semitones,
			score      = excluded.score,
			max_points = excluded.max_points,
			awarded    = excluded.awarded,
			report     = excluded.report,
			graded_at  = excluded.graded_at
		RETURNING id
	`, g.ID, g.QuestionID, g.StudentID, g.Checksum, g.Semitones, g.Score, g.MaxPoints, g.Awarded, string(report), g.GradedAt).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("gradebook: upsert grade: %w", err)
	}
	return id, nil
}

// GetGrade returns the grade with the given id or apperr.ErrNotFound.
func (db *DB) GetGrade(ctx context.Context, id string) (*GradeRow, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM grades WHERE id = ?`, id)
	return scanGrade(row)
}

// FindGrade returns the grade for a question and student or apperr.ErrNotFound.
func (db *DB) FindGrade(ctx context.Context, questionID, studentID string) (*GradeRow, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM grades WHERE question_id = ? AND student_id = ?`, questionID, studentID)
	return scanGrade(row)
}

// ListGrades returns grades newest first, optionally filtered by question,
// together with the unpaginated total.
func (db *DB) ListGrades(ctx context.Context, questionID string, limit, offset int) ([]GradeRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	var args []any
	if questionID != "" {
		where = " WHERE question_id = ?"
		args = append(args, questionID)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM grades`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("gradebook: count grades: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM grades`+where+` ORDER BY graded_at DESC, id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("gradebook: list grades: %w", err)
	}
	defer rows.Close()

	var out []GradeRow
	for rows.Next() {
		g, err := scanGrade(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *g)
	}
	return out, total, rows.Err()
}

// DeleteGrade removes a grade; unknown ids yield apperr.ErrNotFound.
func (db *DB) DeleteGrade(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM grades WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("gradebook: delete grade: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGrade(s scanner) (*GradeRow, error) {
	var (
		g      GradeRow
		report string
	)
	err := s.Scan(&g.ID, &g.QuestionID, &g.StudentID, &g.Checksum, &g.Semitones,
		&g.Score, &g.MaxPoints, &g.Awarded, &report, &g.GradedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gradebook: scan grade: %w", err)
	}
	if err := json.Unmarshal([]byte(report), &g.Report); err != nil {
		return nil, fmt.Errorf("gradebook: decode report: %w", err)
	}
	return &g, nil
}
