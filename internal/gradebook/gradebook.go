package gradebook

import "context"

// Store defines gradebook persistence. Consumers depend on this interface
// rather than on *DB.
type Store interface {
	UpsertGrade(ctx context.Context, g GradeRow) (string, error)
	GetGrade(ctx context.Context, id string) (*GradeRow, error)
	FindGrade(ctx context.Context, questionID, studentID string) (*GradeRow, error)
	ListGrades(ctx context.Context, questionID string, limit, offset int) ([]GradeRow, int, error)
	DeleteGrade(ctx context.Context, id string) error
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
