package inbox

import (
	"context"
	"log/slog"
	"sort"
)

// Sync grades everything already in the inbox. Unchanged submissions are
// skipped by the grader's checksum check, so running it on every startup
// is cheap.
func (in *Inbox) Sync(ctx context.Context) error {
	files, err := in.store.List("")
	if err != nil {
		return err
	}

	questions := make(map[string]struct{})
	for _, f := range files {
		if questionID, _, ok := split(f.Path); ok {
			questions[questionID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(questions))
	for id := range questions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := in.GradeQuestion(ctx, id)
		if err != nil {
			in.logger.Warn("sync: question skipped", slog.String("question", id), slog.String("error", err.Error()))
			continue
		}
		in.logger.Debug("sync: graded", slog.String("question", id), slog.Int("graded", n))
	}
	return nil
}
