package pipeline

import (
	"context"
	"fmt"

	"bansub/internal/logging"
	"bansub/internal/project"
)

// Stage is one named, checkpointed unit of pipeline work. Run performs the
// stage's side effect through an external collaborator; it must be safe to
// call again after a failed or interrupted attempt.
type Stage struct {
	Name project.StageName
	Run  func(ctx context.Context) error
}

// Runner drives a project through an ordered stage list, skipping stages
// whose completion flag is already set and persisting each completion
// before the next stage begins. A failed stage aborts the run with its
// flag unset, so a later invocation resumes exactly there.
type Runner struct {
	store  *project.Store
	logger *logging.Logger
}

func NewRunner(store *project.Store, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{store: store, logger: logger}
}

// Run executes every unfinished stage in order.
func (r *Runner) Run(ctx context.Context, record *project.Record, stages []Stage) error {
	for _, stage := range stages {
		done, err := record.StageDone(stage.Name)
		if err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		if done {
			r.logger.Debugw("Stage skipped",
				"project", record.ID,
				"stage", stage.Name,
			)
			continue
		}

		r.logger.Infow("Stage started",
			"project", record.ID,
			"stage", stage.Name,
		)

		if err := stage.Run(ctx); err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name, err)
		}

		// The completion flag is only trustworthy once it is on disk;
		// a failed save aborts the run before the next stage.
		if err := r.store.MarkDone(record, stage.Name); err != nil {
			return fmt.Errorf("stage %s: persist completion: %w", stage.Name, err)
		}

		r.logger.Infow("Stage complete",
			"project", record.ID,
			"stage", stage.Name,
		)
	}
	return nil
}
