package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is an advisory per-project lock. The runner performs no internal
// mutual exclusion, so concurrent runs against the same project id must be
// fenced off here before any stage executes.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock for a project, failing immediately when another
// run holds it.
func (s *Store) Acquire(id string) (*Lock, error) {
	dir := s.Dir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create project dir: %w", err)
	}

	fl := flock.New(filepath.Join(dir, ".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock project %s: %w", id, err)
	}
	if !locked {
		return nil, fmt.Errorf("project %s is already being processed", id)
	}
	return &Lock{fl: fl}, nil
}

func (l *Lock) Release() error {
	return l.fl.Unlock()
}
