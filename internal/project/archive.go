package project

import (
	"fmt"
	"os"
	"path/filepath"
)

// Archive moves a finished project's directory into archiveRoot under the
// project name, replacing any previous archive of the same name. Archival
// is not a checkpointed stage; it only runs after the whole pipeline has
// completed.
func (s *Store) Archive(record *Record, archiveRoot string) error {
	src := s.Dir(record.ID)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("project directory not found: %s", src)
	}

	if err := os.MkdirAll(archiveRoot, 0755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}

	dest := filepath.Join(archiveRoot, record.Name)
	if _, err := os.Stat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			return fmt.Errorf("failed to replace existing archive: %w", err)
		}
	}

	if err := os.Rename(src, dest); err != nil {
		return fmt.Errorf("failed to archive project %s: %w", record.ID, err)
	}
	return nil
}
