package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"bansub/internal/config"
	"bansub/internal/project"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [id]",
	Short: "Resume an existing project",
	Long: `Resume a project that already has state in the work directory.

Unlike process, resume refuses to start a job from scratch: the project
file must exist. Useful after a crash or a long recognition task.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().
		Bool("keep", false, "Keep the project in the work directory instead of archiving it")
}

func runResume(cmd *cobra.Command, args []string) error {
	id, err := project.ParseSource(args[0])
	if err != nil {
		return err
	}

	keep, _ := cmd.Flags().GetBool("keep")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	projectFile := filepath.Join(cfg.Paths.WorkDir, id, project.ProjectFileName)
	if _, err := os.Stat(projectFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("project %s has no saved state; use 'bansub process' to start it", id)
		}
		return err
	}

	return runPipeline(cmd.Context(), cfg, id, "", keep)
}
