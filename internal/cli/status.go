package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"bansub/internal/config"
	"bansub/internal/project"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show pipeline progress",
	Long: `Without an argument, list every project in the work directory with
its progress. With a project id, show the per-stage checklist.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store := project.NewStore(cfg.Paths.WorkDir)

	if len(args) == 1 {
		id, err := project.ParseSource(args[0])
		if err != nil {
			return err
		}
		return printProjectStatus(cmd, store, id)
	}
	return printAllProjects(cmd, store)
}

func printProjectStatus(cmd *cobra.Command, store *project.Store, id string) error {
	record, err := store.Load(id, "")
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(project.StageNames()))
	for _, name := range project.StageNames() {
		done, err := record.StageDone(name)
		if err != nil {
			return err
		}
		mark := "pending"
		if done {
			mark = "done"
		}
		rows = append(rows, []string{string(name), mark})
	}

	cmd.Printf("%s (%s)\n", record.ID, record.Name)
	cmd.Println(renderTable([]string{"Stage", "Status"}, rows))
	return nil
}

func printAllProjects(cmd *cobra.Command, store *project.Store) error {
	entries, err := os.ReadDir(store.Root)
	if err != nil {
		if os.IsNotExist(err) {
			cmd.Println("No projects found.")
			return nil
		}
		return err
	}

	var rows [][]string
	total := len(project.StageNames())
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		if _, err := os.Stat(filepath.Join(store.Dir(id), project.ProjectFileName)); err != nil {
			continue
		}
		record, err := store.Load(id, "")
		if err != nil {
			rows = append(rows, []string{id, "", fmt.Sprintf("unreadable: %v", err)})
			continue
		}
		rows = append(rows, []string{
			record.ID,
			record.Name,
			fmt.Sprintf("%d/%d", record.DoneCount(), total),
		})
	}

	if len(rows) == 0 {
		cmd.Println("No projects found.")
		return nil
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	cmd.Println(renderTable([]string{"Project", "Name", "Stages"}, rows))
	return nil
}
