package cli

import (
	"bansub/internal/logging"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:     "bansub",
	Version: "0.1.0",
	Short:   "Resumable subtitle pipeline for Japanese variety videos",
	Long: `Bansub downloads a video, runs cloud speech recognition on its
audio, cuts the transcript into readable SRT cues, and translates them
to Traditional Chinese with the audio as context.

Every step is checkpointed in the project directory, so an interrupted
run picks up where it stopped.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.NewLogger(verbose)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "Config file path (default ~/.config/bansub/config.toml)")
}
