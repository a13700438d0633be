package cli

import (
	"context"
	"fmt"

	"bansub/internal/asr"
	"bansub/internal/config"
	"bansub/internal/media"
	"bansub/internal/pipeline"
	"bansub/internal/project"
	"bansub/internal/storage"
	"bansub/internal/subtitle"
	"bansub/internal/transcript"
	"bansub/internal/translate"
	"bansub/internal/ytdlp"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process [source]",
	Short: "Run the full subtitle pipeline for a video",
	Long: `Process a video from source to translated subtitles.

The source may be a bilibili URL or BV id, or a tver.jp episode URL.
Completed stages are skipped on rerun, so the same command resumes an
interrupted job.

Examples:
  bansub process BV1xx411c7mD
  bansub process https://www.bilibili.com/video/BV1xx411c7mD
  bansub process https://tver.jp/episodes/epabc123 --hint "深夜バラエティ番組"`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().
		String("hint", "", "Program description passed to the translator (defaults to video metadata)")
	processCmd.Flags().
		Bool("keep", false, "Keep the project in the work directory instead of archiving it")
}

func runProcess(cmd *cobra.Command, args []string) error {
	id, err := project.ParseSource(args[0])
	if err != nil {
		return err
	}

	hint, _ := cmd.Flags().GetString("hint")
	keep, _ := cmd.Flags().GetBool("keep")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	return runPipeline(cmd.Context(), cfg, id, hint, keep)
}

// runPipeline assembles the collaborators from config and drives the stage
// list for one project, holding the project lock for the whole run.
func runPipeline(ctx context.Context, cfg *config.Config, id, hint string, keep bool) error {
	store := project.NewStore(cfg.Paths.WorkDir)

	lock, err := store.Acquire(id)
	if err != nil {
		return err
	}
	defer lock.Release()

	record, err := store.Load(id, hint)
	if err != nil {
		return err
	}

	collaborators, err := buildCollaborators(ctx, cfg)
	if err != nil {
		return err
	}

	stages := pipeline.DefaultStages(store, record, collaborators)
	runner := pipeline.NewRunner(store, logger)
	if err := runner.Run(ctx, record, stages); err != nil {
		return err
	}

	logger.Infow("Pipeline complete", "project", id, "name", record.Name)

	if keep {
		return nil
	}
	if err := store.Archive(record, cfg.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("failed to archive project: %w", err)
	}
	logger.Infow("Project archived", "project", id, "dir", cfg.Paths.ArchiveDir)
	return nil
}

func buildCollaborators(ctx context.Context, cfg *config.Config) (pipeline.Collaborators, error) {
	source, err := ytdlp.NewClient(cfg.YtDlp.CookiesTxt, logger)
	if err != nil {
		return pipeline.Collaborators{}, err
	}

	objStorage, err := storage.NewOSS(storage.Options{
		Region:          cfg.OSS.Region,
		Bucket:          cfg.OSS.Bucket,
		AccessKeyID:     cfg.OSS.AccessKeyID,
		AccessKeySecret: cfg.OSS.AccessKeySecret,
	}, logger)
	if err != nil {
		return pipeline.Collaborators{}, err
	}

	recognizer, err := asr.NewClient(cfg.DashScope.APIKey, cfg.DashScope.Model, logger)
	if err != nil {
		return pipeline.Collaborators{}, err
	}

	translator, err := translate.NewSRTTranslator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
	if err != nil {
		return pipeline.Collaborators{}, err
	}

	normalizer := transcript.NewNormalizer(logger)
	normalizer.MaxChars = cfg.Subtitle.MaxChars

	return pipeline.Collaborators{
		Source:     source,
		Media:      media.NewProcessor(logger),
		Storage:    objStorage,
		ASR:        recognizer,
		Translator: translator,
		Normalizer: normalizer,
		Serializer: &subtitle.Serializer{KeepEmptyCues: cfg.Subtitle.KeepEmptyCues},
		ChannelID:  cfg.Subtitle.ChannelID,
		Logger:     logger,
	}, nil
}
