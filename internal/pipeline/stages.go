package pipeline

import (
	"context"
	"fmt"
	"os"

	"bansub/internal/logging"
	"bansub/internal/media"
	"bansub/internal/project"
	"bansub/internal/subtitle"
	"bansub/internal/transcript"
	"bansub/internal/ytdlp"
)

// VideoSource fetches metadata and downloads video from a watch URL.
type VideoSource interface {
	FetchInfo(ctx context.Context, url string) (*ytdlp.VideoInfo, error)
	Download(ctx context.Context, url, dir string) error
}

// MediaProcessor combines downloaded segments and extracts audio.
type MediaProcessor interface {
	CombineVideos(ctx context.Context, inputPaths []string, outputPath string) error
	ExtractAudio(ctx context.Context, inputPath, outputPath string, opts media.ExtractAudioOptions) error
}

// ObjectStorage holds audio uploads while the recognizer needs a public URL.
type ObjectStorage interface {
	EnsureUpload(ctx context.Context, key, filePath string) error
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

// Transcriber is the two-phase speech recognition client: submit returns a
// vendor task id, fetch retrieves the finished transcript by that id.
type Transcriber interface {
	SubmitTranscription(ctx context.Context, fileURL string) (string, error)
	FetchTranscription(ctx context.Context, taskID string) ([]byte, error)
}

// SubtitleTranslator translates a whole SRT file with the source audio as
// context.
type SubtitleTranslator interface {
	TranslateFile(ctx context.Context, key, description, srtPath, audioPath, outputPath string) (int, error)
}

// Collaborators bundles the external services the default stage list needs.
type Collaborators struct {
	Source     VideoSource
	Media      MediaProcessor
	Storage    ObjectStorage
	ASR        Transcriber
	Translator SubtitleTranslator
	Normalizer *transcript.Normalizer
	Serializer *subtitle.Serializer

	// recognizer channel to read sentences from
	ChannelID int

	Logger *logging.Logger
}

// DefaultStages builds the full stage list for one project. Each closure
// captures the record and writes results into the project directory; the
// runner persists stage completion.
func DefaultStages(store *project.Store, record *project.Record, c Collaborators) []Stage {
	logger := c.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	normalizer := c.Normalizer
	if normalizer == nil {
		normalizer = transcript.NewNormalizer(logger)
	}
	serializer := c.Serializer
	if serializer == nil {
		serializer = &subtitle.Serializer{}
	}

	return []Stage{
		{
			Name: project.StageMetadataFetched,
			Run: func(ctx context.Context) error {
				info, err := c.Source.FetchInfo(ctx, record.SourceURL())
				if err != nil {
					return err
				}
				record.Name = info.Filename()
				if record.TranslationHint == "" {
					record.TranslationHint = info.Description
				}
				logger.Infow("Metadata fetched",
					"project", record.ID,
					"name", record.Name,
				)
				return nil
			},
		},
		{
			Name: project.StageDownloaded,
			Run: func(ctx context.Context) error {
				return c.Source.Download(ctx, record.SourceURL(), store.Dir(record.ID))
			},
		},
		{
			Name: project.StageVideoProcessed,
			Run: func(ctx context.Context) error {
				paths, err := store.DownloadedVideoPaths(record.ID)
				if err != nil {
					return fmt.Errorf("failed to list downloaded videos: %w", err)
				}
				return c.Media.CombineVideos(ctx, paths, store.VideoPath(record.ID))
			},
		},
		{
			Name: project.StageAudioProcessed,
			Run: func(ctx context.Context) error {
				return c.Media.ExtractAudio(
					ctx,
					store.VideoPath(record.ID),
					store.AudioPath(record.ID),
					media.DefaultExtractAudioOptions(),
				)
			},
		},
		{
			Name: project.StageASRTaskSubmitted,
			Run: func(ctx context.Context) error {
				// A stored task id means a previous run already paid for
				// this submission; never submit twice.
				if record.ASRTaskID != "" {
					logger.Infow("Reusing recognition task",
						"project", record.ID,
						"task", record.ASRTaskID,
					)
					return nil
				}

				if err := c.Storage.EnsureUpload(ctx, record.ID, store.AudioPath(record.ID)); err != nil {
					return fmt.Errorf("failed to upload audio: %w", err)
				}

				taskID, err := c.ASR.SubmitTranscription(ctx, c.Storage.PublicURL(record.ID))
				if err != nil {
					return err
				}

				// The task id must hit disk before the stage is marked
				// done; losing it would orphan the running task.
				record.ASRTaskID = taskID
				if err := store.Save(record); err != nil {
					return fmt.Errorf("failed to persist task id: %w", err)
				}

				logger.Infow("Recognition task submitted",
					"project", record.ID,
					"task", taskID,
				)
				return nil
			},
		},
		{
			Name: project.StageASRCompleted,
			Run: func(ctx context.Context) error {
				if record.ASRTaskID == "" {
					return fmt.Errorf("project %s has no recognition task id", record.ID)
				}

				data, err := c.ASR.FetchTranscription(ctx, record.ASRTaskID)
				if err != nil {
					return err
				}
				if err := os.WriteFile(store.ASRPath(record.ID), data, 0o644); err != nil {
					return fmt.Errorf("failed to write transcript: %w", err)
				}

				// The uploaded audio is only needed while the recognizer
				// runs; cleanup failure is not worth failing the stage.
				if err := c.Storage.Delete(ctx, record.ID); err != nil {
					logger.Warnw("Failed to delete uploaded audio",
						"project", record.ID,
						"error", err,
					)
				}
				return nil
			},
		},
		{
			Name: project.StageSRTCompleted,
			Run: func(ctx context.Context) error {
				result, err := transcript.Load(store.ASRPath(record.ID))
				if err != nil {
					return err
				}

				cues, stats, err := normalizer.NormalizeResult(result, c.ChannelID)
				if err != nil {
					return err
				}

				logger.Infow("Transcript normalized",
					"project", record.ID,
					"cues", len(cues),
					"merges", stats.Merges,
					"splits", stats.Splits,
				)

				return serializer.WriteFile(cues, store.SRTPath(record.ID))
			},
		},
		{
			Name: project.StageTranslated,
			Run: func(ctx context.Context) error {
				continuations, err := c.Translator.TranslateFile(
					ctx,
					record.ID,
					record.TranslationHint,
					store.SRTPath(record.ID),
					store.AudioPath(record.ID),
					store.TranslatedPath(record.ID),
				)
				if err != nil {
					return err
				}
				logger.Infow("Subtitles translated",
					"project", record.ID,
					"continuations", continuations,
				)
				return nil
			},
		},
	}
}
