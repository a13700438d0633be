package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"bansub/internal/logging"
)

// ExtractAudioOptions holds the encoder settings for ASR-bound audio.
type ExtractAudioOptions struct {
	Channels   int    // 1 = mono
	SampleRate int    // Hz
	Bitrate    string // e.g. "24k"
}

// DefaultExtractAudioOptions matches what the recognizer expects: mono
// opus at 16 kHz with a low bitrate to keep uploads small.
func DefaultExtractAudioOptions() ExtractAudioOptions {
	return ExtractAudioOptions{
		Channels:   1,
		SampleRate: 16000,
		Bitrate:    "24k",
	}
}

// Processor runs ffmpeg for video concatenation and audio extraction.
type Processor struct {
	logger *logging.Logger
}

func NewProcessor(logger *logging.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{logger: logger}
}

// ExtractAudio pulls the audio track out of a video file using the given
// encoder options. The output format follows the file extension.
func (p *Processor) ExtractAudio(ctx context.Context, inputPath, outputPath string, opts ExtractAudioOptions) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("video file not found: %s", inputPath)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	p.logger.Infow("Extracting audio", "input", inputPath, "output", outputPath)

	kwargs := ffmpeg.KwArgs{
		"vn": "",
		"ac": opts.Channels,
		"ar": opts.SampleRate,
	}
	if opts.Bitrate != "" {
		kwargs["b:a"] = opts.Bitrate
	}

	err := ffmpeg.Input(inputPath).
		Output(outputPath, kwargs).
		OverWriteOutput().
		Run()
	if err != nil {
		return fmt.Errorf("ffmpeg audio extraction failed: %w", err)
	}

	return nil
}

// CombineVideos joins downloaded segments into a single file. One segment
// is simply renamed; several are concatenated with the ffmpeg concat
// demuxer using stream copy. Input segments are removed on success.
func (p *Processor) CombineVideos(ctx context.Context, inputPaths []string, outputPath string) error {
	if len(inputPaths) == 0 {
		return fmt.Errorf("no input videos to combine")
	}

	p.logger.Infow("Combining videos", "count", len(inputPaths), "output", outputPath)

	if len(inputPaths) == 1 {
		if err := os.Rename(inputPaths[0], outputPath); err != nil {
			return fmt.Errorf("failed to rename single segment: %w", err)
		}
		return nil
	}

	sorted := append([]string(nil), inputPaths...)
	sort.Strings(sorted)

	listPath, err := writeConcatList(sorted)
	if err != nil {
		return err
	}
	defer os.Remove(listPath)

	err = ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": 0}).
		Output(outputPath, ffmpeg.KwArgs{
			"c":        "copy",
			"map":      0,
			"movflags": "faststart",
		}).
		OverWriteOutput().
		Run()
	if err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w", err)
	}

	for _, input := range sorted {
		if err := os.Remove(input); err != nil {
			p.logger.Warnw("Failed to remove segment after combine",
				"path", input, "error", err)
		}
	}

	return nil
}

// writeConcatList produces the file list the concat demuxer consumes.
func writeConcatList(paths []string) (string, error) {
	var sb strings.Builder
	for _, p := range paths {
		sb.WriteString(fmt.Sprintf("file '%s'\n", p))
	}

	tmp, err := os.CreateTemp("", "bansub-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create concat list: %w", err)
	}
	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write concat list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write concat list: %w", err)
	}
	return tmp.Name(), nil
}
