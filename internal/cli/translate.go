package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bansub/internal/subtitle"
	"bansub/internal/translate"

	"github.com/spf13/cobra"
)

var translateCmd = &cobra.Command{
	Use:   "translate [srt_file]",
	Short: "Translate an SRT file with per-cue batching",
	Long: `Translate an existing SRT file cue by cue, without the audio-context
pipeline. Useful for re-translating a finished file into another language
or trying a different provider.

The --overlay flag creates bilingual subtitles with the translated text
first, followed by the original text on the next line.

Examples:
  bansub translate video.srt --target-language "Traditional Chinese"
  bansub translate video.srt -t english --provider openai
  bansub translate video.srt -t korean --overlay -o video.ko.srt`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().
		StringP("target-language", "t", "", "Target language for translation (required)")
	translateCmd.Flags().
		StringP("input-language", "l", "", "Source language (optional, improves prompts)")
	translateCmd.Flags().
		Bool("overlay", false, "Overlay translated text with original (bilingual subtitles)")
	translateCmd.Flags().
		StringP("api-key", "k", "", "API key (or set the provider's env var)")
	translateCmd.Flags().
		String("model", "", "Model to use for translation (provider default when empty)")
	translateCmd.Flags().
		String("provider", "gemini", "Translation provider (gemini, openai, anthropic)")
	translateCmd.Flags().
		Int("concurrency", 3, "Number of parallel translation workers")
	translateCmd.Flags().
		Int("batch-size", 50, "Number of cues per API request")
	translateCmd.Flags().
		StringP("output", "o", "", "Output file path")

	_ = translateCmd.MarkFlagRequired("target-language")
}

func apiKeyEnvVar(provider translate.Provider) string {
	switch provider {
	case translate.ProviderGemini:
		return "GEMINI_API_KEY"
	case translate.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case translate.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	}
	return "API_KEY"
}

func runTranslate(cmd *cobra.Command, args []string) error {
	srtPath := args[0]
	ctx := cmd.Context()

	targetLang, _ := cmd.Flags().GetString("target-language")
	inputLang, _ := cmd.Flags().GetString("input-language")
	overlay, _ := cmd.Flags().GetBool("overlay")
	apiKey, _ := cmd.Flags().GetString("api-key")
	model, _ := cmd.Flags().GetString("model")
	providerStr, _ := cmd.Flags().GetString("provider")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	outputPath, _ := cmd.Flags().GetString("output")

	if _, err := os.Stat(srtPath); os.IsNotExist(err) {
		return fmt.Errorf("subtitle file not found: %s", srtPath)
	}

	if inputLang != "" &&
		strings.EqualFold(strings.TrimSpace(inputLang), strings.TrimSpace(targetLang)) {
		return fmt.Errorf(
			"input language %q and target language %q cannot be the same",
			inputLang,
			targetLang,
		)
	}

	provider := translate.Provider(providerStr)
	if apiKey == "" {
		apiKey = os.Getenv(apiKeyEnvVar(provider))
	}
	if apiKey == "" {
		return fmt.Errorf(
			"API key is required: use --api-key flag or set %s environment variable",
			apiKeyEnvVar(provider),
		)
	}

	if concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", concurrency)
	}
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", batchSize)
	}

	if outputPath == "" {
		baseName := strings.TrimSuffix(srtPath, filepath.Ext(srtPath))
		if overlay {
			outputPath = fmt.Sprintf("%s.%s.overlay.srt", baseName, targetLang)
		} else {
			outputPath = fmt.Sprintf("%s.%s.srt", baseName, targetLang)
		}
	}

	cues, err := subtitle.ParseFile(srtPath)
	if err != nil {
		return fmt.Errorf("failed to parse subtitle file: %w", err)
	}
	if len(cues) == 0 {
		return fmt.Errorf("subtitle file contains no cues")
	}

	logger.Infow("Starting subtitle translation",
		"input", srtPath,
		"output", outputPath,
		"cues", len(cues),
		"target_language", targetLang,
		"provider", providerStr,
	)

	opts := translate.Options{
		InputLanguage:  inputLang,
		TargetLanguage: targetLang,
		Model:          model,
		BatchSize:      batchSize,
	}

	translator, err := translate.Factory(ctx, provider, apiKey, opts)
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}

	items := make([]translate.TranslationItem, len(cues))
	for i, cue := range cues {
		items[i] = translate.TranslationItem{Index: i, Text: cue.Text}
	}

	var results []translate.TranslationResult
	if concurrentTranslator, ok := translator.(translate.ConcurrentTranslator); ok {
		results, err = concurrentTranslator.TranslateWithConcurrency(ctx, items, concurrency)
	} else {
		results, err = translator.Translate(ctx, items)
	}
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}

	for _, result := range results {
		if result.Index < 0 || result.Index >= len(cues) {
			logger.Warnw("Skipping invalid result index",
				"index", result.Index,
				"max", len(cues)-1,
			)
			continue
		}
		if overlay {
			cues[result.Index].Text = result.Text + "\n" + cues[result.Index].Text
		} else {
			cues[result.Index].Text = result.Text
		}
	}

	serializer := &subtitle.Serializer{KeepEmptyCues: true}
	if err := serializer.WriteFile(cues, outputPath); err != nil {
		return fmt.Errorf("failed to write translated subtitles: %w", err)
	}

	logger.Infow("Translation complete", "output", outputPath)
	return nil
}
