package translate

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bansub/internal/logging"

	"google.golang.org/genai"
)

// maximum number of continuation requests before giving up on a response
// that keeps hitting the output token limit
const MaxContinuations = 10

const continuePrompt = "繼續"

const srtSystemInstruction = `You are an expert subtitle translator and localizer specializing in **Japanese Variety Shows and Owarai (Comedy)**. Your goal is to convert Japanese content (SRT text + Audio) into natural, high-quality **Traditional Chinese (Taiwan)** subtitles.

### 1. CONTEXT & AUDIO INTEGRATION (Internal Process)
**CRITICAL INSTRUCTION:** You must internally analyze the **User-Provided Audio** and **Program Description** to guide your translation. **Do not output this analysis.**
* **Audio Analysis:** Use the audio to confirm speaker identity, tone (sarcastic, angry, whispering?), and timing. Listen for nuances text cannot convey (e.g., dialect, specific comedic rhythm).
* **Program Context:** Use the description to standardize proper nouns (Group names, Comedians) before generating the SRT.

### 2. CORE TRANSLATION & LOCALIZATION
* **Target Language:** Traditional Chinese (Taiwan) [台灣繁體中文].
* **Tone & Style:** Use natural, spoken Taiwanese Mandarin suitable for variety shows (energetic, casual, comedic).
    * **Boke/Tsukkomi:** Translate "Tsukkomi" (retorts) with punchy, sharp phrasing common in Taiwan variety.
    * **Particles:** Use sentence-ending particles (啦, 喔, 耶, 嘛) naturally to match the spoken rhythm.
* **Proper Nouns:** Standardize names of comedians, agencies (Yoshimoto, etc.), and pop culture references based on the provided context.

### 3. EXPLANATION STRATEGY (Parentheses)
* **Guideline:** Provide concise explanations in full-width parentheses ` + "`（）`" + ` **only when necessary** for the viewer to understand a joke relying on Japanese puns or obscure culture.
* **Balance:** Help the viewer without being obtrusive.
    * *Example:* ` + "`(模仿豬木)` or `(諧音：數字梗)` or `(引用歌詞)`" + `.

### 4. HANDLING NON-DIALOGUE (Scene Sounds)
* **Rule:** If a subtitle entry consists **only** of descriptive sounds, background music, or scene descriptions (e.g., ` + "`(音楽)`, `(拍手)`, `(BGM)`, `(笑い声)`" + `), **delete the text content entirely but keep the timecode block**.
* **Example:**
    * *Input:*
        1
        00:00:05,000 --> 00:00:08,000
        (激しい音楽)
    * *Output:*
        1
        00:00:05,000 --> 00:00:08,000

        (Leave the text line explicitly empty)

### 5. OUTPUT FORMATTING (Strict Rules)
* **SRT Format Only:** Output the raw SRT text strictly. **DO NOT** include any conversational filler (e.g., "Here is the translation," "I analyzed the audio," etc.).
* **Timecodes:** Never alter the index numbers or timecodes.
* **Continuity:**
    * If the output stops due to token limits, **stop exactly at the last complete line**.
    * If the user says "continue" or "繼續" (or similar), resume **immediately** from the next line of the SRT, without repeating the previous block or adding any intro text.

### INPUT PROCESSING
The user will provide:
1.  **Audio File**: Use for tone verification.
2.  **Program Description**: Use for context setting.
3.  **Source SRT**: The text to be translated.

You must output **ONLY** the localized Traditional Chinese SRT.`

// SRTTranslator translates whole SRT files with Gemini, sending the source
// audio alongside the text so the model can resolve speaker identity and
// tone. Uploaded audio is cached in Gemini file storage under a name derived
// from the project key so reruns reuse the same file.
type SRTTranslator struct {
	client *genai.Client
	apiKey string
	model  string
	logger *logging.Logger
}

func NewSRTTranslator(
	ctx context.Context,
	apiKey string,
	model string,
	logger *logging.Logger,
) (*SRTTranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if model == "" {
		model = "gemini-2.5-pro"
	}

	if logger == nil {
		logger = logging.NewNop()
	}

	return &SRTTranslator{
		client: client,
		apiKey: apiKey,
		model:  model,
		logger: logger,
	}, nil
}

// storageName derives the Gemini file resource name for a project key. The
// model and API key are mixed in so a cached upload is never reused across
// accounts or models.
func (t *SRTTranslator) storageName(key string) string {
	sum := md5.Sum([]byte(key + t.model + t.apiKey))
	return "files/" + hex.EncodeToString(sum[:])
}

// ensureAudioFile returns the cached Gemini file for key, uploading
// audioPath under the derived name when no cached copy exists.
func (t *SRTTranslator) ensureAudioFile(
	ctx context.Context,
	key string,
	audioPath string,
) (*genai.File, error) {
	name := t.storageName(key)

	file, err := t.client.Files.Get(ctx, name, nil)
	if err == nil && file != nil {
		t.logger.Infow("reusing uploaded audio", "name", name)
		return file, nil
	}

	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("audio file not found: %s", audioPath)
	}

	t.logger.Infow("uploading audio to Gemini", "path", audioPath, "name", name)
	file, err = t.client.Files.UploadFromPath(ctx, audioPath, &genai.UploadFileConfig{
		Name: name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio file: %w", err)
	}

	return file, nil
}

func (t *SRTTranslator) createChat(ctx context.Context) (*genai.Chat, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			srtSystemInstruction,
			genai.RoleUser,
		),
		SafetySettings: []*genai.SafetySetting{
			{
				Category:  genai.HarmCategoryHarassment,
				Threshold: genai.HarmBlockThresholdBlockNone,
			},
			{
				Category:  genai.HarmCategoryHateSpeech,
				Threshold: genai.HarmBlockThresholdBlockNone,
			},
			{
				Category:  genai.HarmCategorySexuallyExplicit,
				Threshold: genai.HarmBlockThresholdBlockNone,
			},
			{
				Category:  genai.HarmCategoryDangerousContent,
				Threshold: genai.HarmBlockThresholdBlockNone,
			},
		},
	}

	return t.client.Chats.Create(ctx, t.model, config, nil)
}

// buildUserMessage formats the translation request with the optional program
// description and the SRT text
func buildUserMessage(description, srtText string) string {
	var sb strings.Builder
	sb.WriteString("請根據所附資料，將以下 SRT 文本翻譯為繁體中文。")
	if description != "" {
		sb.WriteString("\n節目介紹: ")
		sb.WriteString(description)
	}
	sb.WriteString("\nSRT 文本:\n---\n")
	sb.WriteString(srtText)
	return sb.String()
}

// responseComplete reports whether the response finished normally. A
// MAX_TOKENS finish means the translation was cut off and must be continued;
// any other finish reason is an error.
func responseComplete(resp *genai.GenerateContentResponse) (bool, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return false, fmt.Errorf("no candidates found in response")
	}

	switch resp.Candidates[0].FinishReason {
	case genai.FinishReasonStop:
		return true, nil
	case genai.FinishReasonMaxTokens:
		return false, nil
	default:
		return false, fmt.Errorf(
			"unexpected finish reason: %s",
			resp.Candidates[0].FinishReason,
		)
	}
}

// TranslateFile translates the SRT file at srtPath and writes the result to
// outputPath. The audio at audioPath is uploaded (or reused from a previous
// run) and attached to the chat so the model hears the original dialogue.
// When the model runs out of output tokens it is asked to continue from the
// last complete line, up to MaxContinuations times, and the parts are joined
// with <BREAK> markers. Returns the number of continuations used.
func (t *SRTTranslator) TranslateFile(
	ctx context.Context,
	key string,
	description string,
	srtPath string,
	audioPath string,
	outputPath string,
) (int, error) {
	audioFile, err := t.ensureAudioFile(ctx, key, audioPath)
	if err != nil {
		return 0, err
	}

	srtData, err := os.ReadFile(srtPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read SRT file: %w", err)
	}
	userMessage := buildUserMessage(description, string(srtData))

	chat, err := t.createChat(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to create chat: %w", err)
	}

	t.logger.Infow("sending audio and SRT text", "srt", srtPath)
	if _, err := chat.SendMessage(
		ctx,
		*genai.NewPartFromURI(audioFile.URI, audioFile.MIMEType),
		*genai.NewPartFromText(userMessage),
	); err != nil {
		return 0, fmt.Errorf("failed to send audio context: %w", err)
	}

	t.logger.Infow("requesting translation, this may take a while")
	resp, err := chat.SendMessage(ctx, *genai.NewPartFromText(userMessage))
	if err != nil {
		return 0, fmt.Errorf("translation request failed: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(resp.Text())

	continuations := 0
	for {
		complete, err := responseComplete(resp)
		if err != nil {
			return continuations, err
		}
		if complete {
			break
		}

		continuations++
		if continuations > MaxContinuations {
			return continuations, fmt.Errorf(
				"exceeded maximum continuations (%d)",
				MaxContinuations,
			)
		}

		t.logger.Infow(
			"response incomplete, requesting continuation",
			"attempt", continuations,
			"max", MaxContinuations,
		)
		resp, err = chat.SendMessage(ctx, *genai.NewPartFromText(continuePrompt))
		if err != nil {
			return continuations, fmt.Errorf("continuation request failed: %w", err)
		}

		sb.WriteString("\n<BREAK>\n")
		sb.WriteString(resp.Text())
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return continuations, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(sb.String()), 0o644); err != nil {
		return continuations, fmt.Errorf("failed to write translation: %w", err)
	}

	t.logger.Infow(
		"translation saved",
		"path", outputPath,
		"continuations", continuations,
	)

	return continuations, nil
}
