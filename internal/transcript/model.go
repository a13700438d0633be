package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Word is a single recognized word with its trailing punctuation, if any.
type Word struct {
	BeginTime   int64  `json:"begin_time"`
	EndTime     int64  `json:"end_time"`
	Text        string `json:"text"`
	Punctuation string `json:"punctuation"`
}

// Sentence is a recognizer sentence segment. Timing is derived from the
// word list: BeginTime matches the first word and EndTime the last.
type Sentence struct {
	BeginTime  int64  `json:"begin_time"`
	EndTime    int64  `json:"end_time"`
	Text       string `json:"text"`
	SentenceID int    `json:"sentence_id"`
	SpeakerID  *int   `json:"speaker_id,omitempty"`
	Words      []Word `json:"words"`
}

// ChannelTranscript holds the sentences recognized on one audio channel.
type ChannelTranscript struct {
	ChannelID  int        `json:"channel_id"`
	DurationMS int64      `json:"content_duration_in_milliseconds"`
	Text       string     `json:"text"`
	Sentences  []Sentence `json:"sentences"`
}

// Properties describes the audio the recognizer processed.
type Properties struct {
	AudioFormat          string `json:"audio_format"`
	Channels             []int  `json:"channels"`
	OriginalSamplingRate int    `json:"original_sampling_rate"`
	OriginalDurationMS   int64  `json:"original_duration_in_milliseconds"`
}

// Result is the complete recognizer response for one file.
type Result struct {
	FileURL     string              `json:"file_url"`
	Properties  Properties          `json:"properties"`
	Transcripts []ChannelTranscript `json:"transcripts"`
}

// Channel returns the transcript for the given channel id.
func (r *Result) Channel(channelID int) (*ChannelTranscript, error) {
	for i := range r.Transcripts {
		if r.Transcripts[i].ChannelID == channelID {
			return &r.Transcripts[i], nil
		}
	}
	return nil, fmt.Errorf("channel %d not found in transcripts", channelID)
}

// Decode parses a recognizer result from r.
func Decode(r io.Reader) (*Result, error) {
	var result Result
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode recognizer result: %w", err)
	}
	return &result, nil
}

// Load reads and parses a recognizer result file.
func Load(path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recognizer result: %w", err)
	}
	defer file.Close()
	return Decode(file)
}
