package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"bansub/internal/logging"
	"bansub/internal/subtitle"
)

// Japanese subtitle standard: 40 characters per line.
const DefaultMaxChars = 40

// Normalizer repairs recognizer segmentation before SRT conversion: it
// merges sentences wrongly split on abbreviation periods and re-splits
// overlong sentences into display-safe cues. Same input always produces
// byte-identical output.
//
// The thresholds are empirically tuned for Japanese broadcast transcripts
// and are left adjustable for other corpora.
type Normalizer struct {
	// MaxChars is the display limit per cue.
	MaxChars int
	// MaxMergeGapMS is the largest gap between two sentences still
	// considered a continuation.
	MaxMergeGapMS int64
	// ShortNextSentenceChars is the length at or under which the next
	// sentence counts as an abbreviation continuation.
	ShortNextSentenceChars int
	// TargetLengthFactor scales MaxChars down to the split target so
	// segments land comfortably under the limit.
	TargetLengthFactor float64
	// SplitPunctuation marks eligible internal cut points.
	SplitPunctuation map[string]bool

	logger *logging.Logger
}

// Stats reports how much repair the normalizer performed.
type Stats struct {
	Merges int
	Splits int
}

func NewNormalizer(logger *logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Normalizer{
		MaxChars:               DefaultMaxChars,
		MaxMergeGapMS:          500,
		ShortNextSentenceChars: 5,
		TargetLengthFactor:     0.8,
		SplitPunctuation: map[string]bool{
			"、": true, "。": true, "！": true, "？": true,
			"!": true, "?": true, "，": true, ",": true,
		},
		logger: logger,
	}
}

// NormalizeResult normalizes the transcript for the given channel.
func (n *Normalizer) NormalizeResult(result *Result, channelID int) ([]subtitle.Cue, Stats, error) {
	channel, err := result.Channel(channelID)
	if err != nil {
		return nil, Stats{}, err
	}
	cues, stats := n.Normalize(channel)
	return cues, stats, nil
}

// Normalize merges wrongly split sentences, then splits overlong ones.
func (n *Normalizer) Normalize(channel *ChannelTranscript) ([]subtitle.Cue, Stats) {
	merged, mergeCount := n.mergeDottedSentences(channel.Sentences)

	var cues []subtitle.Cue
	splitCount := 0
	for i := range merged {
		segments := n.splitLongSentence(&merged[i])
		if len(segments) > 1 {
			splitCount++
		}
		cues = append(cues, segments...)
	}

	if mergeCount > 0 {
		n.logger.Infow("Merged dotted sentence pairs", "count", mergeCount)
	}
	if splitCount > 0 {
		n.logger.Infow("Split long sentences", "count", splitCount)
	}

	return cues, Stats{Merges: mergeCount, Splits: splitCount}
}

// true for A-Z and a-z only, so sentences in other scripts that happen to
// end in "." are left alone
func isLatinLetter(r rune) bool {
	return r < utf8.RuneSelf && unicode.IsLetter(r)
}

func firstRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}

func lastRune(s string) (rune, bool) {
	var last rune
	found := false
	for _, r := range s {
		last = r
		found = true
	}
	return last, found
}

// shouldMergeWithNext reports whether current was split off from next at an
// abbreviation period (e.g. "N." + "G." for "N.G.").
func (n *Normalizer) shouldMergeWithNext(current, next *Sentence) bool {
	if len(current.Words) == 0 {
		return false
	}

	lastWord := current.Words[len(current.Words)-1]

	// half-width "." only; "。" is a real full stop
	if strings.TrimSpace(lastWord.Punctuation) != "." {
		return false
	}

	wordText := strings.TrimSpace(lastWord.Text)
	r, ok := lastRune(wordText)
	if !ok || !isLatinLetter(r) {
		return false
	}

	if next.BeginTime-current.EndTime > n.MaxMergeGapMS {
		return false
	}

	if len(next.Words) == 0 {
		return false
	}
	nextFirst := strings.TrimSpace(next.Words[0].Text)
	r, ok = firstRune(nextFirst)
	if !ok || !isLatinLetter(r) {
		return false
	}

	nextText := strings.TrimSpace(next.Text)
	if utf8.RuneCountInString(nextText) <= n.ShortNextSentenceChars {
		return true
	}

	// chained abbreviation: "N." + "G."
	return strings.TrimSpace(next.Words[len(next.Words)-1].Punctuation) == "."
}

func mergeTwoSentences(first, second *Sentence) Sentence {
	words := make([]Word, 0, len(first.Words)+len(second.Words))
	words = append(words, first.Words...)
	words = append(words, second.Words...)

	endTime := second.EndTime
	if len(words) > 0 {
		endTime = words[len(words)-1].EndTime
	}

	return Sentence{
		BeginTime:  first.BeginTime,
		EndTime:    endTime,
		Text:       strings.TrimRightFunc(first.Text, unicode.IsSpace) + second.Text,
		SentenceID: first.SentenceID,
		SpeakerID:  first.SpeakerID,
		Words:      words,
	}
}

// mergeDottedSentences reunites sentence runs split at abbreviation
// periods, merging greedily so chains like "N." + "G." + "です" collapse in
// one pass.
func (n *Normalizer) mergeDottedSentences(sentences []Sentence) ([]Sentence, int) {
	if len(sentences) == 0 {
		return nil, 0
	}

	var result []Sentence
	mergeCount := 0
	i := 0

	for i < len(sentences) {
		current := sentences[i]

		for i+1 < len(sentences) && n.shouldMergeWithNext(&current, &sentences[i+1]) {
			next := &sentences[i+1]
			n.logger.Debugw("Merging sentences",
				"left", current.Text,
				"right", next.Text,
			)
			current = mergeTwoSentences(&current, next)
			mergeCount++
			i++
		}

		result = append(result, current)
		i++
	}

	return result, mergeCount
}

// hasSplitPunctuation reports whether any word except the last carries an
// eligible cut-point mark. The last word is excluded because punctuation
// there cannot serve as an internal split.
func (n *Normalizer) hasSplitPunctuation(words []Word) bool {
	if len(words) <= 1 {
		return false
	}
	for _, w := range words[:len(words)-1] {
		if n.SplitPunctuation[strings.TrimSpace(w.Punctuation)] {
			return true
		}
	}
	return false
}

// splitByPunctuation accumulates words and cuts at the most recent eligible
// punctuation mark once the buffer reaches targetChars.
func (n *Normalizer) splitByPunctuation(sentence *Sentence, targetChars int) []subtitle.Cue {
	var segments []subtitle.Cue
	var currentWords []Word
	var currentText strings.Builder
	currentLen := 0

	splitWordCount := 0
	splitText := ""
	haveSplitPoint := false

	for _, word := range sentence.Words {
		wordText := word.Text + word.Punctuation
		currentWords = append(currentWords, word)
		currentText.WriteString(wordText)
		currentLen += utf8.RuneCountInString(wordText)

		if n.SplitPunctuation[strings.TrimSpace(word.Punctuation)] {
			splitWordCount = len(currentWords)
			splitText = currentText.String()
			haveSplitPoint = true
		}

		if currentLen >= targetChars && haveSplitPoint {
			head := currentWords[:splitWordCount]
			segments = append(segments, subtitle.Cue{
				BeginMS: head[0].BeginTime,
				EndMS:   head[len(head)-1].EndTime,
				Text:    strings.TrimSpace(splitText),
			})

			rest := currentWords[splitWordCount:]
			currentWords = append([]Word(nil), rest...)
			currentText.Reset()
			for _, w := range currentWords {
				currentText.WriteString(w.Text + w.Punctuation)
			}
			currentLen = utf8.RuneCountInString(currentText.String())
			haveSplitPoint = false
		}
	}

	if len(currentWords) > 0 {
		segments = append(segments, subtitle.Cue{
			BeginMS: currentWords[0].BeginTime,
			EndMS:   currentWords[len(currentWords)-1].EndTime,
			Text:    strings.TrimSpace(currentText.String()),
		})
	}

	return segments
}

// splitByLength distributes the text over ceil(total/target) segments of
// roughly equal size, cutting only at word boundaries. The final segment
// absorbs any remainder.
func (n *Normalizer) splitByLength(sentence *Sentence, targetChars int) []subtitle.Cue {
	if len(sentence.Words) == 0 {
		return []subtitle.Cue{{
			BeginMS: sentence.BeginTime,
			EndMS:   sentence.EndTime,
			Text:    strings.TrimSpace(sentence.Text),
		}}
	}

	var totalText strings.Builder
	for _, w := range sentence.Words {
		totalText.WriteString(w.Text + w.Punctuation)
	}
	totalChars := utf8.RuneCountInString(totalText.String())

	if totalChars <= targetChars {
		return []subtitle.Cue{{
			BeginMS: sentence.BeginTime,
			EndMS:   sentence.EndTime,
			Text:    strings.TrimSpace(totalText.String()),
		}}
	}

	numSegments := (totalChars + targetChars - 1) / targetChars
	perSegment := float64(totalChars) / float64(numSegments)

	var segments []subtitle.Cue
	var currentWords []Word
	var currentText strings.Builder
	currentLen := 0

	for _, word := range sentence.Words {
		wordText := word.Text + word.Punctuation
		currentWords = append(currentWords, word)
		currentText.WriteString(wordText)
		currentLen += utf8.RuneCountInString(wordText)

		if float64(currentLen) >= perSegment && len(segments) < numSegments-1 {
			segments = append(segments, subtitle.Cue{
				BeginMS: currentWords[0].BeginTime,
				EndMS:   currentWords[len(currentWords)-1].EndTime,
				Text:    strings.TrimSpace(currentText.String()),
			})
			currentWords = nil
			currentText.Reset()
			currentLen = 0
		}
	}

	if len(currentWords) > 0 {
		segments = append(segments, subtitle.Cue{
			BeginMS: currentWords[0].BeginTime,
			EndMS:   currentWords[len(currentWords)-1].EndTime,
			Text:    strings.TrimSpace(currentText.String()),
		})
	}

	return segments
}

// splitLongSentence picks the splitting strategy: punctuation cuts when any
// internal word carries one, balanced length distribution otherwise.
func (n *Normalizer) splitLongSentence(sentence *Sentence) []subtitle.Cue {
	if utf8.RuneCountInString(sentence.Text) <= n.MaxChars {
		return []subtitle.Cue{{
			BeginMS: sentence.BeginTime,
			EndMS:   sentence.EndTime,
			Text:    strings.TrimSpace(sentence.Text),
		}}
	}

	targetChars := int(float64(n.MaxChars) * n.TargetLengthFactor)

	var segments []subtitle.Cue
	byPunctuation := n.hasSplitPunctuation(sentence.Words)
	if byPunctuation {
		segments = n.splitByPunctuation(sentence, targetChars)
	} else {
		segments = n.splitByLength(sentence, targetChars)
	}

	n.logger.Debugw("Split long sentence",
		"by_punctuation", byPunctuation,
		"segments", len(segments),
		"text", truncate(sentence.Text, 30),
	)
	return segments
}

func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
