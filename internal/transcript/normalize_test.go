package transcript

import (
	"strings"
	"testing"
	"unicode/utf8"

	"bansub/internal/subtitle"
)

func word(begin, end int64, text, punct string) Word {
	return Word{BeginTime: begin, EndTime: end, Text: text, Punctuation: punct}
}

// builds a sentence whose text and timing are derived from its words
func sentence(id int, words ...Word) Sentence {
	var sb strings.Builder
	for _, w := range words {
		sb.WriteString(w.Text + w.Punctuation)
	}
	s := Sentence{SentenceID: id, Text: sb.String(), Words: words}
	if len(words) > 0 {
		s.BeginTime = words[0].BeginTime
		s.EndTime = words[len(words)-1].EndTime
	}
	return s
}

func channel(sentences ...Sentence) *ChannelTranscript {
	return &ChannelTranscript{ChannelID: 0, Sentences: sentences}
}

func TestMergeAbbreviationPair(t *testing.T) {
	n := NewNormalizer(nil)
	ch := channel(
		sentence(1, word(0, 100, "N", ".")),
		sentence(2, word(200, 300, "G", ".")),
	)

	cues, stats := n.Normalize(ch)
	if stats.Merges != 1 {
		t.Fatalf("expected 1 merge, got %d", stats.Merges)
	}
	if len(cues) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(cues))
	}
	if cues[0].Text != "N.G." {
		t.Errorf("merged text = %q, want %q", cues[0].Text, "N.G.")
	}
	if cues[0].BeginMS != 0 || cues[0].EndMS != 300 {
		t.Errorf("merged timing = [%d,%d], want [0,300]", cues[0].BeginMS, cues[0].EndMS)
	}
}

func TestMergeShortContinuation(t *testing.T) {
	n := NewNormalizer(nil)
	ch := channel(
		sentence(1, word(0, 400, "Dr", ".")),
		sentence(2, word(500, 900, "Smith", "")),
	)

	cues, stats := n.Normalize(ch)
	if stats.Merges != 1 || len(cues) != 1 {
		t.Fatalf("expected single merged cue, got %d cues (%d merges)", len(cues), stats.Merges)
	}
	if cues[0].Text != "Dr.Smith" {
		t.Errorf("merged text = %q, want %q", cues[0].Text, "Dr.Smith")
	}
}

func TestMergeChainsGreedily(t *testing.T) {
	n := NewNormalizer(nil)
	ch := channel(
		sentence(1, word(0, 100, "A", ".")),
		sentence(2, word(150, 250, "B", ".")),
		sentence(3, word(300, 400, "C", ".")),
	)

	cues, stats := n.Normalize(ch)
	if stats.Merges != 2 {
		t.Fatalf("expected 2 merges, got %d", stats.Merges)
	}
	if len(cues) != 1 || cues[0].Text != "A.B.C." {
		t.Fatalf("expected single cue A.B.C., got %+v", cues)
	}
}

func TestNoMergeAcrossLargeGap(t *testing.T) {
	n := NewNormalizer(nil)
	ch := channel(
		sentence(1, word(0, 100, "N", ".")),
		sentence(2, word(700, 800, "G", ".")), // 600ms gap, over threshold
	)

	cues, stats := n.Normalize(ch)
	if stats.Merges != 0 {
		t.Errorf("expected no merges, got %d", stats.Merges)
	}
	if len(cues) != 2 {
		t.Errorf("expected 2 cues, got %d", len(cues))
	}
}

func TestNoMergeForNonLatinEnding(t *testing.T) {
	n := NewNormalizer(nil)
	// Japanese text followed by a stray half-width period stays separate
	ch := channel(
		sentence(1, word(0, 100, "一緒やんか", ".")),
		sentence(2, word(150, 250, "G", ".")),
	)

	_, stats := n.Normalize(ch)
	if stats.Merges != 0 {
		t.Errorf("expected no merges for non-Latin ending, got %d", stats.Merges)
	}
}

func TestNoMergeWhenNextStartsNonLatin(t *testing.T) {
	n := NewNormalizer(nil)
	ch := channel(
		sentence(1, word(0, 100, "N", ".")),
		sentence(2, word(150, 250, "です", "")),
	)

	_, stats := n.Normalize(ch)
	if stats.Merges != 0 {
		t.Errorf("expected no merges, got %d", stats.Merges)
	}
}

func TestNoMergeForFullWidthStop(t *testing.T) {
	n := NewNormalizer(nil)
	ch := channel(
		sentence(1, word(0, 100, "OK", "。")),
		sentence(2, word(150, 250, "Go", "")),
	)

	_, stats := n.Normalize(ch)
	if stats.Merges != 0 {
		t.Errorf("expected no merges for full-width stop, got %d", stats.Merges)
	}
}

// ten 5-rune words with cut points after the third and sixth words
func longPunctuatedSentence() Sentence {
	words := make([]Word, 0, 10)
	for i := 0; i < 10; i++ {
		punct := ""
		if i == 2 || i == 5 {
			punct = "、"
		}
		begin := int64(i) * 500
		words = append(words, word(begin, begin+400, "あいうえお", punct))
	}
	return sentence(1, words...)
}

func TestSplitByPunctuation(t *testing.T) {
	n := NewNormalizer(nil)
	s := longPunctuatedSentence()
	ch := channel(s)

	cues, stats := n.Normalize(ch)
	if stats.Splits != 1 {
		t.Fatalf("expected 1 split sentence, got %d", stats.Splits)
	}
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d: %+v", len(cues), cues)
	}
	if !strings.HasSuffix(cues[0].Text, "、") {
		t.Errorf("first cue should end at a punctuation cut point, got %q", cues[0].Text)
	}
	for _, c := range cues {
		if utf8.RuneCountInString(c.Text) > n.MaxChars {
			t.Errorf("cue exceeds max chars: %q", c.Text)
		}
	}
}

func TestSplitByBalancedLength(t *testing.T) {
	n := NewNormalizer(nil)
	// 90 runes, no internal punctuation: falls back to balanced splitting
	// into ceil(90/32) = 3 segments
	words := make([]Word, 0, 18)
	for i := 0; i < 18; i++ {
		begin := int64(i) * 500
		words = append(words, word(begin, begin+400, "あいうえお", ""))
	}
	s := sentence(1, words...)
	ch := channel(s)

	cues, _ := n.Normalize(ch)
	if len(cues) != 3 {
		t.Fatalf("expected 3 cues, got %d", len(cues))
	}
	for i, c := range cues {
		if got := utf8.RuneCountInString(c.Text); got != 30 {
			t.Errorf("cue %d length = %d, want 30", i, got)
		}
	}
}

func TestSplitPunctuationOnLastWordOnlyFallsBack(t *testing.T) {
	n := NewNormalizer(nil)
	// punctuation exists only on the final word, which cannot serve as an
	// internal cut point, so balanced splitting applies
	words := make([]Word, 0, 12)
	for i := 0; i < 12; i++ {
		punct := ""
		if i == 11 {
			punct = "。"
		}
		begin := int64(i) * 500
		words = append(words, word(begin, begin+400, "あいうえお", punct))
	}
	ch := channel(sentence(1, words...))

	cues, _ := n.Normalize(ch)
	// 61 runes -> ceil(61/32) = 2 segments
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(cues))
	}
}

func TestSplitPunctuationOnFirstWordIsEligible(t *testing.T) {
	n := NewNormalizer(nil)
	words := make([]Word, 0, 10)
	for i := 0; i < 10; i++ {
		punct := ""
		if i == 0 {
			punct = "、"
		}
		begin := int64(i) * 500
		words = append(words, word(begin, begin+400, "あいうえお", punct))
	}
	ch := channel(sentence(1, words...))

	cues, _ := n.Normalize(ch)
	if len(cues) < 2 {
		t.Fatalf("expected a split, got %d cues", len(cues))
	}
	if !strings.HasSuffix(cues[0].Text, "、") {
		t.Errorf("first cue should cut at the leading punctuation, got %q", cues[0].Text)
	}
}

func TestShortSentencePassesThrough(t *testing.T) {
	n := NewNormalizer(nil)
	s := sentence(1, word(0, 500, "こんにちは", ""))
	ch := channel(s)

	cues, stats := n.Normalize(ch)
	if stats.Splits != 0 || len(cues) != 1 {
		t.Fatalf("expected pass-through, got %+v (%+v)", cues, stats)
	}
	if cues[0] != (subtitle.Cue{BeginMS: 0, EndMS: 500, Text: "こんにちは"}) {
		t.Errorf("unexpected cue: %+v", cues[0])
	}
}

func TestZeroWordSentenceYieldsOneCue(t *testing.T) {
	n := NewNormalizer(nil)
	s := Sentence{
		BeginTime:  1000,
		EndTime:    2000,
		Text:       strings.Repeat("あ", 50), // over the limit, still one cue
		SentenceID: 1,
	}
	ch := channel(s)

	cues, _ := n.Normalize(ch)
	if len(cues) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(cues))
	}
	if cues[0].BeginMS != 1000 || cues[0].EndMS != 2000 {
		t.Errorf("cue should carry the sentence timing, got %+v", cues[0])
	}
	if cues[0].Text != s.Text {
		t.Errorf("cue should carry the sentence text unchanged")
	}
}

func TestOversizedSingleWordNotSubSplit(t *testing.T) {
	n := NewNormalizer(nil)
	big := strings.Repeat("あ", 45)
	ch := channel(sentence(1, word(0, 900, big, "")))

	cues, _ := n.Normalize(ch)
	if len(cues) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(cues))
	}
	if cues[0].Text != big {
		t.Errorf("word must never be cut mid-text")
	}
}

func TestTextConservation(t *testing.T) {
	n := NewNormalizer(nil)
	ch := channel(
		sentence(1, word(0, 100, "N", ".")),
		sentence(2, word(150, 250, "G", ".")),
		longPunctuatedSentence(),
		sentence(3, word(20000, 20500, "短い文", "。")),
	)

	var want strings.Builder
	for _, s := range ch.Sentences {
		want.WriteString(strings.TrimSpace(s.Text))
	}

	cues, _ := n.Normalize(ch)
	var got strings.Builder
	for _, c := range cues {
		got.WriteString(c.Text)
	}

	if got.String() != want.String() {
		t.Errorf("text not conserved:\n got %q\nwant %q", got.String(), want.String())
	}
}

func TestCueTimingWithinSentenceSpan(t *testing.T) {
	n := NewNormalizer(nil)
	s := longPunctuatedSentence()
	ch := channel(s)

	cues, _ := n.Normalize(ch)
	var prevEnd int64 = -1
	for _, c := range cues {
		if c.BeginMS > c.EndMS {
			t.Errorf("cue begin %d after end %d", c.BeginMS, c.EndMS)
		}
		if c.BeginMS < s.BeginTime || c.EndMS > s.EndTime {
			t.Errorf("cue [%d,%d] outside sentence span [%d,%d]",
				c.BeginMS, c.EndMS, s.BeginTime, s.EndTime)
		}
		if c.BeginMS < prevEnd {
			t.Errorf("cue begins at %d before previous cue end %d", c.BeginMS, prevEnd)
		}
		prevEnd = c.EndMS
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	n := NewNormalizer(nil)
	ch := channel(
		sentence(1, word(0, 100, "N", ".")),
		sentence(2, word(150, 250, "G", ".")),
		longPunctuatedSentence(),
	)

	first, _ := n.Normalize(ch)
	second, _ := n.Normalize(ch)
	if len(first) != len(second) {
		t.Fatalf("cue counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("cue %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestNormalizeResultChannelLookup(t *testing.T) {
	n := NewNormalizer(nil)
	result := &Result{
		Transcripts: []ChannelTranscript{
			{ChannelID: 0, Sentences: []Sentence{sentence(1, word(0, 100, "OK", ""))}},
		},
	}

	cues, _, err := n.NormalizeResult(result, 0)
	if err != nil {
		t.Fatalf("NormalizeResult error: %v", err)
	}
	if len(cues) != 1 {
		t.Errorf("expected 1 cue, got %d", len(cues))
	}

	if _, _, err := n.NormalizeResult(result, 3); err == nil {
		t.Error("expected error for missing channel")
	}
}
