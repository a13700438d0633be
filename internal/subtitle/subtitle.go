package subtitle

// Cue is a single timed subtitle entry.
type Cue struct {
	BeginMS int64
	EndMS   int64
	Text    string
}

// Serializer renders cues into SRT text.
//
// Cues whose text is empty after trimming are dropped and index numbering
// stays contiguous across the cues that remain. KeepEmptyCues preserves
// them instead as empty-text blocks with their timing intact, for consumers
// that need stable indexing against the original timeline.
type Serializer struct {
	KeepEmptyCues bool
}
