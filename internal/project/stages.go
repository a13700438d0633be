package project

import "fmt"

// StageName identifies one checkpointed unit of pipeline work.
type StageName string

const (
	StageMetadataFetched  StageName = "metadata_fetched"
	StageDownloaded       StageName = "downloaded"
	StageVideoProcessed   StageName = "video_processed"
	StageAudioProcessed   StageName = "audio_processed"
	StageASRTaskSubmitted StageName = "asr_task_submitted"
	StageASRCompleted     StageName = "asr_completed"
	StageSRTCompleted     StageName = "srt_completed"
	StageTranslated       StageName = "translated"
)

// stageBinding ties a stage name to the record flag it checkpoints. The
// table is the single declaration of the stage set: runner order, flag
// access, and the startup assertion all derive from it, so the name list
// and the record fields cannot drift apart.
type stageBinding struct {
	name StageName
	get  func(*Record) bool
	set  func(*Record)
}

var stageTable = []stageBinding{
	{StageMetadataFetched,
		func(r *Record) bool { return r.MetadataFetched },
		func(r *Record) { r.MetadataFetched = true }},
	{StageDownloaded,
		func(r *Record) bool { return r.Downloaded },
		func(r *Record) { r.Downloaded = true }},
	{StageVideoProcessed,
		func(r *Record) bool { return r.VideoProcessed },
		func(r *Record) { r.VideoProcessed = true }},
	{StageAudioProcessed,
		func(r *Record) bool { return r.AudioProcessed },
		func(r *Record) { r.AudioProcessed = true }},
	{StageASRTaskSubmitted,
		func(r *Record) bool { return r.ASRTaskSubmitted },
		func(r *Record) { r.ASRTaskSubmitted = true }},
	{StageASRCompleted,
		func(r *Record) bool { return r.ASRCompleted },
		func(r *Record) { r.ASRCompleted = true }},
	{StageSRTCompleted,
		func(r *Record) bool { return r.SRTCompleted },
		func(r *Record) { r.SRTCompleted = true }},
	{StageTranslated,
		func(r *Record) bool { return r.Translated },
		func(r *Record) { r.Translated = true }},
}

// StageNames returns the fixed stage order.
func StageNames() []StageName {
	names := make([]StageName, len(stageTable))
	for i, b := range stageTable {
		names[i] = b.name
	}
	return names
}

func findStage(name StageName) (*stageBinding, error) {
	for i := range stageTable {
		if stageTable[i].name == name {
			return &stageTable[i], nil
		}
	}
	return nil, fmt.Errorf("unknown stage: %s", name)
}

// StageDone reports whether the named stage has completed.
func (r *Record) StageDone(name StageName) (bool, error) {
	binding, err := findStage(name)
	if err != nil {
		return false, err
	}
	return binding.get(r), nil
}

// setStageDone flips the named stage flag. Flags are monotonic: nothing
// ever clears one.
func (r *Record) setStageDone(name StageName) error {
	binding, err := findStage(name)
	if err != nil {
		return err
	}
	binding.set(r)
	return nil
}

// DoneCount returns how many stages have completed, in table order.
func (r *Record) DoneCount() int {
	count := 0
	for _, b := range stageTable {
		if b.get(r) {
			count++
		}
	}
	return count
}

func init() {
	// The stage table and the record flag set come from one declaration,
	// but the table still gets sanity-checked once at startup: every
	// binding's setter must flip exactly the flag its getter reads.
	for _, b := range stageTable {
		var probe Record
		if b.get(&probe) {
			panic(fmt.Sprintf("stage %s: flag set on a fresh record", b.name))
		}
		b.set(&probe)
		if !b.get(&probe) {
			panic(fmt.Sprintf("stage %s: setter does not flip its own flag", b.name))
		}
		if probe.DoneCount() != 1 {
			panic(fmt.Sprintf("stage %s: setter touches more than one flag", b.name))
		}
	}
}
