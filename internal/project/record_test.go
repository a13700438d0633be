package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"BV1ZArvBaEqL", "BV1ZArvBaEqL", false},
		{"https://www.bilibili.com/video/BV1ZArvBaEqL", "BV1ZArvBaEqL", false},
		{"https://www.bilibili.com/video/BV1ZArvBaEqL?p=2", "BV1ZArvBaEqL", false},
		{"https://tver.jp/episodes/epabc123", "epabc123", false},
		{"https://tver.jp/episodes/epabc123/", "epabc123", false},
		{"epabc123", "epabc123", false},
		{"https://example.com/watch?v=xyz", "", true},
	}

	for _, tt := range tests {
		got, err := ParseSource(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSource(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSource(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSource(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadCreatesFreshRecord(t *testing.T) {
	store := NewStore(t.TempDir())

	record, err := store.Load("BVtest123", "comedy show")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if record.ID != "BVtest123" {
		t.Errorf("id = %q", record.ID)
	}
	if record.TranslationHint != "comedy show" {
		t.Errorf("hint = %q", record.TranslationHint)
	}
	if record.DoneCount() != 0 {
		t.Errorf("fresh record has %d completed stages", record.DoneCount())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	record, _ := store.Load("BVround1", "")
	record.Name = "my_show"
	record.ASRTaskID = "task-42"
	if err := store.MarkDone(record, StageMetadataFetched); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}
	if err := store.MarkDone(record, StageDownloaded); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}

	// hint on an existing project is ignored in favor of the saved state
	loaded, err := store.Load("BVround1", "ignored")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.Name != "my_show" || loaded.ASRTaskID != "task-42" {
		t.Errorf("fields lost in round trip: %+v", loaded)
	}
	if loaded.TranslationHint != "" {
		t.Errorf("hint should not overwrite an existing record")
	}
	if !loaded.MetadataFetched || !loaded.Downloaded {
		t.Errorf("stage flags lost in round trip: %+v", loaded)
	}
	if loaded.VideoProcessed {
		t.Errorf("unexpected stage flag set")
	}
}

func TestSaveWritesWholeRecord(t *testing.T) {
	store := NewStore(t.TempDir())
	record, _ := store.Load("BVwhole1", "")
	if err := store.Save(record); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(store.Dir("BVwhole1"), ProjectFileName))
	if err != nil {
		t.Fatalf("read error: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("saved record is not valid JSON: %v", err)
	}
	// every stage flag is present even when false
	for _, name := range []string{
		"is_metadata_fetched", "is_downloaded", "is_video_processed",
		"is_audio_processed", "is_asr_task_submitted", "is_asr_completed",
		"is_srt_completed", "is_translated",
	} {
		if _, ok := fields[name]; !ok {
			t.Errorf("saved record missing field %s", name)
		}
	}
}

func TestLoadRejectsCorruptedRecord(t *testing.T) {
	store := NewStore(t.TempDir())
	dir := store.Dir("BVbad")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ProjectFileName), []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load("BVbad", ""); err == nil {
		t.Error("expected error for corrupted record")
	}
}

func TestLoadRejectsIDMismatch(t *testing.T) {
	store := NewStore(t.TempDir())
	dir := store.Dir("BVone")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	other := `{"id":"BVother","name":"video"}`
	if err := os.WriteFile(filepath.Join(dir, ProjectFileName), []byte(other), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load("BVone", ""); err == nil {
		t.Error("expected error for record id mismatch")
	}
}

func TestStageNamesOrder(t *testing.T) {
	want := []StageName{
		StageMetadataFetched, StageDownloaded, StageVideoProcessed,
		StageAudioProcessed, StageASRTaskSubmitted, StageASRCompleted,
		StageSRTCompleted, StageTranslated,
	}
	got := StageNames()
	if len(got) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stage %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestStageFlagsMonotonic(t *testing.T) {
	store := NewStore(t.TempDir())
	record, _ := store.Load("BVmono", "")

	for _, name := range StageNames() {
		if err := store.MarkDone(record, name); err != nil {
			t.Fatalf("MarkDone(%s) error: %v", name, err)
		}
	}
	if record.DoneCount() != len(StageNames()) {
		t.Errorf("expected all stages done, got %d", record.DoneCount())
	}

	// marking again never clears anything
	if err := store.MarkDone(record, StageDownloaded); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}
	if record.DoneCount() != len(StageNames()) {
		t.Errorf("repeat MarkDone changed flag count: %d", record.DoneCount())
	}
}

func TestStageDoneUnknownStage(t *testing.T) {
	var record Record
	if _, err := record.StageDone(StageName("nonsense")); err == nil {
		t.Error("expected error for unknown stage")
	}
}

func TestSourceURL(t *testing.T) {
	bili := Record{ID: "BVabc"}
	if bili.Source() != SourceBilibili {
		t.Errorf("expected bilibili source")
	}
	if got := bili.SourceURL(); got != "https://www.bilibili.com/video/BVabc" {
		t.Errorf("SourceURL = %q", got)
	}

	tver := Record{ID: "epxyz"}
	if tver.Source() != SourceTver {
		t.Errorf("expected tver source")
	}
	if got := tver.SourceURL(); got != "https://tver.jp/episodes/epxyz" {
		t.Errorf("SourceURL = %q", got)
	}
}

func TestAcquireLockExcludesSecondRun(t *testing.T) {
	store := NewStore(t.TempDir())

	lock, err := store.Acquire("BVlock1")
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	defer lock.Release()

	if _, err := store.Acquire("BVlock1"); err == nil {
		t.Error("second Acquire on the same project should fail")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	relock, err := store.Acquire("BVlock1")
	if err != nil {
		t.Fatalf("Acquire after release error: %v", err)
	}
	relock.Release()
}

func TestDownloadedVideoPathsExcludesCombined(t *testing.T) {
	store := NewStore(t.TempDir())
	dir := store.Dir("BVseg")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"1.mp4", "2.mp4", VideoFileName, "cover.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	paths, err := store.DownloadedVideoPaths("BVseg")
	if err != nil {
		t.Fatalf("DownloadedVideoPaths error: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 segments, got %d: %v", len(paths), paths)
	}
	for _, p := range paths {
		if filepath.Base(p) == VideoFileName {
			t.Errorf("combined video must be excluded")
		}
	}
}

func TestArchiveMovesProject(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "projects"))
	archiveRoot := filepath.Join(root, "archived")

	record, _ := store.Load("BVarch", "")
	record.Name = "archived_show"
	if err := store.Save(record); err != nil {
		t.Fatal(err)
	}

	if err := store.Archive(record, archiveRoot); err != nil {
		t.Fatalf("Archive error: %v", err)
	}
	if _, err := os.Stat(store.Dir("BVarch")); !os.IsNotExist(err) {
		t.Error("project dir should be gone after archive")
	}
	if _, err := os.Stat(filepath.Join(archiveRoot, "archived_show", ProjectFileName)); err != nil {
		t.Errorf("archived record missing: %v", err)
	}
}
