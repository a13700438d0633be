package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	ProjectFileName    = "project.json"
	VideoFileName      = "video.mp4"
	AudioFileName      = "audio.opus"
	ASRFileName        = "asr.json"
	SRTFileName        = "asr.srt"
	TranslatedFileName = "video.srt"
)

var bvIDPattern = regexp.MustCompile(`(BV[a-zA-Z0-9]+)`)

// Source identifies the video platform a project came from.
type Source string

const (
	SourceBilibili Source = "bilibili"
	SourceTver     Source = "tver"
)

// Record is the durable state of one captioning job. It is written as a
// whole JSON document on every save; partial updates never happen.
type Record struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	TranslationHint string `json:"translation_hint,omitempty"`
	ASRTaskID       string `json:"asr_task_id,omitempty"`

	MetadataFetched  bool `json:"is_metadata_fetched"`
	Downloaded       bool `json:"is_downloaded"`
	VideoProcessed   bool `json:"is_video_processed"`
	AudioProcessed   bool `json:"is_audio_processed"`
	ASRTaskSubmitted bool `json:"is_asr_task_submitted"`
	ASRCompleted     bool `json:"is_asr_completed"`
	SRTCompleted     bool `json:"is_srt_completed"`
	Translated       bool `json:"is_translated"`
}

// Store loads and persists project records under a root directory, one
// subdirectory per project id.
type Store struct {
	Root string
}

func NewStore(root string) *Store {
	return &Store{Root: root}
}

// ParseSource extracts the project id from a source string: a bare id, a
// bilibili URL carrying a BV id, or a tver.jp episode URL.
func ParseSource(source string) (string, error) {
	if match := bvIDPattern.FindString(source); match != "" {
		return match, nil
	}

	if strings.Contains(source, "tver.jp") {
		parsed, err := url.Parse(source)
		if err != nil {
			return "", fmt.Errorf("invalid video source %q: %w", source, err)
		}
		parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if len(parts) > 0 && parts[len(parts)-1] != "" {
			return parts[len(parts)-1], nil
		}
	}

	if strings.HasPrefix(source, "https://") {
		return "", fmt.Errorf("invalid video source: %s", source)
	}

	return source, nil
}

// Load returns the record for id, or a fresh one (all flags false) when no
// project file exists yet. The translation hint only applies to new
// projects; an existing record keeps its saved hint.
func (s *Store) Load(id, translationHint string) (*Record, error) {
	path := filepath.Join(s.Root, id, ProjectFileName)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Record{ID: id, Name: "video", TranslationHint: translationHint}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project %s: %w", id, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("project %s is corrupted: %w", id, err)
	}
	if record.ID != id {
		return nil, fmt.Errorf("project %s: record id mismatch (%s)", id, record.ID)
	}
	return &record, nil
}

// Save writes the whole record to disk. The write goes through a temp file
// and rename so a crash never leaves a torn project file.
func (s *Store) Save(record *Record) error {
	dir := s.Dir(record.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create project dir: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode project %s: %w", record.ID, err)
	}

	path := filepath.Join(dir, ProjectFileName)
	tmp, err := os.CreateTemp(dir, ProjectFileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp project file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write project %s: %w", record.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write project %s: %w", record.ID, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to persist project %s: %w", record.ID, err)
	}
	return nil
}

// MarkDone flips a stage flag and persists the record before returning.
// The in-memory flag must not be trusted unless the save succeeded.
func (s *Store) MarkDone(record *Record, stage StageName) error {
	if err := record.setStageDone(stage); err != nil {
		return err
	}
	return s.Save(record)
}

// Source infers the platform from the project id.
func (r *Record) Source() Source {
	if strings.HasPrefix(r.ID, "BV") {
		return SourceBilibili
	}
	return SourceTver
}

// SourceURL returns the canonical watch URL for the project.
func (r *Record) SourceURL() string {
	if r.Source() == SourceBilibili {
		return "https://www.bilibili.com/video/" + r.ID
	}
	return "https://tver.jp/episodes/" + r.ID
}

func (s *Store) Dir(id string) string {
	return filepath.Join(s.Root, id)
}

func (s *Store) VideoPath(id string) string {
	return filepath.Join(s.Dir(id), VideoFileName)
}

func (s *Store) AudioPath(id string) string {
	return filepath.Join(s.Dir(id), AudioFileName)
}

func (s *Store) ASRPath(id string) string {
	return filepath.Join(s.Dir(id), ASRFileName)
}

func (s *Store) SRTPath(id string) string {
	return filepath.Join(s.Dir(id), SRTFileName)
}

func (s *Store) TranslatedPath(id string) string {
	return filepath.Join(s.Dir(id), TranslatedFileName)
}

// DownloadedVideoPaths lists the raw downloaded segments, excluding the
// combined output file.
func (s *Store) DownloadedVideoPaths(id string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir(id), "*.mp4"))
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, m := range matches {
		if filepath.Base(m) == VideoFileName {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		paths = append(paths, m)
	}
	return paths, nil
}
