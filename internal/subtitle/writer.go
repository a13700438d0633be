package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bansub/internal/timecode"
)

// Render serializes cues into SRT text: a 1-based index line, a timecode
// range line, the cue text, and a blank separator per cue.
func (s *Serializer) Render(cues []Cue) string {
	var sb strings.Builder
	index := 1

	for _, cue := range cues {
		text := cue.Text
		if strings.TrimSpace(text) == "" {
			if !s.KeepEmptyCues {
				continue
			}
			text = ""
		}

		sb.WriteString(fmt.Sprintf("%d\n", index))
		sb.WriteString(fmt.Sprintf("%s --> %s\n",
			timecode.Format(cue.BeginMS),
			timecode.Format(cue.EndMS)))
		sb.WriteString(text)
		sb.WriteString("\n\n")
		index++
	}

	return sb.String()
}

// WriteFile renders cues and writes them to path, creating parent
// directories as needed.
func (s *Serializer) WriteFile(cues []Cue, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s.Render(cues)), 0644)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}
