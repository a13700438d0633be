package timecode

import "fmt"

// Format converts a millisecond offset to the SRT timestamp form
// "HH:MM:SS,mmm". Hours are zero-padded to two digits but not capped, so
// offsets beyond 100 hours render with three or more digits instead of
// wrapping.
func Format(ms int64) string {
	hours := ms / 3600000
	ms %= 3600000
	minutes := ms / 60000
	ms %= 60000
	seconds := ms / 1000
	millis := ms % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}
