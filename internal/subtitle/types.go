package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

// Cue is a single subtitle entry. Times are in seconds from the start of the video.
type Cue struct {
	StartTime      float64 `json:"startTime"`
	EndTime        float64 `json:"endTime"`
	Text           string  `json:"text"`
	TranslatedText string  `json:"translatedText,omitempty"` // empty until backfilled
}

// Contains reports whether t falls inside the cue, allowing the cue to show
// up to lead seconds before its nominal start.
func (c Cue) Contains(t, lead float64) bool {
	return t+lead >= c.StartTime && t <= c.EndTime
}

// Track is a parsed subtitle resource.
type Track struct {
	URL      string
	Cues     []Cue
	Language language.Tag
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
