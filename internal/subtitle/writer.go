package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"time"
)

// WriteWebVTT writes cues as a WebVTT document. Translated text is preferred
// over the source text when present.
func WriteWebVTT(w io.Writer, cues []Cue) error {
	writer := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(writer, "%s\n\n", headerLine); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, cue := range cues {
		text := cue.TranslatedText
		if text == "" {
			text = cue.Text
		}
		if _, err := fmt.Fprintf(writer, "%s --> %s\n%s\n\n",
			FormatTimestamp(cue.StartTime),
			FormatTimestamp(cue.EndTime),
			text); err != nil {
			return fmt.Errorf("write cue %d: %w", i, err)
		}
	}

	return writer.Flush()
}

// FormatTimestamp renders seconds as HH:MM:SS.mmm.
func FormatTimestamp(seconds float64) string {
	d := secondsToDuration(seconds).Round(time.Millisecond)
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	millis := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}
