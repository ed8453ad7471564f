package subtitle

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

const headerLine = "WEBVTT"

var (
	uuidPattern      = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	bareHexPattern   = regexp.MustCompile(`(?i)\b[0-9a-f]{32}\b`)
	cueTimingPattern = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}\.\d{3}) --> (\d{2}:\d{2}:\d{2}\.\d{3})`)
	timestampPattern = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})\.(\d{3})`)
)

// ParseWebVTT parses the body of a WebVTT resource into cues in source order.
// Input without any cue timing line yields an empty slice.
func ParseWebVTT(content string) []Cue {
	cues := make([]Cue, 0)

	var current *Cue
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := stripIdentifiers(scanner.Text())
		line = strings.TrimPrefix(line, "\ufeff")

		if line == headerLine || line == "" || strings.HasPrefix(line, "NOTE") {
			continue
		}

		if m := cueTimingPattern.FindStringSubmatch(line); m != nil {
			if current != nil {
				cues = append(cues, *current)
			}
			current = &Cue{
				StartTime: ParseTimestamp(m[1]),
				EndTime:   ParseTimestamp(m[2]),
			}
			continue
		}

		if current == nil {
			continue
		}
		cleaned := Clean(line)
		if cleaned == "" {
			continue
		}
		if current.Text != "" {
			current.Text += " "
		}
		current.Text += cleaned
	}

	if current != nil {
		cues = append(cues, *current)
	}
	return cues
}

// ParseTimestamp converts HH:MM:SS.mmm to seconds. Malformed input yields 0.
func ParseTimestamp(value string) float64 {
	m := timestampPattern.FindStringSubmatch(value)
	if m == nil {
		return 0
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	millis, _ := strconv.Atoi(m[4])

	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000
}

// ParseTrack parses content and detects the language of the resulting cues.
func ParseTrack(url string, content string) Track {
	cues := ParseWebVTT(content)
	return Track{
		URL:      url,
		Cues:     cues,
		Language: DetectLanguage(cues),
	}
}

// stripIdentifiers removes UUID-shaped cue identifiers that some providers
// emit inline, then trims the line.
func stripIdentifiers(line string) string {
	line = uuidPattern.ReplaceAllString(line, "")
	line = bareHexPattern.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}
