package subtitle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebVTT_SingleCue(t *testing.T) {
	cues := ParseWebVTT("WEBVTT\n\n00:00:01.000 --> 00:00:03.000\nHej")

	require.Len(t, cues, 1)
	assert.Equal(t, Cue{StartTime: 1, EndTime: 3, Text: "Hej"}, cues[0])
}

func TestParseWebVTT_StripsIdentifiersNotesAndTags(t *testing.T) {
	content := strings.Join([]string{
		"WEBVTT",
		"",
		"NOTE produced by the broadcaster",
		"",
		"3f2504e0-4f89-11d3-9a0c-0305e82c3301",
		"00:00:01.000 --> 00:00:02.500 line:90%",
		"<c.teletext>Hej på dig</c>",
		"<i>hur mår du?</i>",
		"",
		"0123456789abcdef0123456789abcdef",
		"00:00:03.000 --> 00:00:04.000",
		"Bra, tack.",
		"",
	}, "\r\n")

	cues := ParseWebVTT(content)

	require.Len(t, cues, 2)
	assert.Equal(t, "Hej på dig hur mår du?", cues[0].Text)
	assert.InDelta(t, 2.5, cues[0].EndTime, 1e-9)
	assert.Equal(t, "Bra, tack.", cues[1].Text)
}

func TestParseWebVTT_NoTimingLines(t *testing.T) {
	assert.Empty(t, ParseWebVTT("WEBVTT\n\njust some text\n"))
	assert.Empty(t, ParseWebVTT(""))
}

func TestParseWebVTT_EmptyTextIsRetained(t *testing.T) {
	cues := ParseWebVTT("WEBVTT\n\n00:00:01.000 --> 00:00:02.000\n<br>\n\n00:00:02.000 --> 00:00:03.000\nText\n")

	require.Len(t, cues, 2)
	assert.Equal(t, "", cues[0].Text)
	assert.Equal(t, "Text", cues[1].Text)
}

func TestParseWebVTT_CueCountMatchesTimingLines(t *testing.T) {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	timings := []string{
		"00:00:00.000 --> 00:00:01.000",
		"00:00:01.000 --> 00:00:01.000",
		"00:00:05.250 --> 00:00:07.000",
		"00:01:00.000 --> 00:01:02.000",
		"01:00:00.000 --> 01:00:02.999",
	}
	for i, timing := range timings {
		b.WriteString(timing + "\n")
		if i%2 == 0 {
			b.WriteString("rad ett\nrad två\n")
		}
		b.WriteString("\n")
	}

	cues := ParseWebVTT(b.String())

	require.Len(t, cues, len(timings))
	for i, cue := range cues {
		assert.LessOrEqual(t, cue.StartTime, cue.EndTime, "cue %d", i)
		if i > 0 {
			assert.LessOrEqual(t, cues[i-1].StartTime, cue.StartTime, "cue %d order", i)
		}
	}
	assert.Equal(t, "rad ett rad två", cues[0].Text)
	assert.Equal(t, "", cues[1].Text)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "zero", input: "00:00:00.000", want: 0},
		{name: "millis", input: "00:00:01.500", want: 1.5},
		{name: "all fields", input: "01:02:03.004", want: 3723.004},
		{name: "malformed", input: "1:2:3", want: 0},
		{name: "comma separator", input: "00:00:01,500", want: 0},
		{name: "empty", input: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseTimestamp(tt.input), 1e-9)
		})
	}
}

func TestParseTrack_SetsURL(t *testing.T) {
	track := ParseTrack("https://example.test/a.vtt", "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nHello there, how are you doing today my friend?\n")

	assert.Equal(t, "https://example.test/a.vtt", track.URL)
	require.Len(t, track.Cues, 1)
}
