package subtitle

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestWriteWebVTT_PrefersTranslation(t *testing.T) {
	var buf bytes.Buffer
	err := WriteWebVTT(&buf, []Cue{
		{StartTime: 1, EndTime: 3, Text: "Hej", TranslatedText: "Hi"},
		{StartTime: 3723.004, EndTime: 3724.5, Text: "Tack"},
	})
	require.NoError(t, err)

	want := "WEBVTT\n\n" +
		"00:00:01.000 --> 00:00:03.000\nHi\n\n" +
		"01:02:03.004 --> 01:02:04.500\nTack\n\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteWebVTT_ParsesBack(t *testing.T) {
	cues := []Cue{
		{StartTime: 0.5, EndTime: 2, Text: "Ett"},
		{StartTime: 2, EndTime: 4.25, Text: "Två"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteWebVTT(&buf, cues))

	assert.Equal(t, cues, ParseWebVTT(buf.String()))
}

func TestDetectLanguage(t *testing.T) {
	cues := []Cue{
		{Text: "Hello, this is a rather long sentence written in plain English for the detector."},
		{Text: "We are going to the market tomorrow morning to buy some fresh vegetables."},
		{Text: ""},
	}
	assert.Equal(t, language.English, DetectLanguage(cues))
	assert.Equal(t, language.Und, DetectLanguage(nil))
}
