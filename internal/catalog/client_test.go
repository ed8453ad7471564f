package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.svtplay.se/video/jXvZ2aW/rapport/idag", "jXvZ2aW"},
		{"https://www.svtplay.se/video/eWq9Ybz?id=1", "eWq9Ybz"},
		{"https://www.svtplay.se/video/abc", "abc"},
		{"https://www.svtplay.se/kanaler", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, VideoIDFromURL(tt.url))
		})
	}
}

func TestFetchSubtitleOptions_FiltersSwedish(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/video/abc", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"subtitleReferences":[
			{"url":"https://x/sv.vtt","label":"Svenska","language":"sv","format":"webvtt"},
			{"url":"https://x/en.vtt","label":"English","language":"en","format":"webvtt"},
			{"url":"https://x/sv-hoh.vtt","label":"Svenska (textning)","language":"sv","format":"webvtt"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	options, err := c.FetchSubtitleOptions(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, "https://x/sv.vtt", options[0].URL)
	assert.Equal(t, "Svenska (textning)", options[1].Label)
	for _, opt := range options {
		assert.Equal(t, "sv", opt.Language)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchSubtitleOptions_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/video/missing":
			http.NotFound(w, r)
		default:
			_, _ = w.Write([]byte("<html>"))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)

	_, err := c.FetchSubtitleOptions(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatus)

	_, err = c.FetchSubtitleOptions(context.Background(), "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode video broken")

	_, err = c.FetchSubtitleOptions(context.Background(), "")
	require.Error(t, err)
}

func TestFetchSubtitleOptions_SharedLookupOutlivesCancelledCaller(t *testing.T) {
	var hits atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		started <- struct{}{}
		<-release
		_, _ = w.Write([]byte(`{"subtitleReferences":[{"url":"https://x/sv.vtt","language":"sv"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.FetchSubtitleOptions(firstCtx, "abc")
		firstErr <- err
	}()
	<-started

	type result struct {
		options []SubtitleOption
		err     error
	}
	second := make(chan result, 1)
	go func() {
		options, err := c.FetchSubtitleOptions(context.Background(), "abc")
		second <- result{options, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	time.Sleep(100 * time.Millisecond)
	close(release)

	res := <-second
	require.NoError(t, res.err)
	require.Len(t, res.options, 1)
	assert.Equal(t, "https://x/sv.vtt", res.options[0].URL)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("WEBVTT\n\n00:00:01.000 --> 00:00:02.500\n<i>Hej</i>\n\n00:00:03.000 --> 00:00:04.000\nHur mår du?\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	track, err := c.FetchTrack(context.Background(), srv.URL+"/sub.vtt")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/sub.vtt", track.URL)
	require.Len(t, track.Cues, 2)
	assert.Equal(t, "Hej", track.Cues[0].Text)
	assert.InDelta(t, 2.5, track.Cues[0].EndTime, 1e-9)
}
