package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/livesub/internal/config"
	"github.com/MimeLyc/livesub/internal/session"
)

type fakeScheduler struct {
	called bool
	err    error
}

func (f *fakeScheduler) Schedule(context.Context) error {
	f.called = true
	return f.err
}

type fakeCron struct {
	started bool
	stopped bool
}

func (f *fakeCron) Start() {
	f.started = true
}

func (f *fakeCron) Stop() context.Context {
	f.stopped = true
	return context.Background()
}

type fakeHTTP struct {
	listenCalled chan struct{}
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{
		listenCalled: make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (f *fakeHTTP) ListenAndServe(string) error {
	close(f.listenCalled)
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTP) Shutdown(context.Context) error {
	f.shutdownOnce.Do(func() { close(f.shutdownCh) })
	return nil
}

func TestRunWithComponents_StartsCronAndHTTP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Addr: "127.0.0.1:0",
		},
	}
	scheduler := &fakeScheduler{}
	cronEngine := &fakeCron{}
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, cfg, scheduler, cronEngine, httpSrv)
	}()

	select {
	case <-httpSrv.listenCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("http server did not start")
	}

	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}

	assert.True(t, scheduler.called)
	assert.True(t, cronEngine.started)
	assert.True(t, cronEngine.stopped)
}

func TestRunWithComponents_ScheduleFailure(t *testing.T) {
	scheduler := &fakeScheduler{err: errors.New("bad cron")}
	cronEngine := &fakeCron{}

	err := runWithComponents(context.Background(), &config.Config{}, scheduler, cronEngine, newFakeHTTP())
	require.Error(t, err)
	assert.False(t, cronEngine.started)
}

func TestParseCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.vtt")
	require.NoError(t, os.WriteFile(path, []byte("WEBVTT\n\n1\n00:00:01.000 --> 00:00:02.500\n<c.teletext>Hej på dig</c>\n"), 0o644))

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"parse", path})
	require.NoError(t, cmd.Execute())

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "1 cues, language "))
	assert.Contains(t, got, "00:00:01.000")
	assert.Contains(t, got, "00:00:02.500")
	assert.Contains(t, got, "Hej på dig")
	assert.NotContains(t, got, "teletext")
}

func TestParseCommand_VTT(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("WEBVTT\n\n00:00:01.000 --> 00:00:02.000\n<i>Hej</i>\n"))
	cmd.SetArgs([]string{"parse", "--vtt", "-"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nHej\n\n", out.String())
}

func TestParseCommand_MissingFile(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"parse", filepath.Join(t.TempDir(), "missing.vtt")})
	require.Error(t, cmd.Execute())
}

func TestRenderTabs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	got := renderTabs([]session.Meta{
		{TabID: 12, VideoID: "abc", TargetLanguage: "de", LanguageVersion: 2, SubtitleURL: "https://x/sv.vtt", UpdatedAt: now.Add(-90 * time.Second)},
		{TabID: 3, TargetLanguage: "en", UpdatedAt: now},
	}, now, false)

	lines := strings.Split(got, "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Contains(t, got, "TAB")
	assert.Contains(t, got, "abc")
	assert.Contains(t, got, "1m30s")
	assert.Contains(t, got, "https://x/sv.vtt")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "åäö", truncate("åäö", 3))
}
