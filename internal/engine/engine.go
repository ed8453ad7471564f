package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/MimeLyc/livesub/internal/prefetch"
	"github.com/MimeLyc/livesub/internal/session"
	"github.com/MimeLyc/livesub/internal/subtitle"
	"github.com/MimeLyc/livesub/internal/translator"
	"github.com/MimeLyc/livesub/pkg/log"
)

const (
	// CueLeadSeconds lets a cue match slightly before its start time.
	CueLeadSeconds = 0.5

	DefaultLookahead   = 2
	DefaultCacheLimit  = 1000
	DefaultCacheRetain = 500
)

// Translator turns cue text into the tab's target language. It must never
// fail; on error it hands back the source text.
type Translator interface {
	Translate(ctx context.Context, binding translator.Binding, text string) string
}

// Executor runs detached prefetch tasks, skipping keys already in flight.
type Executor interface {
	Submit(key string, task func(ctx context.Context) error) bool
}

type Options struct {
	Lookahead   int
	CacheLimit  int
	CacheRetain int
	Now         func() time.Time
}

func (o *Options) applyDefaults() {
	if o.Lookahead < 0 {
		o.Lookahead = 0
	} else if o.Lookahead == 0 {
		o.Lookahead = DefaultLookahead
	}
	if o.CacheLimit <= 0 {
		o.CacheLimit = DefaultCacheLimit
	}
	if o.CacheRetain <= 0 || o.CacheRetain > o.CacheLimit {
		o.CacheRetain = DefaultCacheRetain
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Result is what the overlay renders for the current playback position.
type Result struct {
	TranslatedText string `json:"translatedText"`
}

// Engine maps playback time to cues and memoizes their translations per tab.
type Engine struct {
	translator Translator
	executor   Executor
	opts       Options
}

// New builds an engine. A nil executor disables prefetching.
func New(t Translator, executor Executor, opts Options) *Engine {
	opts.applyDefaults()
	return &Engine{
		translator: t,
		executor:   executor,
		opts:       opts,
	}
}

// FindCue returns the index of the first cue showing at t, or -1.
func FindCue(cues []subtitle.Cue, t float64) int {
	for i, cue := range cues {
		if cue.Contains(t, CueLeadSeconds) {
			return i
		}
	}
	return -1
}

// ResolveAt returns the translation of the cue showing at t. It reports false
// when the tab has no video or no cue covers t.
func (e *Engine) ResolveAt(ctx context.Context, sess *session.Session, t float64) (Result, bool) {
	view := sess.View()
	if view.VideoID == "" {
		return Result{}, false
	}

	idx := FindCue(view.Cues, t)
	if idx < 0 {
		return Result{}, false
	}

	key := session.CacheKey{
		VideoID:         view.VideoID,
		CueIndex:        idx,
		LanguageVersion: view.LanguageVersion,
	}

	if entry, ok := sess.Lookup(key); ok {
		e.schedulePrefetch(sess, view, idx)
		return Result{TranslatedText: entry.TranslatedText}, true
	}

	translated := e.translator.Translate(ctx, sess, view.Cues[idx].Text)
	if view.State == session.StateChangingLanguage {
		// the bound handle may still target the previous language
		e.schedulePrefetch(sess, view, idx)
		return Result{TranslatedText: translated}, true
	}
	_, evicted := sess.StoreCurrent(key, session.CacheEntry{
		TranslatedText: translated,
		Timestamp:      e.opts.Now().UnixMilli(),
	}, e.opts.CacheLimit, e.opts.CacheRetain)
	if evicted > 0 {
		log.Debug("Tab %d: evicted %d cached translations", sess.TabID(), evicted)
	}

	e.schedulePrefetch(sess, view, idx)
	return Result{TranslatedText: translated}, true
}

func (e *Engine) schedulePrefetch(sess *session.Session, view session.View, idx int) {
	if e.executor == nil {
		return
	}

	for i := 1; i <= e.opts.Lookahead; i++ {
		next := idx + i
		if next >= len(view.Cues) {
			return
		}
		text := view.Cues[next].Text
		if text == "" {
			continue
		}

		key := session.CacheKey{
			VideoID:         view.VideoID,
			CueIndex:        next,
			LanguageVersion: view.LanguageVersion,
		}
		if sess.Has(key) {
			continue
		}

		e.executor.Submit(taskKey(sess.TabID(), key), e.prefetchTask(sess, key, text))
	}
}

func (e *Engine) prefetchTask(sess *session.Session, key session.CacheKey, text string) func(context.Context) error {
	return func(ctx context.Context) error {
		if !current(sess, key) {
			return prefetch.ErrStale
		}
		if sess.Has(key) {
			return nil
		}

		translated := e.translator.Translate(ctx, sess, text)
		if !current(sess, key) {
			return prefetch.ErrStale
		}
		sess.StoreIfCurrent(key, session.CacheEntry{
			TranslatedText: translated,
			Timestamp:      e.opts.Now().UnixMilli(),
		})
		return nil
	}
}

func current(sess *session.Session, key session.CacheKey) bool {
	view := sess.View()
	return view.VideoID == key.VideoID && view.LanguageVersion == key.LanguageVersion
}

func taskKey(tabID int, key session.CacheKey) string {
	return fmt.Sprintf("%d/%s", tabID, key)
}
