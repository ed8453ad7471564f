package session

import (
	"sync"
	"time"

	"github.com/MimeLyc/livesub/internal/subtitle"
	"github.com/MimeLyc/livesub/internal/translator"
)

// Patch is a partial update applied by Registry.Update. Nil fields are left
// unchanged.
type Patch struct {
	Cues            *[]subtitle.Cue
	ClearCache      bool
	VideoID         *string
	TargetLanguage  *string
	LanguageVersion *int
	SubtitleURL     *string
}

// Session is the per-tab state. All fields are guarded by mu; no I/O happens
// while it is held.
type Session struct {
	mu sync.Mutex

	tabID           int
	cues            []subtitle.Cue
	cache           *Cache
	videoID         string
	targetLanguage  string
	languageVersion int
	subtitleURL     string
	changing        int
	handle          translator.Handle
	boundLanguage   string
	updatedAt       time.Time
}

func newSession(meta Meta) *Session {
	return &Session{
		tabID:           meta.TabID,
		cache:           NewCache(),
		videoID:         meta.VideoID,
		targetLanguage:  meta.TargetLanguage,
		languageVersion: meta.LanguageVersion,
		subtitleURL:     meta.SubtitleURL,
		updatedAt:       meta.UpdatedAt,
	}
}

func (s *Session) TabID() int {
	return s.tabID
}

func (s *Session) VideoID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoID
}

func (s *Session) TargetLanguage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetLanguage
}

func (s *Session) LanguageVersion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.languageVersion
}

func (s *Session) SubtitleURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subtitleURL
}

// Cues returns the current cue list. The slice is replaced wholesale on update
// and never mutated in place, so callers may read it without the lock.
func (s *Session) Cues() []subtitle.Cue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cues
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	if s.changing > 0 {
		return StateChangingLanguage
	}
	return StateIdle
}

func (s *Session) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// CacheKeys returns the cached keys in insertion order.
func (s *Session) CacheKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Keys()
}

func (s *Session) Meta() Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metaLocked()
}

func (s *Session) metaLocked() Meta {
	return Meta{
		TabID:           s.tabID,
		VideoID:         s.videoID,
		TargetLanguage:  s.targetLanguage,
		LanguageVersion: s.languageVersion,
		SubtitleURL:     s.subtitleURL,
		UpdatedAt:       s.updatedAt,
	}
}

// View is a consistent snapshot of the fields translation lookups depend on.
type View struct {
	VideoID         string
	LanguageVersion int
	State           State
	Cues            []subtitle.Cue
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		VideoID:         s.videoID,
		LanguageVersion: s.languageVersion,
		State:           s.stateLocked(),
		Cues:            s.cues,
	}
}

func (s *Session) TranslatorHandle() translator.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *Session) BindTranslator(handle translator.Handle, targetLanguage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = handle
	s.boundLanguage = targetLanguage
}

// BoundLanguage is the language the current translator handle was created for.
func (s *Session) BoundLanguage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundLanguage
}

// Lookup returns the cached translation for key. While a language change is in
// progress the cache is treated as empty.
func (s *Session) Lookup(key CacheKey) (CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stateLocked() == StateChangingLanguage {
		return CacheEntry{}, false
	}
	return s.cache.Get(key)
}

func (s *Session) Has(key CacheKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Has(key)
}

// Store records a translation and evicts the oldest entries down to retain once
// the cache grows past limit. It returns the number of evicted entries.
func (s *Session) Store(key CacheKey, entry CacheEntry, limit, retain int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Put(key, entry)
	return s.cache.Evict(limit, retain)
}

// StoreCurrent records a translation like Store, but only while key still
// matches the session's video and language version and no language change is
// in progress. A result produced by a handle that is being replaced is not
// cached.
func (s *Session) StoreCurrent(key CacheKey, entry CacheEntry, limit, retain int) (stored bool, evicted int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key.VideoID != s.videoID || key.LanguageVersion != s.languageVersion {
		return false, 0
	}
	if s.stateLocked() == StateChangingLanguage {
		return false, 0
	}
	s.cache.Put(key, entry)
	return true, s.cache.Evict(limit, retain)
}

// StoreIfCurrent records a translation only if key still matches the session's
// video and language version and nothing is cached under it yet.
func (s *Session) StoreIfCurrent(key CacheKey, entry CacheEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key.VideoID != s.videoID || key.LanguageVersion != s.languageVersion {
		return false
	}
	if s.stateLocked() == StateChangingLanguage {
		return false
	}
	return s.cache.PutIfAbsent(key, entry)
}

func (s *Session) apply(p Patch, now time.Time) Meta {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ClearCache {
		s.cache.Clear()
	}
	if p.Cues != nil {
		s.cues = *p.Cues
	}
	if p.VideoID != nil {
		s.videoID = *p.VideoID
	}
	if p.TargetLanguage != nil {
		s.targetLanguage = *p.TargetLanguage
	}
	if p.LanguageVersion != nil && *p.LanguageVersion > s.languageVersion {
		s.languageVersion = *p.LanguageVersion
	}
	if p.SubtitleURL != nil {
		s.subtitleURL = *p.SubtitleURL
	}
	s.updatedAt = now
	return s.metaLocked()
}

// beginLanguageChange marks the session as changing, drops every cached
// translation and bumps the language version, in that order.
func (s *Session) beginLanguageChange(targetLanguage string, now time.Time) Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changing++
	s.cache.Clear()
	s.languageVersion++
	s.targetLanguage = targetLanguage
	s.updatedAt = now
	return s.metaLocked()
}

func (s *Session) endLanguageChange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.changing > 0 {
		s.changing--
	}
}
