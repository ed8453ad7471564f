package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/MimeLyc/livesub/pkg/log"
	"golang.org/x/sync/singleflight"
)

// Registry owns every live tab session and writes scalar session fields
// through to a Store.
type Registry struct {
	store Store

	mu              sync.RWMutex
	sessions        map[int]*Session
	defaultLanguage string

	restores singleflight.Group
	now      func() time.Time
}

func NewRegistry(store Store, defaultLanguage string) *Registry {
	if defaultLanguage == "" {
		defaultLanguage = FallbackLanguage
	}
	return &Registry{
		store:           store,
		sessions:        make(map[int]*Session),
		defaultLanguage: defaultLanguage,
		now:             time.Now,
	}
}

func (r *Registry) DefaultLanguage() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultLanguage
}

func (r *Registry) SetDefaultLanguage(lang string) {
	if lang == "" {
		return
	}
	r.mu.Lock()
	r.defaultLanguage = lang
	r.mu.Unlock()
}

// IsDefaultLanguage reports whether the tab follows the global default, either
// because it has no session or because its language equals the default.
func (r *Registry) IsDefaultLanguage(tabID int) bool {
	def := r.DefaultLanguage()
	sess, ok := r.Get(tabID)
	if !ok {
		return true
	}
	lang := sess.TargetLanguage()
	return lang == "" || lang == def
}

func (r *Registry) Get(tabID int) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[tabID]
	return sess, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// GetOrCreate returns the live session for tabID, restoring it from the store
// when one was persisted with a video. Concurrent callers for the same tab
// share one restore.
func (r *Registry) GetOrCreate(ctx context.Context, tabID int) (*Session, error) {
	if tabID <= 0 {
		return nil, ErrMissingTab
	}
	if sess, ok := r.Get(tabID); ok {
		return sess, nil
	}

	v, err, _ := r.restores.Do(strconv.Itoa(tabID), func() (interface{}, error) {
		if sess, ok := r.Get(tabID); ok {
			return sess, nil
		}

		sess := newSession(r.initialMeta(ctx, tabID))

		r.mu.Lock()
		if existing, ok := r.sessions[tabID]; ok {
			r.mu.Unlock()
			return existing, nil
		}
		r.sessions[tabID] = sess
		r.mu.Unlock()

		r.persist(ctx, sess.Meta())
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (r *Registry) initialMeta(ctx context.Context, tabID int) Meta {
	fresh := Meta{
		TabID:          tabID,
		TargetLanguage: r.DefaultLanguage(),
		UpdatedAt:      r.now(),
	}
	if r.store == nil {
		return fresh
	}

	stored, found, err := r.store.LoadTab(ctx, tabID)
	if err != nil {
		log.Warn("Failed to load session for tab %d: %v", tabID, err)
		return fresh
	}
	if !found || stored.VideoID == "" {
		return fresh
	}

	if stored.TargetLanguage == "" {
		stored.TargetLanguage = FallbackLanguage
	}
	stored.TabID = tabID
	stored.UpdatedAt = r.now()
	log.Info("Restored session for tab %d (video %s, language %s v%d)",
		tabID, stored.VideoID, stored.TargetLanguage, stored.LanguageVersion)
	return stored
}

// Update applies p to the tab's session, creating it if needed, and persists
// the result. A persistence failure is returned but the in-memory update stays.
func (r *Registry) Update(ctx context.Context, tabID int, p Patch) (*Session, error) {
	sess, err := r.GetOrCreate(ctx, tabID)
	if err != nil {
		return nil, err
	}
	meta := sess.apply(p, r.now())
	if err := r.save(ctx, meta); err != nil {
		return sess, err
	}
	return sess, nil
}

// BeginLanguageChange moves the tab into the changing state, clears its cache,
// bumps its language version and persists the new language and version.
func (r *Registry) BeginLanguageChange(ctx context.Context, tabID int, targetLanguage string) (*Session, error) {
	sess, err := r.GetOrCreate(ctx, tabID)
	if err != nil {
		return nil, err
	}
	meta := sess.beginLanguageChange(targetLanguage, r.now())
	if err := r.save(ctx, meta); err != nil {
		return sess, err
	}
	return sess, nil
}

// EndLanguageChange returns the tab to idle once every change that started has
// finished.
func (r *Registry) EndLanguageChange(tabID int) {
	if sess, ok := r.Get(tabID); ok {
		sess.endLanguageChange()
	}
}

// Destroy forgets the tab in memory and deletes its durable record. Storage
// failures are logged.
func (r *Registry) Destroy(ctx context.Context, tabID int) {
	r.mu.Lock()
	delete(r.sessions, tabID)
	r.mu.Unlock()

	if r.store == nil {
		return
	}
	if err := r.store.DeleteTab(ctx, tabID); err != nil {
		log.Warn("Failed to delete stored session for tab %d: %v", tabID, err)
	}
}

// Sweep deletes stored records not updated within maxAge that no live session
// owns. Live sessions last until Destroy. It returns the number of stored
// records removed.
func (r *Registry) Sweep(ctx context.Context, maxAge time.Duration) (int64, error) {
	if r.store == nil {
		return 0, nil
	}
	cutoff := r.now().Add(-maxAge)

	r.mu.RLock()
	live := make([]int, 0, len(r.sessions))
	for id := range r.sessions {
		live = append(live, id)
	}
	r.mu.RUnlock()

	n, err := r.store.DeleteTabsUpdatedBefore(ctx, cutoff, live...)
	if err != nil {
		return 0, fmt.Errorf("sweep stored sessions: %w", err)
	}
	return n, nil
}

func (r *Registry) save(ctx context.Context, meta Meta) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.SaveTab(ctx, meta); err != nil {
		return fmt.Errorf("persist session for tab %d: %w", meta.TabID, err)
	}
	return nil
}

func (r *Registry) persist(ctx context.Context, meta Meta) {
	if err := r.save(ctx, meta); err != nil {
		log.Warn("%v", err)
	}
}
