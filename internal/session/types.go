package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FallbackLanguage seeds sessions when neither storage nor the global default
// provide a target language.
const FallbackLanguage = "en"

var ErrMissingTab = errors.New("no tab ID available")

// State tracks whether a tab is in the middle of a language change.
type State int

const (
	StateIdle State = iota
	StateChangingLanguage
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChangingLanguage:
		return "changing_language"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CacheKey identifies one translation: a cue of a video under a language version.
// Keys built before a video switch or language change never match again.
type CacheKey struct {
	VideoID         string
	CueIndex        int
	LanguageVersion int
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%d:%d", k.VideoID, k.CueIndex, k.LanguageVersion)
}

type CacheEntry struct {
	TranslatedText string `json:"translatedText"`
	Timestamp      int64  `json:"timestamp"` // unix millis at creation
}

// Meta holds the scalar session fields that survive a process restart.
// Empty VideoID and SubtitleURL mean "not set".
type Meta struct {
	TabID           int       `json:"tabId"`
	VideoID         string    `json:"videoId"`
	TargetLanguage  string    `json:"targetLanguage"`
	LanguageVersion int       `json:"languageVersion"`
	SubtitleURL     string    `json:"subtitleUrl"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Store is the durable key-value storage behind the registry.
type Store interface {
	LoadTab(ctx context.Context, tabID int) (Meta, bool, error)
	SaveTab(ctx context.Context, meta Meta) error
	DeleteTab(ctx context.Context, tabID int) error
	// DeleteTabsUpdatedBefore removes records older than before, except the
	// tabs listed in keep.
	DeleteTabsUpdatedBefore(ctx context.Context, before time.Time, keep ...int) (int64, error)
}

// Field returns a pointer to v, for building a Patch.
func Field[T any](v T) *T {
	return &v
}
