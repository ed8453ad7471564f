package service

import (
	"context"

	"github.com/MimeLyc/livesub/internal/catalog"
	"github.com/MimeLyc/livesub/internal/persistence"
	"github.com/MimeLyc/livesub/internal/subtitle"
)

// Messages returned to callers of the tab message contract.
const (
	MsgNoTabID                = "No tab ID available"
	MsgNoTabIDProvided        = "No tab ID provided"
	MsgTranslatorUnavailable  = "Translator not available"
	MsgNoSubtitleURL          = "No subtitle URL provided"
	MsgNoSubtitlesFound       = "No subtitles found"
	MsgInvalidTargetLanguage  = "Invalid target language"
	MsgSubtitleOptionsFailure = "Could not fetch subtitle options"
)

// Notifier tells a tab's overlay to re-query its current subtitle.
type Notifier interface {
	RefreshCurrentSubtitle(tabID int) int
}

// Catalog finds and downloads subtitle tracks.
type Catalog interface {
	FetchSubtitleOptions(ctx context.Context, videoID string) ([]catalog.SubtitleOption, error)
	FetchTrack(ctx context.Context, subtitleURL string) (subtitle.Track, error)
}

// SelectionStore remembers the subtitle track picked per video.
type SelectionStore interface {
	PutSubtitleSelection(ctx context.Context, sel persistence.SubtitleSelection) error
	GetSubtitleSelection(ctx context.Context, videoID string) (persistence.SubtitleSelection, bool, error)
}

type LoadResult struct {
	Loaded        bool   `json:"loaded"`
	SubtitleCount int    `json:"subtitleCount,omitempty"`
	Error         string `json:"error,omitempty"`
}

type OptionsResult struct {
	SubtitleOptions []catalog.SubtitleOption `json:"subtitleOptions"`
	Error           string                   `json:"error,omitempty"`
}

type AckResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type TabLanguageResult struct {
	Success         bool   `json:"success"`
	Language        string `json:"language"`
	IsGlobalDefault bool   `json:"isGlobalDefault"`
}

type SelectionResult struct {
	SelectedSubtitle *string `json:"selectedSubtitle"`
}
