package service

import (
	"context"
	"io"
	"time"

	"golang.org/x/text/language"

	"github.com/MimeLyc/livesub/internal/catalog"
	"github.com/MimeLyc/livesub/internal/engine"
	"github.com/MimeLyc/livesub/internal/persistence"
	"github.com/MimeLyc/livesub/internal/session"
	"github.com/MimeLyc/livesub/internal/subtitle"
	"github.com/MimeLyc/livesub/internal/translator"
	"github.com/MimeLyc/livesub/pkg/log"
)

// DefaultRefreshDelay gives a freshly created translator time to settle before
// the overlay is told to refresh.
const DefaultRefreshDelay = 500 * time.Millisecond

// Service implements the tab message contract on top of the session registry,
// the cue engine and the subtitle catalog.
type Service struct {
	registry   *session.Registry
	engine     *engine.Engine
	adapter    *translator.Adapter
	catalog    Catalog
	selections SelectionStore
	notifier   Notifier

	refreshDelay time.Duration
}

type Option func(*Service)

func WithSelectionStore(store SelectionStore) Option {
	return func(s *Service) {
		s.selections = store
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func WithRefreshDelay(delay time.Duration) Option {
	return func(s *Service) {
		s.refreshDelay = delay
	}
}

func New(
	registry *session.Registry,
	eng *engine.Engine,
	adapter *translator.Adapter,
	cat Catalog,
	opts ...Option,
) *Service {
	s := &Service{
		registry:     registry,
		engine:       eng,
		adapter:      adapter,
		catalog:      cat,
		refreshDelay: DefaultRefreshDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Registry() *session.Registry {
	return s.registry
}

func (s *Service) session(ctx context.Context, tabID int) (*session.Session, error) {
	if tabID <= 0 {
		return nil, NewError(ErrMissingIdentity, MsgNoTabID)
	}
	sess, err := s.registry.GetOrCreate(ctx, tabID)
	if err != nil {
		return nil, WrapError(err, ErrMissingIdentity, MsgNoTabID)
	}
	return sess, nil
}

func (s *Service) update(ctx context.Context, tabID int, patch session.Patch) {
	if _, err := s.registry.Update(ctx, tabID, patch); err != nil {
		logError(WrapError(err, ErrStorage, "failed to persist tab session").WithContext("tab", tabID))
	}
}

// LoadSubtitle switches the tab to the video in pageURL and loads the cues at
// subtitleURL.
func (s *Service) LoadSubtitle(ctx context.Context, tabID int, subtitleURL, pageURL string) (LoadResult, error) {
	sess, err := s.session(ctx, tabID)
	if err != nil {
		return LoadResult{}, err
	}

	videoID := catalog.VideoIDFromURL(pageURL)
	currentURL := sess.SubtitleURL()
	trackChanged := subtitleURL != "" && currentURL != "" && subtitleURL != currentURL
	if videoID != sess.VideoID() || trackChanged {
		log.Info("Tab %d switched to video %q, clearing cached translations", tabID, videoID)
		empty := []subtitle.Cue{}
		s.update(ctx, tabID, session.Patch{
			ClearCache:  true,
			VideoID:     session.Field(videoID),
			Cues:        &empty,
			SubtitleURL: session.Field(subtitleURL),
		})
	}

	if !s.adapter.Ensure(ctx, sess, sess.TargetLanguage(), false) {
		return LoadResult{Loaded: false, Error: MsgTranslatorUnavailable}, nil
	}

	if subtitleURL == "" {
		return LoadResult{Loaded: false, Error: MsgNoSubtitleURL}, nil
	}

	cues := s.fetchCues(ctx, tabID, subtitleURL)
	s.update(ctx, tabID, session.Patch{
		Cues:        &cues,
		SubtitleURL: session.Field(subtitleURL),
	})

	if len(cues) == 0 {
		return LoadResult{Loaded: false, Error: MsgNoSubtitlesFound}, nil
	}
	log.Info("Tab %d loaded %d cues from %s", tabID, len(cues), subtitleURL)
	return LoadResult{Loaded: true, SubtitleCount: len(cues)}, nil
}

// fetchCues downloads and parses a track. Failures are logged and yield no cues.
func (s *Service) fetchCues(ctx context.Context, tabID int, subtitleURL string) []subtitle.Cue {
	track, err := s.catalog.FetchTrack(ctx, subtitleURL)
	if err != nil {
		logError(WrapError(err, ErrNetwork, "failed to fetch subtitles").
			WithContext("tab", tabID).
			WithContext("url", subtitleURL))
		return []subtitle.Cue{}
	}

	source := s.adapter.SourceLanguage()
	if track.Language != language.Und && !sameBase(track.Language, source) {
		log.Warn("Tab %d: track %s looks like %s, expected %s", tabID, subtitleURL, track.Language, source)
	}
	if track.Cues == nil {
		return []subtitle.Cue{}
	}
	return track.Cues
}

func sameBase(a, b language.Tag) bool {
	baseA, _ := a.Base()
	baseB, _ := b.Base()
	return baseA == baseB
}

// GetCurrentSubtitle returns the translation showing at playback time t, or
// nil when nothing is showing.
func (s *Service) GetCurrentSubtitle(ctx context.Context, tabID int, t float64) (*engine.Result, error) {
	sess, err := s.session(ctx, tabID)
	if err != nil {
		return nil, err
	}

	// sessions restored after a restart keep only the track URL
	if len(sess.Cues()) == 0 {
		if subtitleURL := sess.SubtitleURL(); subtitleURL != "" {
			cues := s.fetchCues(ctx, tabID, subtitleURL)
			s.update(ctx, tabID, session.Patch{
				Cues:        &cues,
				SubtitleURL: session.Field(subtitleURL),
			})
		}
	}
	if sess.TranslatorHandle() == nil && s.adapter.Available() {
		s.adapter.Ensure(ctx, sess, sess.TargetLanguage(), false)
	}

	result, ok := s.engine.ResolveAt(ctx, sess, t)
	if !ok {
		return nil, nil
	}
	return &result, nil
}

// FetchSubtitleOptions lists the source-language tracks for the video in pageURL.
func (s *Service) FetchSubtitleOptions(ctx context.Context, tabID int, pageURL string) (OptionsResult, error) {
	if tabID <= 0 {
		return OptionsResult{}, NewError(ErrMissingIdentity, MsgNoTabID)
	}
	videoID := catalog.VideoIDFromURL(pageURL)
	if videoID == "" {
		return OptionsResult{SubtitleOptions: []catalog.SubtitleOption{}}, nil
	}
	return s.options(ctx, tabID, videoID), nil
}

func (s *Service) options(ctx context.Context, tabID int, videoID string) OptionsResult {
	options, err := s.catalog.FetchSubtitleOptions(ctx, videoID)
	if err != nil {
		logError(WrapError(err, ErrNetwork, "failed to fetch subtitle options").
			WithContext("tab", tabID).
			WithContext("video", videoID))
		return OptionsResult{SubtitleOptions: []catalog.SubtitleOption{}, Error: MsgSubtitleOptionsFailure}
	}
	if options == nil {
		options = []catalog.SubtitleOption{}
	}
	return OptionsResult{SubtitleOptions: options}
}

// VideoFound prepares the tab's translator and lists the tracks for pageURL.
func (s *Service) VideoFound(ctx context.Context, tabID int, pageURL string) (OptionsResult, error) {
	sess, err := s.session(ctx, tabID)
	if err != nil {
		return OptionsResult{}, err
	}

	videoID := catalog.VideoIDFromURL(pageURL)
	if videoID == "" {
		return OptionsResult{SubtitleOptions: []catalog.SubtitleOption{}}, nil
	}

	if !s.adapter.Ensure(ctx, sess, sess.TargetLanguage(), false) {
		log.Error("Failed to initialize translator for tab %d", tabID)
		return OptionsResult{
			SubtitleOptions: []catalog.SubtitleOption{},
			Error:           MsgTranslatorUnavailable,
		}, nil
	}
	return s.options(ctx, tabID, videoID), nil
}

func (s *Service) VideoNotFound(_ context.Context, tabID int) (AckResult, error) {
	if tabID <= 0 {
		return AckResult{}, NewError(ErrMissingIdentity, MsgNoTabID)
	}
	return AckResult{Success: true}, nil
}

func (s *Service) TabClosed(ctx context.Context, tabID int) (AckResult, error) {
	if tabID <= 0 {
		return AckResult{}, NewError(ErrMissingIdentity, MsgNoTabID)
	}
	s.registry.Destroy(ctx, tabID)
	log.Info("Cleaned up data for closed tab %d", tabID)
	return AckResult{Success: true}, nil
}

// ChangeTabLanguage switches one tab to targetLanguage. Cached translations
// are dropped, the translator is recreated and the overlay is told to refresh.
func (s *Service) ChangeTabLanguage(ctx context.Context, tabID int, targetLanguage string) AckResult {
	if tabID <= 0 {
		return AckResult{Success: false, Error: MsgNoTabIDProvided}
	}
	tag, err := language.Parse(targetLanguage)
	if err != nil {
		return AckResult{Success: false, Error: MsgInvalidTargetLanguage}
	}
	lang := tag.String()

	sess, err := s.registry.BeginLanguageChange(ctx, tabID, lang)
	if sess == nil {
		return AckResult{Success: false, Error: MsgNoTabIDProvided}
	}
	defer s.registry.EndLanguageChange(tabID)
	if err != nil {
		logError(WrapError(err, ErrStorage, "failed to persist language change").WithContext("tab", tabID))
	}

	if !s.adapter.Ensure(ctx, sess, lang, true) {
		log.Warn("Tab %d: no translator for %s, subtitles stay untranslated", tabID, lang)
	}

	if s.refreshDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(s.refreshDelay):
		}
	}

	if s.notifier != nil {
		delivered := s.notifier.RefreshCurrentSubtitle(tabID)
		log.Debug("Refresh sent to %d listeners of tab %d", delivered, tabID)
	}

	log.Info("Language change completed for tab %d: %s (v%d)", tabID, lang, sess.LanguageVersion())
	return AckResult{Success: true}
}

func (s *Service) GetTabLanguage(ctx context.Context, tabID int) (TabLanguageResult, error) {
	_, existed := s.registry.Get(tabID)
	sess, err := s.session(ctx, tabID)
	if err != nil {
		return TabLanguageResult{}, err
	}
	lang := sess.TargetLanguage()
	return TabLanguageResult{
		Success:         true,
		Language:        lang,
		IsGlobalDefault: !existed || lang == s.registry.DefaultLanguage(),
	}, nil
}

// SetDefaultLanguage changes the language seeded into new tabs. Existing tabs
// keep theirs.
func (s *Service) SetDefaultLanguage(_ context.Context, targetLanguage string) AckResult {
	tag, err := language.Parse(targetLanguage)
	if err != nil {
		return AckResult{Success: false, Error: MsgInvalidTargetLanguage}
	}
	s.registry.SetDefaultLanguage(tag.String())
	log.Info("Updated global target language for new tabs: %s", tag)
	return AckResult{Success: true}
}

func (s *Service) SaveSubtitleSelection(ctx context.Context, videoID, subtitleURL, label string) AckResult {
	if videoID == "" || subtitleURL == "" {
		return AckResult{Success: false, Error: "video id and subtitle url are required"}
	}
	if s.selections == nil {
		return AckResult{Success: false, Error: "selection storage is not configured"}
	}
	err := s.selections.PutSubtitleSelection(ctx, persistence.SubtitleSelection{
		VideoID: videoID,
		URL:     subtitleURL,
		Label:   label,
	})
	if err != nil {
		logError(WrapError(err, ErrStorage, "failed to save subtitle selection").WithContext("video", videoID))
		return AckResult{Success: false, Error: "failed to save subtitle selection"}
	}
	return AckResult{Success: true}
}

func (s *Service) GetSavedSubtitleSelection(ctx context.Context, videoID string) SelectionResult {
	if videoID == "" || s.selections == nil {
		return SelectionResult{}
	}
	sel, found, err := s.selections.GetSubtitleSelection(ctx, videoID)
	if err != nil {
		logError(WrapError(err, ErrStorage, "failed to read subtitle selection").WithContext("video", videoID))
		return SelectionResult{}
	}
	if !found {
		return SelectionResult{}
	}
	return SelectionResult{SelectedSubtitle: &sel.URL}
}

// ExportTrack writes the tab's cues as WebVTT, using cached translations where
// available and the source text elsewhere.
func (s *Service) ExportTrack(ctx context.Context, tabID int, w io.Writer) error {
	sess, err := s.session(ctx, tabID)
	if err != nil {
		return err
	}

	view := sess.View()
	if len(view.Cues) == 0 {
		return NewError(ErrValidation, "no subtitles loaded").WithContext("tab", tabID)
	}

	cues := make([]subtitle.Cue, len(view.Cues))
	copy(cues, view.Cues)
	for i := range cues {
		key := session.CacheKey{VideoID: view.VideoID, CueIndex: i, LanguageVersion: view.LanguageVersion}
		if entry, ok := sess.Lookup(key); ok {
			cues[i].TranslatedText = entry.TranslatedText
		}
	}

	if err := subtitle.WriteWebVTT(w, cues); err != nil {
		return WrapError(err, ErrUnknown, "failed to write track").WithContext("tab", tabID)
	}
	return nil
}
