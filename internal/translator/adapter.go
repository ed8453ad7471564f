package translator

import (
	"context"
	"sync"

	"github.com/MimeLyc/livesub/internal/subtitle"
	"github.com/MimeLyc/livesub/pkg/log"
	"golang.org/x/text/language"
)

// Adapter binds translators with a fixed source language to tab bindings and
// degrades every translation failure to the source text.
type Adapter struct {
	source language.Tag

	mu         sync.RWMutex
	capability Capability
}

func NewAdapter(capability Capability, source language.Tag) *Adapter {
	return &Adapter{
		capability: capability,
		source:     source,
	}
}

// SetCapability replaces the backend used for handles created from now on.
// Handles already bound keep working until they are recreated.
func (a *Adapter) SetCapability(capability Capability) {
	a.mu.Lock()
	a.capability = capability
	a.mu.Unlock()
}

// Available reports whether a capability is configured.
func (a *Adapter) Available() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.capability != nil
}

// SourceLanguage returns the language every handle translates from.
func (a *Adapter) SourceLanguage() language.Tag {
	return a.source
}

// Ensure makes sure binding holds a translator for target. An existing handle
// for the same language is reused unless forceRecreate is set. On failure the
// binding is left untouched.
func (a *Adapter) Ensure(ctx context.Context, binding Binding, target string, forceRecreate bool) bool {
	if existing := binding.TranslatorHandle(); existing != nil && !forceRecreate {
		if existing.TargetLanguage() == target {
			return true
		}
	}

	tag, err := language.Parse(target)
	if err != nil {
		log.Error("Invalid target language %q: %v", target, err)
		return false
	}
	a.mu.RLock()
	capability := a.capability
	a.mu.RUnlock()
	if capability == nil {
		log.Error("Cannot create translator %s -> %s: %v", a.source, tag, ErrCapabilityUnavailable)
		return false
	}

	handle, err := capability.Create(ctx, a.source, tag)
	if err != nil {
		log.Error("Failed to create translator %s -> %s: %v", a.source, tag, err)
		return false
	}
	if handle == nil {
		log.Error("Capability returned no translator for %s -> %s", a.source, tag)
		return false
	}

	binding.BindTranslator(handle, target)
	log.Info("Translator bound %s -> %s", a.source, target)
	return true
}

// Translate returns the translation of text, or text itself when it is empty
// after sanitizing, no translator is bound, or the call fails.
func (a *Adapter) Translate(ctx context.Context, binding Binding, text string) string {
	cleaned := subtitle.Clean(text)
	if cleaned == "" {
		return text
	}

	handle := binding.TranslatorHandle()
	if handle == nil {
		log.Error("Translator not initialized, passing source text through")
		return text
	}

	translated, err := handle.Translate(ctx, cleaned)
	if err != nil {
		log.Warn("Translation to %s failed: %v", handle.TargetLanguage(), err)
		return text
	}
	return translated
}
