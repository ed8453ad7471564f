package translator

import (
	"context"
	"errors"

	"golang.org/x/text/language"
)

// ErrCapabilityUnavailable is returned when no translation backend is configured.
var ErrCapabilityUnavailable = errors.New("translation capability unavailable")

// Handle is a translator bound to one source/target language pair.
type Handle interface {
	Translate(ctx context.Context, text string) (string, error)
	TargetLanguage() string
}

// Capability creates translator handles.
type Capability interface {
	Create(ctx context.Context, source, target language.Tag) (Handle, error)
}

// Binding is the state a handle is attached to, one per browser tab.
type Binding interface {
	TranslatorHandle() Handle
	BindTranslator(handle Handle, targetLanguage string)
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, source, target language.Tag) (Handle, error)

func (f CapabilityFunc) Create(ctx context.Context, source, target language.Tag) (Handle, error) {
	return f(ctx, source, target)
}
