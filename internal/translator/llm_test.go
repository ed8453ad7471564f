package translator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

type fakeCompleter struct {
	system string
	prompt string
	out    string
	err    error
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt string, prompt string) (string, error) {
	f.system = systemPrompt
	f.prompt = prompt
	return f.out, f.err
}

func TestLLMCapability_Unavailable(t *testing.T) {
	_, err := NewLLMCapability(nil).Create(context.Background(), language.Swedish, language.English)
	require.ErrorIs(t, err, ErrCapabilityUnavailable)
}

func TestLLMHandle_Translate(t *testing.T) {
	completer := &fakeCompleter{out: "  Hello  \n"}
	capability := &llmCapability{client: completer}

	handle, err := capability.Create(context.Background(), language.Swedish, language.English)
	require.NoError(t, err)
	assert.Equal(t, "en", handle.TargetLanguage())

	got, err := handle.Translate(context.Background(), "Hej")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
	assert.Equal(t, "Hej", completer.prompt)
	assert.Contains(t, completer.system, "from Swedish to English")
}

func TestLLMHandle_TranslateErrors(t *testing.T) {
	capability := &llmCapability{client: &fakeCompleter{err: errors.New("timeout")}}
	handle, err := capability.Create(context.Background(), language.Swedish, language.German)
	require.NoError(t, err)

	_, err = handle.Translate(context.Background(), "Hej")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")

	empty := &llmCapability{client: &fakeCompleter{out: "   "}}
	handle, err = empty.Create(context.Background(), language.Swedish, language.German)
	require.NoError(t, err)
	_, err = handle.Translate(context.Background(), "Hej")
	require.Error(t, err)

	_, err = empty.Create(context.Background(), language.Swedish, language.Und)
	require.Error(t, err)
}
