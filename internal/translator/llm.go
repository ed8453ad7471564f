package translator

import (
	"context"
	"fmt"
	"strings"

	"github.com/MimeLyc/livesub/internal/llm"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type completer interface {
	Complete(ctx context.Context, systemPrompt string, prompt string) (string, error)
}

type llmCapability struct {
	client completer
}

// NewLLMCapability backs translators with a chat completion API. A nil client
// yields a capability whose Create always fails with ErrCapabilityUnavailable.
func NewLLMCapability(client *llm.Client) Capability {
	if client == nil {
		return &llmCapability{}
	}
	return &llmCapability{client: client}
}

func (c *llmCapability) Create(_ context.Context, source, target language.Tag) (Handle, error) {
	if c.client == nil {
		return nil, ErrCapabilityUnavailable
	}
	if target == language.Und {
		return nil, fmt.Errorf("target language is undetermined")
	}
	return &llmHandle{
		client:       c.client,
		target:       target,
		systemPrompt: buildSystemPrompt(source, target),
	}, nil
}

type llmHandle struct {
	client       completer
	target       language.Tag
	systemPrompt string
}

func (h *llmHandle) TargetLanguage() string {
	return h.target.String()
}

func (h *llmHandle) Translate(ctx context.Context, text string) (string, error) {
	out, err := h.client.Complete(ctx, h.systemPrompt, text)
	if err != nil {
		return "", fmt.Errorf("translate to %s: %w", h.target, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("translate to %s: empty completion", h.target)
	}
	return out, nil
}

func buildSystemPrompt(source, target language.Tag) string {
	var prompt strings.Builder
	prompt.WriteString("You translate live TV subtitles from ")
	prompt.WriteString(languageName(source))
	prompt.WriteString(" to ")
	prompt.WriteString(languageName(target))
	prompt.WriteString(".\n")
	prompt.WriteString("Each message is one subtitle cue. Reply with the translated cue only.\n")
	prompt.WriteString("Do not add quotes, notes, explanations or line numbers.\n")
	prompt.WriteString("Keep it short enough to read on screen and keep names unchanged.\n")
	return prompt.String()
}

func languageName(tag language.Tag) string {
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return tag.String()
}
