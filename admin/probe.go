package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ErrProbeUnsupported is returned for providers without an
// OpenAI-compatible endpoint.
var ErrProbeUnsupported = errors.New("provider does not expose an OpenAI-compatible API")

const probePrompt = "Responda apenas: OK"

// ProbeBaseURL returns the OpenAI-compatible endpoint for m.
func ProbeBaseURL(m Model) (string, error) {
	switch m.Provider {
	case "openai":
		return "https://api.openai.com/v1", nil
	case "deepseek":
		return "https://api.deepseek.com/v1", nil
	case "openrouter":
		return "https://openrouter.ai/api/v1", nil
	case "lmstudio":
		return orDefault(m.APIURL, "http://localhost:1234/v1"), nil
	case "ollama":
		return orDefault(m.APIURL, "http://localhost:11434/v1"), nil
	default:
		return "", fmt.Errorf("%s: %w", m.Provider, ErrProbeUnsupported)
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimRight(strings.TrimSpace(s), "/"); s != "" {
		return s
	}
	return def
}

// ProbeResult is the outcome of a successful probe.
type ProbeResult struct {
	BaseURL string
	Reply   string
	Latency time.Duration
}

// Probe sends one short chat completion to the model so an operator can
// check the key and endpoint before activating it.
func Probe(ctx context.Context, m Model) (*ProbeResult, error) {
	base, err := ProbeBaseURL(m)
	if err != nil {
		return nil, err
	}

	clientConfig := openai.DefaultConfig(m.APIKey)
	clientConfig.BaseURL = base
	client := openai.NewClientWithConfig(clientConfig)

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: probePrompt},
		},
		MaxTokens: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", m.Name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("probe %s: empty response", m.Name)
	}

	return &ProbeResult{
		BaseURL: base,
		Reply:   strings.TrimSpace(resp.Choices[0].Message.Content),
		Latency: time.Since(start),
	}, nil
}
