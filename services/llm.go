package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

type CompletionOptions struct {
	Temperature float32
	MaxTokens   int
}

// LLM is a chat-completion style text generator.
type LLM interface {
	Complete(ctx context.Context, system, prompt string, opts CompletionOptions) (string, error)
	Name() string
}

type LLMConfig struct {
	Provider          string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	GeminiAPIKey      string
	GeminiModel       string
	RequestsPerSecond float64
}

// NewLLM builds the configured provider wrapped with throttling and retries.
// A provider without an API key still returns a client; every call then fails
// with ErrNotConfigured so the server can start without AI credentials.
func NewLLM(ctx context.Context, cfg LLMConfig) (LLM, error) {
	var base LLM
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			base = unconfiguredLLM{name: "gemini"}
			break
		}
		g, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		base = g
	case "openai", "":
		if cfg.OpenAIAPIKey == "" {
			base = unconfiguredLLM{name: "openai"}
			break
		}
		base = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	default:
		return nil, fmt.Errorf("unknown AI provider %q: %w", cfg.Provider, ErrNotConfigured)
	}
	return NewThrottledLLM(base, cfg.RequestsPerSecond, 3, time.Second), nil
}

type unconfiguredLLM struct{ name string }

func (u unconfiguredLLM) Complete(context.Context, string, string, CompletionOptions) (string, error) {
	return "", fmt.Errorf("%s API key: %w", u.name, ErrNotConfigured)
}

func (u unconfiguredLLM) Name() string { return u.name }

// OpenAIClient calls the chat completions endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string, opts CompletionOptions) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai: %v", ErrProviderRequest, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// GeminiClient calls Google's generative language API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (g *GeminiClient) Name() string { return "gemini" }

func (g *GeminiClient) Close() error { return g.client.Close() }

func (g *GeminiClient) Complete(ctx context.Context, system, prompt string, opts CompletionOptions) (string, error) {
	model := g.client.GenerativeModel(g.model)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	model.SetTemperature(opts.Temperature)
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", ErrProviderRequest, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

// ThrottledLLM bounds the outbound request rate and retries failed calls
// with a linear backoff.
type ThrottledLLM struct {
	next    LLM
	limiter *rate.Limiter
	retries int
	backoff time.Duration
}

func NewThrottledLLM(next LLM, rps float64, retries int, backoff time.Duration) *ThrottledLLM {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if retries < 1 {
		retries = 1
	}
	return &ThrottledLLM{
		next:    next,
		limiter: rate.NewLimiter(limit, 1),
		retries: retries,
		backoff: backoff,
	}
}

func (t *ThrottledLLM) Name() string { return t.next.Name() }

// Close releases the wrapped provider when it holds a connection.
func (t *ThrottledLLM) Close() error {
	if c, ok := t.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *ThrottledLLM) Complete(ctx context.Context, system, prompt string, opts CompletionOptions) (string, error) {
	var lastErr error
	for attempt := 0; attempt < t.retries; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return "", err
		}

		out, err := t.next.Complete(ctx, system, prompt, opts)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, ErrNotConfigured) || ctx.Err() != nil {
			return "", err
		}

		logrus.WithFields(logrus.Fields{
			"provider": t.next.Name(),
			"attempt":  attempt + 1,
		}).WithError(err).Warn("AI completion failed")

		if attempt+1 < t.retries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt+1) * t.backoff):
			}
		}
	}
	return "", lastErr
}
