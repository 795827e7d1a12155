// Package gpt rewrites a finished transcript with an OpenAI chat model,
// driven by a user-editable prompt.
package gpt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultModel      = openai.GPT4
	DefaultPromptPath = "default_prompt.txt"
	DefaultPrompt     = "以下の文章を英語に翻訳してください。"

	systemPrompt = "You are a helpful assistant."
	// placeholderKey is what config.example.json ships with.
	placeholderKey = "YOUR_OPENAI_API_KEY"
)

var (
	ErrNoAPIKey      = errors.New("openaiApiKey is not set")
	ErrEmptyPrompt   = errors.New("prompt is empty")
	ErrEmptyResponse = errors.New("chat completion returned no choices")
)

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Processor struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func New(opts Options) (*Processor, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" || key == placeholderKey {
		return nil, ErrNoAPIKey
	}

	clientConfig := openai.DefaultConfig(key)
	if opts.BaseURL != "" {
		clientConfig.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		clientConfig.HTTPClient = opts.HTTPClient
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Processor{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger,
	}, nil
}

// Process sends prompt and text as one user message and returns the
// trimmed reply.
func (p *Processor) Process(ctx context.Context, prompt, text string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	request := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt + "\n\n" + text},
		},
	}

	started := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, request)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion (status %d): %s: %w", apiErr.HTTPStatusCode, apiErr.Message, err)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	p.logger.Info("chat completion finished",
		zap.String("model", p.model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(started)),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// LoadPrompt reads the prompt file. A missing file is created with
// DefaultPrompt.
func LoadPrompt(path string) (string, error) {
	if path == "" {
		path = DefaultPromptPath
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := SavePrompt(path, DefaultPrompt); err != nil {
			return "", err
		}
		return DefaultPrompt, nil
	}
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", path, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func SavePrompt(path, prompt string) error {
	if path == "" {
		path = DefaultPromptPath
	}
	if err := os.WriteFile(path, []byte(prompt), 0o644); err != nil {
		return fmt.Errorf("save prompt %s: %w", path, err)
	}
	return nil
}

// OutputPath places "<stem>_gpt_<layout>.txt" next to inputPath.
func OutputPath(inputPath, layout string, at time.Time) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(inputPath), fmt.Sprintf("%s_gpt_%s.txt", stem, at.Format(layout)))
}
