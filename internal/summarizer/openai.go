package summarizer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/arxiv-push/internal/jsonutil"
	"github.com/ryosukesatoh/arxiv-push/internal/logger"
)

// OpenAISummarizer calls an OpenAI-compatible chat completions endpoint.
type OpenAISummarizer struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	client    *http.Client
	logger    *zap.Logger
}

func NewOpenAISummarizer(apiKey, model string, maxTokens int, l *zap.Logger) *OpenAISummarizer {
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &OpenAISummarizer{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		baseURL:   "https://api.openai.com/v1",
		client:    &http.Client{Timeout: 60 * time.Second},
		logger:    logger.OrNop(l),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, title, abstract string, lang Language) string {
	text, err := s.complete(ctx, []chatMessage{
		{Role: "system", Content: systemPrompt(lang)},
		{Role: "user", Content: buildPrompt(title, abstract, lang)},
	})
	if err != nil {
		s.logger.Warn("Summary generation failed", zap.String("title", title), zap.Error(err))
		return failure(lang, err)
	}
	return text
}

func (s *OpenAISummarizer) complete(ctx context.Context, messages []chatMessage) (string, error) {
	jsonData, err := jsonutil.Marshal(chatRequest{
		Model:       s.model,
		Messages:    messages,
		MaxTokens:   s.maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("openai: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: failed to read response: %w", err)
	}

	var apiResp chatResponse
	if err := jsonutil.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("openai: failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("openai: API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai: unexpected status %d", resp.StatusCode)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty response")
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}
