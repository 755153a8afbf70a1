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

// AnthropicSummarizer uses the Anthropic Messages API to summarize papers.
type AnthropicSummarizer struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	client    *http.Client
	logger    *zap.Logger
}

func NewAnthropicSummarizer(apiKey, model string, maxTokens int, l *zap.Logger) *AnthropicSummarizer {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &AnthropicSummarizer{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		baseURL:   "https://api.anthropic.com/v1",
		client:    &http.Client{Timeout: 60 * time.Second},
		logger:    logger.OrNop(l),
	}
}

// Anthropic API request/response types

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (s *AnthropicSummarizer) Summarize(ctx context.Context, title, abstract string, lang Language) string {
	text, err := s.callAPI(ctx, systemPrompt(lang), buildPrompt(title, abstract, lang))
	if err != nil {
		s.logger.Warn("Summary generation failed", zap.String("title", title), zap.Error(err))
		return failure(lang, err)
	}
	return text
}

func (s *AnthropicSummarizer) callAPI(ctx context.Context, system, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		System:      system,
		Temperature: temperature,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonData, err := jsonutil.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("anthropic: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("anthropic: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: failed to read response: %w", err)
	}

	var apiResp anthropicResponse
	if err := jsonutil.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("anthropic: failed to parse response (status %d): %w", resp.StatusCode, err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("anthropic: API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic: unexpected status %d", resp.StatusCode)
	}

	var sb strings.Builder
	for _, c := range apiResp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("anthropic: empty response")
	}
	return text, nil
}
