package summarizer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ryosukesatoh/arxiv-push/internal/logger"
)

// GeminiSummarizer uses the Gemini API through the genai SDK.
type GeminiSummarizer struct {
	client    *genai.Client
	model     string
	maxTokens int32
	logger    *zap.Logger
}

// NewGeminiSummarizer creates the genai client. baseURL is optional and only
// overrides the API endpoint.
func NewGeminiSummarizer(ctx context.Context, apiKey, model string, maxTokens int, baseURL string, l *zap.Logger) (*GeminiSummarizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if maxTokens <= 0 {
		maxTokens = 300
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	return &GeminiSummarizer{
		client:    client,
		model:     model,
		maxTokens: int32(maxTokens),
		logger:    logger.OrNop(l),
	}, nil
}

func (s *GeminiSummarizer) Summarize(ctx context.Context, title, abstract string, lang Language) string {
	resp, err := s.client.Models.GenerateContent(ctx,
		s.model,
		genai.Text(buildPrompt(title, abstract, lang)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt(lang), genai.RoleUser),
			MaxOutputTokens:   s.maxTokens,
			Temperature:       genai.Ptr[float32](temperature),
		},
	)
	if err != nil {
		err = fmt.Errorf("gemini: generate content: %w", err)
		s.logger.Warn("Summary generation failed", zap.String("title", title), zap.Error(err))
		return failure(lang, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		err := fmt.Errorf("gemini: empty response")
		s.logger.Warn("Summary generation failed", zap.String("title", title), zap.Error(err))
		return failure(lang, err)
	}
	return text
}
