package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/arxiv-push/internal/config"
)

// Language selects the language of generated summaries.
type Language string

const (
	Chinese Language = "chinese"
	English Language = "english"
)

// ParseLanguage accepts "chinese"/"english" and their short forms.
func ParseLanguage(s string) (Language, error) {
	lang, ok := config.NormalizeLanguage(s)
	if !ok {
		return "", fmt.Errorf("summarizer: unsupported language %q (supported: chinese, english)", s)
	}
	return Language(lang), nil
}

// Summarizer produces a short synopsis of a single paper. Implementations
// never fail: errors are turned into a displayable placeholder.
type Summarizer interface {
	Summarize(ctx context.Context, title, abstract string, lang Language) string
}

// ErrUnsupportedType is returned when an unsupported summarizer type is specified
var ErrUnsupportedType = errors.New("unsupported summarizer type")

// New resolves the configured summarizer once. "auto" becomes the OpenAI
// provider when an API key is configured and the fallback otherwise.
func New(cfg *config.Config, logger *zap.Logger) (Summarizer, error) {
	sc := cfg.Summarizer
	switch cfg.ResolvedSummarizerType() {
	case config.SummarizerNone:
		return NewFallback(), nil
	case config.SummarizerOpenAI:
		s := NewOpenAISummarizer(sc.APIKey, sc.Model, sc.MaxTokens, logger)
		s.client.Timeout = sc.Timeout
		if sc.BaseURL != "" {
			s.baseURL = strings.TrimRight(sc.BaseURL, "/")
		}
		return s, nil
	case config.SummarizerAnthropic:
		s := NewAnthropicSummarizer(sc.APIKey, sc.Model, sc.MaxTokens, logger)
		s.client.Timeout = sc.Timeout
		if sc.BaseURL != "" {
			s.baseURL = strings.TrimRight(sc.BaseURL, "/")
		}
		return s, nil
	case config.SummarizerGemini:
		return NewGeminiSummarizer(context.Background(), sc.APIKey, sc.Model, sc.MaxTokens, sc.BaseURL, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, sc.Type)
	}
}

// Enhanced reports whether s calls an external text-generation service.
func Enhanced(s Summarizer) bool {
	_, fallback := s.(*Fallback)
	return !fallback
}

const temperature = 0.3

func systemPrompt(lang Language) string {
	if lang == Chinese {
		return "你是一个专业的学术论文总结助手。"
	}
	return "You are a professional assistant for summarizing academic papers."
}

func buildPrompt(title, abstract string, lang Language) string {
	if lang == Chinese {
		return fmt.Sprintf(`请为以下学术论文生成一个简洁的中文总结（不超过150字）：

标题：%s

摘要：%s

请概括：
1. 研究重点
2. 核心方法或贡献
3. 实际应用价值`, title, abstract)
	}
	return fmt.Sprintf(`Write a concise summary (at most 150 words) of the following academic paper.

Title: %s

Abstract: %s

Cover:
1. The research focus
2. The key method or contribution
3. The practical value`, title, abstract)
}

// failure renders a provider error as the summary text.
func failure(lang Language, err error) string {
	if lang == Chinese {
		return fmt.Sprintf("无法生成总结: %v", err)
	}
	return fmt.Sprintf("Unable to generate summary: %v", err)
}
