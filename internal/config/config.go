package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Keywords   []string         `yaml:"keywords"`
	DaysBack   *int             `yaml:"days_back"`
	MaxResults int              `yaml:"max_results"`
	Language   string           `yaml:"language"`
	Schedule   string           `yaml:"schedule"`
	RunOnStart bool             `yaml:"run_on_start"`
	Fetcher    FetcherConfig    `yaml:"fetcher"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Output     OutputConfig     `yaml:"output"`
	Publisher  PublisherConfig  `yaml:"publisher"`
	Server     ServerConfig     `yaml:"server"`
	History    HistoryConfig    `yaml:"history"`
	Log        LogConfig        `yaml:"log"`
}

type FetcherConfig struct {
	Type     string        `yaml:"type"`
	BaseURL  string        `yaml:"base_url"`
	PageSize int           `yaml:"page_size"`
	Timeout  time.Duration `yaml:"timeout"`
	// MaxRetries is nil when unset so that an explicit 0 disables retrying.
	MaxRetries *int `yaml:"max_retries"`
}

// Retries returns the number of retries for a failed page request, 2 when unset.
func (f FetcherConfig) Retries() int {
	if f.MaxRetries == nil {
		return 2
	}
	return *f.MaxRetries
}

type SummarizerConfig struct {
	Type      string        `yaml:"type"`
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

type OutputConfig struct {
	Dir     string   `yaml:"dir"`
	Formats []string `yaml:"formats"`
	NoSave  bool     `yaml:"no_save"`
}

type PublisherConfig struct {
	Types   []string      `yaml:"types"`
	Email   EmailConfig   `yaml:"email"`
	Discord DiscordConfig `yaml:"discord"`
}

type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type EmailConfig struct {
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type HistoryConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Summarizer types. SummarizerAuto is resolved once by ResolvedSummarizerType.
const (
	SummarizerAuto      = "auto"
	SummarizerNone      = "none"
	SummarizerOpenAI    = "openai"
	SummarizerAnthropic = "anthropic"
	SummarizerGemini    = "gemini"
)

// DefaultKeywords are used when the config file lists none.
var DefaultKeywords = []string{
	"machine learning",
	"deep learning",
	"artificial intelligence",
	"neural networks",
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// GetDaysBack returns the lookback window in days. An absent days_back means 1.
func (c *Config) GetDaysBack() int {
	if c.DaysBack == nil {
		return 1
	}
	return *c.DaysBack
}

// GetKeywordsString returns a comma-separated string of all keywords for display.
func (c *Config) GetKeywordsString() string {
	return strings.Join(c.Keywords, ", ")
}

// ResolvedSummarizerType maps "auto" to "openai" when an API key is present
// and to "none" otherwise. Explicit types are returned as-is.
func (c *Config) ResolvedSummarizerType() string {
	if c.Summarizer.Type != SummarizerAuto {
		return c.Summarizer.Type
	}
	if c.Summarizer.APIKey == "" || envVarRegex.MatchString(c.Summarizer.APIKey) {
		return SummarizerNone
	}
	return SummarizerOpenAI
}

// HistoryPath returns the history database path, or "" when history is disabled.
func (c *Config) HistoryPath() string {
	if c.History.Disabled {
		return ""
	}
	return c.History.Path
}

// NormalizeLanguage maps accepted language spellings onto "chinese" or
// "english". ok is false for anything else.
func NormalizeLanguage(s string) (lang string, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chinese", "zh", "zh-cn", "cn":
		return "chinese", true
	case "english", "en", "en-us":
		return "english", true
	}
	return "", false
}

func setDefaults(cfg *Config) {
	var keywords []string
	for _, k := range cfg.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	cfg.Keywords = keywords
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = append([]string(nil), DefaultKeywords...)
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = 10
	}
	if cfg.Language == "" {
		cfg.Language = "chinese"
	}
	if lang, ok := NormalizeLanguage(cfg.Language); ok {
		cfg.Language = lang
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "09:00"
	}
	if cfg.Fetcher.Type == "" {
		cfg.Fetcher.Type = "arxiv"
	}
	if cfg.Fetcher.PageSize == 0 {
		cfg.Fetcher.PageSize = 100
	}
	if cfg.Fetcher.Timeout == 0 {
		cfg.Fetcher.Timeout = 30 * time.Second
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = SummarizerAuto
	}
	if cfg.Summarizer.MaxTokens == 0 {
		cfg.Summarizer.MaxTokens = 300
	}
	if cfg.Summarizer.Timeout == 0 {
		cfg.Summarizer.Timeout = 60 * time.Second
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "reports"
	}
	if len(cfg.Output.Formats) == 0 {
		cfg.Output.Formats = []string{"html"}
	}
	if len(cfg.Publisher.Types) == 0 {
		cfg.Publisher.Types = []string{"stdout"}
	}
	if cfg.Publisher.Email.SMTPPort == 0 {
		cfg.Publisher.Email.SMTPPort = 587
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":52948"
	}
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(cfg.Output.Dir, "history.db")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func validate(cfg *Config) error {
	if cfg.GetDaysBack() < 0 {
		return fmt.Errorf("config: days_back must be >= 0, got %d", cfg.GetDaysBack())
	}
	if cfg.MaxResults < 0 {
		return fmt.Errorf("config: max_results must be > 0, got %d", cfg.MaxResults)
	}
	if _, ok := NormalizeLanguage(cfg.Language); !ok {
		return fmt.Errorf("config: unsupported language %q (supported: chinese, english)", cfg.Language)
	}
	if cfg.Fetcher.Type != "arxiv" {
		return fmt.Errorf("config: unsupported fetcher type %q (supported: arxiv)", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.Retries() < 0 {
		return fmt.Errorf("config: fetcher.max_retries must be >= 0, got %d", cfg.Fetcher.Retries())
	}
	if cfg.Fetcher.PageSize < 0 {
		return fmt.Errorf("config: fetcher.page_size must be > 0, got %d", cfg.Fetcher.PageSize)
	}
	switch cfg.Summarizer.Type {
	case SummarizerAuto, SummarizerNone:
	case SummarizerOpenAI, SummarizerAnthropic, SummarizerGemini:
		if cfg.Summarizer.APIKey == "" || envVarRegex.MatchString(cfg.Summarizer.APIKey) {
			return fmt.Errorf("config: summarizer.api_key is required for summarizer type %q", cfg.Summarizer.Type)
		}
	default:
		return fmt.Errorf("config: unsupported summarizer type %q (supported: auto, none, openai, anthropic, gemini)", cfg.Summarizer.Type)
	}
	for _, f := range cfg.Output.Formats {
		switch strings.ToLower(f) {
		case "html", "markdown", "md":
		default:
			return fmt.Errorf("config: unsupported output format %q (supported: html, markdown)", f)
		}
	}
	for _, t := range cfg.Publisher.Types {
		switch t {
		case "stdout", "file", "email", "discord":
		default:
			return fmt.Errorf("config: unsupported publisher type %q (supported: stdout, file, email, discord)", t)
		}
		if t == "discord" && cfg.Publisher.Discord.WebhookURL == "" {
			return fmt.Errorf("config: publisher.discord.webhook_url is required for discord publisher")
		}
		if t == "email" {
			if cfg.Publisher.Email.SMTPHost == "" {
				return fmt.Errorf("config: publisher.email.smtp_host is required for email publisher")
			}
			if len(cfg.Publisher.Email.To) == 0 {
				return fmt.Errorf("config: publisher.email.to is required for email publisher")
			}
			if cfg.Publisher.Email.From == "" {
				return fmt.Errorf("config: publisher.email.from is required for email publisher")
			}
		}
	}
	return nil
}

// Default returns a validated configuration built purely from defaults.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

// Load reads the config file, expands environment variables, applies defaults,
// and validates the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
