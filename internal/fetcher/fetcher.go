package fetcher

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/arxiv-push/internal/config"
)

// DefaultSummary is shown for papers that carry no summary.
const DefaultSummary = "No summary available"

// Paper is a research paper as returned by a paper source. Only Summary is
// ever set after the fetch.
type Paper struct {
	Title      string    `json:"title"`
	Authors    []string  `json:"authors"`
	Abstract   string    `json:"abstract"`
	URL        string    `json:"url"`
	PDFURL     string    `json:"pdf_url"`
	Published  time.Time `json:"published"`
	Categories []string  `json:"categories"`
	Summary    string    `json:"summary,omitempty"`
}

// SummaryOrDefault returns the attached summary, or DefaultSummary.
func (p Paper) SummaryOrDefault() string {
	if strings.TrimSpace(p.Summary) == "" {
		return DefaultSummary
	}
	return p.Summary
}

// PublishedDate returns the publication day as YYYY-MM-DD.
func (p Paper) PublishedDate() string {
	if p.Published.IsZero() {
		return ""
	}
	return p.Published.Format("2006-01-02")
}

// Fetcher is an interface for fetching recent research papers matching any of
// the given keywords. Implementations return at most limit papers published
// within the last windowDays days, newest first.
type Fetcher interface {
	Fetch(ctx context.Context, keywords []string, windowDays, limit int) ([]Paper, error)
}

// New creates a new fetcher based on the configuration
func New(cfg *config.Config, logger *zap.Logger) (Fetcher, error) {
	switch cfg.Fetcher.Type {
	case "arxiv":
		f := NewArxivFetcher(logger)
		f.client.Timeout = cfg.Fetcher.Timeout
		if cfg.Fetcher.BaseURL != "" {
			f.baseURL = cfg.Fetcher.BaseURL
		}
		if cfg.Fetcher.PageSize > 0 {
			f.pageSize = cfg.Fetcher.PageSize
		}
		f.retry.MaxRetries = cfg.Fetcher.Retries()
		return f, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, cfg.Fetcher.Type)
	}
}

// ErrUnsupportedType is returned when an unsupported fetcher type is specified
var ErrUnsupportedType = errors.New("unsupported fetcher type")

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CleanText collapses runs of whitespace to a single space and trims the ends.
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// FormatAuthors joins at most max authors, appending an "et al." marker with
// the total count when the list is longer.
func FormatAuthors(authors []string, max int) string {
	if len(authors) <= max {
		return strings.Join(authors, ", ")
	}
	return fmt.Sprintf("%s et al. (%d authors)", strings.Join(authors[:max], ", "), len(authors))
}
