package fetcher

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/arxiv-push/internal/logger"
	"github.com/ryosukesatoh/arxiv-push/internal/retry"
)

// arXiv Atom feed XML structures

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string          `xml:"id"`
	Title     string          `xml:"title"`
	Summary   string          `xml:"summary"`
	Authors   []arxivAuthor   `xml:"author"`
	Links     []arxivLink     `xml:"link"`
	Published string          `xml:"published"`
	Category  []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Type  string `xml:"type,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// ArxivFetcher fetches papers from the arXiv API.
type ArxivFetcher struct {
	client   *http.Client
	baseURL  string
	pageSize int
	retry    retry.Config
	now      func() time.Time
	logger   *zap.Logger
}

func NewArxivFetcher(l *zap.Logger) *ArxivFetcher {
	return &ArxivFetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  "http://export.arxiv.org/api/query",
		pageSize: 100,
		retry:    retry.Config{MaxRetries: 2, BaseDelay: 3 * time.Second},
		now:      time.Now,
		logger:   logger.OrNop(l),
	}
}

// Fetch searches title and abstract for any of the keywords, newest
// submissions first. It reads at most 2*limit records because the date filter
// runs client side, and stops paging as soon as limit records pass it.
func (f *ArxivFetcher) Fetch(ctx context.Context, keywords []string, windowDays, limit int) ([]Paper, error) {
	query := buildQuery(keywords)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	budget := 2 * limit
	cutoff := cutoffDay(f.now(), windowDays)

	papers := make([]Paper, 0, limit)
	for start := 0; start < budget; {
		size := min(f.pageSize, budget-start)
		var entries []arxivEntry
		err := retry.Do(ctx, f.retry, func(ctx context.Context) error {
			var err error
			entries, err = f.fetchPage(ctx, query, start, size)
			return err
		})
		if err != nil {
			f.logger.Error("arXiv search failed",
				zap.Strings("keywords", keywords),
				zap.Int("start", start),
				zap.Error(err),
			)
			return nil, err
		}

		for _, entry := range entries {
			p := entry.toPaper()
			if publishedDay(p.Published, cutoff.Location()).Before(cutoff) {
				continue
			}
			papers = append(papers, p)
			if len(papers) >= limit {
				return papers, nil
			}
		}

		// A short page means the result set is exhausted.
		if len(entries) < size {
			break
		}
		start += len(entries)
	}

	f.logger.Debug("arXiv search finished",
		zap.Strings("keywords", keywords),
		zap.Int("papers", len(papers)),
	)
	return papers, nil
}

func (f *ArxivFetcher) fetchPage(ctx context.Context, query string, start, size int) ([]arxivEntry, error) {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(size))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	reqURL := fmt.Sprintf("%s?%s", f.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv: failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.StatusError{Service: "arxiv", Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("arxiv: failed to read response: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, retry.Permanent(fmt.Errorf("arxiv: failed to parse XML: %w", err))
	}
	return feed.Entries, nil
}

// buildQuery ORs together one (ti OR abs) clause per keyword.
func buildQuery(keywords []string) string {
	var parts []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ReplaceAll(kw, `"`, ""))
		if kw == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf(`(ti:"%s" OR abs:"%s")`, kw, kw))
	}
	return strings.Join(parts, " OR ")
}

// cutoffDay is the first calendar day still inside the window.
func cutoffDay(now time.Time, windowDays int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d-windowDays, 0, 0, 0, 0, now.Location())
}

// publishedDay strips the time of day in loc, so timezone skew cannot move a
// paper across the cutoff.
func publishedDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func (e arxivEntry) toPaper() Paper {
	published, _ := time.Parse(time.RFC3339, strings.TrimSpace(e.Published))

	authors := make([]string, len(e.Authors))
	for i, a := range e.Authors {
		authors[i] = strings.TrimSpace(a.Name)
	}

	var paperURL, pdfURL string
	for _, link := range e.Links {
		switch {
		case link.Title == "pdf" || link.Type == "application/pdf":
			pdfURL = link.Href
		case link.Rel == "alternate" && paperURL == "":
			paperURL = link.Href
		}
	}
	if id := strings.TrimSpace(e.ID); id != "" {
		paperURL = id
	}
	if pdfURL == "" && strings.Contains(paperURL, "/abs/") {
		pdfURL = strings.Replace(paperURL, "/abs/", "/pdf/", 1)
	}

	categories := make([]string, 0, len(e.Category))
	for _, c := range e.Category {
		categories = append(categories, c.Term)
	}

	return Paper{
		Title:      CleanText(e.Title),
		Authors:    authors,
		Abstract:   strings.TrimSpace(e.Summary),
		URL:        paperURL,
		PDFURL:     pdfURL,
		Published:  published,
		Categories: categories,
	}
}
