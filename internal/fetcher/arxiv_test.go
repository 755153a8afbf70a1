package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ryosukesatoh/arxiv-push/internal/retry"
)

const sampleAtomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2501.01234v1</id>
    <title>  Sample Paper
      Title  </title>
    <summary>  This is the abstract of the paper.  </summary>
    <author><name> Alice </name></author>
    <author><name> Bob </name></author>
    <link href="http://arxiv.org/abs/2501.01234v1" rel="alternate" type="text/html"/>
    <link href="http://arxiv.org/pdf/2501.01234v1" rel="related" title="pdf" type="application/pdf"/>
    <published>2025-01-15T09:00:00Z</published>
    <category term="cs.AI"/>
    <category term="cs.LG"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2501.05678v2</id>
    <title>Another Paper</title>
    <summary>Second abstract.</summary>
    <author><name>Charlie</name></author>
    <link href="http://arxiv.org/abs/2501.05678v2" rel="alternate" type="text/html"/>
    <published>2025-01-14T23:30:00Z</published>
    <category term="cs.CL"/>
  </entry>
</feed>`

var fixedNow = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestFetcher(ts *httptest.Server) *ArxivFetcher {
	f := NewArxivFetcher(nil)
	f.client = ts.Client()
	f.baseURL = ts.URL
	f.retry = retry.None
	f.now = func() time.Time { return fixedNow }
	return f
}

func TestFetchParsesAtomFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(sampleAtomFeed))
	}))
	defer ts.Close()

	papers, err := newTestFetcher(ts).Fetch(context.Background(), []string{"machine learning"}, 1, 10)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(papers) != 2 {
		t.Fatalf("Expected 2 papers, got %d", len(papers))
	}

	p := papers[0]
	if p.Title != "Sample Paper Title" {
		t.Errorf("Expected cleaned title 'Sample Paper Title', got %q", p.Title)
	}
	if p.Abstract != "This is the abstract of the paper." {
		t.Errorf("Expected trimmed abstract, got %q", p.Abstract)
	}
	if len(p.Authors) != 2 || p.Authors[0] != "Alice" || p.Authors[1] != "Bob" {
		t.Errorf("Expected authors [Alice Bob], got %v", p.Authors)
	}
	if p.URL != "http://arxiv.org/abs/2501.01234v1" {
		t.Errorf("Expected entry id as URL, got %q", p.URL)
	}
	if p.PDFURL != "http://arxiv.org/pdf/2501.01234v1" {
		t.Errorf("Expected pdf link, got %q", p.PDFURL)
	}
	if len(p.Categories) != 2 || p.Categories[0] != "cs.AI" || p.Categories[1] != "cs.LG" {
		t.Errorf("Expected categories [cs.AI cs.LG], got %v", p.Categories)
	}
	if p.PublishedDate() != "2025-01-15" {
		t.Errorf("Unexpected published date: %v", p.Published)
	}

	p2 := papers[1]
	if p2.PDFURL != "http://arxiv.org/pdf/2501.05678v2" {
		t.Errorf("Expected pdf URL derived from abs URL, got %q", p2.PDFURL)
	}
}

func TestFetchQueryParameters(t *testing.T) {
	var receivedQuery url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer ts.Close()

	_, err := newTestFetcher(ts).Fetch(context.Background(), []string{"quantum computing", "transformer"}, 1, 5)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	wantQuery := `(ti:"quantum computing" OR abs:"quantum computing") OR (ti:"transformer" OR abs:"transformer")`
	if got := receivedQuery.Get("search_query"); got != wantQuery {
		t.Errorf("search_query = %q, want %q", got, wantQuery)
	}
	checks := map[string]string{
		"start":       "0",
		"max_results": "10", // 2x over-fetch
		"sortBy":      "submittedDate",
		"sortOrder":   "descending",
	}
	for k, want := range checks {
		if got := receivedQuery.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		want     string
	}{
		{"empty", nil, ""},
		{"blank keywords skipped", []string{" ", ""}, ""},
		{"single", []string{"rl"}, `(ti:"rl" OR abs:"rl")`},
		{"quotes stripped", []string{`"diffusion"`}, `(ti:"diffusion" OR abs:"diffusion")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.keywords); got != tt.want {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.keywords, got, tt.want)
			}
		})
	}
}

func TestFetchEmptyKeywordsMakesNoRequest(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	papers, err := newTestFetcher(ts).Fetch(context.Background(), nil, 1, 5)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(papers) != 0 || called {
		t.Errorf("Expected no papers and no request, got %d papers, called=%v", len(papers), called)
	}
}

// catalog serves a descending-by-date list of entries honoring start/max_results.
type catalog struct {
	mu       sync.Mutex
	days     []int // days before fixedNow, one entry each
	requests []url.Values
}

func (c *catalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c.mu.Lock()
	c.requests = append(c.requests, q)
	c.mu.Unlock()

	start, _ := strconv.Atoi(q.Get("start"))
	size, _ := strconv.Atoi(q.Get("max_results"))

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><feed xmlns="http://www.w3.org/2005/Atom">`)
	for i := start; i < start+size && i < len(c.days); i++ {
		published := fixedNow.AddDate(0, 0, -c.days[i])
		fmt.Fprintf(&sb, `<entry><id>http://arxiv.org/abs/2501.%05dv1</id><title>Paper %d</title><summary>abs</summary><published>%s</published></entry>`,
			i, i, published.Format(time.RFC3339))
	}
	sb.WriteString(`</feed>`)
	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(sb.String()))
}

func TestFetchDateWindow(t *testing.T) {
	days := []int{0, 0, 1, 2, 3, 5, 8}
	tests := []struct {
		window int
		want   int
	}{
		{0, 2},
		{1, 3},
		{2, 4},
		{3, 5},
		{10, 7},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("window_%d", tt.window), func(t *testing.T) {
			ts := httptest.NewServer(&catalog{days: days})
			defer ts.Close()

			papers, err := newTestFetcher(ts).Fetch(context.Background(), []string{"x"}, tt.window, 50)
			if err != nil {
				t.Fatalf("Fetch returned error: %v", err)
			}
			if len(papers) != tt.want {
				t.Fatalf("Expected %d papers, got %d", tt.want, len(papers))
			}

			cutoff := cutoffDay(fixedNow, tt.window)
			for _, p := range papers {
				if publishedDay(p.Published, time.UTC).Before(cutoff) {
					t.Errorf("Paper %q published %s is before cutoff %s", p.Title, p.Published, cutoff)
				}
			}
		})
	}
}

func TestFetchDayBoundaryIgnoresTimeOfDay(t *testing.T) {
	// Published late on the cutoff day itself must be kept.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom">
<entry><id>http://arxiv.org/abs/1</id><title>edge</title><published>2025-01-14T00:00:01Z</published></entry>
<entry><id>http://arxiv.org/abs/2</id><title>old</title><published>2025-01-13T23:59:59Z</published></entry>
</feed>`))
	}))
	defer ts.Close()

	papers, err := newTestFetcher(ts).Fetch(context.Background(), []string{"x"}, 1, 10)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(papers) != 1 || papers[0].Title != "edge" {
		t.Fatalf("Expected only the paper from the cutoff day, got %+v", papers)
	}
}

func TestFetchStopsAtLimit(t *testing.T) {
	cat := &catalog{days: []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0}}
	ts := httptest.NewServer(cat)
	defer ts.Close()

	f := newTestFetcher(ts)
	f.pageSize = 2

	papers, err := f.Fetch(context.Background(), []string{"x"}, 1, 3)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(papers) != 3 {
		t.Fatalf("Expected 3 papers, got %d", len(papers))
	}
	for i, p := range papers {
		if p.Title != fmt.Sprintf("Paper %d", i) {
			t.Errorf("Expected fetch order to be preserved, got %q at %d", p.Title, i)
		}
	}
	// Pages of 2: the second page satisfies the limit, no third request.
	if len(cat.requests) != 2 {
		t.Errorf("Expected 2 page requests, got %d", len(cat.requests))
	}
}

func TestFetchOverFetchBudget(t *testing.T) {
	// Only old papers: the fetcher gives up after reading 2*limit records.
	cat := &catalog{days: []int{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}}
	ts := httptest.NewServer(cat)
	defer ts.Close()

	f := newTestFetcher(ts)
	f.pageSize = 3

	papers, err := f.Fetch(context.Background(), []string{"x"}, 1, 4)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(papers) != 0 {
		t.Fatalf("Expected 0 papers, got %d", len(papers))
	}

	read := 0
	for _, q := range cat.requests {
		n, _ := strconv.Atoi(q.Get("max_results"))
		read += n
	}
	if read != 8 {
		t.Errorf("Expected 8 records requested in total, got %d", read)
	}
}

func TestFetchShortPageEndsPaging(t *testing.T) {
	cat := &catalog{days: []int{0, 9, 9}}
	ts := httptest.NewServer(cat)
	defer ts.Close()

	f := newTestFetcher(ts)
	f.pageSize = 5

	papers, err := f.Fetch(context.Background(), []string{"x"}, 1, 10)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("Expected 1 paper, got %d", len(papers))
	}
	if len(cat.requests) != 1 {
		t.Errorf("Expected a single request, got %d", len(cat.requests))
	}
}

func TestFetchBadStatusCode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := newTestFetcher(ts).Fetch(context.Background(), []string{"test"}, 1, 5)
	if err == nil {
		t.Fatal("Expected error for 500 status code")
	}
	if !strings.Contains(err.Error(), "unexpected status 500") {
		t.Errorf("Expected 'unexpected status 500' error, got: %v", err)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(sampleAtomFeed))
	}))
	defer ts.Close()

	f := newTestFetcher(ts)
	f.retry = retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond}

	papers, err := f.Fetch(context.Background(), []string{"test"}, 1, 5)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(papers) != 2 {
		t.Errorf("Expected 2 papers after retry, got %d", len(papers))
	}
	if calls != 2 {
		t.Errorf("Expected 2 requests, got %d", calls)
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	f := newTestFetcher(ts)
	f.retry = retry.Config{MaxRetries: 3, BaseDelay: time.Millisecond}

	if _, err := f.Fetch(context.Background(), []string{"test"}, 1, 5); err == nil {
		t.Fatal("Expected error for 400 status code")
	}
	if calls != 1 {
		t.Errorf("Expected a single request, got %d", calls)
	}
}

func TestFetchInvalidXML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte("this is not xml"))
	}))
	defer ts.Close()

	_, err := newTestFetcher(ts).Fetch(context.Background(), []string{"test"}, 1, 5)
	if err == nil {
		t.Fatal("Expected error for invalid XML")
	}
	if !strings.Contains(err.Error(), "failed to parse XML") {
		t.Errorf("Expected 'failed to parse XML' error, got: %v", err)
	}
}

func TestFetchTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	f := newTestFetcher(ts)
	ts.Close()

	_, err := f.Fetch(context.Background(), []string{"test"}, 1, 5)
	if err == nil {
		t.Fatal("Expected error for closed server")
	}
	if !strings.Contains(err.Error(), "request failed") {
		t.Errorf("Expected 'request failed' error, got: %v", err)
	}
}

func TestFetchEmptyFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer ts.Close()

	papers, err := newTestFetcher(ts).Fetch(context.Background(), []string{"test"}, 1, 5)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(papers) != 0 {
		t.Errorf("Expected 0 papers, got %d", len(papers))
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("  We   propose\n\ta new\r\n  method.  ")
	if got != "We propose a new method." {
		t.Errorf("CleanText = %q", got)
	}
}

func TestFormatAuthors(t *testing.T) {
	tests := []struct {
		authors []string
		want    string
	}{
		{nil, ""},
		{[]string{"A"}, "A"},
		{[]string{"A", "B", "C"}, "A, B, C"},
		{[]string{"A", "B", "C", "D", "E"}, "A, B, C et al. (5 authors)"},
	}
	for _, tt := range tests {
		if got := FormatAuthors(tt.authors, 3); got != tt.want {
			t.Errorf("FormatAuthors(%v) = %q, want %q", tt.authors, got, tt.want)
		}
	}
}

func TestSummaryOrDefault(t *testing.T) {
	if got := (Paper{}).SummaryOrDefault(); got != DefaultSummary {
		t.Errorf("Expected default summary, got %q", got)
	}
	if got := (Paper{Summary: "short"}).SummaryOrDefault(); got != "short" {
		t.Errorf("Expected attached summary, got %q", got)
	}
}
