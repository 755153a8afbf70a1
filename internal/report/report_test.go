package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryosukesatoh/arxiv-push/internal/fetcher"
	"github.com/ryosukesatoh/arxiv-push/internal/summarizer"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func fixedRenderer(lang summarizer.Language) *Renderer {
	return &Renderer{Now: func() time.Time { return fixedNow }, Language: lang}
}

func samplePapers() []fetcher.Paper {
	return []fetcher.Paper{
		{
			Title:      "Scaling Laws for <Sparse> Transformers",
			Authors:    []string{"Ada", "Grace", "Alan", "Edsger", "Barbara"},
			URL:        "http://arxiv.org/abs/2503.00001v1",
			PDFURL:     "http://arxiv.org/pdf/2503.00001v1",
			Published:  time.Date(2025, 3, 13, 17, 0, 0, 0, time.UTC),
			Categories: []string{"cs.LG", "cs.CL"},
			Summary:    "Sparse models scale predictably.",
		},
		{
			Title:     "Graph Networks",
			Authors:   []string{"Donald", "Leslie"},
			URL:       "http://arxiv.org/abs/2503.00002v1",
			Published: time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC),
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"html", HTML, false},
		{"HTML", HTML, false},
		{"markdown", Markdown, false},
		{"md", Markdown, false},
		{"console", Console, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "arxiv_report_20250314_092653.html", Filename(fixedNow, HTML))
	assert.Equal(t, "arxiv_report_20250314_092653.md", Filename(fixedNow, Markdown))
}

func TestRenderTruncatesAuthorsInEveryFormat(t *testing.T) {
	r := fixedRenderer(summarizer.English)
	for _, f := range []Format{HTML, Markdown, Console} {
		t.Run(string(f), func(t *testing.T) {
			out, err := r.Render(f, samplePapers(), []string{"transformer"})
			require.NoError(t, err)
			s := string(out)
			assert.Contains(t, s, "Ada, Grace, Alan et al. (5 authors)")
			assert.NotContains(t, s, "Edsger")
			assert.NotContains(t, s, "Barbara")
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	r := fixedRenderer(summarizer.Chinese)
	for _, f := range []Format{HTML, Markdown, Console} {
		a, err := r.Render(f, samplePapers(), []string{"llm", "agent"})
		require.NoError(t, err)
		b, err := r.Render(f, samplePapers(), []string{"llm", "agent"})
		require.NoError(t, err)
		assert.True(t, bytes.Equal(a, b), "format %s not byte-identical", f)
	}
}

func TestRenderDoesNotMutatePapers(t *testing.T) {
	papers := samplePapers()
	_, err := fixedRenderer(summarizer.English).Render(HTML, papers, nil)
	require.NoError(t, err)
	assert.Len(t, papers[0].Authors, 5)
	assert.Empty(t, papers[1].Summary)
}

func TestRenderHTMLDocument(t *testing.T) {
	out, err := fixedRenderer(summarizer.English).Render(HTML, samplePapers(), []string{"transformer", "graph"})
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(out))
	require.NoError(t, err)

	assert.Equal(t, "en", doc.Find("html").AttrOr("lang", ""))
	assert.Equal(t, "arXiv Paper Digest - March 14, 2025", doc.Find("title").Text())
	assert.Equal(t, "Keywords: transformer, graph", doc.Find(".keywords").Text())
	assert.Equal(t, "2 papers found", doc.Find(".count").Text())

	papers := doc.Find(".paper")
	require.Equal(t, 2, papers.Length())

	first := papers.First()
	assert.Equal(t, "1. Scaling Laws for <Sparse> Transformers", first.Find(".paper-title").Text())
	assert.Equal(t, "http://arxiv.org/pdf/2503.00001v1", first.Find("a.pdf-link").AttrOr("href", ""))
	assert.Contains(t, first.Find(".categories").Text(), "cs.LG, cs.CL")
	assert.Contains(t, first.Find(".published").Text(), "2025-03-13")

	second := papers.Eq(1)
	assert.Contains(t, second.Find(".paper-summary").Text(), fetcher.DefaultSummary)
	assert.Equal(t, 0, second.Find("a.pdf-link").Length())
	assert.Equal(t, 0, second.Find(".categories").Length())

	assert.Contains(t, doc.Find(".footer").Text(), "2025-03-14 09:26:53")
}

func TestRenderHTMLEscapesTitles(t *testing.T) {
	out, err := fixedRenderer(summarizer.English).Render(HTML, samplePapers(), nil)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<Sparse>")
	assert.Contains(t, string(out), "&lt;Sparse&gt;")
}

func TestRenderMarkdown(t *testing.T) {
	out, err := fixedRenderer(summarizer.Chinese).Render(Markdown, samplePapers(), []string{"transformer"})
	require.NoError(t, err)
	s := string(out)

	assert.True(t, strings.HasPrefix(s, "# arXiv 论文日报\n"))
	assert.Contains(t, s, "**日期**: 2025年03月14日")
	assert.Contains(t, s, "**论文数量**: 2")
	assert.Contains(t, s, "## 1. Scaling Laws for <Sparse> Transformers")
	assert.Contains(t, s, "- [下载PDF](http://arxiv.org/pdf/2503.00001v1)")
	assert.Contains(t, s, "## 2. Graph Networks")
	assert.Contains(t, s, "暂无总结")
	assert.Contains(t, s, "*生成时间: 2025-03-14 09:26:53*")
}

func TestConsoleWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	r := fixedRenderer(summarizer.English)
	require.NoError(t, r.Console(&buf, samplePapers(), []string{"transformer"}))

	rendered, err := r.Render(Console, samplePapers(), []string{"transformer"})
	require.NoError(t, err)
	assert.Equal(t, string(rendered), buf.String())
	assert.Contains(t, buf.String(), "[2] Graph Networks")
}

func TestRenderEmptyList(t *testing.T) {
	out, err := fixedRenderer(summarizer.English).Render(HTML, nil, nil)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Find(".paper").Length())
	assert.Equal(t, "0 papers found", doc.Find(".count").Text())
}

func TestRenderUnknownFormat(t *testing.T) {
	_, err := fixedRenderer(summarizer.English).Render("pdf", samplePapers(), nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	r := fixedRenderer(summarizer.English)

	path, err := r.Save(dir, Markdown, samplePapers(), []string{"transformer"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "arxiv_report_20250314_092653.md"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := r.Render(Markdown, samplePapers(), []string{"transformer"})
	require.NoError(t, err)
	assert.Equal(t, want, content)
}

func TestSaveSameSecondOverwrites(t *testing.T) {
	dir := t.TempDir()
	r := fixedRenderer(summarizer.English)

	first, err := r.Save(dir, HTML, samplePapers(), nil)
	require.NoError(t, err)
	second, err := r.Save(dir, HTML, samplePapers()[:1], nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveRejectsConsole(t *testing.T) {
	_, err := fixedRenderer(summarizer.English).Save(t.TempDir(), Console, samplePapers(), nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
