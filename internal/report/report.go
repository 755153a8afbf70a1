// Package report renders fetched papers as HTML, Markdown or console text
// and persists rendered reports to disk.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ryosukesatoh/arxiv-push/internal/fetcher"
	"github.com/ryosukesatoh/arxiv-push/internal/summarizer"
)

// Format is an output format for a report.
type Format string

const (
	HTML     Format = "html"
	Markdown Format = "markdown"
	Console  Format = "console"
)

// ErrUnknownFormat is returned for formats other than html, markdown and console.
var ErrUnknownFormat = errors.New("unknown report format")

// MaxAuthors is the number of authors shown before the "et al." marker.
const MaxAuthors = 3

// ParseFormat accepts "html", "markdown" (or "md") and "console".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "html":
		return HTML, nil
	case "markdown", "md":
		return Markdown, nil
	case "console":
		return Console, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Ext returns the file extension used when saving the format.
func (f Format) Ext() string {
	if f == Markdown {
		return "md"
	}
	return string(f)
}

// ContentType returns the MIME type of the rendered document.
func (f Format) ContentType() string {
	switch f {
	case HTML:
		return "text/html; charset=utf-8"
	case Markdown:
		return "text/markdown; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Renderer turns papers into documents. The clock is the only input besides
// the arguments, so output is reproducible with a fixed Now.
type Renderer struct {
	Now      func() time.Time
	Language summarizer.Language
}

// NewRenderer returns a renderer using the wall clock.
func NewRenderer(lang summarizer.Language) *Renderer {
	return &Renderer{Now: time.Now, Language: lang}
}

// Filename returns the report file name for the given time and format.
func Filename(t time.Time, f Format) string {
	return fmt.Sprintf("arxiv_report_%s.%s", t.Format("20060102_150405"), f.Ext())
}

// Render returns the complete document for format.
func (r *Renderer) Render(format Format, papers []fetcher.Paper, keywords []string) ([]byte, error) {
	v := r.view(papers, keywords)
	var buf bytes.Buffer
	var err error
	switch format {
	case HTML:
		err = htmlTemplate.Execute(&buf, v)
	case Markdown:
		err = markdownTemplate.Execute(&buf, v)
	case Console:
		err = writeConsole(&buf, v)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("report: render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// Console writes the console rendering straight to w.
func (r *Renderer) Console(w io.Writer, papers []fetcher.Paper, keywords []string) error {
	return writeConsole(w, r.view(papers, keywords))
}

// Save renders papers and writes them to dir under a timestamped name.
// Reports rendered within the same second overwrite each other.
func (r *Renderer) Save(dir string, format Format, papers []fetcher.Paper, keywords []string) (string, error) {
	if format != HTML && format != Markdown {
		return "", fmt.Errorf("%w: cannot save %q", ErrUnknownFormat, format)
	}
	content, err := r.Render(format, papers, keywords)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, Filename(r.now(), format))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("report: failed to write %s: %w", path, err)
	}
	return path, nil
}

func (r *Renderer) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

type paperView struct {
	Index      int
	Title      string
	Authors    string
	Published  string
	Categories string
	Summary    string
	URL        string
	PDFURL     string
}

type reportView struct {
	L           labels
	Lang        string
	Date        string
	GeneratedAt string
	Keywords    string
	Count       int
	Papers      []paperView
}

func (r *Renderer) view(papers []fetcher.Paper, keywords []string) reportView {
	now := r.now()
	l := labelsFor(r.Language)
	v := reportView{
		L:           l,
		Lang:        l.HTMLLang,
		Date:        now.Format(l.DateLayout),
		GeneratedAt: now.Format("2006-01-02 15:04:05"),
		Keywords:    strings.Join(keywords, ", "),
		Count:       len(papers),
		Papers:      make([]paperView, 0, len(papers)),
	}
	for i, p := range papers {
		v.Papers = append(v.Papers, paperView{
			Index:      i + 1,
			Title:      p.Title,
			Authors:    fetcher.FormatAuthors(p.Authors, MaxAuthors),
			Published:  p.PublishedDate(),
			Categories: strings.Join(p.Categories, ", "),
			Summary:    summaryText(p, l),
			URL:        p.URL,
			PDFURL:     p.PDFURL,
		})
	}
	return v
}

func summaryText(p fetcher.Paper, l labels) string {
	if strings.TrimSpace(p.Summary) == "" {
		return l.NoSummary
	}
	return p.Summary
}

type labels struct {
	HTMLLang    string
	DateLayout  string
	Title       string
	Date        string
	Keywords    string
	Count       string
	Authors     string
	Published   string
	Categories  string
	Summary     string
	Links       string
	ViewPaper   string
	DownloadPDF string
	Found       string
	Generated   string
	NoSummary   string
}

func labelsFor(lang summarizer.Language) labels {
	if lang == summarizer.English {
		return labels{
			HTMLLang:    "en",
			DateLayout:  "January 2, 2006",
			Title:       "arXiv Paper Digest",
			Date:        "Date",
			Keywords:    "Keywords",
			Count:       "Papers",
			Authors:     "Authors",
			Published:   "Published",
			Categories:  "Categories",
			Summary:     "Summary",
			Links:       "Links",
			ViewPaper:   "View paper",
			DownloadPDF: "Download PDF",
			Found:       "papers found",
			Generated:   "Generated at",
			NoSummary:   fetcher.DefaultSummary,
		}
	}
	return labels{
		HTMLLang:    "zh-CN",
		DateLayout:  "2006年01月02日",
		Title:       "arXiv 论文日报",
		Date:        "日期",
		Keywords:    "搜索关键词",
		Count:       "论文数量",
		Authors:     "作者",
		Published:   "发布日期",
		Categories:  "分类",
		Summary:     "总结",
		Links:       "链接",
		ViewPaper:   "查看论文",
		DownloadPDF: "下载PDF",
		Found:       "篇相关论文",
		Generated:   "生成时间",
		NoSummary:   "暂无总结",
	}
}
