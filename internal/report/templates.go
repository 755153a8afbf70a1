package report

import (
	"fmt"
	htmltemplate "html/template"
	"io"
	"strings"
	texttemplate "text/template"
)

var htmlTemplate = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.L.Title}} - {{.Date}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; line-height: 1.6; margin: 0; background: #f5f5f5; color: #333; }
.container { max-width: 960px; margin: 0 auto; padding: 20px; }
.header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: #fff; padding: 30px; border-radius: 10px; margin-bottom: 30px; text-align: center; }
.header h1 { margin: 0 0 10px; font-size: 2.2em; }
.summary-stats { background: #fff; padding: 20px; border-radius: 10px; margin-bottom: 30px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
.paper { background: #fff; padding: 25px; border-radius: 10px; margin-bottom: 20px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
.paper-title { font-size: 1.3em; font-weight: 700; color: #2c3e50; margin-bottom: 10px; }
.paper-meta { color: #666; font-size: 0.9em; margin-bottom: 15px; }
.paper-summary { background: #f8f9fa; padding: 15px; border-left: 4px solid #667eea; margin: 15px 0; white-space: pre-wrap; }
.paper-links a { display: inline-block; margin-right: 10px; padding: 8px 16px; background: #667eea; color: #fff; text-decoration: none; border-radius: 5px; font-size: 0.9em; }
.footer { text-align: center; color: #999; font-size: 0.85em; margin-top: 30px; }
</style>
</head>
<body>
<div class="container">
<div class="header">
<h1>{{.L.Title}}</h1>
<p class="date">{{.L.Date}}: {{.Date}}</p>
<p class="keywords">{{.L.Keywords}}: {{.Keywords}}</p>
</div>
<div class="summary-stats">
<p class="count">{{.Count}} {{.L.Found}}</p>
</div>
{{range .Papers}}<div class="paper">
<div class="paper-title">{{.Index}}. {{.Title}}</div>
<div class="paper-meta">
<div class="authors"><strong>{{$.L.Authors}}:</strong> {{.Authors}}</div>
<div class="published"><strong>{{$.L.Published}}:</strong> {{.Published}}</div>
{{if .Categories}}<div class="categories"><strong>{{$.L.Categories}}:</strong> {{.Categories}}</div>{{end}}
</div>
<div class="paper-summary"><strong>{{$.L.Summary}}:</strong>
{{.Summary}}</div>
<div class="paper-links">
{{if .URL}}<a class="paper-link" href="{{.URL}}" target="_blank">{{$.L.ViewPaper}}</a>{{end}}
{{if .PDFURL}}<a class="pdf-link" href="{{.PDFURL}}" target="_blank">{{$.L.DownloadPDF}}</a>{{end}}
</div>
</div>
{{end}}<div class="footer">{{.L.Generated}}: {{.GeneratedAt}}</div>
</div>
</body>
</html>
`))

var markdownTemplate = texttemplate.Must(texttemplate.New("markdown").Parse(`# {{.L.Title}}

**{{.L.Date}}**: {{.Date}}
**{{.L.Keywords}}**: {{.Keywords}}
**{{.L.Count}}**: {{.Count}}

---
{{range .Papers}}
## {{.Index}}. {{.Title}}

**{{$.L.Authors}}**: {{.Authors}}
**{{$.L.Published}}**: {{.Published}}
{{- if .Categories}}
**{{$.L.Categories}}**: {{.Categories}}
{{- end}}

**{{$.L.Summary}}**:
{{.Summary}}

**{{$.L.Links}}**:
{{- if .URL}}
- [{{$.L.ViewPaper}}]({{.URL}})
{{- end}}
{{- if .PDFURL}}
- [{{$.L.DownloadPDF}}]({{.PDFURL}})
{{- end}}

---
{{end}}
*{{.L.Generated}}: {{.GeneratedAt}}*
`))

func writeConsole(w io.Writer, v reportView) error {
	rule := strings.Repeat("=", 80)
	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "%s - %s\n", v.L.Title, v.Date)
	fmt.Fprintf(&b, "%s: %s\n", v.L.Keywords, v.Keywords)
	fmt.Fprintf(&b, "%d %s\n", v.Count, v.L.Found)
	fmt.Fprintln(&b, rule)

	for _, p := range v.Papers {
		fmt.Fprintf(&b, "\n[%d] %s\n", p.Index, p.Title)
		fmt.Fprintf(&b, "%s: %s\n", v.L.Authors, p.Authors)
		fmt.Fprintf(&b, "%s: %s\n", v.L.Published, p.Published)
		if p.Categories != "" {
			fmt.Fprintf(&b, "%s: %s\n", v.L.Categories, p.Categories)
		}
		fmt.Fprintf(&b, "%s: %s\n", v.L.Summary, p.Summary)
		if p.URL != "" {
			fmt.Fprintf(&b, "%s: %s\n", v.L.ViewPaper, p.URL)
		}
		if p.PDFURL != "" {
			fmt.Fprintf(&b, "%s: %s\n", v.L.DownloadPDF, p.PDFURL)
		}
		fmt.Fprintln(&b, strings.Repeat("-", 80))
	}
	fmt.Fprintf(&b, "%s: %s\n", v.L.Generated, v.GeneratedAt)

	_, err := io.WriteString(w, b.String())
	return err
}
