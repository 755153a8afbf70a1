// Package publisher delivers the papers of a finished run to their
// destinations: the console, report files, email or a Discord channel.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/arxiv-push/internal/config"
	"github.com/ryosukesatoh/arxiv-push/internal/fetcher"
	"github.com/ryosukesatoh/arxiv-push/internal/logger"
	"github.com/ryosukesatoh/arxiv-push/internal/report"
	"github.com/ryosukesatoh/arxiv-push/internal/summarizer"
)

// Digest is the outcome of a completed run.
type Digest struct {
	RunID    string
	Keywords []string
	Language summarizer.Language
	Date     time.Time
	Papers   []fetcher.Paper
}

// KeywordsString joins the keywords for display.
func (d *Digest) KeywordsString() string {
	return strings.Join(d.Keywords, ", ")
}

// Renderer returns a report renderer pinned to the digest's date and language.
func (d *Digest) Renderer() *report.Renderer {
	date := d.Date
	return &report.Renderer{
		Now:      func() time.Time { return date },
		Language: d.Language,
	}
}

// Publisher publishes a digest to some output destination.
type Publisher interface {
	Publish(ctx context.Context, digest *Digest) error
}

// ErrUnsupportedType is returned for unknown publisher types.
var ErrUnsupportedType = errors.New("unsupported publisher type")

// New builds the publishers listed in cfg.Publisher.Types.
func New(cfg *config.Config, l *zap.Logger) ([]Publisher, error) {
	l = logger.OrNop(l)
	pubs := make([]Publisher, 0, len(cfg.Publisher.Types))
	for _, t := range cfg.Publisher.Types {
		switch t {
		case "stdout":
			pubs = append(pubs, NewStdoutPublisher())
		case "file":
			archive, err := NewArchive(cfg, l)
			if err != nil {
				return nil, err
			}
			pubs = append(pubs, archive)
		case "email":
			e := cfg.Publisher.Email
			pubs = append(pubs, NewEmailPublisher(e.SMTPHost, e.SMTPPort, e.Username, e.Password, e.From, e.To))
		case "discord":
			pubs = append(pubs, NewDiscordPublisher(cfg.Publisher.Discord.WebhookURL))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, t)
		}
	}
	return pubs, nil
}

// NewArchive returns the file publisher for the configured output directory
// and formats.
func NewArchive(cfg *config.Config, l *zap.Logger) (*FilePublisher, error) {
	formats := make([]report.Format, 0, len(cfg.Output.Formats))
	for _, s := range cfg.Output.Formats {
		f, err := report.ParseFormat(s)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return NewFilePublisher(cfg.Output.Dir, formats, l), nil
}
