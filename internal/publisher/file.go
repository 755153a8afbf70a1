package publisher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/arxiv-push/internal/logger"
	"github.com/ryosukesatoh/arxiv-push/internal/report"
)

// FilePublisher writes one report per format into a directory.
type FilePublisher struct {
	dir     string
	formats []report.Format
	logger  *zap.Logger
}

func NewFilePublisher(dir string, formats []report.Format, l *zap.Logger) *FilePublisher {
	if len(formats) == 0 {
		formats = []report.Format{report.HTML}
	}
	return &FilePublisher{dir: dir, formats: formats, logger: logger.OrNop(l)}
}

func (p *FilePublisher) Publish(_ context.Context, digest *Digest) error {
	r := digest.Renderer()
	for _, f := range p.formats {
		path, err := r.Save(p.dir, f, digest.Papers, digest.Keywords)
		if err != nil {
			return fmt.Errorf("file: %w", err)
		}
		p.logger.Info("Report saved",
			zap.String("run_id", digest.RunID),
			zap.String("format", string(f)),
			zap.String("path", path),
		)
	}
	return nil
}
