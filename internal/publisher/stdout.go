package publisher

import (
	"context"
	"io"
	"os"
)

// StdoutPublisher prints the digest to stdout.
type StdoutPublisher struct {
	out io.Writer
}

func NewStdoutPublisher() *StdoutPublisher {
	return &StdoutPublisher{out: os.Stdout}
}

func (p *StdoutPublisher) Publish(_ context.Context, digest *Digest) error {
	return digest.Renderer().Console(p.out, digest.Papers, digest.Keywords)
}
