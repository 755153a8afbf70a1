package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/arxiv-push/internal/config"
	"github.com/ryosukesatoh/arxiv-push/internal/fetcher"
	"github.com/ryosukesatoh/arxiv-push/internal/history"
	"github.com/ryosukesatoh/arxiv-push/internal/logger"
	"github.com/ryosukesatoh/arxiv-push/internal/publisher"
	"github.com/ryosukesatoh/arxiv-push/internal/runner"
	"github.com/ryosukesatoh/arxiv-push/internal/summarizer"
)

const drainTimeout = 30 * time.Second

type rootOptions struct {
	configPath string
	logLevel   string
}

// load reads the config file. The default path is optional: when it does not
// exist the built-in defaults are used.
func (o *rootOptions) load(explicit bool) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err == nil {
		return cfg, nil
	}
	if !explicit {
		if _, statErr := os.Stat(o.configPath); errors.Is(statErr, fs.ErrNotExist) {
			return config.Default(), nil
		}
	}
	return nil, err
}

func (o *rootOptions) logger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	return logger.New(level, cfg.Log.Development)
}

// app holds the components shared by the long-running commands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	runner  *runner.Runner
	history *history.Store
}

func newApp(cfg *config.Config, l *zap.Logger) (*app, error) {
	f, err := fetcher.New(cfg, l.Named("fetcher"))
	if err != nil {
		return nil, err
	}
	s, err := summarizer.New(cfg, l.Named("summarizer"))
	if err != nil {
		return nil, err
	}
	pubs, err := publisher.New(cfg, l.Named("publisher"))
	if err != nil {
		return nil, err
	}
	opts := []runner.Option{
		runner.WithPublishers(pubs...),
		runner.WithLogger(l.Named("runner")),
	}
	archive, err := newArchive(cfg, l.Named("archive"))
	if err != nil {
		return nil, err
	}
	if archive != nil {
		opts = append(opts, runner.WithArchive(archive))
	}

	a := &app{cfg: cfg, logger: l}
	if path := cfg.HistoryPath(); path != "" {
		store, err := history.Open(path)
		if err != nil {
			return nil, err
		}
		a.history = store
		opts = append(opts, runner.WithRecorder(store))
	}
	a.runner = runner.New(f, s, opts...)

	l.Info("Components ready",
		zap.String("summarizer", cfg.ResolvedSummarizerType()),
		zap.Bool("enhanced", summarizer.Enhanced(s)),
		zap.Strings("publishers", cfg.Publisher.Types),
		zap.Bool("history", a.history != nil),
	)
	return a, nil
}

// newArchive returns the file publisher used for requests with Save, or nil
// when a configured file publisher already writes every report.
func newArchive(cfg *config.Config, l *zap.Logger) (*publisher.FilePublisher, error) {
	if slices.Contains(cfg.Publisher.Types, "file") {
		return nil, nil
	}
	return publisher.NewArchive(cfg, l)
}

// defaultRequest is the search described by the config file.
func (a *app) defaultRequest() runner.Request {
	return runner.Request{
		Keywords:   append([]string(nil), a.cfg.Keywords...),
		WindowDays: a.cfg.GetDaysBack(),
		MaxResults: a.cfg.MaxResults,
		Language:   summarizer.Language(a.cfg.Language),
		Save:       !a.cfg.Output.NoSave,
	}
}

// shutdown stops any active run, waits for it to drain and closes the
// history store.
func (a *app) shutdown() {
	a.runner.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := a.runner.Wait(ctx); err != nil {
		a.logger.Warn("Run did not finish before shutdown", zap.Error(err))
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("Failed to close history", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// setup loads config and logger for a command.
func setup(o *rootOptions, explicitConfig bool) (*config.Config, *zap.Logger, error) {
	cfg, err := o.load(explicitConfig)
	if err != nil {
		return nil, nil, err
	}
	l, err := o.logger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}

func errorf(format string, args ...any) error {
	return fmt.Errorf("arxiv-push: "+format, args...)
}
