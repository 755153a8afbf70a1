// Package scheduler starts a fixed search request on a recurring schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/arxiv-push/internal/logger"
	"github.com/ryosukesatoh/arxiv-push/internal/runner"
)

// Starter launches a search without waiting for it.
type Starter interface {
	Start(req runner.Request) (string, error)
}

var clockRegex = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseSchedule accepts a daily "HH:MM" time or a standard cron expression
// (including descriptors such as "@hourly") and returns the cron spec.
func ParseSchedule(s string) (string, error) {
	if m := clockRegex.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return "", fmt.Errorf("scheduler: invalid time of day %q", s)
		}
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	}
	if _, err := cron.ParseStandard(s); err != nil {
		return "", fmt.Errorf("scheduler: invalid schedule %q: %w", s, err)
	}
	return s, nil
}

// Scheduler fires Start on every tick. A tick that finds a search already
// running is skipped, never queued.
type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	starter Starter
	request runner.Request
	logger  *zap.Logger
}

// New validates schedule and req and registers the job. Call Start to begin
// firing.
func New(starter Starter, req runner.Request, schedule string, l *zap.Logger) (*Scheduler, error) {
	spec, err := ParseSchedule(schedule)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	l = logger.OrNop(l).Named("scheduler")
	cl := cronLogger{l.Sugar()}
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		starter: starter,
		request: req,
		logger:  l,
	}
	s.entry, err = s.cron.AddFunc(spec, func() { s.Trigger() })
	if err != nil {
		return nil, fmt.Errorf("scheduler: failed to set up schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Time("next", s.Next()))
}

// Stop halts the schedule. The returned context is done once a trigger in
// progress has returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns the next activation time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Trigger starts the configured request once and reports whether it was
// accepted.
func (s *Scheduler) Trigger() bool {
	req := s.request
	req.Keywords = append([]string(nil), s.request.Keywords...)

	id, err := s.starter.Start(req)
	switch {
	case errors.Is(err, runner.ErrAlreadyRunning):
		s.logger.Warn("Skipping scheduled search, a search is already running")
		return false
	case err != nil:
		s.logger.Error("Scheduled search rejected", zap.Error(err))
		return false
	}
	s.logger.Info("Scheduled search started", zap.String("run_id", id), zap.Strings("keywords", req.Keywords))
	return true
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
