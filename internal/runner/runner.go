// Package runner orchestrates background searches: fetch papers, summarize
// them one by one, then hand the results to publishers. At most one search
// runs at a time and its progress is observable through Status.
package runner

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/arxiv-push/internal/fetcher"
	"github.com/ryosukesatoh/arxiv-push/internal/history"
	"github.com/ryosukesatoh/arxiv-push/internal/logger"
	"github.com/ryosukesatoh/arxiv-push/internal/publisher"
	"github.com/ryosukesatoh/arxiv-push/internal/summarizer"
)

// Progress milestones.
const (
	progressFetching   = 10
	progressFetched    = 50
	progressSummarized = 90
	progressDone       = 100
)

const recordTimeout = 5 * time.Second

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Runner orchestrates the fetch -> summarize -> publish pipeline.
type Runner struct {
	fetcher    fetcher.Fetcher
	summarizer summarizer.Summarizer
	publishers []publisher.Publisher
	archive    publisher.Publisher
	recorder   Recorder
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string

	wg sync.WaitGroup

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	stopping bool
}

// handle tracks one run so a caller can wait for that run alone.
type handle struct {
	done  chan struct{}
	final State
}

// Option configures a Runner.
type Option func(*Runner)

// WithPublishers sets the publishers that receive every completed run.
func WithPublishers(pubs ...publisher.Publisher) Option {
	return func(r *Runner) { r.publishers = pubs }
}

// WithArchive sets the publisher used for runs that request Save.
func WithArchive(p publisher.Publisher) Option {
	return func(r *Runner) { r.archive = p }
}

// WithRecorder records every finished run.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = logger.OrNop(l) }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func New(f fetcher.Fetcher, s summarizer.Summarizer, opts ...Option) *Runner {
	r := &Runner{
		fetcher:    f,
		summarizer: s,
		logger:     zap.NewNop(),
		now:        time.Now,
		newID:      uuid.NewString,
		state:      initialState(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start validates req and launches a run in the background. It returns
// ErrAlreadyRunning without touching the state while another run is active.
func (r *Runner) Start(req Request) (string, error) {
	id, _, err := r.start(req)
	return id, err
}

func (r *Runner) start(req Request) (string, *handle, error) {
	if err := req.Validate(); err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Running {
		return "", nil, ErrAlreadyRunning
	}

	id := r.newID()
	started := r.now()
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.stopping = false
	r.state = State{
		RunID:     id,
		Kind:      KindRunning,
		Running:   true,
		Message:   MessageStarting,
		Keywords:  slices.Clone(req.Keywords),
		Language:  req.Language,
		Results:   []fetcher.Paper{},
		StartedAt: &started,
	}

	h := &handle{done: make(chan struct{})}
	r.wg.Add(1)
	go r.run(ctx, id, req, h)
	return id, h, nil
}

// Status returns a consistent snapshot of the current state.
func (r *Runner) Status() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

// Stop asks the active run to finish at its next checkpoint. It does not wait
// and is a no-op when nothing is running.
func (r *Runner) Stop() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	return MessageStopped
}

// stopRun stops the active run only if it is run id.
func (r *Runner) stopRun(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.RunID == id {
		r.stopLocked()
	}
}

func (r *Runner) stopLocked() {
	if !r.state.Running || r.cancel == nil {
		return
	}
	r.stopping = true
	r.state.Message = MessageStopped
	r.cancel()
}

// Wait blocks until every run goroutine has exited or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts req and blocks until that run has finished, including delivery
// and recording, and returns its terminal state. Runs started later are not
// waited for. Cancelling ctx stops the run.
func (r *Runner) Run(ctx context.Context, req Request) (State, error) {
	id, h, err := r.start(req)
	if err != nil {
		return State{}, err
	}
	stop := context.AfterFunc(ctx, func() { r.stopRun(id) })
	defer stop()

	<-h.done
	return h.final, nil
}

// Results returns the last result set for rendering.
func (r *Runner) Results() (State, error) {
	st := r.Status()
	if st.Running || len(st.Results) == 0 {
		return State{}, ErrNoResults
	}
	return st, nil
}

func (r *Runner) run(ctx context.Context, id string, req Request, h *handle) {
	defer r.wg.Done()
	defer close(h.done)
	log := r.logger.With(zap.String("run_id", id))
	log.Info("Search started",
		zap.Strings("keywords", req.Keywords),
		zap.Int("days", req.WindowDays),
		zap.Int("max_results", req.MaxResults),
		zap.String("language", string(req.Language)),
	)

	final := r.pipeline(ctx, id, req, log)
	log.Info("Search finished",
		zap.String("kind", string(final.Kind)),
		zap.Int("results", len(final.Results)),
		zap.String("message", final.Message),
	)
	r.record(ctx, final, req, log)
	h.final = final
}

func (r *Runner) pipeline(ctx context.Context, id string, req Request, log *zap.Logger) State {
	if ctx.Err() != nil {
		return r.stopped()
	}

	r.update(func(s *State) {
		s.Progress = progressFetching
		s.Message = fmt.Sprintf("searching arXiv for: %s", strings.Join(req.Keywords, ", "))
	})

	papers, err := r.fetcher.Fetch(ctx, req.Keywords, req.WindowDays, req.MaxResults)
	if ctx.Err() != nil {
		return r.stopped()
	}
	if err != nil {
		log.Error("Fetch failed", zap.Error(err))
		return r.finish(KindFailed, func(s *State) {
			s.Progress = 0
			s.Message = fmt.Sprintf("search failed: %v", err)
			s.Results = []fetcher.Paper{}
		})
	}
	if len(papers) == 0 {
		return r.finish(KindNoResults, func(s *State) {
			s.Progress = 0
			s.Message = MessageNoResults
			s.Results = []fetcher.Paper{}
		})
	}

	total := len(papers)
	r.update(func(s *State) {
		s.Progress = progressFetched
		s.Message = fmt.Sprintf("found %d papers, summarizing", total)
	})

	results := make([]fetcher.Paper, 0, total)
	for i, p := range papers {
		if ctx.Err() != nil {
			return r.stopped()
		}
		p.Summary = r.summarizer.Summarize(ctx, p.Title, p.Abstract, req.Language)
		// A summary interrupted by Stop is a placeholder, not a result.
		if ctx.Err() != nil {
			return r.stopped()
		}
		results = append(results, p)
		done := i + 1
		r.update(func(s *State) {
			s.Results = append(s.Results, p)
			s.Progress = progressFetched + (progressSummarized-progressFetched)*done/total
			s.Message = fmt.Sprintf("summarized %d/%d papers", done, total)
		})
		log.Debug("Paper summarized", zap.Int("index", done), zap.String("title", p.Title))
	}

	r.deliver(ctx, id, req, results, log)
	// Stop during delivery keeps the results but does not report completion.
	if ctx.Err() != nil {
		log.Warn("Delivery interrupted by stop")
		return r.stopped()
	}

	return r.finish(KindCompleted, func(s *State) {
		s.Progress = progressDone
		s.Message = fmt.Sprintf("search completed, %d papers found", len(results))
	})
}

// deliver hands the results to every publisher. Failures are logged and do
// not fail the run. Stop cancels the context passed to Publish.
func (r *Runner) deliver(ctx context.Context, id string, req Request, papers []fetcher.Paper, log *zap.Logger) {
	pubs := r.publishers
	if req.Save && r.archive != nil {
		pubs = append(slices.Clip(pubs), r.archive)
	}
	if len(pubs) == 0 {
		return
	}

	r.update(func(s *State) { s.Message = "delivering results" })
	digest := &publisher.Digest{
		RunID:    id,
		Keywords: slices.Clone(req.Keywords),
		Language: req.Language,
		Date:     r.now(),
		Papers:   papers,
	}

	failed := 0
	for _, pub := range pubs {
		if err := pub.Publish(ctx, digest); err != nil {
			failed++
			log.Warn("Publish failed", zap.String("publisher", fmt.Sprintf("%T", pub)), zap.Error(err))
			continue
		}
		log.Debug("Published", zap.String("publisher", fmt.Sprintf("%T", pub)))
	}
	if failed > 0 {
		log.Warn("Delivery finished with failures", zap.Int("failed", failed), zap.Int("publishers", len(pubs)))
	}
}

func (r *Runner) record(ctx context.Context, final State, req Request, log *zap.Logger) {
	if r.recorder == nil {
		return
	}
	e := history.Entry{
		ID:          final.RunID,
		Keywords:    final.Keywords,
		WindowDays:  req.WindowDays,
		MaxResults:  req.MaxResults,
		Language:    string(req.Language),
		Kind:        string(final.Kind),
		Message:     final.Message,
		ResultCount: len(final.Results),
	}
	if final.StartedAt != nil {
		e.StartedAt = *final.StartedAt
	}
	if final.FinishedAt != nil {
		e.FinishedAt = *final.FinishedAt
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := r.recorder.Record(rctx, e); err != nil {
		log.Warn("Failed to record run", zap.Error(err))
	}
}

// update applies fn to the live state. Once Stop has been requested the
// message stays "search stopped".
func (r *Runner) update(fn func(*State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := r.state.Message
	fn(&r.state)
	if r.stopping {
		r.state.Message = msg
	}
}

func (r *Runner) stopped() State {
	return r.finish(KindStopped, func(s *State) { s.Message = MessageStopped })
}

// finish moves the state to a terminal kind and returns a snapshot of it.
func (r *Runner) finish(kind Kind, fn func(*State)) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.state)
	finished := r.now()
	r.state.Kind = kind
	r.state.Running = false
	r.state.FinishedAt = &finished
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.stopping = false
	return r.state.clone()
}
