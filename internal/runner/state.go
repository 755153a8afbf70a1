package runner

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ryosukesatoh/arxiv-push/internal/fetcher"
	"github.com/ryosukesatoh/arxiv-push/internal/summarizer"
)

// Kind classifies the runner's state.
type Kind string

const (
	KindIdle      Kind = "idle"
	KindRunning   Kind = "running"
	KindCompleted Kind = "completed"
	KindNoResults Kind = "no_results"
	KindFailed    Kind = "failed"
	KindStopped   Kind = "stopped"
)

// Terminal reports whether k ends a run.
func (k Kind) Terminal() bool {
	switch k {
	case KindCompleted, KindNoResults, KindFailed, KindStopped:
		return true
	}
	return false
}

// Status messages.
const (
	MessageReady     = "ready"
	MessageStarting  = "starting"
	MessageStopped   = "search stopped"
	MessageNoResults = "no relevant papers found"
)

var (
	// ErrInvalidRequest wraps every request validation failure.
	ErrInvalidRequest = errors.New("invalid search request")
	// ErrAlreadyRunning is returned by Start while a run is active.
	ErrAlreadyRunning = errors.New("a search is already running")
	// ErrNoResults is returned by Results when there is nothing to render.
	ErrNoResults = errors.New("no search results available")
)

// Request describes one search.
type Request struct {
	Keywords   []string            `json:"keywords"`
	WindowDays int                 `json:"days"`
	MaxResults int                 `json:"count"`
	Language   summarizer.Language `json:"language"`
	Save       bool                `json:"save"`
}

// Validate trims and drops blank keywords, normalizes the language and
// checks the numeric bounds.
func (r *Request) Validate() error {
	keywords := make([]string, 0, len(r.Keywords))
	for _, kw := range r.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		return fmt.Errorf("%w: at least one keyword is required", ErrInvalidRequest)
	}
	if r.WindowDays < 0 {
		return fmt.Errorf("%w: days must be >= 0, got %d", ErrInvalidRequest, r.WindowDays)
	}
	if r.MaxResults <= 0 {
		return fmt.Errorf("%w: count must be > 0, got %d", ErrInvalidRequest, r.MaxResults)
	}
	lang, err := summarizer.ParseLanguage(string(r.Language))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	r.Keywords = keywords
	r.Language = lang
	return nil
}

// State is a snapshot of the runner. Values returned by the runner are copies
// and may be kept or modified by the caller.
type State struct {
	RunID      string              `json:"run_id,omitempty"`
	Kind       Kind                `json:"kind"`
	Running    bool                `json:"running"`
	Progress   int                 `json:"progress"`
	Message    string              `json:"message"`
	Keywords   []string            `json:"keywords"`
	Language   summarizer.Language `json:"language,omitempty"`
	Results    []fetcher.Paper     `json:"results"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

func initialState() State {
	return State{
		Kind:     KindIdle,
		Message:  MessageReady,
		Keywords: []string{},
		Results:  []fetcher.Paper{},
	}
}

// clone copies the slices and time pointers. Papers are immutable after the
// fetch, so their own slices are shared.
func (s State) clone() State {
	c := s
	c.Keywords = slices.Clone(s.Keywords)
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	c.Results = slices.Clone(s.Results)
	if c.Results == nil {
		c.Results = []fetcher.Paper{}
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return c
}
