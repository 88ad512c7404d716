package api

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/canon"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/runner"
)

// RunStatus represents the current state of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Done reports whether the status is final.
func (s RunStatus) Done() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// RunRequest is the body of POST /runs. Book is a canonical book code and
// is ignored for a project scope.
type RunRequest struct {
	Project string   `json:"project"`
	Scope   string   `json:"scope,omitempty"`
	Book    string   `json:"book,omitempty"`
	Chapter int      `json:"chapter,omitempty"`
	Verse   int      `json:"verse,omitempty"`
	Checks  []string `json:"checks,omitempty"`
}

// Selector converts the request into a runner selection. An empty scope
// selects the whole project.
func (req RunRequest) Selector() (runner.Selector, error) {
	scope := checks.ScopeProject
	if strings.TrimSpace(req.Scope) != "" {
		s, ok := checks.ParseScope(req.Scope)
		if !ok {
			return runner.Selector{}, errors.NewValidation("scope", fmt.Sprintf("%q is not a scope", req.Scope))
		}
		scope = s
	}
	sel := runner.Selector{Scope: scope, Chapter: req.Chapter, Verse: req.Verse}
	if scope == checks.ScopeProject {
		return sel, nil
	}
	sel.Book = canon.NumFromCode(req.Book)
	if sel.Book == 0 {
		return runner.Selector{}, errors.NewValidation("book", fmt.Sprintf("%q is not a book code", req.Book))
	}
	return sel, nil
}

// Run is an asynchronous check run started through the API.
type Run struct {
	ID          string           `json:"id"`
	Status      RunStatus        `json:"status"`
	Request     RunRequest       `json:"request"`
	Progress    *runner.Progress `json:"progress,omitempty"`
	Result      *runner.Result   `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`

	cancel context.CancelFunc
	done   chan struct{}
}

// RunStore tracks runs in memory. Callers only ever see copies.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
	now  func() time.Time
}

// NewRunStore returns an empty store.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]*Run), now: time.Now}
}

// Create registers a pending run and returns it with the context its
// execution must use. Cancelling the run cancels that context.
func (s *RunStore) Create(parent context.Context, req RunRequest) (Run, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	now := s.now().UTC()

	run := &Run{
		ID:        uuid.NewString(),
		Status:    RunStatusPending,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()
	return run.snapshot(), ctx
}

func (r *Run) snapshot() Run {
	c := *r
	if r.Progress != nil {
		p := *r.Progress
		c.Progress = &p
	}
	c.cancel, c.done = nil, nil
	return c
}

// Get returns a run by ID.
func (s *RunStore) Get(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return run.snapshot(), true
}

// List returns every run, oldest first.
func (s *RunStore) List() []Run {
	s.mu.RLock()
	out := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *RunStore) update(id string, fn func(*Run)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok || run.Status.Done() {
		return
	}
	fn(run)
	run.UpdatedAt = s.now().UTC()
}

// Start marks a run as running.
func (s *RunStore) Start(id string) {
	s.update(id, func(r *Run) { r.Status = RunStatusRunning })
}

// SetProgress records the latest progress report.
func (s *RunStore) SetProgress(id string, p runner.Progress) {
	s.update(id, func(r *Run) { r.Progress = &p })
}

// Finish records the outcome of a run and wakes any waiters. A run whose
// scheduling was cancelled ends as cancelled even though it has a result.
func (s *RunStore) Finish(id string, res *runner.Result, err error) Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}
	}
	if run.Status.Done() {
		return run.snapshot()
	}

	now := s.now().UTC()
	run.Result = res
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || (res != nil && res.Cancelled)):
		run.Status = RunStatusCancelled
		run.Error = err.Error()
	case err != nil:
		run.Status = RunStatusFailed
		run.Error = err.Error()
	case res != nil && res.Cancelled:
		run.Status = RunStatusCancelled
	default:
		run.Status = RunStatusCompleted
	}
	run.UpdatedAt = now
	run.CompletedAt = &now
	run.cancel()
	close(run.done)
	return run.snapshot()
}

// Cancel stops scheduling further work for a run. Pairs already started
// finish, and the run's status becomes cancelled once it returns.
func (s *RunStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return errors.NewNotFound("run", id)
	}
	if run.Status.Done() {
		return errors.NewValidation("status", fmt.Sprintf("run cannot be cancelled (status: %s)", run.Status))
	}
	run.cancel()
	return nil
}

// Wait blocks until a run finishes or ctx is done.
func (s *RunStore) Wait(ctx context.Context, id string) (Run, error) {
	s.mu.RLock()
	run, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return Run{}, errors.NewNotFound("run", id)
	}
	select {
	case <-run.done:
		r, _ := s.Get(id)
		return r, nil
	case <-ctx.Done():
		return Run{}, ctx.Err()
	}
}

// CancelAll cancels every unfinished run.
func (s *RunStore) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, run := range s.runs {
		if !run.Status.Done() {
			run.cancel()
		}
	}
}
