package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/books"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/canon"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/project"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/refs"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/runner"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/app"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/host"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/logging"
)

// HealthInfo is the health check response.
type HealthInfo struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Checks  int    `json:"checks"`
	Runs    int    `json:"runs"`
	Clients int    `json:"clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := HealthInfo{
		Status:  "ok",
		Version: s.cfg.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Runs:    len(s.runs.List()),
		Clients: s.hub.ClientCount(),
	}
	n, err := s.app.Catalog.Len(r.Context())
	if err != nil {
		info.Status = "degraded"
		s.log.Warn("catalog unavailable", "error", err)
	}
	info.Checks = n
	respond(w, http.StatusOK, info)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	names, err := s.projects.Projects()
	if err != nil {
		respondErr(w, s.log, err)
		return
	}
	respondList(w, names, len(names))
}

func (s *Server) handleReloadProject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("project")
	s.projects.Reload(name)
	s.contexts.Invalidate(name)
	dir, err := s.projects.Project(name)
	if err != nil {
		respondErr(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, ReloadInfo{Project: name, Books: bookCodes(dir.Books())})
}

// ReloadInfo lists the books found after a project is re-read.
type ReloadInfo struct {
	Project string   `json:"project"`
	Books   []string `json:"books"`
}

func bookCodes(nums []int) []string {
	codes := make([]string, len(nums))
	for i, n := range nums {
		codes[i] = canon.CodeFromNum(n)
	}
	return codes
}

// openProject resolves a project directory and its cached context.
func (s *Server) openProject(name string) (*host.Dir, *project.Context, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil, errors.NewValidation("project", "project is required")
	}
	dir, err := s.projects.Project(name)
	if err != nil {
		return nil, nil, err
	}
	pctx, err := s.contexts.Get(name)
	if err != nil {
		return nil, nil, err
	}
	return dir, pctx, nil
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !decodeJSON(w, r, s.cfg.MaxBodyBytes, &req) {
		return
	}
	sel, err := req.Selector()
	if err != nil {
		respondErr(w, s.log, err)
		return
	}
	dir, pctx, err := s.openProject(req.Project)
	if err != nil {
		respondErr(w, s.log, err)
		return
	}
	if _, err := s.app.Catalog.Select(r.Context(), req.Checks...); err != nil {
		respondErr(w, s.log, err)
		return
	}

	run, ctx := s.runs.Create(s.ctx, req)
	ctx = logging.WithRunID(ctx, run.ID)
	s.wg.Add(1)
	go s.execute(ctx, run, dir, pctx, sel)

	respond(w, http.StatusAccepted, run)
}

func (s *Server) execute(ctx context.Context, run Run, dir *host.Dir, pctx *project.Context, sel runner.Selector) {
	defer s.wg.Done()

	s.runs.Start(run.ID)
	s.hub.Broadcast(ProgressMessage{Type: MessageStarted, RunID: run.ID, Project: run.Request.Project})

	res, err := s.app.Run(ctx, app.RunRequest{
		Dir:      dir,
		Context:  pctx,
		Selector: sel,
		Checks:   run.Request.Checks,
		Progress: func(p runner.Progress) {
			s.runs.SetProgress(run.ID, p)
			s.hub.Broadcast(ProgressMessage{Type: MessageProgress, RunID: run.ID, Project: run.Request.Project, Progress: &p})
		},
	})

	final := s.runs.Finish(run.ID, res, err)
	msg := ProgressMessage{Type: string(final.Status), RunID: run.ID, Project: run.Request.Project, Message: final.Error}
	if res != nil {
		msg.Findings = len(res.Findings)
		msg.Errors = len(res.Errors)
	}
	if final.Status == RunStatusFailed {
		s.log.Error("run failed", "run_id", run.ID, "project", run.Request.Project, "error", err)
	}
	s.hub.Broadcast(msg)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.runs.List()
	respondList(w, runs, len(runs))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runs.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, codeNotFound, "Run not found")
		return
	}
	respond(w, http.StatusOK, run)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.runs.Cancel(id); err != nil {
		respondErr(w, s.log, err)
		return
	}
	s.log.Info("run cancelled", "run_id", id)
	respond(w, http.StatusOK, map[string]string{"id": id, "message": "Run cancelled"})
}

func parseBook(code string) (int, error) {
	num := canon.NumFromCode(code)
	if num == 0 {
		return 0, errors.NewValidation("book", code+" is not a book code")
	}
	return num, nil
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	book, err := parseBook(r.PathValue("book"))
	if err != nil {
		respondErr(w, s.log, err)
		return
	}
	findings, err := s.app.Results.Get(r.Context(), r.PathValue("project"), book)
	if err != nil {
		respondErr(w, s.log, err)
		return
	}
	if findings == nil {
		findings = []checks.Finding{}
	}
	respondList(w, findings, len(findings))
}

func (s *Server) handleListIgnore(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.Ignore.Get(r.Context(), r.PathValue("project"))
	if err != nil {
		respondErr(w, s.log, err)
		return
	}
	if items == nil {
		items = []checks.IgnoreItem{}
	}
	respondList(w, items, len(items))
}

// IgnoreRequest is the body of POST /ignore/{project}.
type IgnoreRequest struct {
	Findings []checks.Finding `json:"findings"`
	Reason   string           `json:"reason,omitempty"`
}

func (s *Server) handleAddIgnore(w http.ResponseWriter, r *http.Request) {
	var req IgnoreRequest
	if !decodeJSON(w, r, s.cfg.MaxBodyBytes, &req) {
		return
	}
	if len(req.Findings) == 0 {
		respondErr(w, s.log, errors.NewValidation("findings", "at least one finding is required"))
		return
	}
	items, err := s.app.Dismiss(r.Context(), r.PathValue("project"), req.Reason, req.Findings...)
	if err != nil {
		respondErr(w, s.log, err)
		return
	}
	respond(w, http.StatusCreated, items)
}

// handleRemoveIgnore takes the keys to remove as repeated key parameters.
func (s *Server) handleRemoveIgnore(w http.ResponseWriter, r *http.Request) {
	keys := r.URL.Query()["key"]
	if len(keys) == 0 {
		respondErr(w, s.log, errors.NewValidation("key", "at least one key is required"))
		return
	}
	removed, err := s.app.Ignore.Remove(r.Context(), r.PathValue("project"), keys...)
	if err != nil {
		respondErr(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]int{"removed": removed})
}

// handleListChecks lists the catalog. latest=true keeps only the newest
// version of each check; tag and language filter the list.
func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		items []checks.Item
		err   error
	)
	if q.Get("refresh") == "true" {
		s.app.Catalog.Refresh()
	}
	if q.Get("latest") == "true" {
		items, err = s.app.Catalog.Latest(r.Context())
	} else {
		items, err = s.app.Catalog.List(r.Context())
	}
	if err != nil {
		respondErr(w, s.log, err)
		return
	}

	tag, lang := q.Get("tag"), q.Get("language")
	out := make([]checks.Item, 0, len(items))
	for _, it := range items {
		if tag != "" && !it.HasTag(tag) {
			continue
		}
		if lang != "" && !it.AppliesTo(lang) {
			continue
		}
		out = append(out, it)
	}
	respondList(w, out, len(out))
}

// handlePublishCheck publishes an item. An item without an id gets a new one.
func (s *Server) handlePublishCheck(w http.ResponseWriter, r *http.Request) {
	var it checks.Item
	if !decodeJSON(w, r, s.cfg.MaxBodyBytes, &it) {
		return
	}
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	if it.Scope == "" {
		it.Scope = checks.ScopeVerse
	}
	published, err := s.app.Catalog.Publish(r.Context(), it)
	if err != nil {
		respondErr(w, s.log, err)
		return
	}
	respond(w, http.StatusCreated, published)
}

func (s *Server) handleUnpublishCheck(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondErr(w, s.log, errors.NewValidation("id", "invalid check id"))
		return
	}
	version := r.PathValue("version")
	if err := s.app.Catalog.Unpublish(r.Context(), id, version); err != nil {
		respondErr(w, s.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"id": id.String(), "version": version, "status": "unpublished"})
}

var (
	englishOnce    sync.Once
	englishMatcher *refs.Matcher
	englishErr     error
)

// defaultMatcher recognises English references when no project is named.
func defaultMatcher() (*refs.Matcher, error) {
	englishOnce.Do(func() {
		englishMatcher, englishErr = refs.Compile(books.DefaultEnglish(), refs.English())
	})
	return englishMatcher, englishErr
}

// handleRefs lists the references in text, using the named project's
// separators and book names when project is given.
func (s *Server) handleRefs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("text")
	if text == "" {
		respondErr(w, s.log, errors.NewValidation("text", "text is required"))
		return
	}

	var (
		m   *refs.Matcher
		err error
	)
	if name := q.Get("project"); name != "" {
		var pctx *project.Context
		if _, pctx, err = s.openProject(name); err == nil {
			m = pctx.Matcher
		}
	} else {
		m, err = defaultMatcher()
	}
	if err != nil {
		respondErr(w, s.log, err)
		return
	}

	found := m.References(text, refs.ParsePolicy(q.Get("policy")))
	respondList(w, found, len(found))
}
