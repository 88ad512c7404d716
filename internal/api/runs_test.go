package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/runner"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/logging"
)

func TestRunRequestSelector(t *testing.T) {
	tests := []struct {
		req  RunRequest
		want runner.Selector
		ok   bool
	}{
		{RunRequest{}, runner.Selector{Scope: checks.ScopeProject}, true},
		{RunRequest{Scope: "Book", Book: "mat"}, runner.Selector{Scope: checks.ScopeBook, Book: 40}, true},
		{RunRequest{Scope: "chapter", Book: "GEN", Chapter: 2}, runner.Selector{Scope: checks.ScopeChapter, Book: 1, Chapter: 2}, true},
		{RunRequest{Scope: "verse", Book: "REV", Chapter: 22, Verse: 21}, runner.Selector{Scope: checks.ScopeVerse, Book: 66, Chapter: 22, Verse: 21}, true},
		{RunRequest{Scope: "book"}, runner.Selector{}, false},
		{RunRequest{Scope: "page"}, runner.Selector{}, false},
	}
	for _, tt := range tests {
		got, err := tt.req.Selector()
		if (err == nil) != tt.ok {
			t.Errorf("%+v: error = %v, want ok=%v", tt.req, err, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("%+v: Selector() = %+v, want %+v", tt.req, got, tt.want)
		}
	}
}

func TestRunStoreFinish(t *testing.T) {
	tests := []struct {
		name string
		res  *runner.Result
		err  error
		want RunStatus
	}{
		{"completed", &runner.Result{}, nil, RunStatusCompleted},
		{"scheduling cancelled", &runner.Result{Cancelled: true}, nil, RunStatusCancelled},
		{"context cancelled", nil, context.Canceled, RunStatusCancelled},
		{"failed", nil, errors.New("disk gone"), RunStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRunStore()
			run, ctx := s.Create(context.Background(), RunRequest{Project: "TST"})
			if run.Status != RunStatusPending {
				t.Fatalf("new run status = %s", run.Status)
			}
			s.Start(run.ID)
			got := s.Finish(run.ID, tt.res, tt.err)
			if got.Status != tt.want || got.CompletedAt == nil {
				t.Errorf("Finish = %s (completed %v), want %s", got.Status, got.CompletedAt, tt.want)
			}
			if ctx.Err() == nil {
				t.Error("run context should be released after Finish")
			}

			// Later updates are ignored.
			s.SetProgress(run.ID, runner.Progress{Done: 1})
			if again, _ := s.Get(run.ID); again.Progress != nil || again.Status != tt.want {
				t.Errorf("run changed after Finish: %+v", again)
			}
		})
	}
}

func TestRunStoreCancel(t *testing.T) {
	s := NewRunStore()
	run, ctx := s.Create(context.Background(), RunRequest{})
	if err := s.Cancel(run.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatal("Cancel should cancel the run context")
	}
	if got, _ := s.Get(run.ID); got.Status != RunStatusPending {
		t.Errorf("status before the run returns = %s", got.Status)
	}
	s.Finish(run.ID, nil, ctx.Err())

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := s.Wait(waitCtx, run.ID)
	if err != nil || got.Status != RunStatusCancelled {
		t.Errorf("Wait = %s, %v", got.Status, err)
	}
	if err := s.Cancel(run.ID); err == nil {
		t.Error("cancelling a finished run should fail")
	}
	if err := s.Cancel("missing"); err == nil {
		t.Error("cancelling a missing run should fail")
	}
}

func TestRunStoreList(t *testing.T) {
	s := NewRunStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	first, _ := s.Create(context.Background(), RunRequest{Project: "A"})
	second, _ := s.Create(context.Background(), RunRequest{Project: "B"})

	list := s.List()
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Errorf("List order = %+v", list)
	}
	s.CancelAll()
	for _, r := range list {
		if _, ok := s.Get(r.ID); !ok {
			t.Errorf("run %s disappeared", r.ID)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, BurstSize: 2}, logging.Discard())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/checks", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("throttled response has no Retry-After")
	}

	if rl.Allow("192.0.2.2") != true {
		t.Error("another client should have its own bucket")
	}
	now = now.Add(time.Second)
	if !rl.Allow("192.0.2.1") {
		t.Error("a token should refill after one second")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:80", "192.0.2.1"},
		{"forwarded", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"}, "10.0.0.1:80", "198.51.100.7"},
		{"bad forwarded", map[string]string{"X-Forwarded-For": "evil", "X-Real-IP": "198.51.100.8"}, "10.0.0.1:80", "198.51.100.8"},
		{"garbage", nil, "nonsense", "unknown"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		for k, v := range tt.headers {
			req.Header.Set(k, v)
		}
		if got := clientIP(req); got != tt.want {
			t.Errorf("%s: clientIP = %q, want %q", tt.name, got, tt.want)
		}
	}
}
