package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// bufferLogger returns a debug-level JSON logger writing to a buffer.
func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Options{Level: LevelDebug, Format: FormatJSON, Writer: &buf}), &buf
}

// lines decodes every JSON log line in buf.
func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		format    Format
		wantDebug bool
		wantInfo  bool
		wantJSON  bool
	}{
		{"debug json", LevelDebug, FormatJSON, true, true, true},
		{"info text", LevelInfo, FormatText, false, true, false},
		{"warn json", LevelWarn, FormatJSON, false, false, true},
		{"error text", LevelError, FormatText, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Options{Level: tt.level, Format: tt.format, Writer: &buf})
			log.Debug("debug message")
			log.Info("info message")
			out := buf.String()

			if got := strings.Contains(out, "debug message"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(out, "info message"); got != tt.wantInfo {
				t.Errorf("info logged = %v, want %v", got, tt.wantInfo)
			}
			if tt.wantInfo {
				if got := strings.HasPrefix(out, "{"); got != tt.wantJSON {
					t.Errorf("json output = %v, want %v: %s", got, tt.wantJSON, out)
				}
			}
		})
	}
}

func TestTimestampFormat(t *testing.T) {
	log, buf := bufferLogger()
	log.Info("timestamp test")
	entries := lines(t, buf)
	if len(entries) != 1 {
		t.Fatalf("got %d lines", len(entries))
	}
	ts, _ := entries[0]["time"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}
}

func TestParseLevelAndFormat(t *testing.T) {
	levels := map[string]Level{"debug": LevelDebug, "INFO": LevelInfo, "": LevelInfo, "warning": LevelWarn, "Error": LevelError}
	for in, want := range levels {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) should fail")
	}

	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(text) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetRunID(ctx) != "" {
		t.Error("empty context should carry no IDs")
	}
	ctx = WithRunID(WithRequestID(ctx, "req-1"), "run-1")
	if GetRequestID(ctx) != "req-1" || GetRunID(ctx) != "run-1" {
		t.Errorf("ids = %q, %q", GetRequestID(ctx), GetRunID(ctx))
	}
}

func TestFromContext(t *testing.T) {
	base, baseBuf := bufferLogger()
	other, otherBuf := bufferLogger()

	ctx := WithRunID(WithRequestID(context.Background(), "req-1"), "run-1")
	FromContext(ctx, base).Info("with ids")
	entries := lines(t, baseBuf)
	if len(entries) != 1 || entries[0]["request_id"] != "req-1" || entries[0]["run_id"] != "run-1" {
		t.Errorf("entries = %v", entries)
	}

	FromContext(WithLogger(context.Background(), other), base).Info("stored logger")
	if !strings.Contains(otherBuf.String(), "stored logger") {
		t.Error("FromContext should prefer the context's logger")
	}

	// A nil base still yields a usable logger.
	FromContext(context.Background(), nil).Info("dropped")
}

func TestEventHelpers(t *testing.T) {
	log, buf := bufferLogger()

	HTTPRequest(log, "GET", "/health", "127.0.0.1", 200, 15*time.Millisecond, "extra", "x")
	CheckFailure(log, "Spelling", "MAT 3:16", errors.New("boom"))
	RunSummary(log, "TST", 3, 1, 2, false, time.Second)
	WebSocketEvent(log, "connect", 2)
	ServerStartup(log, "api", "http", 8080)

	entries := lines(t, buf)
	if len(entries) != 5 {
		t.Fatalf("got %d lines, want 5", len(entries))
	}
	tests := []struct {
		msg   string
		key   string
		value any
	}{
		{"http_request", "status_code", float64(200)},
		{"check_failure", "error", "boom"},
		{"run_summary", "suppressed", float64(2)},
		{"websocket_event", "client_count", float64(2)},
		{"server_startup", "port", float64(8080)},
	}
	for i, tt := range tests {
		if entries[i]["msg"] != tt.msg || entries[i][tt.key] != tt.value {
			t.Errorf("line %d = %v, want msg %s with %s=%v", i, entries[i], tt.msg, tt.key, tt.value)
		}
	}
	if entries[0]["extra"] != "x" || entries[0]["duration_ms"] != float64(15) {
		t.Errorf("http_request extras = %v", entries[0])
	}
	if entries[1]["level"] != "WARN" {
		t.Errorf("check_failure level = %v", entries[1]["level"])
	}
}

func TestResponseWriter_WriteHeader(t *testing.T) {
	tests := []struct {
		name         string
		writeCode    int
		expectedCode int
		callTwice    bool
	}{
		{"Write header once", http.StatusNotFound, http.StatusNotFound, false},
		{"Write header twice (second call ignored)", http.StatusNotFound, http.StatusNotFound, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
			rw.WriteHeader(tt.writeCode)
			if tt.callTwice {
				rw.WriteHeader(http.StatusInternalServerError)
			}
			if rw.statusCode != tt.expectedCode {
				t.Errorf("Expected status code %d, got %d", tt.expectedCode, rw.statusCode)
			}
			if !rw.written {
				t.Error("Expected written flag to be true")
			}
		})
	}
}

func TestResponseWriter_Write(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	n, err := rw.Write([]byte("test data"))
	if err != nil || n != 9 {
		t.Errorf("Write = %d, %v", n, err)
	}
	if rw.statusCode != http.StatusOK || !rw.written {
		t.Errorf("status %d, written %v", rw.statusCode, rw.written)
	}
}

func TestResponseWriter_HijackUnsupported(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil {
		t.Error("Hijack on a recorder should fail")
	}
	if rw.Unwrap() == nil {
		t.Error("Unwrap returned nil")
	}
}

func TestGenerateRequestID(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateRequestID()
		if len(id) != 16 {
			t.Errorf("Expected request ID length 16, got %d", len(id))
		}
		if ids[id] {
			t.Error("Generated duplicate request ID")
		}
		ids[id] = true
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		existingHeader string
		want           string
	}{
		{"Generate new request ID", "", ""},
		{"Use existing request ID from header", "existing-req-id-123", "existing-req-id-123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.existingHeader != "" {
				req.Header.Set("X-Request-ID", tt.existingHeader)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if got == "" || got != seen {
				t.Errorf("header %q, context %q", got, seen)
			}
			if tt.want != "" && got != tt.want {
				t.Errorf("request ID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		statusCode int
		write      bool
	}{
		{"GET request", http.MethodGet, "/checks", http.StatusOK, false},
		{"POST request", http.MethodPost, "/runs", http.StatusAccepted, false},
		{"implicit 200", http.MethodGet, "/health", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := bufferLogger()
			handler := Middleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				FromContext(r.Context(), nil).Info("inside handler")
				if tt.write {
					_, _ = w.Write([]byte("ok"))
					return
				}
				w.WriteHeader(tt.statusCode)
			}))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			entries := lines(t, buf)
			if len(entries) != 2 {
				t.Fatalf("got %d log lines, want 2", len(entries))
			}
			if entries[0]["msg"] != "inside handler" || entries[0]["request_id"] == nil {
				t.Errorf("handler line = %v", entries[0])
			}
			want := tt.statusCode
			if tt.write {
				want = http.StatusOK
			}
			req := entries[1]
			if req["method"] != tt.method || req["path"] != tt.path || req["status_code"] != float64(want) {
				t.Errorf("request line = %v", req)
			}
			if req["request_id"] != w.Header().Get("X-Request-ID") {
				t.Errorf("request_id %v, header %q", req["request_id"], w.Header().Get("X-Request-ID"))
			}
		})
	}
}
