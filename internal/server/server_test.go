package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
		wantCreds  bool
	}{
		{"allow all", nil, http.MethodGet, "https://a.example", http.StatusOK, "*", false},
		{"allow all preflight", nil, http.MethodOptions, "https://a.example", http.StatusNoContent, "*", false},
		{"listed origin", []string{"https://a.example"}, http.MethodGet, "https://a.example", http.StatusOK, "https://a.example", true},
		{"unlisted origin", []string{"https://a.example"}, http.MethodGet, "https://b.example", http.StatusOK, "", false},
		{"unlisted preflight", []string{"https://a.example"}, http.MethodOptions, "https://b.example", http.StatusForbidden, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(CORSConfig{AllowedOrigins: tt.allowed}, ok)
			req := httptest.NewRequest(tt.method, "/checks", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCreds {
				t.Errorf("Allow-Credentials = %v, want %v", got, tt.wantCreds)
			}
		})
	}
}

func TestCSPHeader(t *testing.T) {
	got := APICSPConfig().Header()
	want := "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"
	if got != want {
		t.Errorf("Header() = %q, want %q", got, want)
	}
	if got := (CSPConfig{}).Header(); got != "" {
		t.Errorf("empty config Header() = %q", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(APICSPConfig(), ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": APICSPConfig().Header(),
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		ct   string
		want bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"Application/JSON", true},
		{"text/plain", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidateContentType(tt.ct, "application/json"); got != tt.want {
			t.Errorf("ValidateContentType(%q) = %v, want %v", tt.ct, got, tt.want)
		}
	}
}

func TestRequireJSON(t *testing.T) {
	tests := []struct {
		name   string
		method string
		ct     string
		body   string
		want   int
	}{
		{"json body", http.MethodPost, "application/json", "{}", http.StatusOK},
		{"no content type", http.MethodPost, "", "{}", http.StatusOK},
		{"xml body", http.MethodPost, "application/xml", "<a/>", http.StatusUnsupportedMediaType},
		{"empty body", http.MethodDelete, "text/plain", "", http.StatusOK},
		{"get", http.MethodGet, "text/plain", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/checks", strings.NewReader(tt.body))
			if tt.ct != "" {
				req.Header.Set("Content-Type", tt.ct)
			}
			rec := httptest.NewRecorder()
			RequireJSON(ok).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
