package middleware_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/server/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	return rr
}

func TestRecovery(t *testing.T) {
	e := gin.New()
	e.Use(middleware.Recovery(logger.Nop()))
	e.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	e.GET("/boom", func(*gin.Context) { panic("test panic") })

	if rr := serve(e, httptest.NewRequest("GET", "/ok", http.NoBody)); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr := serve(e, httptest.NewRequest("GET", "/boom", http.NoBody))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body["error"] != "Internal server error" {
		t.Fatalf("unexpected error message: %s", body["error"])
	}
}

func TestRequestID(t *testing.T) {
	e := gin.New()
	e.Use(middleware.RequestID())
	var seen string
	e.GET("/", func(c *gin.Context) { seen = c.GetString("request_id") })

	rr := serve(e, httptest.NewRequest("GET", "/", http.NoBody))
	if seen == "" || rr.Header().Get(middleware.RequestIDHeader) != seen {
		t.Fatalf("expected generated id echoed, got %q / %q", seen, rr.Header().Get(middleware.RequestIDHeader))
	}

	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rr = serve(e, req)
	if seen != "req-42" || rr.Header().Get(middleware.RequestIDHeader) != "req-42" {
		t.Fatalf("expected caller id preserved, got %q", seen)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		cfg        middleware.CORSConfig
		method     string
		origin     string
		wantOrigin string
		wantCode   int
		wantCreds  bool
	}{
		{"allowed", middleware.CORSConfig{AllowedOrigins: []string{"https://ops.example.com"}}, "GET", "https://ops.example.com", "https://ops.example.com", 200, false},
		{"wildcard", middleware.CORSConfig{AllowedOrigins: []string{"*"}}, "GET", "https://a.example.com", "https://a.example.com", 200, false},
		{"disallowed", middleware.CORSConfig{AllowedOrigins: []string{"https://ops.example.com"}}, "GET", "https://evil.example.com", "", 200, false},
		{"no origins configured", middleware.CORSConfig{}, "GET", "https://ops.example.com", "", 200, false},
		{"preflight", middleware.CORSConfig{AllowedOrigins: []string{"*"}}, "OPTIONS", "https://a.example.com", "https://a.example.com", 204, false},
		{"credentials", middleware.CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}, "GET", "https://a.example.com", "https://a.example.com", 200, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := gin.New()
			e.Use(middleware.CORS(&tt.cfg))
			e.Any("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/", http.NoBody)
			req.Header.Set("Origin", tt.origin)
			rr := serve(e, req)

			if rr.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow-origin: expected %q, got %q", tt.wantOrigin, got)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCreds {
				t.Errorf("allow-credentials: expected %v", tt.wantCreds)
			}
		})
	}
}

func TestBodySizeLimit(t *testing.T) {
	e := gin.New()
	e.Use(middleware.BodySizeLimit("1KB"))
	e.POST("/", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	if rr := serve(e, httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 512)))); rr.Code != http.StatusOK {
		t.Errorf("small body: expected 200, got %d", rr.Code)
	}
	if rr := serve(e, httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 2048)))); rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("large body: expected 413, got %d", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	e := gin.New()
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerMinute: 2,
		KeyFunc:           func(c *gin.Context) string { return c.GetHeader("X-Client") },
		Now:               func() time.Time { return now },
	}))
	e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(client string) int {
		req := httptest.NewRequest("GET", "/", http.NoBody)
		req.Header.Set("X-Client", client)
		return serve(e, req).Code
	}

	for i, want := range []int{200, 200, 429} {
		if got := call("a"); got != want {
			t.Errorf("call %d: expected %d, got %d", i, want, got)
		}
	}
	if got := call("b"); got != http.StatusOK {
		t.Errorf("other client: expected 200, got %d", got)
	}
	now = now.Add(61 * time.Second)
	if got := call("a"); got != http.StatusOK {
		t.Errorf("after window: expected 200, got %d", got)
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf strings.Builder
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "test", &buf)
	e := gin.New()
	e.Use(middleware.RequestLogger(log))
	e.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	e.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	serve(e, httptest.NewRequest("GET", "/health", http.NoBody))
	if buf.Len() != 0 {
		t.Fatalf("probe requests must not be logged: %s", buf.String())
	}

	serve(e, httptest.NewRequest("GET", "/fail", http.NoBody))
	out := buf.String()
	if !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, `"status":502`) {
		t.Fatalf("expected an error-level entry with the status, got %s", out)
	}
}
