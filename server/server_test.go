package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meetingflow/bootstrap"
	"github.com/kbukum/meetingflow/component"
	"github.com/kbukum/meetingflow/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Enabled: true}
	cfg.ApplyDefaults()
	if cfg.Port != 8080 || cfg.MaxBodySize != "1MB" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	cfg.RateLimit = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative rate limit")
	}
}

func TestServerComponentServesHealth(t *testing.T) {
	cfg := Config{Enabled: true, Host: "127.0.0.1", Port: 0}
	cfg.ApplyDefaults()
	cfg.Port = 0

	srv := New(cfg, logger.Nop())
	srv.ApplyDefaults("meetingflow", func(context.Context) []component.Health {
		return []component.Health{{Name: "worker", Status: component.StatusDegraded}}
	})
	sc := NewComponent(srv)

	if h := sc.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Fatalf("expected unhealthy before start, got %s", h.Status)
	}
	if err := sc.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	t.Cleanup(func() { _ = sc.Stop(context.Background()) })

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for degraded, got %d", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("expected degraded, got %s", body.Status)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("expected request id header from default middleware")
	}
}

func TestReadinessFailsWhenUnhealthy(t *testing.T) {
	srv := New(Config{}, logger.Nop())
	srv.RegisterDefaultEndpoints("meetingflow", func(context.Context) []component.Health {
		return []component.Health{{Name: "db", Status: component.StatusUnhealthy}}
	})

	for path, want := range map[string]int{"/ready": 503, "/health": 503, "/alive": 200, "/info": 200} {
		rec := newRecorder(srv, path)
		if rec != want {
			t.Errorf("%s: expected %d, got %d", path, want, rec)
		}
	}
}

func newRecorder(s *Server, path string) int {
	w := &statusRecorder{header: http.Header{}}
	req, _ := http.NewRequest(http.MethodGet, path, http.NoBody)
	s.GinEngine().ServeHTTP(w, req)
	return w.code
}

type statusRecorder struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func (r *statusRecorder) Header() http.Header { return r.header }
func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	return r.body.Write(b)
}
func (r *statusRecorder) WriteHeader(code int) {
	if r.code == 0 {
		r.code = code
	}
}

func TestFormatHandlerName(t *testing.T) {
	tests := map[string]string{
		"github.com/kbukum/meetingflow/server/admin.(*Handler).CancelJob-fm": "Handler.CancelJob",
		"github.com/kbukum/meetingflow/server/endpoint.Health.func1":         "health",
		"main.ping": "ping",
	}
	for in, want := range tests {
		if got := formatHandlerName(in); got != want {
			t.Errorf("formatHandlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTrackRoutesPutsSystemRoutesLast(t *testing.T) {
	srv := New(Config{}, logger.Nop())
	srv.RegisterDefaultEndpoints("meetingflow", nil)
	srv.GinEngine().POST("/api/v1/jobs/:id/cancel", func(*gin.Context) {})
	srv.GinEngine().GET("/api/v1/jobs/:id", func(*gin.Context) {})

	var out bytes.Buffer
	summary := bootstrap.NewSummary("meetingflow", "dev")
	summary.SetOutput(&out)
	srv.TrackRoutes(summary)
	summary.Display(nil)

	s := out.String()
	first := strings.Index(s, "/api/v1/jobs/:id ")
	cancel := strings.Index(s, "/api/v1/jobs/:id/cancel")
	health := strings.Index(s, "/health")
	if first < 0 || cancel < 0 || health < 0 {
		t.Fatalf("missing routes in summary:\n%s", s)
	}
	if !(first < cancel && cancel < health) {
		t.Errorf("unexpected route order:\n%s", s)
	}
}
