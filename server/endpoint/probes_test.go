package endpoint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meetingflow/component"
)

func serve(t *testing.T, h gin.HandlerFunc) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.GET("/", h)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rr.Code, body
}

func fixed(statuses ...component.HealthStatus) HealthChecker {
	return func(context.Context) []component.Health {
		hs := make([]component.Health, len(statuses))
		for i, s := range statuses {
			hs[i] = component.Health{Name: string(s), Status: s}
		}
		return hs
	}
}

func TestHealthAndReadiness(t *testing.T) {
	tests := []struct {
		name      string
		checker   HealthChecker
		code      int
		readiness string
	}{
		{"no checker", nil, http.StatusOK, "ready"},
		{"healthy", fixed(component.StatusHealthy), http.StatusOK, "ready"},
		{"degraded", fixed(component.StatusHealthy, component.StatusDegraded), http.StatusOK, "ready"},
		{"unhealthy", fixed(component.StatusHealthy, component.StatusUnhealthy), http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := serve(t, Health("svc", tt.checker))
			if code != tt.code {
				t.Errorf("health code = %d, want %d", code, tt.code)
			}
			code, body := serve(t, Readiness("svc", tt.checker))
			if code != tt.code || body["status"] != tt.readiness {
				t.Errorf("readiness = %d %v", code, body["status"])
			}
		})
	}
}

func TestLivenessAndInfo(t *testing.T) {
	if code, body := serve(t, Liveness("svc")); code != http.StatusOK || body["status"] != "alive" {
		t.Errorf("liveness = %d %v", code, body)
	}
	code, body := serve(t, Info("svc"))
	if code != http.StatusOK || body["service"] != "svc" || body["uptime"] == "" {
		t.Errorf("info = %d %v", code, body)
	}
}
