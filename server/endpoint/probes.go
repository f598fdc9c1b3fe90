// Package endpoint serves the probe and build-info routes of the admin
// server.
package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meetingflow/component"
	"github.com/kbukum/meetingflow/version"
)

// HealthChecker reports every registered component.
type HealthChecker func(ctx context.Context) []component.Health

var started = time.Now()

func check(ctx context.Context, checker HealthChecker) []component.Health {
	if checker == nil {
		return nil
	}
	return checker(ctx)
}

func statusCode(ok bool) int {
	if ok {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

// Health lists each component; any unhealthy one turns the answer into 503.
func Health(service string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		hs := check(c.Request.Context(), checker)
		overall := component.Overall(hs)
		c.JSON(statusCode(overall != component.StatusUnhealthy), gin.H{
			"service":    service,
			"status":     overall,
			"components": hs,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Readiness treats degraded as ready.
func Readiness(service string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ready := component.Overall(check(c.Request.Context(), checker)) != component.StatusUnhealthy
		state := "ready"
		if !ready {
			state = "not_ready"
		}
		c.JSON(statusCode(ready), gin.H{"service": service, "status": state})
	}
}

func Liveness(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": service, "status": "alive"})
	}
}

func Info(service string) gin.HandlerFunc {
	v := version.Get()
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":    service,
			"version":    v.Version,
			"git_commit": v.GitCommit,
			"build_time": v.BuildTime,
			"go_version": v.GoVersion,
			"uptime":     time.Since(started).Round(time.Second).String(),
		})
	}
}
