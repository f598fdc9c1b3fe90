package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kbukum/meetingflow/component"
)

// RouteInfo is one HTTP route shown in the summary.
type RouteInfo struct {
	Method  string
	Path    string
	Handler string
}

// ConsumerInfo is one queue consumer shown in the summary.
type ConsumerInfo struct {
	Name   string
	Source string
	Group  string
}

// Summary prints what the service started with.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	routes          []RouteInfo
	consumers       []ConsumerInfo
	out             io.Writer
}

// NewSummary creates a summary written to stdout.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version, out: os.Stdout}
}

// SetOutput redirects the summary.
func (s *Summary) SetOutput(w io.Writer) { s.out = w }

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) { s.startupDuration = d }

// TrackRoute records an HTTP route.
func (s *Summary) TrackRoute(method, path, handler string) {
	s.routes = append(s.routes, RouteInfo{Method: method, Path: path, Handler: handler})
}

// TrackConsumer records a queue consumer.
func (s *Summary) TrackConsumer(name, source, group string) {
	s.consumers = append(s.consumers, ConsumerInfo{Name: name, Source: source, Group: group})
}

// Display prints the summary with descriptions and live health from registry.
func (s *Summary) Display(registry *component.Registry) {
	w := s.out
	fmt.Fprintf(w, "\n%s v%s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if registry != nil {
		if descs := registry.Describe(); len(descs) > 0 {
			fmt.Fprintf(w, "\nInfrastructure\n")
			for i, d := range descs {
				details := d.Details
				if d.Port > 0 {
					details = fmt.Sprintf("%s (:%d)", details, d.Port)
				}
				fmt.Fprintf(w, "   %s [%s] %s: %s\n", branch(i, len(descs)), d.Type, d.Name, details)
			}
		}
	}

	if len(s.routes) > 0 {
		fmt.Fprintf(w, "\nRoutes (%d)\n", len(s.routes))
		for i, r := range s.routes {
			fmt.Fprintf(w, "   %s %-7s %s -> %s\n", branch(i, len(s.routes)), r.Method, r.Path, r.Handler)
		}
	}

	if len(s.consumers) > 0 {
		fmt.Fprintf(w, "\nConsumers\n")
		for i, c := range s.consumers {
			group := ""
			if c.Group != "" {
				group = " group=" + c.Group
			}
			fmt.Fprintf(w, "   %s %s <- %s%s\n", branch(i, len(s.consumers)), c.Name, c.Source, group)
		}
	}

	if registry != nil {
		if hs := registry.HealthAll(context.Background()); len(hs) > 0 {
			fmt.Fprintf(w, "\nHealth: %s\n", component.Overall(hs))
			for i, h := range hs {
				msg := ""
				if h.Message != "" {
					msg = " (" + h.Message + ")"
				}
				fmt.Fprintf(w, "   %s %s %s: %s%s\n", branch(i, len(hs)), healthIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
			}
		}
	}
	fmt.Fprintln(w)
}

func branch(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
