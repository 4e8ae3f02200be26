package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kbukum/voicememo/component"
)

// Summary prints what the process started with.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	out             io.Writer
}

// NewSummary creates a summary that writes to stderr.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version, out: os.Stderr}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// Display writes the component list with live health. A nil writer prints
// nothing.
func (s *Summary) Display(ctx context.Context, registry *component.Registry) {
	if s.out == nil {
		return
	}
	w := s.out
	version := s.version
	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(w, "\n%s %s started in %.2fs\n", s.serviceName, version, s.startupDuration.Seconds())
	if registry == nil {
		fmt.Fprintln(w)
		return
	}

	health := make(map[string]component.Health)
	for _, h := range registry.HealthAll(ctx) {
		health[h.Name] = h
	}
	all := registry.All()
	if len(all) == 0 {
		fmt.Fprintf(w, "   └── no components registered\n\n")
		return
	}

	healthy := 0
	for i, c := range all {
		h := health[c.Name()]
		if h.Status == component.StatusHealthy {
			healthy++
		}
		label := c.Name()
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			label = fmt.Sprintf("%s [%s] %s", desc.Name, desc.Type, desc.Details)
		}
		msg := ""
		if h.Message != "" {
			msg = " (" + h.Message + ")"
		}
		fmt.Fprintf(w, "   %s %s %s%s\n", treePrefix(i, len(all)), statusIcon(h.Status), label, msg)
	}
	fmt.Fprintf(w, "   %d/%d healthy\n\n", healthy, len(all))
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func statusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusDisabled:
		return "⏸️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
