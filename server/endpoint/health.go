package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/voicememo/component"
	"github.com/kbukum/voicememo/version"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// HealthReport is the /health payload.
type HealthReport struct {
	Status     component.HealthStatus `json:"status"`
	Service    string                 `json:"service"`
	Version    string                 `json:"version"`
	CheckedAt  time.Time              `json:"checked_at"`
	Components []component.Health     `json:"components"`
	// Warnings lists the codes of degraded components, e.g. the pre-roll's
	// HARDWARE_UNAVAILABLE, so a UI can show a banner without parsing messages.
	Warnings []string `json:"warnings,omitempty"`
}

// Summarize folds component health into a report. Any unhealthy component
// makes the report unhealthy; disabled components are ignored.
func Summarize(service string, components []component.Health) HealthReport {
	r := HealthReport{
		Status:     component.StatusHealthy,
		Service:    service,
		Version:    version.Get().Short(),
		CheckedAt:  time.Now().UTC(),
		Components: components,
	}
	if r.Components == nil {
		r.Components = []component.Health{}
	}
	for _, ch := range components {
		switch ch.Status {
		case component.StatusUnhealthy:
			r.Status = component.StatusUnhealthy
		case component.StatusDegraded:
			if r.Status != component.StatusUnhealthy {
				r.Status = component.StatusDegraded
			}
			if ch.Code != "" {
				r.Warnings = append(r.Warnings, ch.Code)
			}
		}
	}
	return r
}

// Health serves Summarize over checker. Degraded still answers 200 since
// recording works without pre-roll.
func Health(service string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var components []component.Health
		if checker != nil {
			components = checker(c.Request.Context())
		}
		r := Summarize(service, components)
		code := http.StatusOK
		if r.Status == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, r)
	}
}
