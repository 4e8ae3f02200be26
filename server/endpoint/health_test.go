package endpoint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/voicememo/component"
)

func init() { gin.SetMode(gin.TestMode) }

func TestSummarize(t *testing.T) {
	tests := []struct {
		name       string
		components []component.Health
		want       component.HealthStatus
		warnings   []string
	}{
		{"no components", nil, component.StatusHealthy, nil},
		{"disabled ignored", []component.Health{{Name: "redis", Status: component.StatusDisabled}}, component.StatusHealthy, nil},
		{"degraded preroll", []component.Health{
			{Name: "database", Status: component.StatusHealthy},
			{Name: "preroll", Status: component.StatusDegraded, Code: "HARDWARE_UNAVAILABLE"},
		}, component.StatusDegraded, []string{"HARDWARE_UNAVAILABLE"}},
		{"unhealthy wins", []component.Health{
			{Name: "preroll", Status: component.StatusDegraded, Code: "DEVICE_BUSY"},
			{Name: "database", Status: component.StatusUnhealthy},
		}, component.StatusUnhealthy, []string{"DEVICE_BUSY"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Summarize("voicememo", tt.components)
			if r.Status != tt.want {
				t.Errorf("status = %s, want %s", r.Status, tt.want)
			}
			if !slices.Equal(r.Warnings, tt.warnings) {
				t.Errorf("warnings = %v, want %v", r.Warnings, tt.warnings)
			}
			if r.Components == nil || r.Version == "" {
				t.Errorf("report = %+v", r)
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	status := component.StatusDegraded
	checker := func(context.Context) []component.Health {
		return []component.Health{{Name: "preroll", Status: status, Code: "HARDWARE_UNAVAILABLE"}}
	}
	engine := gin.New()
	engine.GET("/health", Health("voicememo", checker))

	get := func() (int, HealthReport) {
		rr := httptest.NewRecorder()
		engine.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		var r HealthReport
		if err := json.Unmarshal(rr.Body.Bytes(), &r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return rr.Code, r
	}

	code, r := get()
	if code != http.StatusOK || r.Status != component.StatusDegraded || len(r.Warnings) != 1 {
		t.Errorf("degraded: %d %+v", code, r)
	}

	status = component.StatusUnhealthy
	if code, _ := get(); code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy: status %d, want 503", code)
	}
}
