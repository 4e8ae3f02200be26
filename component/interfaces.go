package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusDisabled  HealthStatus = "disabled"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	// Code is a machine-readable condition, usually an AppError code.
	Code string `json:"code,omitempty"`
}

// Component represents a lifecycle-managed runtime piece.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop shuts the component down and releases its resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description holds summary information printed at startup.
type Description struct {
	// Name is the display name. If empty, the component's Name() is used.
	Name string
	// Type categorizes the component: "database", "redis", "capture", "server".
	Type string
	// Details is a one-liner such as "window=15s 16000Hz/1ch".
	Details string
}

// Describable is optionally implemented by components that report
// their configuration in the startup summary.
type Describable interface {
	Describe() Description
}

// Hook is a Component built from plain functions. Nil functions are no-ops
// and a nil HealthFn reports healthy.
type Hook struct {
	ID       string
	StartFn  func(ctx context.Context) error
	StopFn   func(ctx context.Context) error
	HealthFn func(ctx context.Context) Health
}

var _ Component = (*Hook)(nil)

func (h *Hook) Name() string { return h.ID }

func (h *Hook) Start(ctx context.Context) error {
	if h.StartFn == nil {
		return nil
	}
	return h.StartFn(ctx)
}

func (h *Hook) Stop(ctx context.Context) error {
	if h.StopFn == nil {
		return nil
	}
	return h.StopFn(ctx)
}

func (h *Hook) Health(ctx context.Context) Health {
	if h.HealthFn == nil {
		return Health{Name: h.ID, Status: StatusHealthy}
	}
	return h.HealthFn(ctx)
}
