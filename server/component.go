package server

import (
	"context"

	"github.com/kbukum/voicememo/component"
)

const componentName = "control-api"

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component wraps Server for lifecycle management.
type Component struct {
	server  *Server
	started bool
}

// NewComponent returns a component.Component backed by s.
func NewComponent(s *Server) *Component {
	return &Component{server: s}
}

func (sc *Component) Name() string { return componentName }

func (sc *Component) Start(ctx context.Context) error {
	if err := sc.server.Start(ctx); err != nil {
		return err
	}
	sc.started = true
	return nil
}

func (sc *Component) Stop(ctx context.Context) error {
	if !sc.started {
		return nil
	}
	sc.started = false
	return sc.server.Stop(ctx)
}

func (sc *Component) Health(_ context.Context) component.Health {
	if !sc.started {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not listening"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy}
}

func (sc *Component) Describe() component.Description {
	return component.Description{
		Name:    "Control API",
		Type:    "server",
		Details: "http://" + sc.server.Addr(),
	}
}
