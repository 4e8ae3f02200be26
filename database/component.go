package database

import (
	"context"
	"fmt"

	"github.com/kbukum/voicememo/component"
	"github.com/kbukum/voicememo/logger"
)

// Component wraps DB for lifecycle management.
type Component struct {
	db  *DB
	cfg Config
	log *logger.Logger
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a database component. Migrations always run on Start.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	cfg.Migrate = true
	if log == nil {
		log = logger.WithComponent("database")
	}
	return &Component{cfg: cfg, log: log}
}

// DB returns the underlying *DB, or nil if not started.
func (c *Component) DB() *DB { return c.db }

func (c *Component) Name() string { return "database" }

func (c *Component) Start(ctx context.Context) error {
	if c.db != nil {
		return nil
	}
	db, err := Open(ctx, c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("database start: %w", err)
	}
	c.db = db
	return nil
}

func (c *Component) Stop(_ context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Component) Health(ctx context.Context) component.Health {
	if c.db == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "database not opened"}
	}
	if err := c.db.PingContext(ctx); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func (c *Component) Describe() component.Description {
	return component.Description{Name: "State DB", Type: "database", Details: "sqlite " + c.cfg.Path}
}
