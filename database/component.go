package database

import (
	"context"
	"fmt"

	"github.com/kbukum/meetingflow/component"
	"github.com/kbukum/meetingflow/logger"
)

// Component opens the database under the component registry. Models given
// to WithAutoMigrate are migrated on Start when cfg.AutoMigrate is set.
type Component struct {
	cfg    Config
	log    *logger.Logger
	models []any
	db     *DB
}

var _ component.Component = (*Component)(nil)

func NewComponent(cfg Config, log *logger.Logger) *Component {
	if log == nil {
		log = logger.Nop()
	}
	return &Component{cfg: cfg, log: log.WithComponent("database")}
}

// WithAutoMigrate adds models to migrate on Start.
func (c *Component) WithAutoMigrate(models ...any) *Component {
	c.models = append(c.models, models...)
	return c
}

// DB is nil until Start succeeds.
func (c *Component) DB() *DB { return c.db }

func (c *Component) Name() string { return "database" }

func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return fmt.Errorf("database: disabled in config")
	}
	db, err := Open(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	if c.cfg.AutoMigrate && len(c.models) > 0 {
		if err := db.AutoMigrate(c.models...); err != nil {
			_ = db.Close()
			return err
		}
		c.log.Info("tables migrated", logger.Fields("tables", len(c.models)))
	}
	c.db = db
	return nil
}

func (c *Component) Stop(context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Health pings and reports pool usage.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusUnhealthy}
	if c.db == nil {
		h.Message = "not started"
		return h
	}
	if err := c.db.PingContext(ctx); err != nil {
		h.Message = err.Error()
		return h
	}
	h.Status = component.StatusHealthy
	if sqlDB, err := c.db.GormDB.DB(); err == nil {
		s := sqlDB.Stats()
		h.Message = fmt.Sprintf("%d/%d connections in use", s.InUse, s.OpenConnections)
	}
	return h
}

func (c *Component) Describe() component.Description {
	details := c.cfg.Driver + " " + c.cfg.DSN
	if c.cfg.AutoMigrate {
		details += " (auto-migrate)"
	}
	return component.Description{Name: "Database", Type: "database", Details: details}
}
