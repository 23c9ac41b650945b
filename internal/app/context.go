// Package app wires the workspace pieces together for the CLI and server.
package app

import (
	"database/sql"
	"fmt"

	"github.com/akshaydotweb/drone-ops-ai/internal/config"
	"github.com/akshaydotweb/drone-ops-ai/internal/conflict"
	"github.com/akshaydotweb/drone-ops-ai/internal/db"
	"github.com/akshaydotweb/drone-ops-ai/internal/engine"
	"github.com/akshaydotweb/drone-ops-ai/internal/migrate"
	"github.com/akshaydotweb/drone-ops-ai/internal/query"
)

// Desk bundles an open store with the services built on it.
type Desk struct {
	DB       *sql.DB
	Config   *config.Config
	Engine   engine.Engine
	Detector conflict.Detector
}

// Open loads the workspace config (falling back to defaults when no
// droneops.yml exists), opens the database, and applies migrations.
func Open(workspace string) (*Desk, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("droneops")
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	eng := engine.New(conn, cfg)
	return &Desk{
		DB:       conn,
		Config:   cfg,
		Engine:   eng,
		Detector: conflict.Detector{Repo: eng.Repo},
	}, nil
}

func (d *Desk) Close() error {
	return d.DB.Close()
}

// Dispatcher builds the chat front end, with an optional LLM passthrough.
func (d *Desk) Dispatcher(llm query.Answerer) *query.Dispatcher {
	return query.New(d.Engine, d.Detector, d.Config.Locations, llm)
}
