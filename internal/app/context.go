package app

import (
	"fmt"

	"talentline/internal/config"
	"talentline/internal/db"
	"talentline/internal/engine"
	"talentline/internal/migrate"
)

// Env bundles everything a command needs to talk to a workspace.
type Env struct {
	Engine engine.Engine
	Config *config.Config
	Close  func() error
}

// Open prepares a workspace end to end: directory, database, migrations and
// config. Both the CLI and the server boot through here so they agree on
// workspace layout.
func Open(workspace string) (*Env, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, fmt.Errorf("ensure workspace: %w", err)
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Env{
		Engine: engine.New(conn, cfg),
		Config: cfg,
		Close:  conn.Close,
	}, nil
}
