package app

import (
	"context"
	"database/sql"
	"fmt"

	"roadwise/internal/config"
	"roadwise/internal/db"
	"roadwise/internal/migrate"
	"roadwise/internal/repo"
	"roadwise/internal/seed"
)

// Bootstrap opens the workspace database, applies migrations, loads the
// config, and seeds the demo dataset when the store is empty. Every CLI
// command and the server go through here so a fresh workspace always has a
// usable dashboard state.
func Bootstrap(ctx context.Context, workspace string) (*sql.DB, *config.Config, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	r := repo.Repo{DB: conn}
	teams, err := r.ListTeams(ctx)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if len(teams) == 0 {
		if err := seed.Apply(ctx, conn, seed.Options{
			Signalements: cfg.Seed.Signalements,
			Maintenances: cfg.Seed.Maintenances,
		}); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("seed: %w", err)
		}
	}
	return conn, cfg, nil
}
