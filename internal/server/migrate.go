package server

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/mohammad-safakhou/planweave/config"
)

// Migrate applies database migrations from the given directory.
// dir example: file://migrations
func Migrate(dir string, cfg config.PostgresConfig, direction string, steps int) error {
	if dir == "" {
		dir = "file://migrations"
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return err
	}

	m, err := migrate.New(dir, dsn)
	if err != nil {
		return err
	}
	switch direction {
	case "up":
		if steps > 0 {
			return m.Steps(steps)
		}
		return m.Up()
	case "down":
		if steps > 0 {
			return m.Steps(-steps)
		}
		return m.Down()
	default:
		return fmt.Errorf("unknown direction: %s", direction)
	}
}
