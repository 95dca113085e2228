package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/rocha19/userserver/internal/migrations"
)

type Config struct {
	DBConnString string `env:"DB_CONN_STRING" envDefault:"postgresql://postgres:postgres@db:5432/postgres"`
}

func main() {
	var (
		up    = flag.Bool("up", false, "Run all pending migrations")
		down  = flag.Bool("down", false, "Rollback all migrations")
		steps = flag.Int("steps", 0, "Run specific number of migrations (positive for up, negative for down)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	config := &Config{}
	if err := env.Parse(config); err != nil {
		logger.Error("failed to parse configuration", "error", err)
		os.Exit(1)
	}

	migrator, err := migrations.NewMigrator(config.DBConnString, logger)
	if err != nil {
		logger.Error("failed to create migrator", "error", err)
		os.Exit(1)
	}

	if err := run(migrator, *up, *down, *steps); err != nil {
		logger.Error("migration failed", "error", err)
		migrator.Close()
		os.Exit(1)
	}

	if err := migrator.Close(); err != nil {
		logger.Error("failed to close migrator", "error", err)
	}
}

func run(migrator *migrations.Migrator, up, down bool, steps int) error {
	switch {
	case up:
		if err := migrator.Up(); err != nil {
			return err
		}
		fmt.Println("Migrations completed successfully")
	case down:
		if err := migrator.Down(); err != nil {
			return err
		}
		fmt.Println("Migrations rolled back successfully")
	case steps != 0:
		if err := migrator.Steps(steps); err != nil {
			return fmt.Errorf("steps %d: %w", steps, err)
		}
		fmt.Printf("Migrations completed successfully (%d steps)\n", steps)
	default:
		version, dirty, err := migrator.Version()
		if err != nil {
			return fmt.Errorf("failed to get migration version: %w", err)
		}
		fmt.Printf("Current migration version: %d, dirty: %t\n", version, dirty)
	}
	return nil
}
