package main

// Run database migrations:
//   go run ./cmd/migrate [up|down|status]

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"mirror-backend/internal/shared/config"
	"mirror-backend/internal/shared/storage/db"
	"mirror-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.LogLevel)
	defer telemetry.Sync()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	if err := run(context.Background(), cfg.DatabaseURL, cmd); err != nil {
		log.Printf("migrate %s: %v", cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, cmd string) error {
	action, err := actionFor(cmd)
	if err != nil {
		return err
	}
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, databaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer sqlDB.Close()
	return action(ctx, sqlDB)
}

func actionFor(cmd string) (func(context.Context, *sql.DB) error, error) {
	switch cmd {
	case "up":
		return db.RunMigrations, nil
	case "down":
		return db.RollbackMigration, nil
	case "status":
		return db.MigrationStatus, nil
	default:
		return nil, fmt.Errorf("unknown command %q (want up, down or status)", cmd)
	}
}
