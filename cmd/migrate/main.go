// Command migrate runs the embedded decision report migrations via goose.
//
// Usage:
//
//	go run ./cmd/migrate up          # Apply all pending migrations
//	go run ./cmd/migrate down        # Roll back the last migration
//	go run ./cmd/migrate status      # Show migration status
//	go run ./cmd/migrate version     # Show current schema version
//	go run ./cmd/migrate redo        # Roll back and re-apply last migration
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"verigate/internal/platform/postgres"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <command>")
		fmt.Println("Commands: up, down, status, version, redo, up-to <version>, down-to <version>")
		os.Exit(1)
	}

	_ = godotenv.Load()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		slog.Error("DATABASE_URL environment variable is required")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		slog.Error("failed to connect to database", "dsn", postgres.MaskDSN(dsn), "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	command := os.Args[1]
	if err := postgres.Run(ctx, db, command, os.Args[2:]...); err != nil {
		slog.Error("migration failed", "command", command, "error", err)
		_ = db.Close()
		os.Exit(1)
	}
}
