// Command staffkey mints a point-of-sale key and prints it once.
//
//	DATABASE_URL=... go run ./cmd/staffkey -name "Front till"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberloaf/loyalty/internal/auth"
	"github.com/emberloaf/loyalty/internal/config"
	"github.com/emberloaf/loyalty/internal/repository"
)

func main() {
	name := flag.String("name", "", "label shown in the ledger's created_by column")
	flag.Parse()
	if *name == "" {
		fmt.Fprintln(os.Stderr, "usage: staffkey -name <label>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		slog.Error("Loyalty schema migration failed", "error", err)
		os.Exit(1)
	}

	raw, key, err := auth.GenerateStaffKey(*name)
	if err != nil {
		slog.Error("Failed to generate staff key", "error", err)
		os.Exit(1)
	}
	if err := repository.NewStaffKeyRepo(pool).Create(ctx, key); err != nil {
		slog.Error("Failed to store staff key", "error", err)
		os.Exit(1)
	}
	slog.Info("Staff key created", "id", key.ID, "name", key.Name, "prefix", key.KeyPrefix)
	fmt.Println(raw)
}
