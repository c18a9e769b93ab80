package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/stanislavNemch/psychologists-services/internal/repository/postgres"
	"github.com/stanislavNemch/psychologists-services/internal/service/catalog"
	"github.com/stanislavNemch/psychologists-services/pkg/config"
	"github.com/stanislavNemch/psychologists-services/pkg/logger"
)

// seed loads a keyed JSON snapshot of psychologist profiles into the catalog.
func main() {
	file := flag.String("file", "db/seed/psychologists.json", "path to profile snapshot")
	timeout := flag.Duration("timeout", time.Minute, "import timeout")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.LoadAPIConfig()
	log := logger.New("seed", slog.LevelInfo)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	snapshot, err := os.ReadFile(*file)
	if err != nil {
		log.Error("failed to read snapshot file", "file", *file, "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := catalog.New(postgres.New(pool), log, cfg)
	imported, err := svc.Import(ctx, snapshot)
	if err != nil {
		log.Error("snapshot import failed", "imported", imported, "error", err)
		os.Exit(1)
	}
	log.Info("snapshot import completed", "imported", imported)
}
