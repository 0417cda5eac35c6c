package main

import (
	"flag"
	"log"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/packlane/packlane/internal/config"
	"github.com/packlane/packlane/internal/logger"
	"github.com/packlane/packlane/internal/postgres"
)

func main() {
	command := flag.String("command", "up", "Goose command to run: up, down or status")
	dir := flag.String("dir", "migrations", "Directory holding the migration files")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatalw("Failed to set goose dialect", "error", err)
	}

	logger.Infow("Running database migrations", "command", *command, "host", cfg.Postgres.Host)

	switch *command {
	case "up":
		err = goose.Up(db.DB.DB, *dir)
	case "down":
		err = goose.Down(db.DB.DB, *dir)
	case "status":
		err = goose.Status(db.DB.DB, *dir)
	default:
		logger.Fatalf("Unknown command: %s", *command)
	}
	if err != nil {
		logger.Fatalw("Migration failed", "error", err)
	}

	logger.Info("Migration completed successfully")
}
