package main

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/safar/go-sql-shop/internal/config"
	"github.com/safar/go-sql-shop/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down] [dir]")
	}

	direction := os.Args[1]
	if direction != "up" && direction != "down" {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	migrationDir := "migrations"
	if len(os.Args) > 2 {
		migrationDir = os.Args[2]
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("connect to database")
	}
	defer db.Close()

	count, err := database.Migrate(context.Background(), db, migrationDir, direction, func(name string) {
		log.WithField("file", name).Info("running migration")
	})
	if err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	log.WithFields(log.Fields{"count": count, "direction": direction}).Info("migrations applied")
}
