package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/uptrace/bun/migrate"

	"github.com/fundlink/crowdfund-middleware/pkg/config"
	"github.com/fundlink/crowdfund-middleware/pkg/migrations/relayerdb"
	"github.com/fundlink/crowdfund-middleware/pkg/pgutil"
	mghelper "github.com/fundlink/crowdfund-middleware/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	// Connect to database
	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database %s: %s", cfg.Database.Database, err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for relayer database (%s)...\n", cfg.Database.Database)

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, relayerdb.Migrations)

	command := "up"
	if args := flag.Args(); len(args) > 0 {
		command = strings.ToLower(args[0])
	}

	switch command {
	case "init":
		if err := migrator.Init(ctx); err != nil {
			mghelper.Exitf(err.Error())
		}
		log.Println("migration tables created")
	case "up":
		if err := migrator.Init(ctx); err != nil {
			mghelper.Exitf(err.Error())
		}
		group, err := migrator.Migrate(ctx)
		if err != nil {
			mghelper.Exitf(err.Error())
		}
		if group.IsZero() {
			log.Println("database is up to date")
		} else {
			log.Printf("migrated to %s\n", group)
		}
	case "down":
		group, err := migrator.Rollback(ctx)
		if err != nil {
			mghelper.Exitf(err.Error())
		}
		if group.IsZero() {
			log.Println("no migrations to roll back")
		} else {
			log.Printf("rolled back %s\n", group)
		}
	case "status":
		status, err := migrator.MigrationsWithStatus(ctx)
		if err != nil {
			mghelper.Exitf(err.Error())
		}
		log.Printf("migrations: %s\n", status)
		log.Printf("unapplied: %s\n", status.Unapplied())
		log.Printf("last group: %s\n", status.LastGroup())
	default:
		mghelper.Exitf("unknown command %q (want init, up, down or status)", command)
	}
}
