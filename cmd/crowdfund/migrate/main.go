package main

import (
	"context"
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/crowdfund-client/pkg/config"
	"github.com/chainsafe/crowdfund-client/pkg/migrations/clientdb"
	"github.com/chainsafe/crowdfund-client/pkg/pgutil"
	mghelper "github.com/chainsafe/crowdfund-client/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	cfg, err := config.LoadDatabase(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	ctx := context.Background()
	db, err := pgutil.ConnectDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for crowdfund client database (%s)...\n", cfg.Database.Database)

	migrator := migrate.NewMigrator(db, clientdb.Migrations)
	if err := mghelper.RunMigrations(ctx, migrator, flag.Args()...); err != nil {
		mghelper.Exitf("%v", err)
	}
}
