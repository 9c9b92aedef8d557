// Removes uploaded documents that no application references.
// cmd/cleanup-orphans/main.go
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"bursary-management-api/config"
	"bursary-management-api/repository"
	"bursary-management-api/services"

	"github.com/joho/godotenv"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "list orphans without deleting them")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, logFile := config.InitLogging(cfg.Database.Env)
	if logFile != nil {
		defer logFile.Close()
	}

	db, err := config.OpenDB(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	blobs, err := services.NewBlobStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to open blob store: %v", err)
	}

	report, err := services.NewOrphanCleaner(repository.NewGormStore(db), blobs, logger).Run(ctx, *dryRun)
	if err != nil {
		logger.Fatalf("Cleanup failed: %v", err)
	}
	for _, handle := range report.Orphans {
		logger.WithField("handle", handle).Info("orphan")
	}
	log.Printf("scanned=%d referenced=%d orphans=%d removed=%d dry_run=%v",
		report.Scanned, report.Referenced, len(report.Orphans), report.Removed, report.DryRun)
}
