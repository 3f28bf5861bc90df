// Package main provides a small inspection entry point for the CareSync
// conflict core: it opens the local store and prints the pending-review
// queue and recent audit activity.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/caretab/caresync/internal/config"
	"github.com/caretab/caresync/internal/db"
	"github.com/caretab/caresync/internal/logging"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	dataDir := flag.String("data", "./data", "data directory holding the conflict store")
	configPath := flag.String("config", "./caresync.yaml", "engine configuration file")
	auditLimit := flag.Int("audit", 10, "number of recent audit entries to show")
	flag.Parse()

	logging.Init(os.Stderr, logging.LevelInfo)
	fmt.Printf("CareSync Conflict Core v%s\n", Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("failed to load configuration", err)
		os.Exit(1)
	}

	database, err := db.Open(*dataDir)
	if err != nil {
		logging.Error("failed to open conflict store", err, map[string]any{"data_dir": *dataDir})
		os.Exit(1)
	}
	defer database.Close()

	pending := db.NewPendingRepository(database)
	audit := db.NewAuditRepository(database, cfg.AuditCapacity)

	pendings, err := pending.List()
	if err != nil {
		logging.Error("failed to list pending conflicts", err)
		os.Exit(1)
	}
	fmt.Printf("\nPending conflicts awaiting review: %d\n", len(pendings))
	for _, p := range pendings {
		fmt.Printf("  %s  %s/%s  %s\n",
			p.ConflictID, p.Record.EntityType, p.Record.EntityID, p.Reasoning)
	}

	entries, err := audit.Recent(*auditLimit)
	if err != nil {
		logging.Error("failed to read audit trail", err)
		os.Exit(1)
	}
	fmt.Printf("\nRecent resolutions: %d\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %s  %s/%s  strategy=%s confidence=%.2f\n",
			e.AppliedAtTime().Format("2006-01-02 15:04:05"),
			e.EntityType, e.EntityID, e.Strategy, e.Confidence)
	}
}
