// Package main is a diagnostic tool for testing database connectivity and
// inspecting live community data. It connects with the regular configuration,
// prints every community with its member counts and exits non-zero on any
// failure, so it can gate deployments in CI/CD pipelines.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/communityhub/platform/internal/config"
	"github.com/communityhub/platform/internal/db"
	"github.com/communityhub/platform/internal/db/repositories"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), 2, 1)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	v, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to read schema version: %v", err)
	}
	fmt.Printf("Schema version: %d (dirty: %v)\n", v, dirty)

	stats, err := repositories.NewTenantRepository(database).ListWithStats(ctx)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Println("\n=== COMMUNITIES ===")
	for _, s := range stats {
		fmt.Printf("%-24s %-10s %-10s members=%d privileged=%d (ID: %s)\n",
			s.Tenant.Slug, s.Tenant.Plan, s.Tenant.Status, s.Members, s.Privileged, s.Tenant.ID)
		if s.Privileged == 0 {
			fmt.Printf("  WARNING: %s has no owner\n", s.Tenant.Slug)
		}
	}
	if len(stats) == 0 {
		fmt.Println("No communities found!")
		os.Exit(1)
	}
}
