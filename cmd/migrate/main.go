package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"relay-chat/config"
	"relay-chat/pkg/database"
	"relay-chat/pkg/logger"
)

const usage = `
Relay Chat - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create or update every table
  status      Show database connection status
  seed-dev    Seed with development/test data
  reset       Drop all tables and re-run migrations (DANGEROUS)
  truncate    Truncate all tables (DANGEROUS)

Flags:
  -yes        Skip the countdown before reset

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed-dev
  go run cmd/migrate/main.go reset -yes
`

func main() {
	skipCountdown := flag.Bool("yes", false, "Skip the countdown before reset")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	l := logger.New(cfg.AppMode)
	defer l.Sync()

	database.Connect(cfg, l)
	defer database.Close()

	switch command {
	case "up":
		runMigrationsUp()
	case "status":
		showStatus()
	case "seed-dev":
		runSeedDevelopment()
	case "reset":
		runReset(*skipCountdown)
	case "truncate":
		runTruncate()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp() {
	log.Println("Running migrations UP...")

	if err := database.RunFullMigration(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed successfully!")
}

func showStatus() {
	log.Println("Checking database status...")

	if err := database.Ping(); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	tables := []string{"users", "friend_requests", "friendships", "conversations", "participants", "messages", "message_reactions", "outbox_events"}
	for _, table := range tables {
		exists, err := database.TableExists(table)
		if err != nil {
			log.Printf("Error checking table %s: %v", table, err)
			continue
		}
		if exists {
			count, _ := database.GetTableCount(table)
			log.Printf("Table %-20s exists (%d rows)", table, count)
		} else {
			log.Printf("Table %-20s does not exist", table)
		}
	}

	if err := database.HealthCheck(); err != nil {
		log.Printf("Health check warning: %v", err)
	} else {
		log.Println("Health check: PASSED")
	}
}

func runSeedDevelopment() {
	log.Println("Seeding database (development mode)...")

	result, err := database.SeedDevelopment()
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Seed Summary:")
	log.Printf("   - Users: %d", len(result.Users))
	log.Printf("   - Conversations: %d", len(result.Conversations))
	log.Printf("   - Messages: %d", len(result.Messages))
	log.Println("Development seeding completed!")
}

func runReset(skipCountdown bool) {
	log.Println("WARNING: This will DROP all tables and re-run migrations!")

	if !skipCountdown {
		log.Println("Press Ctrl+C within 5 seconds to cancel...")
		fmt.Print("Proceeding in: ")
		for i := 5; i > 0; i-- {
			fmt.Printf("%d... ", i)
			time.Sleep(time.Second)
		}
		fmt.Println()
	}

	log.Println("Dropping all tables...")
	if err := database.DropAllTables(); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}

	log.Println("Running migrations...")
	if err := database.RunFullMigration(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Database reset completed!")
}

func runTruncate() {
	log.Println("WARNING: This will TRUNCATE all tables!")

	if err := database.TruncateAllTables(); err != nil {
		log.Fatalf("Truncate failed: %v", err)
	}

	log.Println("All tables truncated!")
}
