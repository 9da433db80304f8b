package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/personal/ad-lifecycle/migrations"
	"github.com/personal/ad-lifecycle/pkg/config"
)

// Build information set via ldflags
var (
	Version     = "dev"
	BuildCommit = "local"
	BuildTime   = "unknown"
)

func main() {
	var (
		command     = flag.String("cmd", "", "Command to run: up, down, down-to, redo, reset, status, version, create")
		target      = flag.String("target", "", "Target version for down-to command")
		name        = flag.String("name", "", "Name for create command")
		dir         = flag.String("dir", "migrations", "Directory for create; other commands use the embedded migrations")
		verbose     = flag.Bool("v", false, "Verbose output")
		showVersion = flag.Bool("version", false, "Show version information")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ad Lifecycle Migration Tool (Goose-based)\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  up              - Run all pending migrations\n")
		fmt.Fprintf(os.Stderr, "  down            - Rollback last migration\n")
		fmt.Fprintf(os.Stderr, "  down-to         - Rollback to specific version (requires -target)\n")
		fmt.Fprintf(os.Stderr, "  redo            - Redo last migration (down then up)\n")
		fmt.Fprintf(os.Stderr, "  reset           - Reset all migrations\n")
		fmt.Fprintf(os.Stderr, "  status          - Show migration status\n")
		fmt.Fprintf(os.Stderr, "  version         - Show current migration version\n")
		fmt.Fprintf(os.Stderr, "  create          - Create new SQL migration in -dir (requires -name)\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -cmd=up\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -cmd=down-to -target=1\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -cmd=create -name=add_impressions\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Commit: %s\n", BuildCommit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		return
	}

	if *command == "" {
		flag.Usage()
		os.Exit(1)
	}

	// create writes a file and needs no database
	if *command == "create" {
		if *name == "" {
			log.Fatal("Migration name is required for create command")
		}
		if err := goose.Create(nil, *dir, *name, "sql"); err != nil {
			log.Fatalf("Failed to create migration: %v", err)
		}
		fmt.Printf("Created sql migration: %s\n", *name)
		return
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		dbURL = cfg.Database.DSN(cfg.Database.Host, cfg.Database.Port)
	}

	if *verbose {
		log.Printf("Connecting to database...")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(context.Background()); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set dialect: %v", err)
	}
	goose.SetVerbose(*verbose)

	if err := run(db, *command, *target); err != nil {
		log.Fatal(err)
	}
}

func run(db *sql.DB, command, target string) error {
	const dir = "."

	switch command {
	case "up":
		if err := goose.Up(db, dir); err != nil {
			return fmt.Errorf("failed to run migrations up: %w", err)
		}
		fmt.Println("Migrations completed successfully")

	case "down":
		if err := goose.Down(db, dir); err != nil {
			return fmt.Errorf("failed to run migration down: %w", err)
		}
		fmt.Println("Migration rolled back successfully")

	case "down-to":
		version, err := parseVersion(target)
		if err != nil {
			return fmt.Errorf("invalid target version: %w", err)
		}
		if err := goose.DownTo(db, dir, version); err != nil {
			return fmt.Errorf("failed to migrate down to version %d: %w", version, err)
		}
		fmt.Printf("Migrated down to version %d\n", version)

	case "redo":
		if err := goose.Redo(db, dir); err != nil {
			return fmt.Errorf("failed to redo migration: %w", err)
		}
		fmt.Println("Migration redone successfully")

	case "reset":
		if err := goose.Reset(db, dir); err != nil {
			return fmt.Errorf("failed to reset migrations: %w", err)
		}
		fmt.Println("All migrations reset")

	case "status":
		if err := goose.Status(db, dir); err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}

	case "version":
		version, err := goose.GetDBVersion(db)
		if err != nil {
			return fmt.Errorf("failed to get database version: %w", err)
		}
		fmt.Printf("Current database version: %d\n", version)

	default:
		flag.Usage()
		return fmt.Errorf("unknown command: %s", command)
	}
	return nil
}

// parseVersion parses a goose version number
func parseVersion(versionStr string) (int64, error) {
	if versionStr == "" {
		return 0, fmt.Errorf("version cannot be empty")
	}
	version, err := strconv.ParseInt(versionStr, 10, 64)
	if err != nil || version < 0 {
		return 0, fmt.Errorf("invalid version format: %s", versionStr)
	}
	return version, nil
}
