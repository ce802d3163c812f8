// Command migrate sets up the judge engine's registry store: it opens the
// configured database (SQLite for local/dev, Postgres for production),
// applies the AutoMigrate schema for the language->image table, and seeds it
// with the default language->image mapping (spec §6) when rows are missing.
//
// Usage:
//
//	go run cmd/migrate/main.go up     # migrate schema and seed defaults
//	go run cmd/migrate/main.go list   # print the current language->image rows
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"apex-build/internal/registry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("no .env file found, using environment variables")
		}
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := registryConfigFromEnv()
	reg, err := registry.New(cfg)
	if err != nil {
		log.Fatalf("migrate: open registry: %v", err)
	}

	switch os.Args[1] {
	case "up":
		runUp(reg)
	case "list":
		runList(reg)
	case "help":
		printUsage()
	default:
		log.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runUp(reg *registry.Registry) {
	existing, err := reg.List()
	if err != nil {
		log.Fatalf("migrate: list existing rows: %v", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, row := range existing {
		seen[row.Language] = true
	}

	for lang, image := range registry.DefaultImages() {
		if seen[string(lang)] {
			continue
		}
		if err := reg.Set(lang, image); err != nil {
			log.Fatalf("migrate: seed %s: %v", lang, err)
		}
		log.Printf("seeded %s -> %s", lang, image)
	}
	log.Println("registry schema migrated and seeded")
}

func runList(reg *registry.Registry) {
	rows, err := reg.List()
	if err != nil {
		log.Fatalf("migrate: list: %v", err)
	}
	for _, row := range rows {
		fmt.Printf("%-8s %s\n", row.Language, row.Image)
	}
}

func printUsage() {
	fmt.Print(`
Judge Engine Registry Migration Tool

Usage:
  migrate <command>

Commands:
  up      Migrate schema and seed default language images
  list    Print current language->image rows
  help    Show this help message

Environment Variables:
  REGISTRY_DRIVER    "sqlite" (default) or "postgres"
  REGISTRY_DSN       sqlite file path (default: judge_registry.db)
  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSL_MODE
                     used when REGISTRY_DRIVER=postgres
`)
}

func registryConfigFromEnv() registry.Config {
	driver := getEnv("REGISTRY_DRIVER", "sqlite")
	return registry.Config{
		Driver:   driver,
		DSN:      getEnv("REGISTRY_DSN", "judge_registry.db"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "judge"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
