// Package registry persists the language→image mapping from spec §6
// ("Container image registry: fixed mapping language→image tag; images
// must ship a harness executable on PATH..."). It is backed by GORM the
// way the teacher's internal/db/database.go backs its own domain tables,
// supporting either SQLite (glebarez/sqlite, for local/dev) or Postgres
// (gorm.io/driver/postgres, for production) through the same Config shape.
package registry

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"apex-build/internal/judge"
)

// LanguageImage is the persisted row behind one registry entry.
type LanguageImage struct {
	Language  string `gorm:"primaryKey"`
	Image     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (LanguageImage) TableName() string { return "language_images" }

// Config selects and configures the backing store.
type Config struct {
	Driver   string // "sqlite" or "postgres"
	DSN      string // sqlite file path, or postgres connection string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Registry is the GORM-backed sandbox.Registry implementation.
type Registry struct {
	db *gorm.DB
}

// New opens the configured store, migrates the schema, and returns a
// Registry. Seeding (populating default language→image rows) is left to
// cmd/migrate, mirroring the teacher's separation between connection setup
// and migration tooling.
func New(cfg Config) (*Registry, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var db *gorm.DB
	var err error
	switch cfg.Driver {
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
		)
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	default:
		path := cfg.DSN
		if path == "" {
			path = "judge_registry.db"
		}
		db, err = gorm.Open(sqlite.Open(path), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: open database: %w", err)
	}

	if err := db.AutoMigrate(&LanguageImage{}); err != nil {
		return nil, fmt.Errorf("registry: migrate: %w", err)
	}

	return &Registry{db: db}, nil
}

// ImageFor satisfies sandbox.Registry.
func (r *Registry) ImageFor(language judge.Language) (string, error) {
	var row LanguageImage
	if err := r.db.First(&row, "language = ?", string(language)).Error; err != nil {
		return "", fmt.Errorf("registry: no image registered for language %q: %w", language, err)
	}
	return row.Image, nil
}

// Set upserts the image tag for a language, used by cmd/migrate's seed step
// and by administrative tooling that rolls a language onto a new image.
func (r *Registry) Set(language judge.Language, image string) error {
	row := LanguageImage{Language: string(language), Image: image, UpdatedAt: time.Now().UTC()}
	return r.db.Save(&row).Error
}

// List returns every registered language→image pair, backing the facade's
// GET /api/v1/languages endpoint (spec §6 "list_languages").
func (r *Registry) List() ([]LanguageImage, error) {
	var rows []LanguageImage
	if err := r.db.Order("language").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	return rows, nil
}

// DefaultImages is the seed data cmd/migrate writes on first run — one
// container image tag per supported language (spec §6).
func DefaultImages() map[judge.Language]string {
	return map[judge.Language]string{
		judge.LanguageC:   "judge-harness-c:latest",
		judge.LanguageCpp: "judge-harness-cpp:latest",
	}
}
