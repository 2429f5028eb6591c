package db

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lumenhq/dam/internal/config"
	"github.com/lumenhq/dam/internal/modules/model"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

var sslmodeRe = regexp.MustCompile(`(?i)\bsslmode\s*=\s*\w+`)

// New opens the metadata database. SQL logging goes through the process logger
// at warn level with slow queries flagged above 500ms.
func New(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(dsnFor(cfg.Database)), gcfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpen)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdle)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	if err := model.SetupJoinTables(db); err != nil {
		return nil, fmt.Errorf("setup join tables: %w", err)
	}
	return db, nil
}

// dsnFor forces sslmode=require when TLS is enabled.
func dsnFor(cfg config.DatabaseCfg) string {
	dsn := cfg.DSN
	if !cfg.EnableTLS {
		return dsn
	}
	if sslmodeRe.MatchString(dsn) {
		return sslmodeRe.ReplaceAllString(dsn, "sslmode=require")
	}
	if !strings.HasSuffix(dsn, " ") {
		dsn += " "
	}
	return dsn + "sslmode=require"
}

// Migrate creates or updates the asset schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Tag{},
		&model.Asset{},
		&model.AssetTag{},
		&model.Activity{},
	)
}

// RegisterOpenTelemetryPlugin adds query spans. Call it after telemetry.Setup
// so the plugin picks up the global tracer provider.
func RegisterOpenTelemetryPlugin(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}
