package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fieldops-scheduler-backend/config"
	"fieldops-scheduler-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Resource{},
		&model.ScheduledEvent{},
		&model.PushSubscription{},
	); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if cfg.EnableRangeIndexes {
		log.Println("Range indexes are enabled, applying Postgres-specific DDL...")
		if err := applyRangeDDL(db); err != nil {
			return nil, err
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

func applyRangeDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		// Intervals are half-open [start_at, end_at); empty or inverted
		// intervals are never representable.
		"ALTER TABLE scheduled_events " +
			"ADD CONSTRAINT scheduled_events_interval_valid CHECK (start_at < end_at);",

		// Expression GIST index so overlap predicates (&&, @>) on the
		// interval stay cheap as the table grows.
		"CREATE INDEX idx_scheduled_events_interval_expr ON scheduled_events " +
			"USING GIST (tstzrange(start_at, end_at, '[)'));",

		// Deterministic listing order: start ascending, id as tie-break.
		"CREATE INDEX idx_scheduled_events_start_id ON scheduled_events (start_at, id);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
