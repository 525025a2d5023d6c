package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS plates (
		id              BIGSERIAL PRIMARY KEY,
		number          TEXT NOT NULL,
		normalized      TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_plates_normalized ON plates(normalized);`,
	`CREATE TABLE IF NOT EXISTS plate_records (
		id                UUID PRIMARY KEY,
		plate_id          BIGINT REFERENCES plates(id),
		source_file       TEXT NOT NULL,
		enhanced_file     TEXT,
		vehicle_id        TEXT,
		width             INT,
		height            INT,
		confidence        NUMERIC(5,2),
		no_helmet_count   INT,
		raw_plate         TEXT NOT NULL,
		normalized_plate  TEXT NOT NULL,
		model             TEXT,
		raw_payload       JSONB,
		resolved_at       TIMESTAMPTZ NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_plate_records_plate_id ON plate_records(plate_id);`,
	`CREATE INDEX IF NOT EXISTS idx_plate_records_resolved_at ON plate_records(resolved_at);`,
	`CREATE TABLE IF NOT EXISTS violation_events (
		id              BIGSERIAL PRIMARY KEY,
		crop_file       TEXT NOT NULL,
		violation_file  TEXT NOT NULL,
		vehicle_id      TEXT,
		no_helmet_count INT NOT NULL,
		detected_at     TIMESTAMPTZ NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_violation_events_detected_at ON violation_events(detected_at);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
