package storage

import (
	"context"
	"fmt"
)

// EnsureSchema creates the tables the service needs. Statements are
// idempotent so startup can run this unconditionally.
func (s *PostgresStore) EnsureSchema(ctx context.Context, embeddingDim int) error {
	if embeddingDim <= 0 {
		embeddingDim = 512
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS users (
			user_id            TEXT PRIMARY KEY,
			location_requested BOOLEAN NOT NULL DEFAULT FALSE,
			detected_faces     TEXT[] NOT NULL DEFAULT '{}',
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS device_bindings (
			user_id    TEXT PRIMARY KEY,
			device_id  TEXT NOT NULL UNIQUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS location_reports (
			id          UUID PRIMARY KEY,
			device_id   TEXT NOT NULL,
			lat         DOUBLE PRECISION NOT NULL,
			lng         DOUBLE PRECISION NOT NULL,
			reported_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_location_reports_device ON location_reports (device_id, reported_at)`,
		`CREATE TABLE IF NOT EXISTS face_templates (
			id         UUID PRIMARY KEY,
			user_id    TEXT NOT NULL,
			label      TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_face_templates_user ON face_templates (user_id, created_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS face_template_samples (
			id          UUID PRIMARY KEY,
			template_id UUID NOT NULL REFERENCES face_templates (id) ON DELETE CASCADE,
			position    INT NOT NULL,
			embedding   vector(%d) NOT NULL,
			sample_key  TEXT NOT NULL DEFAULT ''
		)`, embeddingDim),
		`CREATE INDEX IF NOT EXISTS idx_template_samples_template ON face_template_samples (template_id, position)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
