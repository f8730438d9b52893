package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/your-org/beacon/internal/config"
	"github.com/your-org/beacon/internal/errs"
	"github.com/your-org/beacon/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Device bindings ---

// Rebind atomically installs the bidirectional user↔device binding.
// The transaction locks the device row first, so concurrent rebinds of
// the same device serialize; the UNIQUE constraint on device_id backs
// the race where two transactions insert the same device concurrently.
func (s *PostgresStore) Rebind(ctx context.Context, userID, deviceID string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin rebind: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var owner string
	err = tx.QueryRow(ctx,
		`SELECT user_id FROM device_bindings WHERE device_id = $1 FOR UPDATE`, deviceID,
	).Scan(&owner)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lookup device owner: %w", err)
	}
	if err == nil && owner != userID {
		return errs.New(errs.KindConflict, "device already bound to another user")
	}

	// Upsert on user_id supersedes the user's previous device in the
	// same statement, so no state with two devices per user is visible.
	_, err = tx.Exec(ctx,
		`INSERT INTO device_bindings (user_id, device_id, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET device_id = EXCLUDED.device_id, updated_at = now()`,
		userID, deviceID)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 unique_violation on device_id: lost the race.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errs.New(errs.KindConflict, "device already bound to another user")
		}
		return fmt.Errorf("install binding: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rebind: %w", err)
	}
	return nil
}

func (s *PostgresStore) UserByDevice(ctx context.Context, deviceID string) (string, bool, error) {
	var userID string
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM device_bindings WHERE device_id = $1`, deviceID,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("user by device: %w", err)
	}
	return userID, true, nil
}

func (s *PostgresStore) DeviceByUser(ctx context.Context, userID string) (string, bool, error) {
	var deviceID string
	err := s.pool.QueryRow(ctx,
		`SELECT device_id FROM device_bindings WHERE user_id = $1`, userID,
	).Scan(&deviceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("device by user: %w", err)
	}
	return deviceID, true, nil
}

// --- User state ---

func (s *PostgresStore) EnsureUser(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) GetUserState(ctx context.Context, userID string) (*models.UserState, error) {
	u := &models.UserState{}
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, location_requested, detected_faces, updated_at FROM users WHERE user_id = $1`,
		userID,
	).Scan(&u.UserID, &u.LocationRequested, &u.DetectedFaces, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user state: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) SetLocationRequested(ctx context.Context, userID string, requested bool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (user_id, location_requested, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET location_requested = EXCLUDED.location_requested, updated_at = now()`,
		userID, requested)
	if err != nil {
		return fmt.Errorf("set location requested: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetDetectedFaces(ctx context.Context, userID string, labels []string) error {
	if labels == nil {
		labels = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (user_id, detected_faces, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET detected_faces = EXCLUDED.detected_faces, updated_at = now()`,
		userID, labels)
	if err != nil {
		return fmt.Errorf("set detected faces: %w", err)
	}
	return nil
}

// --- Location reports ---

func (s *PostgresStore) AppendLocationReport(ctx context.Context, r *models.LocationReport) error {
	r.ID = uuid.New()
	r.ReportedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO location_reports (id, device_id, lat, lng, reported_at) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.DeviceID, r.Lat, r.Lng, r.ReportedAt)
	if err != nil {
		return fmt.Errorf("append location report: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLocationReports(ctx context.Context, deviceID string, limit, offset int) ([]models.LocationReport, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM location_reports WHERE device_id = $1`, deviceID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count location reports: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, device_id, lat, lng, reported_at FROM location_reports
		 WHERE device_id = $1 ORDER BY reported_at DESC, id LIMIT $2 OFFSET $3`,
		deviceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list location reports: %w", err)
	}
	defer rows.Close()

	var reports []models.LocationReport
	for rows.Next() {
		var r models.LocationReport
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.Lat, &r.Lng, &r.ReportedAt); err != nil {
			return nil, 0, fmt.Errorf("scan location report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, total, nil
}

// --- Face templates ---

func (s *PostgresStore) CreateFaceTemplate(ctx context.Context, t *models.FaceTemplate) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin create template: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO face_templates (id, user_id, label, created_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.UserID, t.Label, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create face template: %w", err)
	}

	for i, emb := range t.Embeddings {
		sampleKey := ""
		if i < len(t.SampleKeys) {
			sampleKey = t.SampleKeys[i]
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO face_template_samples (id, template_id, position, embedding, sample_key)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), t.ID, i, pgvector.NewVector(emb), sampleKey)
		if err != nil {
			return fmt.Errorf("store template sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create template: %w", err)
	}
	return nil
}

// ListFaceTemplates returns the user's templates with embeddings in a
// stable order (creation time, then id) so matcher tie-breaking is
// deterministic.
func (s *PostgresStore) ListFaceTemplates(ctx context.Context, userID string) ([]models.FaceTemplate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, label, created_at FROM face_templates
		 WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list face templates: %w", err)
	}
	defer rows.Close()

	var templates []models.FaceTemplate
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var t models.FaceTemplate
		if err := rows.Scan(&t.ID, &t.UserID, &t.Label, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face template: %w", err)
		}
		index[t.ID] = len(templates)
		templates = append(templates, t)
	}
	if len(templates) == 0 {
		return templates, nil
	}

	sampleRows, err := s.pool.Query(ctx,
		`SELECT s.template_id, s.embedding, s.sample_key
		 FROM face_template_samples s
		 JOIN face_templates t ON t.id = s.template_id
		 WHERE t.user_id = $1
		 ORDER BY t.created_at, t.id, s.position`, userID)
	if err != nil {
		return nil, fmt.Errorf("list template samples: %w", err)
	}
	defer sampleRows.Close()

	for sampleRows.Next() {
		var (
			templateID uuid.UUID
			vec        pgvector.Vector
			sampleKey  string
		)
		if err := sampleRows.Scan(&templateID, &vec, &sampleKey); err != nil {
			return nil, fmt.Errorf("scan template sample: %w", err)
		}
		if i, ok := index[templateID]; ok {
			templates[i].Embeddings = append(templates[i].Embeddings, vec.Slice())
			templates[i].SampleKeys = append(templates[i].SampleKeys, sampleKey)
		}
	}
	return templates, nil
}

// DeleteFaceTemplate removes one template of the user and returns it,
// or nil when no template matched. Sample rows go with the template via
// ON DELETE CASCADE.
func (s *PostgresStore) DeleteFaceTemplate(ctx context.Context, userID string, id uuid.UUID) (*models.FaceTemplate, error) {
	t := &models.FaceTemplate{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, label, created_at FROM face_templates WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&t.ID, &t.UserID, &t.Label, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find face template: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT sample_key FROM face_template_samples WHERE template_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list template samples: %w", err)
	}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan template sample: %w", err)
		}
		t.SampleKeys = append(t.SampleKeys, key)
	}
	rows.Close()

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM face_templates WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return nil, fmt.Errorf("delete face template: %w", err)
	}
	return t, nil
}
