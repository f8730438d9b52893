package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/beacon/internal/errs"
	"github.com/your-org/beacon/internal/models"
)

// MemoryStore is an in-process implementation of the same method set as
// PostgresStore, used by component tests and local development. The
// device↔user binding is kept as two independent indices guarded by one
// mutex, so a rebind is a single critical section.
type MemoryStore struct {
	mu sync.Mutex

	byDevice map[string]string // device id -> user id
	byUser   map[string]string // user id -> device id

	users     map[string]*models.UserState
	reports   map[string][]models.LocationReport // device id -> append-order sequence
	templates map[string][]models.FaceTemplate   // user id -> creation-order sequence

	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byDevice:  make(map[string]string),
		byUser:    make(map[string]string),
		users:     make(map[string]*models.UserState),
		reports:   make(map[string][]models.LocationReport),
		templates: make(map[string][]models.FaceTemplate),
		objects:   make(map[string][]byte),
	}
}

// --- Device bindings ---

func (m *MemoryStore) Rebind(ctx context.Context, userID, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if owner, ok := m.byDevice[deviceID]; ok && owner != userID {
		return errs.New(errs.KindConflict, "device already bound to another user")
	}
	if old, ok := m.byUser[userID]; ok {
		delete(m.byDevice, old)
	}
	m.byUser[userID] = deviceID
	m.byDevice[deviceID] = userID
	return nil
}

func (m *MemoryStore) UserByDevice(ctx context.Context, deviceID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.byDevice[deviceID]
	return userID, ok, nil
}

func (m *MemoryStore) DeviceByUser(ctx context.Context, userID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deviceID, ok := m.byUser[userID]
	return deviceID, ok, nil
}

// --- User state ---

func (m *MemoryStore) ensureUserLocked(userID string) *models.UserState {
	u, ok := m.users[userID]
	if !ok {
		u = &models.UserState{UserID: userID, DetectedFaces: []string{}}
		m.users[userID] = u
	}
	return u
}

func (m *MemoryStore) EnsureUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureUserLocked(userID)
	return nil
}

func (m *MemoryStore) UserExists(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[userID]
	return ok, nil
}

func (m *MemoryStore) GetUserState(ctx context.Context, userID string) (*models.UserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	cp.DetectedFaces = append([]string(nil), u.DetectedFaces...)
	return &cp, nil
}

func (m *MemoryStore) SetLocationRequested(ctx context.Context, userID string, requested bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.ensureUserLocked(userID)
	u.LocationRequested = requested
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) SetDetectedFaces(ctx context.Context, userID string, labels []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.ensureUserLocked(userID)
	u.DetectedFaces = append([]string{}, labels...)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// --- Location reports ---

func (m *MemoryStore) AppendLocationReport(ctx context.Context, r *models.LocationReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	r.ReportedAt = time.Now().UTC()
	m.reports[r.DeviceID] = append(m.reports[r.DeviceID], *r)
	return nil
}

func (m *MemoryStore) ListLocationReports(ctx context.Context, deviceID string, limit, offset int) ([]models.LocationReport, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := m.reports[deviceID]
	total := len(seq)
	if limit <= 0 {
		limit = 50
	}

	// Newest first, mirroring the SQL ordering.
	out := make([]models.LocationReport, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, seq[i])
	}
	return out, total, nil
}

// --- Face templates ---

func (m *MemoryStore) CreateFaceTemplate(ctx context.Context, t *models.FaceTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()
	m.templates[t.UserID] = append(m.templates[t.UserID], *t)
	return nil
}

func (m *MemoryStore) ListFaceTemplates(ctx context.Context, userID string) ([]models.FaceTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.FaceTemplate(nil), m.templates[userID]...), nil
}

func (m *MemoryStore) DeleteFaceTemplate(ctx context.Context, userID string, id uuid.UUID) (*models.FaceTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := m.templates[userID]
	for i, t := range seq {
		if t.ID == id {
			m.templates[userID] = append(seq[:i:i], seq[i+1:]...)
			return &t, nil
		}
	}
	return nil, nil
}

// --- Objects ---

func (m *MemoryStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "object %s not found", key)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) DeleteObjects(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.objects, key)
	}
	return nil
}
