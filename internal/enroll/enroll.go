// Package enroll turns capture samples into persisted face templates.
package enroll

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/beacon/internal/errs"
	"github.com/your-org/beacon/internal/models"
	"github.com/your-org/beacon/internal/observability"
)

// EmbeddingProvider extracts zero or more face embeddings from raw
// image bytes. Zero detections is not an error.
type EmbeddingProvider interface {
	ExtractEmbeddings(ctx context.Context, image []byte) ([][]float32, error)
}

// Store persists user records and their template collections.
type Store interface {
	EnsureUser(ctx context.Context, userID string) error
	UserExists(ctx context.Context, userID string) (bool, error)
	CreateFaceTemplate(ctx context.Context, t *models.FaceTemplate) error
	ListFaceTemplates(ctx context.Context, userID string) ([]models.FaceTemplate, error)
	DeleteFaceTemplate(ctx context.Context, userID string, id uuid.UUID) (*models.FaceTemplate, error)
}

// ObjectStore archives the raw sample images. Optional: a nil store
// skips archiving.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObjects(ctx context.Context, keys []string) error
}

// FaceSummary is the embedding-free projection returned by ListFaces.
type FaceSummary struct {
	ID      uuid.UUID `json:"id"`
	Label   string    `json:"label"`
	Samples int       `json:"samples"`
}

// Receipt reports what an enrollment call actually stored. Samples
// where the provider found no face are skipped, not failed, and the
// skip count is surfaced here instead of being silently dropped.
type Receipt struct {
	TemplateID uuid.UUID `json:"template_id"`
	Label      string    `json:"label"`
	Enrolled   int       `json:"enrolled"`
	Skipped    int       `json:"skipped"`
}

type Pipeline struct {
	store    Store
	objects  ObjectStore
	provider EmbeddingProvider
}

func New(store Store, objects ObjectStore, provider EmbeddingProvider) *Pipeline {
	return &Pipeline{store: store, objects: objects, provider: provider}
}

// EnrollFace extracts one embedding per sample image (in order) and
// appends a new template to the user's collection. A label that
// already exists gets a second template rather than a merge. When a
// sample contains several faces the most prominent one (first
// detection) is used.
func (p *Pipeline) EnrollFace(ctx context.Context, userID, label string, samples [][]byte) (*Receipt, error) {
	if userID == "" {
		return nil, errs.New(errs.KindUnauthorized, "user identity required")
	}
	if label == "" {
		return nil, errs.New(errs.KindInvalidArgument, "label required")
	}
	if len(samples) == 0 {
		return nil, errs.New(errs.KindInvalidArgument, "at least one sample image required")
	}
	if p.provider == nil {
		return nil, errs.New(errs.KindInternal, "embedding provider unavailable")
	}

	if err := p.store.EnsureUser(ctx, userID); err != nil {
		return nil, err
	}

	template := &models.FaceTemplate{UserID: userID, Label: label}
	pendingKeys := make([]string, 0, len(samples))
	pendingData := make([][]byte, 0, len(samples))
	skipped := 0

	for i, sample := range samples {
		embeddings, err := p.provider.ExtractEmbeddings(ctx, sample)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, fmt.Sprintf("extract embedding from sample %d", i), err)
		}
		if len(embeddings) == 0 {
			skipped++
			continue
		}
		template.Embeddings = append(template.Embeddings, embeddings[0])
		pendingKeys = append(pendingKeys, "")
		pendingData = append(pendingData, sample)
	}

	if len(template.Embeddings) == 0 {
		return nil, errs.New(errs.KindInvalidArgument, "no face detected in any sample")
	}

	if p.objects != nil {
		for i, data := range pendingData {
			key := fmt.Sprintf("faces/%s/%s_%d.jpg", userID, uuid.New(), i)
			if err := p.objects.PutObject(ctx, key, data, "image/jpeg"); err != nil {
				slog.Warn("archive enrollment sample", "user", userID, "error", err)
				continue
			}
			pendingKeys[i] = key
		}
		template.SampleKeys = pendingKeys
	}

	if err := p.store.CreateFaceTemplate(ctx, template); err != nil {
		return nil, err
	}
	observability.FacesEnrolled.Add(float64(len(template.Embeddings)))

	return &Receipt{
		TemplateID: template.ID,
		Label:      template.Label,
		Enrolled:   len(template.Embeddings),
		Skipped:    skipped,
	}, nil
}

// ListFaces returns the user's templates without embedding payloads.
// A missing user record is created first so a fresh account sees an
// empty list rather than an error.
func (p *Pipeline) ListFaces(ctx context.Context, userID string) ([]FaceSummary, error) {
	if userID == "" {
		return nil, errs.New(errs.KindUnauthorized, "user identity required")
	}
	if err := p.store.EnsureUser(ctx, userID); err != nil {
		return nil, err
	}

	templates, err := p.store.ListFaceTemplates(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]FaceSummary, 0, len(templates))
	for _, t := range templates {
		out = append(out, FaceSummary{ID: t.ID, Label: t.Label, Samples: len(t.Embeddings)})
	}
	return out, nil
}

// DeleteFace removes one template by id. An id matching nothing is a
// no-op; only a missing user record is an error. Archived sample
// images are removed best-effort.
func (p *Pipeline) DeleteFace(ctx context.Context, userID string, faceID uuid.UUID) error {
	if userID == "" {
		return errs.New(errs.KindUnauthorized, "user identity required")
	}
	exists, err := p.store.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return errs.New(errs.KindNotFound, "user not found")
	}

	deleted, err := p.store.DeleteFaceTemplate(ctx, userID, faceID)
	if err != nil {
		return err
	}
	if deleted == nil || p.objects == nil || len(deleted.SampleKeys) == 0 {
		return nil
	}
	if err := p.objects.DeleteObjects(ctx, deleted.SampleKeys); err != nil {
		slog.Warn("delete archived samples", "template", faceID, "error", err)
	}
	return nil
}
