// Package recognize resolves who is in front of a tracker camera.
package recognize

import (
	"context"
	"log/slog"
	"time"

	"github.com/your-org/beacon/internal/errs"
	"github.com/your-org/beacon/internal/match"
	"github.com/your-org/beacon/internal/models"
	"github.com/your-org/beacon/internal/observability"
)

// Resolver maps the calling device to its owning user.
type Resolver interface {
	UserByDevice(ctx context.Context, deviceID string) (string, bool, error)
}

// Store supplies templates and caches the last recognition result.
type Store interface {
	ListFaceTemplates(ctx context.Context, userID string) ([]models.FaceTemplate, error)
	SetDetectedFaces(ctx context.Context, userID string, labels []string) error
}

// EmbeddingProvider extracts zero or more face embeddings from raw
// image bytes, one per detected face, in detection order.
type EmbeddingProvider interface {
	ExtractEmbeddings(ctx context.Context, image []byte) ([][]float32, error)
}

// Publisher pushes recognition events out for real-time subscribers.
type Publisher interface {
	PublishRecognition(ctx context.Context, ev models.RecognitionEvent) error
}

type Service struct {
	resolver  Resolver
	store     Store
	provider  EmbeddingProvider
	events    Publisher // optional
	threshold float32
}

func New(resolver Resolver, store Store, provider EmbeddingProvider, events Publisher, threshold float32) *Service {
	if threshold <= 0 {
		threshold = match.DefaultThreshold
	}
	return &Service{
		resolver:  resolver,
		store:     store,
		provider:  provider,
		events:    events,
		threshold: threshold,
	}
}

// RecogniseFace classifies every face in the probe image against the
// device owner's enrolled templates. Results come back in detection
// order, one per face, with "unknown" for anything beyond the
// rejection threshold. The user's detected_faces cache is overwritten
// with the resulting labels even when no faces were found.
func (s *Service) RecogniseFace(ctx context.Context, deviceID string, probe []byte) ([]match.Result, error) {
	if deviceID == "" {
		return nil, errs.New(errs.KindNotFound, "device not found")
	}
	userID, ok, err := s.resolver.UserByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.New(errs.KindNotFound, "device not found")
	}
	if s.provider == nil {
		return nil, errs.New(errs.KindInternal, "embedding provider unavailable")
	}

	templates, err := s.store.ListFaceTemplates(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, errs.New(errs.KindNotFound, "no faces enrolled for user")
	}

	// Template order from the store is stable (creation order), which
	// pins down tie-breaking between equidistant labels.
	refs := make([]match.Reference, 0, len(templates))
	for _, t := range templates {
		refs = append(refs, match.Reference{Label: t.Label, Embeddings: t.Embeddings})
	}

	start := time.Now()
	probes, err := s.provider.ExtractEmbeddings(ctx, probe)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "extract probe embeddings", err)
	}
	observability.InferenceDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())

	matcher := match.New(refs, s.threshold)
	results := matcher.ClassifyAll(probes)

	labels := make([]string, len(results))
	for i, r := range results {
		labels[i] = r.Label
		if r.Label == match.UnknownLabel {
			observability.FacesRecognized.WithLabelValues("unknown").Inc()
		} else {
			observability.FacesRecognized.WithLabelValues("matched").Inc()
		}
	}

	// Advisory cache, last write wins across concurrent recognitions.
	if err := s.store.SetDetectedFaces(ctx, userID, labels); err != nil {
		return nil, err
	}

	s.publish(ctx, deviceID, userID, labels)
	return results, nil
}

// ResetDetectedFaces clears the cached labels for the user.
func (s *Service) ResetDetectedFaces(ctx context.Context, userID string) error {
	if userID == "" {
		return errs.New(errs.KindUnauthorized, "user identity required")
	}
	return s.store.SetDetectedFaces(ctx, userID, []string{})
}

func (s *Service) publish(ctx context.Context, deviceID, userID string, labels []string) {
	if s.events == nil {
		return
	}
	evType := models.EventFaceUnknown
	for _, l := range labels {
		if l != match.UnknownLabel {
			evType = models.EventFaceRecognized
			break
		}
	}
	ev := models.RecognitionEvent{
		Type:      evType,
		DeviceID:  deviceID,
		UserID:    userID,
		Labels:    labels,
		Timestamp: time.Now().UTC(),
	}
	if err := s.events.PublishRecognition(ctx, ev); err != nil {
		slog.Warn("publish recognition event", "device", deviceID, "error", err)
	}
}
