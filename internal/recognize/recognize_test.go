package recognize

import (
	"context"
	"testing"

	"github.com/your-org/beacon/internal/errs"
	"github.com/your-org/beacon/internal/match"
	"github.com/your-org/beacon/internal/models"
	"github.com/your-org/beacon/internal/registry"
	"github.com/your-org/beacon/internal/storage"
)

// fakeProvider yields preset probe embeddings regardless of input.
type fakeProvider struct {
	probes [][]float32
}

func (f *fakeProvider) ExtractEmbeddings(ctx context.Context, image []byte) ([][]float32, error) {
	return f.probes, nil
}

func setup(t *testing.T, probes [][]float32) (*Service, *storage.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()

	if err := registry.New(store).Rebind(ctx, "user1", "AB12CD"); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if err := store.EnsureUser(ctx, "user1"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if err := store.CreateFaceTemplate(ctx, &models.FaceTemplate{
		UserID:     "user1",
		Label:      "Alice",
		Embeddings: [][]float32{{0, 0, 0}},
	}); err != nil {
		t.Fatalf("create template: %v", err)
	}

	svc := New(registry.New(store), store, &fakeProvider{probes: probes}, nil, 0.6)
	return svc, store
}

func TestRecogniseMatch(t *testing.T) {
	ctx := context.Background()
	svc, store := setup(t, [][]float32{{0.1, 0, 0}})

	results, err := svc.RecogniseFace(ctx, "AB12CD", []byte("jpeg"))
	if err != nil {
		t.Fatalf("recognise: %v", err)
	}
	if len(results) != 1 || results[0].Label != "Alice" {
		t.Fatalf("unexpected results: %+v", results)
	}

	state, _ := store.GetUserState(ctx, "user1")
	if len(state.DetectedFaces) != 1 || state.DetectedFaces[0] != "Alice" {
		t.Fatalf("cache not updated: %+v", state.DetectedFaces)
	}
}

func TestRecogniseBeyondThresholdIsUnknown(t *testing.T) {
	ctx := context.Background()
	// Distance to the only template is 0.7, past the 0.6 threshold.
	svc, _ := setup(t, [][]float32{{0.7, 0, 0}})

	results, err := svc.RecogniseFace(ctx, "AB12CD", []byte("jpeg"))
	if err != nil {
		t.Fatalf("recognise: %v", err)
	}
	if len(results) != 1 || results[0].Label != match.UnknownLabel {
		t.Fatalf("expected unknown, got %+v", results)
	}
}

func TestRecogniseNoFacesOverwritesCacheWithEmpty(t *testing.T) {
	ctx := context.Background()
	svc, store := setup(t, nil)

	if err := store.SetDetectedFaces(ctx, "user1", []string{"Alice"}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	results, err := svc.RecogniseFace(ctx, "AB12CD", []byte("jpeg"))
	if err != nil {
		t.Fatalf("recognise: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %+v", results)
	}

	state, _ := store.GetUserState(ctx, "user1")
	if len(state.DetectedFaces) != 0 {
		t.Fatalf("cache should be overwritten with empty list: %+v", state.DetectedFaces)
	}
}

func TestRecogniseUnboundDevice(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t, [][]float32{{0, 0, 0}})

	if _, err := svc.RecogniseFace(ctx, "ZZZZZZ", []byte("jpeg")); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected not found for unbound device, got %v", err)
	}
	if _, err := svc.RecogniseFace(ctx, "", []byte("jpeg")); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected not found for empty device id, got %v", err)
	}
}

func TestRecogniseNoTemplates(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	if err := registry.New(store).Rebind(ctx, "user2", "CD34EF"); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	svc := New(registry.New(store), store, &fakeProvider{probes: [][]float32{{0, 0, 0}}}, nil, 0.6)

	if _, err := svc.RecogniseFace(ctx, "CD34EF", []byte("jpeg")); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected not found without enrolled templates, got %v", err)
	}
}

func TestRecogniseMultipleProbesKeepOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t, [][]float32{{5, 5, 5}, {0.1, 0, 0}})

	results, err := svc.RecogniseFace(ctx, "AB12CD", []byte("jpeg"))
	if err != nil {
		t.Fatalf("recognise: %v", err)
	}
	if len(results) != 2 || results[0].Label != match.UnknownLabel || results[1].Label != "Alice" {
		t.Fatalf("results out of order: %+v", results)
	}
}

func TestResetDetectedFaces(t *testing.T) {
	ctx := context.Background()
	svc, store := setup(t, nil)

	if err := store.SetDetectedFaces(ctx, "user1", []string{"Alice", "Bob"}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	if err := svc.ResetDetectedFaces(ctx, "user1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	state, _ := store.GetUserState(ctx, "user1")
	if len(state.DetectedFaces) != 0 {
		t.Fatalf("cache not cleared: %+v", state.DetectedFaces)
	}

	if err := svc.ResetDetectedFaces(ctx, ""); errs.KindOf(err) != errs.KindUnauthorized {
		t.Fatalf("expected unauthorized for missing identity, got %v", err)
	}
}
