package enroll

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/beacon/internal/errs"
	"github.com/your-org/beacon/internal/storage"
)

// fakeProvider returns one canned embedding per image, keyed by a
// marker byte; a zero-length image yields no detections.
type fakeProvider struct {
	err error
}

func (f *fakeProvider) ExtractEmbeddings(ctx context.Context, image []byte) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(image) == 0 {
		return nil, nil
	}
	return [][]float32{{float32(image[0]), 0, 0}}, nil
}

func newTestPipeline(provider EmbeddingProvider) (*Pipeline, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return New(store, store, provider), store
}

func TestEnrollListDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(&fakeProvider{})

	receipt, err := p.EnrollFace(ctx, "user1", "Alice", [][]byte{{1}, {2}})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if receipt.Enrolled != 2 || receipt.Skipped != 0 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	faces, err := p.ListFaces(ctx, "user1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(faces) != 1 || faces[0].Label != "Alice" || faces[0].Samples != 2 {
		t.Fatalf("unexpected faces: %+v", faces)
	}

	if err := p.DeleteFace(ctx, "user1", faces[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	faces, _ = p.ListFaces(ctx, "user1")
	if len(faces) != 0 {
		t.Fatalf("template not deleted: %+v", faces)
	}
}

func TestEnrollSkipsUndetectedSamples(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(&fakeProvider{})

	receipt, err := p.EnrollFace(ctx, "user1", "Alice", [][]byte{{1}, {}, {3}})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if receipt.Enrolled != 2 || receipt.Skipped != 1 {
		t.Fatalf("expected 2 enrolled / 1 skipped, got %+v", receipt)
	}
}

func TestEnrollAllSamplesUndetected(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(&fakeProvider{})

	_, err := p.EnrollFace(ctx, "user1", "Alice", [][]byte{{}, {}})
	if errs.KindOf(err) != errs.KindInvalidArgument {
		t.Fatalf("expected invalid argument when nothing is detected, got %v", err)
	}
}

func TestEnrollProviderErrorPropagates(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(&fakeProvider{err: errors.New("model unavailable")})

	_, err := p.EnrollFace(ctx, "user1", "Alice", [][]byte{{1}})
	if errs.KindOf(err) != errs.KindInternal {
		t.Fatalf("expected internal for provider failure, got %v", err)
	}
}

func TestEnrollSameLabelAppendsNewTemplate(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(&fakeProvider{})

	if _, err := p.EnrollFace(ctx, "user1", "Alice", [][]byte{{1}}); err != nil {
		t.Fatalf("first enroll: %v", err)
	}
	if _, err := p.EnrollFace(ctx, "user1", "Alice", [][]byte{{2}}); err != nil {
		t.Fatalf("second enroll: %v", err)
	}

	faces, _ := p.ListFaces(ctx, "user1")
	if len(faces) != 2 {
		t.Fatalf("re-enrolling a label should append a template, got %d", len(faces))
	}
}

func TestEnrollValidation(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(&fakeProvider{})

	if _, err := p.EnrollFace(ctx, "", "Alice", [][]byte{{1}}); errs.KindOf(err) != errs.KindUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := p.EnrollFace(ctx, "user1", "", [][]byte{{1}}); errs.KindOf(err) != errs.KindInvalidArgument {
		t.Fatalf("expected invalid argument for empty label, got %v", err)
	}
	if _, err := p.EnrollFace(ctx, "user1", "Alice", nil); errs.KindOf(err) != errs.KindInvalidArgument {
		t.Fatalf("expected invalid argument for no samples, got %v", err)
	}
}

func TestListFacesCreatesUserRecord(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(&fakeProvider{})

	faces, err := p.ListFaces(ctx, "fresh")
	if err != nil || len(faces) != 0 {
		t.Fatalf("expected empty list, got %v err=%v", faces, err)
	}
	exists, _ := store.UserExists(ctx, "fresh")
	if !exists {
		t.Fatalf("list should have created the user record")
	}
}

func TestDeleteFaceUnknownUser(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(&fakeProvider{})

	err := p.DeleteFace(ctx, "ghost", uuid.New())
	if errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected not found for missing user record, got %v", err)
	}
}

func TestDeleteFaceNoMatchIsNoop(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(&fakeProvider{})

	if _, err := p.EnrollFace(ctx, "user1", "Alice", [][]byte{{1}}); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if err := p.DeleteFace(ctx, "user1", uuid.New()); err != nil {
		t.Fatalf("no-match delete should not error: %v", err)
	}
	faces, _ := p.ListFaces(ctx, "user1")
	if len(faces) != 1 {
		t.Fatalf("existing template disturbed: %+v", faces)
	}
}
