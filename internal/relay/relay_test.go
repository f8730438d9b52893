package relay

import (
	"context"
	"testing"

	"github.com/your-org/beacon/internal/errs"
	"github.com/your-org/beacon/internal/registry"
	"github.com/your-org/beacon/internal/storage"
)

func newTestRelay(t *testing.T) (*Relay, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	return New(registry.New(store), store, nil), store
}

func bind(t *testing.T, store *storage.MemoryStore, userID, deviceID string) {
	t.Helper()
	if err := registry.New(store).Rebind(context.Background(), userID, deviceID); err != nil {
		t.Fatalf("rebind: %v", err)
	}
}

func TestRequestLocationSetsFlag(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRelay(t)
	bind(t, store, "user1", "AB12CD")

	if err := r.RequestLocation(ctx, "AB12CD"); err != nil {
		t.Fatalf("request: %v", err)
	}

	requested, err := r.LocationRequested(ctx, "user1")
	if err != nil || !requested {
		t.Fatalf("expected flag set, got %v err=%v", requested, err)
	}
}

func TestRequestLocationIdempotent(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRelay(t)
	bind(t, store, "user1", "AB12CD")

	if err := r.RequestLocation(ctx, "AB12CD"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := r.RequestLocation(ctx, "AB12CD"); err != nil {
		t.Fatalf("second request: %v", err)
	}

	state, err := store.GetUserState(ctx, "user1")
	if err != nil || state == nil || !state.LocationRequested {
		t.Fatalf("flag state changed by repeated request: %+v err=%v", state, err)
	}
}

func TestRequestLocationUnknownDevice(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRelay(t)

	if err := r.RequestLocation(ctx, "AB12CD"); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected not found for unbound device, got %v", err)
	}
	if err := r.RequestLocation(ctx, ""); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected not found for empty device id, got %v", err)
	}
}

func TestReportLocationAppendsAndClearsFlag(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRelay(t)
	bind(t, store, "user1", "AB12CD")

	if err := r.RequestLocation(ctx, "AB12CD"); err != nil {
		t.Fatalf("request: %v", err)
	}

	report, err := r.ReportLocation(ctx, "user1", 54.68, 25.28)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.DeviceID != "AB12CD" || report.ReportedAt.IsZero() {
		t.Fatalf("report not stamped: %+v", report)
	}

	requested, _ := r.LocationRequested(ctx, "user1")
	if requested {
		t.Fatalf("flag should be cleared by report")
	}

	reports, total, err := r.Reports(ctx, "AB12CD", 10, 0)
	if err != nil || total != 1 || len(reports) != 1 {
		t.Fatalf("expected one report, got %d/%d err=%v", len(reports), total, err)
	}
	if reports[0].Lat != 54.68 || reports[0].Lng != 25.28 {
		t.Fatalf("coordinates not passed through: %+v", reports[0])
	}
}

func TestReportLocationAppendOnly(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRelay(t)
	bind(t, store, "user1", "AB12CD")

	for i := 0; i < 3; i++ {
		if _, err := r.ReportLocation(ctx, "user1", float64(i), float64(i)); err != nil {
			t.Fatalf("report %d: %v", i, err)
		}
	}

	reports, total, err := r.Reports(ctx, "AB12CD", 10, 0)
	if err != nil || total != 3 {
		t.Fatalf("expected 3 reports, got %d err=%v", total, err)
	}
	// Newest first.
	if reports[0].Lat != 2 || reports[2].Lat != 0 {
		t.Fatalf("unexpected report order: %+v", reports)
	}
}

func TestReportLocationWithoutBinding(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRelay(t)

	if _, err := r.ReportLocation(ctx, "user1", 1, 2); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected not found without a bound device, got %v", err)
	}
	if _, err := r.ReportLocation(ctx, "", 1, 2); errs.KindOf(err) != errs.KindUnauthorized {
		t.Fatalf("expected unauthorized for missing identity, got %v", err)
	}
}

func TestLocationRequestedDefaultsFalse(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRelay(t)

	requested, err := r.LocationRequested(ctx, "nobody")
	if err != nil || requested {
		t.Fatalf("expected false for unknown user, got %v err=%v", requested, err)
	}
}
