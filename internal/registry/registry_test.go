package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/your-org/beacon/internal/errs"
	"github.com/your-org/beacon/internal/storage"
)

func TestRebindAndResolve(t *testing.T) {
	ctx := context.Background()
	reg := New(storage.NewMemoryStore())

	if err := reg.Rebind(ctx, "user1", "AB12CD"); err != nil {
		t.Fatalf("rebind: %v", err)
	}

	userID, ok, err := reg.UserByDevice(ctx, "AB12CD")
	if err != nil || !ok || userID != "user1" {
		t.Fatalf("user by device: got %q ok=%v err=%v", userID, ok, err)
	}
	deviceID, ok, err := reg.DeviceByUser(ctx, "user1")
	if err != nil || !ok || deviceID != "AB12CD" {
		t.Fatalf("device by user: got %q ok=%v err=%v", deviceID, ok, err)
	}
}

func TestRebindConflict(t *testing.T) {
	ctx := context.Background()
	reg := New(storage.NewMemoryStore())

	if err := reg.Rebind(ctx, "user1", "AB12CD"); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	err := reg.Rebind(ctx, "user2", "AB12CD")
	if errs.KindOf(err) != errs.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	// The loser must not have disturbed the winner's binding.
	userID, ok, _ := reg.UserByDevice(ctx, "AB12CD")
	if !ok || userID != "user1" {
		t.Fatalf("binding disturbed: got %q ok=%v", userID, ok)
	}
}

func TestRebindSupersedesOldDevice(t *testing.T) {
	ctx := context.Background()
	reg := New(storage.NewMemoryStore())

	if err := reg.Rebind(ctx, "user1", "AAAAAA"); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if err := reg.Rebind(ctx, "user1", "BBBBBB"); err != nil {
		t.Fatalf("rebind second device: %v", err)
	}

	// Old device is released, new claimants may take it.
	if _, ok, _ := reg.UserByDevice(ctx, "AAAAAA"); ok {
		t.Fatalf("old device still bound")
	}
	if err := reg.Rebind(ctx, "user2", "AAAAAA"); err != nil {
		t.Fatalf("rebind released device: %v", err)
	}
}

func TestRebindValidation(t *testing.T) {
	ctx := context.Background()
	reg := New(storage.NewMemoryStore())

	if err := reg.Rebind(ctx, "user1", "SHORT"); errs.KindOf(err) != errs.KindInvalidArgument {
		t.Fatalf("expected invalid argument for 5-char id, got %v", err)
	}
	if err := reg.Rebind(ctx, "user1", "TOOLONG"); errs.KindOf(err) != errs.KindInvalidArgument {
		t.Fatalf("expected invalid argument for 7-char id, got %v", err)
	}
	if err := reg.Rebind(ctx, "", "AB12CD"); errs.KindOf(err) != errs.KindUnauthorized {
		t.Fatalf("expected unauthorized for empty user, got %v", err)
	}
}

// Bijection holds at every quiescent point of an arbitrary rebind
// sequence: resolving a user's device back through the device index
// yields the same user, and symmetrically.
func TestBijectionInvariant(t *testing.T) {
	ctx := context.Background()
	reg := New(storage.NewMemoryStore())

	steps := []struct{ user, device string }{
		{"u1", "DEV001"},
		{"u2", "DEV002"},
		{"u1", "DEV003"}, // u1 moves, DEV001 freed
		{"u3", "DEV001"},
		{"u2", "DEV002"}, // no-op self rebind
	}
	for _, s := range steps {
		if err := reg.Rebind(ctx, s.user, s.device); err != nil {
			t.Fatalf("rebind %v: %v", s, err)
		}

		for _, u := range []string{"u1", "u2", "u3"} {
			d, ok, _ := reg.DeviceByUser(ctx, u)
			if !ok {
				continue
			}
			back, ok, _ := reg.UserByDevice(ctx, d)
			if !ok || back != u {
				t.Fatalf("bijection broken after %v: user %s -> device %s -> user %s", s, u, d, back)
			}
		}
	}
}

func TestConcurrentRebindSameDeviceOneWinner(t *testing.T) {
	ctx := context.Background()
	reg := New(storage.NewMemoryStore())

	const contenders = 16
	var wg sync.WaitGroup
	errors := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errors[i] = reg.Rebind(ctx, "user"+string(rune('a'+i)), "FIGHT1")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errors {
		switch {
		case err == nil:
			winners++
		case errs.KindOf(err) == errs.KindConflict:
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	if _, ok, _ := reg.UserByDevice(ctx, "FIGHT1"); !ok {
		t.Fatalf("device not bound after the race")
	}
}
