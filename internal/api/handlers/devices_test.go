package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/your-org/beacon/internal/api"
	"github.com/your-org/beacon/internal/enroll"
	"github.com/your-org/beacon/internal/recognize"
	"github.com/your-org/beacon/internal/registry"
	"github.com/your-org/beacon/internal/relay"
	"github.com/your-org/beacon/internal/storage"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	store := storage.NewMemoryStore()
	reg := registry.New(store)
	rel := relay.New(reg, store, nil)

	return api.NewRouter(api.RouterConfig{
		Registry:  reg,
		Relay:     rel,
		Enroll:    enroll.New(store, store, nil),
		Recognize: recognize.New(reg, store, nil, nil, 0.6),
	})
}

func doJSON(t *testing.T, router http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRebindConflict(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/device", "user1", `{"device_id":"AB12CD"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("first rebind: got %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/v1/device", "user2", `{"device_id":"AB12CD"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("second rebind: got %d, want 409 (body %s)", w.Code, w.Body.String())
	}

	var resp struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode conflict body: %v", err)
	}
	if resp.Kind != "conflict" {
		t.Fatalf("got kind %q, want conflict", resp.Kind)
	}
}

func TestRebindRequiresIdentity(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/device", "", `{"device_id":"AB12CD"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401 (body %s)", w.Code, w.Body.String())
	}
}

func TestRequestLocationUnknownDevice(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/devices/ZZ99ZZ/locate", "watcher", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404 (body %s)", w.Code, w.Body.String())
	}
}

func TestLocationRoundTrip(t *testing.T) {
	router := newTestRouter(t)

	if w := doJSON(t, router, http.MethodPost, "/v1/device", "owner", `{"device_id":"AB12CD"}`); w.Code != http.StatusOK {
		t.Fatalf("rebind: got %d (body %s)", w.Code, w.Body.String())
	}
	if w := doJSON(t, router, http.MethodPost, "/v1/devices/AB12CD/locate", "watcher", ""); w.Code != http.StatusOK {
		t.Fatalf("locate: got %d (body %s)", w.Code, w.Body.String())
	}

	w := doJSON(t, router, http.MethodGet, "/v1/location/requested", "owner", "")
	var flag struct {
		Requested bool `json:"requested"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &flag); err != nil || !flag.Requested {
		t.Fatalf("requested flag not set: code %d body %s err %v", w.Code, w.Body.String(), err)
	}

	w = doJSON(t, router, http.MethodPost, "/v1/location", "owner", `{"lat":52.52,"lng":13.405}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("report: got %d, want 201 (body %s)", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/v1/location/requested", "owner", "")
	if err := json.Unmarshal(w.Body.Bytes(), &flag); err != nil || flag.Requested {
		t.Fatalf("requested flag not cleared: body %s err %v", w.Body.String(), err)
	}

	w = doJSON(t, router, http.MethodGet, "/v1/devices/AB12CD/reports", "watcher", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reports: got %d (body %s)", w.Code, w.Body.String())
	}
	var list struct {
		Total   int `json:"total"`
		Reports []struct {
			DeviceID string  `json:"device_id"`
			Lat      float64 `json:"lat"`
		} `json:"reports"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode reports: %v", err)
	}
	if list.Total != 1 || len(list.Reports) != 1 || list.Reports[0].DeviceID != "AB12CD" || list.Reports[0].Lat != 52.52 {
		t.Fatalf("unexpected report listing: %s", w.Body.String())
	}
}
