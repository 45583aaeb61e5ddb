package profileserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brianhealey/hadash/internal/auth"
	"github.com/brianhealey/hadash/internal/kv"
	"github.com/brianhealey/hadash/internal/profiles"
	"github.com/brianhealey/hadash/internal/profileserver"
	"github.com/brianhealey/hadash/internal/snapshot"
)

// newBackend starts a backend and returns a client for its collection.
func newBackend(t *testing.T, opts profileserver.Options) (*httptest.Server, *profiles.Client) {
	t.Helper()
	if opts.Store == nil {
		opts.Store = openStore(t)
	}
	srv := httptest.NewServer(profileserver.NewRouter(opts))
	t.Cleanup(srv.Close)
	return srv, profiles.NewClient(srv.URL + "/api/profiles")
}

func requireAPIError(t *testing.T, err error, status int) *profiles.APIError {
	t.Helper()
	var apiErr *profiles.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != status {
		t.Fatalf("status = %d, want %d (%s)", apiErr.Status, status, apiErr.Message)
	}
	return apiErr
}

func TestServer_ClientRoundTrip(t *testing.T) {
	_, c := newBackend(t, profileserver.Options{})
	ctx := context.Background()

	created, err := c.Create(ctx, input("u1", "Evening"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" || created.UserID != "u1" {
		t.Fatalf("Create = %+v", created)
	}

	list, err := c.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID || !snapshot.IsValid(list[0].Data) {
		t.Fatalf("List = %+v", list)
	}

	got, err := c.Get(ctx, created.ID, "u1")
	if err != nil || got.Name != "Evening" {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	updated, err := c.Update(ctx, created.ID, input("u1", "Night"))
	if err != nil || updated.Name != "Night" {
		t.Fatalf("Update = %+v, %v", updated, err)
	}

	if err := c.Remove(ctx, created.ID, "u1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	_, err = c.Get(ctx, created.ID, "u1")
	requireAPIError(t, err, http.StatusNotFound)
}

func TestServer_ManagerAgainstBackend(t *testing.T) {
	_, c := newBackend(t, profileserver.Options{})
	ctx := context.Background()
	store := kv.NewMemStore()
	b := snapshot.NewBuilder(store, nil)
	m := profiles.NewManager(c, b, "u1")

	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := b.Set(snapshot.KeyCardBorderRadius, 28, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	saved, err := m.SaveProfile(ctx, "Rounded", "hall")
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if got := m.Profiles(); len(got) != 1 || got[0] != saved {
		t.Fatalf("Profiles() = %+v", got)
	}

	b.Set(snapshot.KeyCardBorderRadius, 4, nil)
	var applied []any
	setters := snapshot.Setters{snapshot.KeyCardBorderRadius: func(v any) { applied = append(applied, v) }}
	if err := m.LoadProfile(ctx, saved.ID, setters); err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if len(applied) != 1 || applied[0] != 28 {
		t.Errorf("setter calls = %#v, want [28]", applied)
	}

	over, err := m.OverwriteProfile(ctx, saved.ID, "Rounded v2")
	if err != nil {
		t.Fatalf("OverwriteProfile: %v", err)
	}
	if over.DeviceLabel != "hall" || over.Name != "Rounded v2" {
		t.Errorf("overwritten = %+v", over)
	}

	if err := m.DeleteProfile(ctx, saved.ID); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	if len(m.Profiles()) != 0 {
		t.Errorf("Profiles() after delete = %+v", m.Profiles())
	}
}

func TestServer_OtherUsersProfile_Forbidden(t *testing.T) {
	_, c := newBackend(t, profileserver.Options{})
	ctx := context.Background()
	p, err := c.Create(ctx, input("u1", "Mine"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = c.Get(ctx, p.ID, "u2")
	requireAPIError(t, err, http.StatusForbidden)

	_, err = c.Update(ctx, p.ID, input("u2", "Stolen"))
	requireAPIError(t, err, http.StatusForbidden)

	err = c.Remove(ctx, p.ID, "u2")
	requireAPIError(t, err, http.StatusForbidden)

	list, _ := c.List(ctx, "u2")
	if len(list) != 0 {
		t.Errorf("List(u2) = %+v, want none", list)
	}
}

func TestServer_HeaderBodyMismatch_Forbidden(t *testing.T) {
	srv, _ := newBackend(t, profileserver.Options{})

	body := `{"ha_user_id":"u2","name":"x","data":{"version":1,"layout":{},"appearance":{}}}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/profiles", strings.NewReader(body))
	req.Header.Set(profiles.UserHeader, "u1")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestServer_ListQueryHeaderMismatch_Forbidden(t *testing.T) {
	srv, _ := newBackend(t, profileserver.Options{})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/profiles?ha_user_id=u2", nil)
	req.Header.Set(profiles.UserHeader, "u1")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestServer_MissingUser_BadRequest(t *testing.T) {
	srv, c := newBackend(t, profileserver.Options{})

	_, err := c.List(context.Background(), "")
	requireAPIError(t, err, http.StatusBadRequest)

	resp, err := srv.Client().Get(srv.URL + "/api/profiles/some-id")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("GET without %s: status = %d, want 400", profiles.UserHeader, resp.StatusCode)
	}
}

func TestServer_InvalidInput(t *testing.T) {
	srv, _ := newBackend(t, profileserver.Options{})

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"no name", `{"name":"  ","data":{"version":1,"layout":{},"appearance":{}}}`, "name"},
		{"no data", `{"name":"x"}`, "data"},
		{"layout array", `{"name":"x","data":{"version":1,"layout":[],"appearance":{}}}`, "data"},
		{"version zero", `{"name":"x","data":{"version":0,"layout":{},"appearance":{}}}`, "data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/profiles", strings.NewReader(tt.body))
			req.Header.Set(profiles.UserHeader, "u1")
			resp, err := srv.Client().Do(req)
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			var body map[string]string
			json.NewDecoder(resp.Body).Decode(&body)
			if body["field"] != tt.field {
				t.Errorf("field = %q, want %q (body %v)", body["field"], tt.field, body)
			}
			if tt.field == "data" && body["error"] != snapshot.InvalidSnapshotMessage {
				t.Errorf("error = %q, want %q", body["error"], snapshot.InvalidSnapshotMessage)
			}
		})
	}
}

func TestServer_RateLimitedPerUser(t *testing.T) {
	_, c := newBackend(t, profileserver.Options{RatePerSec: 0.001, Burst: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.List(ctx, "u1"); err != nil {
			t.Fatalf("List %d: %v", i, err)
		}
	}
	_, err := c.List(ctx, "u1")
	apiErr := requireAPIError(t, err, http.StatusTooManyRequests)
	if apiErr.Message != "too many requests" {
		t.Errorf("Message = %q", apiErr.Message)
	}

	// Other users have their own bucket.
	if _, err := c.List(ctx, "u2"); err != nil {
		t.Errorf("List(u2) after u1 exhausted: %v", err)
	}
}

func TestServer_APIKey(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "clients.json"), []byte(`{"hall":{"access_key":"k1"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	authSvc, err := auth.NewService(dir)
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	t.Cleanup(authSvc.Close)

	_, c := newBackend(t, profileserver.Options{Auth: authSvc})
	ctx := context.Background()

	_, err = c.List(ctx, "u1")
	requireAPIError(t, err, http.StatusUnauthorized)

	c.APIKey = "k1"
	if _, err := c.List(ctx, "u1"); err != nil {
		t.Errorf("List with key: %v", err)
	}
}
