package stats_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/codeboard/codeboard"
	"github.com/codeboard/codeboard/stats"
	"github.com/codeboard/codeboard/stores/fs"
)

func newTestRouter(t *testing.T) (*mux.Router, *stats.Handlers, *fs.AccountStore) {
	t.Helper()
	_, client := newFakePlatforms(t)
	store := fs.NewAccountStore(t.TempDir())
	handlers := &stats.Handlers{Client: client, Accounts: store}

	router := mux.NewRouter()
	router.HandleFunc("/api/stats/github/{username}", handlers.HandleGithub)
	router.HandleFunc("/api/stats/codeforces/{handle}", handlers.HandleCodeforces)
	router.HandleFunc("/api/stats/leetcode/{username}", handlers.HandleLeetCode)
	return router, handlers, store
}

func TestPublicStatsRoutes(t *testing.T) {
	router, _, _ := newTestRouter(t)

	tests := []struct {
		name string
		path string
		key  string
		want any
	}{
		{"github", "/api/stats/github/octocat", "followers", float64(1000)},
		{"codeforces", "/api/stats/codeforces/octocat", "rating", float64(1742)},
		{"leetcode", "/api/stats/leetcode/octocat", "total_solved", float64(250)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))

			resp := rec.Result()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body["username"] != "octocat" {
				t.Errorf("username = %v, want octocat", body["username"])
			}
			if body[tt.key] != tt.want {
				t.Errorf("%s = %v, want %v", tt.key, body[tt.key], tt.want)
			}
		})
	}
}

func TestPublicStatsUpstreamFailure(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats/github/no-such-user", nil))

	resp := rec.Result()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["error"] != "github_unavailable" {
		t.Errorf("error = %q, want github_unavailable", body["error"])
	}
}

func authedRequest(t *testing.T, method, path, accountID string) *http.Request {
	t.Helper()
	claims := &codeboard.Claims{}
	claims.Subject = accountID
	req := httptest.NewRequest(method, path, nil)
	return req.WithContext(codeboard.ContextWithClaims(req.Context(), claims))
}

func TestRefreshMinePersistsSnapshot(t *testing.T) {
	_, handlers, store := newTestRouter(t)
	ctx := context.Background()

	account, err := store.Create(ctx, codeboard.ExternalProfile{ExternalID: "gh-1", DisplayName: "octocat"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rec := httptest.NewRecorder()
	handlers.HandleRefreshMine(rec, authedRequest(t, "POST", "/api/me/stats/refresh", account.ID))
	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", rec.Result().StatusCode)
	}

	stored, err := store.FindByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	github, ok := stored.Stats["github"].(map[string]any)
	if !ok {
		t.Fatalf("persisted stats missing github block: %+v", stored.Stats)
	}
	if github["username"] != "octocat" {
		t.Errorf("persisted github username = %v, want octocat", github["username"])
	}

	// The persisted snapshot is what HandleMine serves back.
	rec = httptest.NewRecorder()
	handlers.HandleMine(rec, authedRequest(t, "GET", "/api/me/stats", account.ID))
	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("mine status = %d, want 200", rec.Result().StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Result().Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if _, ok := body["github"]; !ok {
		t.Errorf("served snapshot missing github block: %+v", body)
	}
}

func TestMineBeforeAnyRefresh(t *testing.T) {
	_, handlers, store := newTestRouter(t)

	account, err := store.Create(context.Background(), codeboard.ExternalProfile{ExternalID: "gh-2", DisplayName: "newbie"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rec := httptest.NewRecorder()
	handlers.HandleMine(rec, authedRequest(t, "GET", "/api/me/stats", account.ID))

	resp := rec.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	if len(body) != 0 {
		t.Errorf("expected an empty snapshot, got %+v", body)
	}
}

func TestMineRequiresAuthentication(t *testing.T) {
	_, handlers, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	handlers.HandleMine(rec, httptest.NewRequest("GET", "/api/me/stats", nil))

	resp := rec.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["error"] != "missing_token" {
		t.Errorf("error = %q, want missing_token", body["error"])
	}
}

func TestMineUnknownAccount(t *testing.T) {
	_, handlers, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	handlers.HandleMine(rec, authedRequest(t, "GET", "/api/me/stats", "no-such-account"))

	resp := rec.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["error"] != "unknown_account" {
		t.Errorf("error = %q, want unknown_account", body["error"])
	}
}
