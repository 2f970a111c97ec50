package stats

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/codeboard/codeboard"
)

// Handlers serves the stat routes: public per-platform lookups plus the
// authenticated snapshot kept on an account.
type Handlers struct {
	Client   *Client
	Accounts codeboard.AccountStore
	Logger   *slog.Logger
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// HandleGithub serves GET /api/stats/github/{username}.
func (h *Handlers) HandleGithub(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Client.Github(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.upstreamError(w, "github", err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// HandleCodeforces serves GET /api/stats/codeforces/{handle}.
func (h *Handlers) HandleCodeforces(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Client.Codeforces(r.Context(), mux.Vars(r)["handle"])
	if err != nil {
		h.upstreamError(w, "codeforces", err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// HandleLeetCode serves GET /api/stats/leetcode/{username}.
func (h *Handlers) HandleLeetCode(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Client.LeetCode(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.upstreamError(w, "leetcode", err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// HandleRefreshMine serves POST /api/me/stats/refresh: fetch fresh stats for
// the authenticated account's handle and persist the snapshot.
func (h *Handlers) HandleRefreshMine(w http.ResponseWriter, r *http.Request) {
	account, ok := h.requireAccount(w, r)
	if !ok {
		return
	}

	snapshot := h.Client.FetchAll(r.Context(), account.DisplayName)
	if err := h.Accounts.SaveStats(r.Context(), account.ID, snapshotToMap(snapshot)); err != nil {
		h.logger().Error("failed to save stats", "account_id", account.ID, "err", err)
		h.writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "Could not persist stats")
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

// HandleMine serves GET /api/me/stats: the last persisted snapshot.
func (h *Handlers) HandleMine(w http.ResponseWriter, r *http.Request) {
	account, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	if account.Stats == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	h.writeJSON(w, http.StatusOK, account.Stats)
}

func (h *Handlers) requireAccount(w http.ResponseWriter, r *http.Request) (*codeboard.Account, bool) {
	claims := codeboard.ClaimsFromContext(r.Context())
	if claims == nil {
		h.writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
		return nil, false
	}
	account, err := h.Accounts.FindByID(r.Context(), claims.AccountID())
	if err != nil {
		if errors.Is(err, codeboard.ErrAccountNotFound) {
			h.writeError(w, http.StatusUnauthorized, "unknown_account", "The account could not be resolved")
		} else {
			h.writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "The service is temporarily unavailable")
		}
		return nil, false
	}
	return account, true
}

func (h *Handlers) upstreamError(w http.ResponseWriter, platform string, err error) {
	h.logger().Warn("stats fetch failed", "platform", platform, "err", err)
	h.writeError(w, http.StatusBadGateway, platform+"_unavailable", "Failed to fetch "+platform+" data")
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, code, description string) {
	h.writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

// snapshotToMap converts a snapshot into the generic map the account store
// persists.
func snapshotToMap(snapshot *Snapshot) map[string]any {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
