package codeboard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// DefaultRefreshCookieName is used when API.CookieName is empty.
const DefaultRefreshCookieName = "codeboard_refresh"

// API exposes the session protocol over HTTP. The refresh token is
// transported exclusively in an HTTP-only, SameSite=Strict cookie; the access
// token is returned in the response body and presented back as a Bearer
// header.
type API struct {
	Sessions *Sessions

	// CookieName names the refresh cookie. Defaults to
	// DefaultRefreshCookieName.
	CookieName string

	// CookieSecure marks the refresh cookie Secure. Must be on in production.
	CookieSecure bool

	// LoginRedirectURL is where the browser lands after a completed OAuth
	// login. Defaults to "/".
	LoginRedirectURL string

	Logger *slog.Logger
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (a *API) cookieName() string {
	if a.CookieName != "" {
		return a.CookieName
	}
	return DefaultRefreshCookieName
}

func (a *API) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// HandleProfileCallback completes a login: the OAuth layer hands over the
// verified profile, the session protocol issues the token pair, and the
// browser is sent to LoginRedirectURL with the refresh cookie set.
func (a *API) HandleProfileCallback(w http.ResponseWriter, r *http.Request, profile ExternalProfile) {
	_, pair, err := a.Sessions.Login(r.Context(), profile)
	if err != nil {
		a.logger().Error("login failed", "external_id", profile.ExternalID, "err", err)
		a.writeError(w, err)
		return
	}

	a.setRefreshCookie(w, pair.RefreshToken)

	redirect := a.LoginRedirectURL
	if redirect == "" {
		redirect = "/"
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

// HandleRefresh exchanges the refresh cookie for a new token pair. The old
// refresh token is invalid as soon as this returns; the new one replaces it
// in the cookie.
func (a *API) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := a.refreshCookieValue(r)
	pair, err := a.Sessions.Refresh(r.Context(), raw)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.setRefreshCookie(w, pair.RefreshToken)
	a.writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(a.Sessions.Issuer.AccessTokenTTL().Seconds()),
	})
}

// HandleLogout revokes the current session and clears the cookie. It always
// succeeds from the caller's point of view, even with no cookie at all; only
// a storage failure is surfaced.
func (a *API) HandleLogout(w http.ResponseWriter, r *http.Request) {
	raw := a.refreshCookieValue(r)
	if err := a.Sessions.Logout(r.Context(), raw); err != nil {
		a.writeError(w, err)
		return
	}

	a.clearRefreshCookie(w)
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// HandleMe returns the account projection for the Bearer access token set by
// the middleware. The refresh hash never appears in the response.
func (a *API) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		a.writeError(w, ErrMissingToken)
		return
	}

	account, err := a.Sessions.Accounts.FindByID(r.Context(), claims.AccountID())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, account)
}

func (a *API) refreshCookieValue(r *http.Request) string {
	cookie, err := r.Cookie(a.cookieName())
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (a *API) setRefreshCookie(w http.ResponseWriter, token string) {
	ttl := a.Sessions.Issuer.RefreshTokenTTL()
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   a.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   a.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the protocol taxonomy onto HTTP statuses. All token
// failures collapse into 401 so callers learn nothing beyond "log in again";
// storage trouble is the only 5xx.
func (a *API) writeError(w http.ResponseWriter, err error) {
	code, status := "server_error", http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrMissingToken):
		code, status = "missing_token", http.StatusUnauthorized
	case errors.Is(err, ErrExpiredToken):
		code, status = "expired_token", http.StatusUnauthorized
	case errors.Is(err, ErrInvalidToken):
		code, status = "invalid_token", http.StatusUnauthorized
	case errors.Is(err, ErrTokenMismatch):
		code, status = "token_mismatch", http.StatusUnauthorized
	case errors.Is(err, ErrAccountNotFound):
		code, status = "unknown_account", http.StatusUnauthorized
	case errors.Is(err, ErrStorageUnavailable):
		code, status = "storage_unavailable", http.StatusServiceUnavailable
	default:
		a.logger().Error("request failed", "err", err)
	}

	a.writeJSON(w, status, errorResponse{
		Error:            code,
		ErrorDescription: userFacingDescription(code),
	})
}

func userFacingDescription(code string) string {
	switch code {
	case "missing_token":
		return "No credential was provided"
	case "expired_token":
		return "The token has expired, log in again"
	case "invalid_token":
		return "The token could not be verified"
	case "token_mismatch":
		return "The session is no longer valid, log in again"
	case "unknown_account":
		return "The account could not be resolved"
	case "storage_unavailable":
		return "The service is temporarily unavailable"
	}
	return "Internal server error"
}
