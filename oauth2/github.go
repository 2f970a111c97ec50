// Package oauth2 implements the GitHub sign-in handshake: the redirect to
// the provider, the state-cookie check, the code exchange, and fetching the
// verified user profile. What to do with the profile is the caller's
// business, supplied as a HandleProfileFunc.
package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/codeboard/codeboard"
)

// HandleProfileFunc receives the verified profile after a successful
// handshake and completes the login (issuing tokens, setting cookies,
// redirecting).
type HandleProfileFunc func(w http.ResponseWriter, r *http.Request, profile codeboard.ExternalProfile)

// GithubOAuth2 drives the provider flow for GitHub.
type GithubOAuth2 struct {
	// Config is the underlying oauth2 configuration. Built by the
	// constructor; tests may point its endpoint at a fake provider.
	Config oauth2.Config

	// UserInfoURL is where the user profile is fetched from. Defaults to
	// GitHub's API; overridable for testing.
	UserInfoURL string

	// AuthFailureURL is where the browser is sent when the handshake fails.
	AuthFailureURL string

	HandleProfile HandleProfileFunc

	// HTTPClient overrides the client used for the exchange and the profile
	// fetch. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

// NewGithubOAuth2 builds the GitHub flow. Empty arguments fall back to the
// OAUTH2_GITHUB_* environment variables.
func NewGithubOAuth2(clientID, clientSecret, callbackURL string, handleProfile HandleProfileFunc) *GithubOAuth2 {
	if clientID == "" {
		clientID = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_SECRET"))
	}
	if callbackURL == "" {
		callbackURL = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CALLBACK_URL"))
	}

	return &GithubOAuth2{
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		UserInfoURL:    "https://api.github.com/user",
		AuthFailureURL: "/",
		HandleProfile:  handleProfile,
	}
}

// HandleRedirect starts the handshake: sets the state cookie and sends the
// browser to GitHub's authorization page.
func (g *GithubOAuth2) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	state := generateStateOauthCookie(w)
	http.Redirect(w, r, g.Config.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback finishes the handshake: verifies the state cookie, exchanges
// the code, fetches the GitHub user, and hands the mapped profile to
// HandleProfile.
func (g *GithubOAuth2) HandleCallback(w http.ResponseWriter, r *http.Request) {
	oauthState, _ := r.Cookie(stateCookieName)
	if oauthState == nil || r.FormValue("state") != oauthState.Value {
		clearStateCookie(w)
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}
	clearStateCookie(w)

	token, err := g.Config.Exchange(g.exchangeContext(r.Context()), r.FormValue("code"))
	if err != nil {
		slog.Info("oauth code exchange failed", "err", err)
		http.Redirect(w, r, g.AuthFailureURL, http.StatusTemporaryRedirect)
		return
	}

	profile, err := g.fetchProfile(r.Context(), token)
	if err != nil {
		slog.Info("github profile fetch failed", "err", err)
		http.Redirect(w, r, g.AuthFailureURL, http.StatusTemporaryRedirect)
		return
	}

	g.HandleProfile(w, r, profile)
}

// exchangeContext injects the override HTTP client into the oauth2 library.
func (g *GithubOAuth2) exchangeContext(ctx context.Context) context.Context {
	if g.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, g.HTTPClient)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

func (g *GithubOAuth2) fetchProfile(ctx context.Context, token *oauth2.Token) (codeboard.ExternalProfile, error) {
	var profile codeboard.ExternalProfile

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.UserInfoURL, nil)
	if err != nil {
		return profile, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	client := g.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(req)
	if err != nil {
		return profile, fmt.Errorf("failed getting user info from github: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return profile, fmt.Errorf("github user info returned status %d", response.StatusCode)
	}

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return profile, fmt.Errorf("failed to read response: %w", err)
	}

	var user githubUser
	if err := json.Unmarshal(contents, &user); err != nil {
		return profile, fmt.Errorf("failed to parse user info: %w", err)
	}
	if user.ID == 0 || user.Login == "" {
		return profile, fmt.Errorf("github user info missing id or login")
	}

	// The login handle doubles as the display name; the numeric ID is the
	// stable identifier.
	return codeboard.ExternalProfile{
		ExternalID:  strconv.FormatInt(user.ID, 10),
		DisplayName: user.Login,
		AvatarURL:   user.AvatarURL,
		ProfileURL:  user.HTMLURL,
	}, nil
}
