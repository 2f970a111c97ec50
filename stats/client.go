// Package stats fetches public coding-profile statistics from GitHub,
// Codeforces and LeetCode and maps them into a snapshot that can be served
// directly or cached on an account. The fetchers hold no state beyond
// configuration; failures degrade per platform.
package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// Default upstream locations. Overridable per Client for testing.
const (
	DefaultGithubBaseURL     = "https://api.github.com"
	DefaultCodeforcesBaseURL = "https://codeforces.com"
	DefaultLeetCodeURL       = "https://leetcode.com/graphql"
)

const leetcodeQuery = `
query getUserProfile($username: String!) {
  matchedUser(username: $username) {
    username
    profile { ranking reputation }
    submitStats: submitStatsGlobal { acSubmissionNum { count } }
  }
}`

// GithubStats is the public GitHub profile projection.
type GithubStats struct {
	Username    string `json:"username"`
	AvatarURL   string `json:"avatar_url"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
}

// CodeforcesStats is the public Codeforces rating projection. Unrated users
// report rank "Unrated" and zero ratings.
type CodeforcesStats struct {
	Username  string `json:"username"`
	Rank      string `json:"rank"`
	Rating    int    `json:"rating"`
	MaxRank   string `json:"max_rank"`
	MaxRating int    `json:"max_rating"`
}

// LeetCodeStats is the public LeetCode profile projection.
type LeetCodeStats struct {
	Username    string `json:"username"`
	Ranking     int    `json:"ranking"`
	Reputation  int    `json:"reputation"`
	TotalSolved int    `json:"total_solved"`
}

// Snapshot aggregates the per-platform stats for one username. A nil block
// means the platform could not be reached or knows no such user.
type Snapshot struct {
	Github     *GithubStats     `json:"github,omitempty"`
	Codeforces *CodeforcesStats `json:"codeforces,omitempty"`
	LeetCode   *LeetCodeStats   `json:"leetcode,omitempty"`
	FetchedAt  time.Time        `json:"fetched_at"`
}

// Client fetches stats from the three platforms.
type Client struct {
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	GithubBaseURL     string
	CodeforcesBaseURL string
	LeetCodeURL       string

	Logger *slog.Logger
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Github fetches the public GitHub profile for a username.
func (c *Client) Github(ctx context.Context, username string) (*GithubStats, error) {
	base := c.GithubBaseURL
	if base == "" {
		base = DefaultGithubBaseURL
	}

	var body struct {
		Login       string `json:"login"`
		AvatarURL   string `json:"avatar_url"`
		PublicRepos int    `json:"public_repos"`
		Followers   int    `json:"followers"`
		Following   int    `json:"following"`
	}
	if err := c.getJSON(ctx, base+"/users/"+url.PathEscape(username), &body); err != nil {
		return nil, fmt.Errorf("github: %w", err)
	}

	return &GithubStats{
		Username:    body.Login,
		AvatarURL:   body.AvatarURL,
		PublicRepos: body.PublicRepos,
		Followers:   body.Followers,
		Following:   body.Following,
	}, nil
}

// Codeforces fetches the rating info for a handle.
func (c *Client) Codeforces(ctx context.Context, handle string) (*CodeforcesStats, error) {
	base := c.CodeforcesBaseURL
	if base == "" {
		base = DefaultCodeforcesBaseURL
	}

	var body struct {
		Status string `json:"status"`
		Result []struct {
			Handle    string `json:"handle"`
			Rank      string `json:"rank"`
			Rating    int    `json:"rating"`
			MaxRank   string `json:"maxRank"`
			MaxRating int    `json:"maxRating"`
		} `json:"result"`
	}
	endpoint := base + "/api/user.info?handles=" + url.QueryEscape(handle)
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return nil, fmt.Errorf("codeforces: %w", err)
	}
	if body.Status != "OK" || len(body.Result) == 0 {
		return nil, fmt.Errorf("codeforces: no result for handle %q", handle)
	}

	stats := &CodeforcesStats{
		Username:  body.Result[0].Handle,
		Rank:      body.Result[0].Rank,
		Rating:    body.Result[0].Rating,
		MaxRank:   body.Result[0].MaxRank,
		MaxRating: body.Result[0].MaxRating,
	}
	if stats.Rank == "" {
		stats.Rank = "Unrated"
	}
	if stats.MaxRank == "" {
		stats.MaxRank = "Unrated"
	}
	return stats, nil
}

// LeetCode fetches the public LeetCode profile for a username via the
// GraphQL endpoint.
func (c *Client) LeetCode(ctx context.Context, username string) (*LeetCodeStats, error) {
	endpoint := c.LeetCodeURL
	if endpoint == "" {
		endpoint = DefaultLeetCodeURL
	}

	payload, err := json.Marshal(map[string]any{
		"query":     leetcodeQuery,
		"variables": map[string]string{"username": username},
	})
	if err != nil {
		return nil, fmt.Errorf("leetcode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("leetcode: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var body struct {
		Data struct {
			MatchedUser *struct {
				Username string `json:"username"`
				Profile  struct {
					Ranking    int `json:"ranking"`
					Reputation int `json:"reputation"`
				} `json:"profile"`
				SubmitStats struct {
					AcSubmissionNum []struct {
						Count int `json:"count"`
					} `json:"acSubmissionNum"`
				} `json:"submitStats"`
			} `json:"matchedUser"`
		} `json:"data"`
	}
	if err := c.doJSON(req, &body); err != nil {
		return nil, fmt.Errorf("leetcode: %w", err)
	}
	if body.Data.MatchedUser == nil {
		return nil, fmt.Errorf("leetcode: no user %q", username)
	}

	stats := &LeetCodeStats{
		Username:   body.Data.MatchedUser.Username,
		Ranking:    body.Data.MatchedUser.Profile.Ranking,
		Reputation: body.Data.MatchedUser.Profile.Reputation,
	}
	// The first acSubmissionNum bucket is the all-difficulties total.
	if nums := body.Data.MatchedUser.SubmitStats.AcSubmissionNum; len(nums) > 0 {
		stats.TotalSolved = nums[0].Count
	}
	return stats, nil
}

// FetchAll queries the three platforms concurrently for one username. A
// platform failure leaves its block nil rather than failing the snapshot;
// only context cancellation aborts the whole fetch.
func (c *Client) FetchAll(ctx context.Context, username string) *Snapshot {
	snapshot := &Snapshot{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := c.Github(ctx, username)
		if err != nil {
			c.logger().Warn("github stats fetch failed", "username", username, "err", err)
			return nil
		}
		snapshot.Github = stats
		return nil
	})
	g.Go(func() error {
		stats, err := c.Codeforces(ctx, username)
		if err != nil {
			c.logger().Warn("codeforces stats fetch failed", "username", username, "err", err)
			return nil
		}
		snapshot.Codeforces = stats
		return nil
	})
	g.Go(func() error {
		stats, err := c.LeetCode(ctx, username)
		if err != nil {
			c.logger().Warn("leetcode stats fetch failed", "username", username, "err", err)
			return nil
		}
		snapshot.LeetCode = stats
		return nil
	})
	g.Wait()

	snapshot.FetchedAt = time.Now().UTC()
	return snapshot
}

func (c *Client) getJSON(ctx context.Context, endpoint string, value any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, value)
}

func (c *Client) doJSON(req *http.Request, value any) error {
	response, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", response.StatusCode)
	}

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(contents, value)
}
