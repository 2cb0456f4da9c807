// Package social talks to the two post sources: an indexed search API used
// for bulk pagination and the authoritative API used for re-verification.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gmcoin/mintworker/internal/core/domain"
	"github.com/gmcoin/mintworker/internal/worker/metrics"
)

// Page is one page of a paginated posts-by-author-set query. An empty
// NextCursor signals end of results.
type Page struct {
	Posts      []domain.Post
	NextCursor string
}

// Client is the full social API surface the worker needs.
type Client interface {
	// SearchPosts queries the indexed API for posts matching the multi-author
	// query, resuming from cursor when non-empty.
	SearchPosts(ctx context.Context, query, cursor string, limit int) (*Page, error)

	// LookupPost fetches one post by id from the authoritative API.
	LookupPost(ctx context.Context, id string) (*domain.Post, error)

	// ResolveHandles maps platform user ids to handles, at most 100 per call.
	ResolveHandles(ctx context.Context, ids []string) (map[string]string, error)
}

// Config holds the social API endpoints and credentials.
type Config struct {
	SearchBaseURL string        `yaml:"search_base_url"`
	AuthBaseURL   string        `yaml:"auth_base_url"`
	BearerToken   string        `yaml:"bearer_token"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSec    float64       `yaml:"rate_per_sec"`
	Burst         int           `yaml:"burst"`
}

// HTTPClient is a bearer-token client with a shared rate limiter across both
// endpoints.
type HTTPClient struct {
	searchBase string
	authBase   string
	token      string
	httpc      *http.Client
	limiter    *rate.Limiter
}

func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RatePerSec
	if rps == 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst == 0 {
		burst = 10
	}
	return &HTTPClient{
		searchBase: strings.TrimRight(cfg.SearchBaseURL, "/"),
		authBase:   strings.TrimRight(cfg.AuthBaseURL, "/"),
		token:      cfg.BearerToken,
		httpc:      &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *HTTPClient) get(ctx context.Context, endpoint, u string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		metrics.SocialAPIRequests.WithLabelValues(endpoint, "network_error").Inc()
		return err
	}
	defer resp.Body.Close()

	metrics.SocialAPIRequests.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("social api %s status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMalformedPayload, endpoint, err)
	}
	return nil
}

func (c *HTTPClient) SearchPosts(ctx context.Context, query, cursor string, limit int) (*Page, error) {
	u := fmt.Sprintf("%s/twitter/search?query=%s&max_results=%d",
		c.searchBase, url.QueryEscape(query), clamp(limit, 10, 100))
	if cursor != "" {
		u += "&cursor=" + url.QueryEscape(cursor)
	}

	var raw struct {
		Tweets []struct {
			IDStr          string    `json:"id_str"`
			FullText       string    `json:"full_text"`
			TweetCreatedAt time.Time `json:"tweet_created_at"`
			FavoriteCount  int       `json:"favorite_count"`
			RetweetCount   int       `json:"retweet_count"`
			User           struct {
				ScreenName string `json:"screen_name"`
			} `json:"user"`
		} `json:"tweets"`
		NextCursor string `json:"next_cursor"`
	}
	if err := c.get(ctx, "search", u, &raw); err != nil {
		return nil, err
	}

	page := &Page{NextCursor: raw.NextCursor}
	for _, t := range raw.Tweets {
		page.Posts = append(page.Posts, domain.Post{
			Handle:       t.User.ScreenName,
			ID:           t.IDStr,
			Content:      t.FullText,
			LikesCount:   t.FavoriteCount,
			RepostsCount: t.RetweetCount,
			CreatedAt:    t.TweetCreatedAt,
		})
	}
	return page, nil
}

func (c *HTTPClient) LookupPost(ctx context.Context, id string) (*domain.Post, error) {
	u := fmt.Sprintf("%s/2/tweets/%s?tweet.fields=public_metrics,created_at",
		c.authBase, url.PathEscape(id))

	var raw struct {
		Data struct {
			ID            string    `json:"id"`
			Text          string    `json:"text"`
			CreatedAt     time.Time `json:"created_at"`
			PublicMetrics struct {
				LikeCount    int `json:"like_count"`
				RetweetCount int `json:"retweet_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	if err := c.get(ctx, "lookup", u, &raw); err != nil {
		return nil, err
	}
	if raw.Data.ID == "" {
		return nil, fmt.Errorf("%w: lookup returned no post for %s", domain.ErrMalformedPayload, id)
	}
	return &domain.Post{
		ID:           raw.Data.ID,
		Content:      raw.Data.Text,
		LikesCount:   raw.Data.PublicMetrics.LikeCount,
		RepostsCount: raw.Data.PublicMetrics.RetweetCount,
		CreatedAt:    raw.Data.CreatedAt,
	}, nil
}

func (c *HTTPClient) ResolveHandles(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > 100 {
		return nil, fmt.Errorf("resolve batch too large: %d > 100", len(ids))
	}
	u := fmt.Sprintf("%s/2/users?ids=%s", c.authBase, url.QueryEscape(strings.Join(ids, ",")))

	var raw struct {
		Data []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := c.get(ctx, "users", u, &raw); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(raw.Data))
	for _, d := range raw.Data {
		out[d.ID] = d.Username
	}
	return out, nil
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
