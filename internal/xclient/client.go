package xclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"niceguy/internal/model"
)

// SearchParams is one search request. Query is the platform query string;
// the other fields map to endpoint parameters where the API version has them.
type SearchParams struct {
	Query           string
	Lang            string
	Locale          string // v1.1 only
	Count           int
	ResultType      string // v1.1 only: mixed, recent, popular
	ExcludeRetweets bool
}

// Searcher is implemented by both API backends.
type Searcher interface {
	SearchPosts(ctx context.Context, p SearchParams) ([]model.Post, error)
}

// HTTPClient is a simple bearer-token client for X API v2.
type HTTPClient struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

func NewHTTPClient(bearerToken string) *HTTPClient {
	return &HTTPClient{
		baseURL:     "https://api.twitter.com/2",
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     newDefaultLimiter(),
	}
}

// SetBaseURL points the client at another API root. Empty keeps the default.
func (c *HTTPClient) SetBaseURL(u string) {
	if u != "" {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func (c *HTTPClient) auth(req *http.Request) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	req.Header.Set("Accept", "application/json")
}

// SearchPosts runs one recent-search request and resolves author usernames
// through the users expansion.
func (c *HTTPClient) SearchPosts(ctx context.Context, p SearchParams) ([]model.Post, error) {
	var lang, rt string
	if p.Lang != "" {
		lang = "lang:" + p.Lang
	}
	if p.ExcludeRetweets {
		rt = "-is:retweet"
	}
	q := joinQuery(p.Query, lang, rt)
	u := fmt.Sprintf("%s/tweets/search/recent?max_results=%d&tweet.fields=created_at,lang,author_id&expansions=author_id&user.fields=username&query=%s",
		c.baseURL, clamp(p.Count, 10, 100), url.QueryEscape(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.auth(req)
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp)
	}
	var raw struct {
		Data []struct {
			ID        string    `json:"id"`
			Text      string    `json:"text"`
			CreatedAt time.Time `json:"created_at"`
			Lang      string    `json:"lang"`
			AuthorID  string    `json:"author_id"`
		} `json:"data"`
		Includes struct {
			Users []struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"users"`
		} `json:"includes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(raw.Includes.Users))
	for _, u := range raw.Includes.Users {
		names[u.ID] = u.Username
	}
	out := make([]model.Post, 0, len(raw.Data))
	for _, d := range raw.Data {
		out = append(out, model.Post{
			ID:         d.ID,
			Text:       d.Text,
			AuthorID:   d.AuthorID,
			AuthorName: names[d.AuthorID],
			Language:   d.Lang,
			CreatedAt:  d.CreatedAt,
		})
	}
	// max_results has a floor of 10; a smaller cap is applied here.
	if p.Count > 0 && len(out) > p.Count {
		out = out[:p.Count]
	}
	return out, nil
}

// do sends a single request. There is no retry: a transport error or
// non-2xx status is the caller's to handle.
func (c *HTTPClient) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
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

var _ Searcher = (*HTTPClient)(nil)

// joinQuery trims and joins non-empty query fragments with spaces.
func joinQuery(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
