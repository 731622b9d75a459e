package xclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"niceguy/internal/model"
)

const defaultV1BaseURL = "https://api.twitter.com/1.1"

// V1Client talks to X API v1.1 with OAuth 1.0a user credentials.
// It serves both the search phase and status updates.
type V1Client struct {
	Base           *HTTPClient
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
	baseURL        string
	nowFn          func() time.Time
	nonceFn        func() string
}

func NewV1Client(base *HTTPClient, ck, cs, at, as string) *V1Client {
	if base == nil {
		base = NewHTTPClient("")
	}
	return &V1Client{
		Base:           base,
		ConsumerKey:    ck,
		ConsumerSecret: cs,
		AccessToken:    at,
		AccessSecret:   as,
		baseURL:        defaultV1BaseURL,
		nowFn:          time.Now,
		nonceFn:        func() string { return strconv.FormatInt(rand.Int63(), 36) },
	}
}

// SetBaseURL points the client at another API root. Empty keeps the default.
func (c *V1Client) SetBaseURL(u string) {
	if u != "" {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// SearchPosts runs one search/tweets request.
func (c *V1Client) SearchPosts(ctx context.Context, p SearchParams) ([]model.Post, error) {
	q := p.Query
	if p.ExcludeRetweets {
		q = joinQuery(q, "-RT")
	}
	params := map[string]string{
		"q":          q,
		"tweet_mode": "extended",
	}
	if p.Count > 0 {
		params["count"] = strconv.Itoa(clamp(p.Count, 1, 100))
	}
	if p.Lang != "" {
		params["lang"] = p.Lang
	}
	if p.Locale != "" {
		params["locale"] = p.Locale
	}
	if p.ResultType != "" {
		params["result_type"] = p.ResultType
	}
	endpoint := c.baseURL + "/search/tweets.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+encodeQuery(params), nil)
	if err != nil {
		return nil, err
	}
	c.oauth1Sign(req, params)
	resp, err := c.Base.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp)
	}
	var raw struct {
		Statuses []struct {
			IDStr     string `json:"id_str"`
			CreatedAt string `json:"created_at"`
			FullText  string `json:"full_text"`
			Text      string `json:"text"`
			Lang      string `json:"lang"`
			User      struct {
				IDStr      string `json:"id_str"`
				ScreenName string `json:"screen_name"`
			} `json:"user"`
		} `json:"statuses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	out := make([]model.Post, 0, len(raw.Statuses))
	for _, t := range raw.Statuses {
		// Parse example: Mon Jan 2 15:04:05 -0700 2006
		ts, _ := time.Parse(time.RubyDate, t.CreatedAt)
		text := t.FullText
		if text == "" {
			text = t.Text
		}
		out = append(out, model.Post{
			ID:         t.IDStr,
			Text:       text,
			AuthorID:   t.User.IDStr,
			AuthorName: t.User.ScreenName,
			Language:   t.Lang,
			CreatedAt:  ts,
		})
	}
	return out, nil
}

// PostStatus publishes body as a new status.
func (c *V1Client) PostStatus(ctx context.Context, body string) error {
	params := map[string]string{"status": body}
	endpoint := c.baseURL + "/statuses/update.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encodeQuery(params)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.oauth1Sign(req, params)
	resp, err := c.Base.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	return nil
}

// oauth1Sign sets the OAuth 1.0a Authorization header. params are the query
// or form parameters that travel with the request and take part in the signature.
func (c *V1Client) oauth1Sign(req *http.Request, params map[string]string) {
	oauth := map[string]string{
		"oauth_consumer_key":     c.ConsumerKey,
		"oauth_nonce":            c.nonceFn(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(c.nowFn().Unix(), 10),
		"oauth_token":            c.AccessToken,
		"oauth_version":          "1.0",
	}
	all := make(map[string]string, len(oauth)+len(params))
	for k, v := range oauth {
		all[k] = v
	}
	for k, v := range params {
		all[k] = v
	}
	baseURL := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	base := signatureBase(req.Method, baseURL, all)
	oauth["oauth_signature"] = hmacSign(base, c.ConsumerSecret, c.AccessSecret)

	hdrKeys := make([]string, 0, len(oauth))
	for k := range oauth {
		hdrKeys = append(hdrKeys, k)
	}
	sort.Strings(hdrKeys)
	authParts := make([]string, 0, len(hdrKeys))
	for _, k := range hdrKeys {
		authParts = append(authParts, fmt.Sprintf("%s=\"%s\"", rfc3986(k), rfc3986(oauth[k])))
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(authParts, ", "))
	req.Header.Set("Accept", "application/json")
}

func signatureBase(method, baseURL string, params map[string]string) string {
	return strings.ToUpper(method) + "&" + rfc3986(baseURL) + "&" + rfc3986(encodeQuery(params))
}

func hmacSign(base, consumerSecret, tokenSecret string) string {
	key := rfc3986(consumerSecret) + "&" + rfc3986(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	_, _ = mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// encodeQuery renders params sorted by key with RFC 3986 escaping, which is
// both the OAuth parameter string and a valid query or form body.
func encodeQuery(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, rfc3986(k)+"="+rfc3986(m[k]))
	}
	return strings.Join(parts, "&")
}

// RFC 3986 percent-encoding for OAuth
func rfc3986(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(url.QueryEscape(s), "+", "%20"), "*", "%2A")
}

var _ Searcher = (*V1Client)(nil)
