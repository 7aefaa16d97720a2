package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrProfileNotFound = errors.New("profile not found")

// Profile is a microblogging account as seen by one provider
type Profile struct {
	Handle      string
	DisplayName string
	Bio         string
	Followers   int
	Verified    bool
	CreatedAt   *time.Time
	PostCount   int
	Posts       []string
}

// TwitterProvider looks up a microblogging profile by handle
type TwitterProvider interface {
	Name() string
	Lookup(ctx context.Context, handle string) (Profile, error)
}

const DefaultXAPIURL = "https://api.twitter.com"

// XAPIProvider uses the X API v2 with an app bearer token
type XAPIProvider struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewXAPIProvider(baseURL, bearerToken string, httpClient *http.Client) *XAPIProvider {
	if baseURL == "" {
		baseURL = DefaultXAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &XAPIProvider{baseURL: strings.TrimRight(baseURL, "/"), token: bearerToken, httpClient: httpClient}
}

func (x *XAPIProvider) Name() string { return "x_api" }

type xUserResponse struct {
	Data *struct {
		ID            string    `json:"id"`
		Name          string    `json:"name"`
		Username      string    `json:"username"`
		Description   string    `json:"description"`
		Verified      bool      `json:"verified"`
		CreatedAt     time.Time `json:"created_at"`
		PublicMetrics struct {
			FollowersCount int `json:"followers_count"`
			TweetCount     int `json:"tweet_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

type xTweetsResponse struct {
	Data []struct {
		Text string `json:"text"`
	} `json:"data"`
}

func (x *XAPIProvider) Lookup(ctx context.Context, handle string) (Profile, error) {
	q := url.Values{"user.fields": {"created_at,description,public_metrics,verified"}}
	var user xUserResponse
	if err := x.get(ctx, "/2/users/by/username/"+url.PathEscape(handle)+"?"+q.Encode(), &user); err != nil {
		return Profile{}, err
	}
	if user.Data == nil {
		return Profile{}, fmt.Errorf("%w: @%s", ErrProfileNotFound, handle)
	}

	created := user.Data.CreatedAt
	p := Profile{
		Handle:      user.Data.Username,
		DisplayName: user.Data.Name,
		Bio:         user.Data.Description,
		Followers:   user.Data.PublicMetrics.FollowersCount,
		Verified:    user.Data.Verified,
		CreatedAt:   &created,
		PostCount:   user.Data.PublicMetrics.TweetCount,
	}

	// Recent posts are best-effort; the profile alone is a valid answer.
	var tweets xTweetsResponse
	if err := x.get(ctx, "/2/users/"+user.Data.ID+"/tweets?max_results=20", &tweets); err == nil {
		for _, t := range tweets.Data {
			p.Posts = append(p.Posts, t.Text)
		}
	}
	return p, nil
}

func (x *XAPIProvider) get(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+x.token)

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("x api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrProfileNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("x api: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

const DefaultScrapeURL = "https://nitter.net"

// ScrapeProvider reads a public profile page. It needs no credentials.
type ScrapeProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewScrapeProvider(baseURL string, httpClient *http.Client) *ScrapeProvider {
	if baseURL == "" {
		baseURL = DefaultScrapeURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &ScrapeProvider{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (s *ScrapeProvider) Name() string { return "scrape" }

var (
	metaTagRe   = regexp.MustCompile(`<meta\s+(?:property|name)="(og:title|og:description)"\s+content="([^"]*)"`)
	followersRe = regexp.MustCompile(`(?i)([\d,.]+)\s*(k|m)?\s*followers`)
	postsRe     = regexp.MustCompile(`(?i)([\d,]+)\s*(?:posts|tweets)\b`)
	joinedRe    = regexp.MustCompile(`(?i)joined\s+([A-Z][a-z]+ \d{4})`)
	postBodyRe  = regexp.MustCompile(`(?s)<div class="tweet-content[^"]*"[^>]*>(.*?)</div>`)
	tagRe       = regexp.MustCompile(`<[^>]+>`)
)

func (s *ScrapeProvider) Lookup(ctx context.Context, handle string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+url.PathEscape(handle), nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; token-threat-scanner)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("scrape: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Profile{}, fmt.Errorf("%w: @%s", ErrProfileNotFound, handle)
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("scrape: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return Profile{}, err
	}
	return parseProfilePage(handle, string(body))
}

func parseProfilePage(handle, page string) (Profile, error) {
	p := Profile{Handle: handle}
	for _, m := range metaTagRe.FindAllStringSubmatch(page, -1) {
		switch m[1] {
		case "og:title":
			p.DisplayName = html.UnescapeString(m[2])
		case "og:description":
			p.Bio = html.UnescapeString(m[2])
		}
	}
	if p.DisplayName == "" && p.Bio == "" {
		return Profile{}, fmt.Errorf("%w: @%s", ErrProfileNotFound, handle)
	}

	if m := followersRe.FindStringSubmatch(page); m != nil {
		p.Followers = parseCount(m[1], m[2])
	}
	if m := postsRe.FindStringSubmatch(page); m != nil {
		p.PostCount = parseCount(m[1], "")
	}
	if m := joinedRe.FindStringSubmatch(page); m != nil {
		if t, err := time.Parse("January 2006", m[1]); err == nil {
			p.CreatedAt = &t
		}
	}
	for _, m := range postBodyRe.FindAllStringSubmatch(page, 20) {
		p.Posts = append(p.Posts, strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(m[1], ""))))
	}
	if p.PostCount == 0 {
		p.PostCount = len(p.Posts)
	}
	return p, nil
}

// parseCount reads "12,345", "1.2" + "k" and similar abbreviations
func parseCount(num, suffix string) int {
	num = strings.ReplaceAll(num, ",", "")
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(suffix) {
	case "k":
		f *= 1_000
	case "m":
		f *= 1_000_000
	}
	return int(math.Round(f))
}
