package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

const DefaultGitHubURL = "https://api.github.com"

// GitHubClient searches for a token's source repository
type GitHubClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewGitHubClient returns a client; token may be empty for unauthenticated access
func NewGitHubClient(baseURL, token string, httpClient *http.Client) *GitHubClient {
	if baseURL == "" {
		baseURL = DefaultGitHubURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &GitHubClient{baseURL: strings.TrimRight(baseURL, "/"), token: token, httpClient: httpClient}
}

type repoSearchResponse struct {
	Items []struct {
		FullName    string `json:"full_name"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Stars       int    `json:"stargazers_count"`
		Fork        bool   `json:"fork"`
	} `json:"items"`
}

var lastPageRe = regexp.MustCompile(`[?&]page=(\d+)[^>]*>;\s*rel="last"`)

// Find returns the first plausible repository for any of the search terms
func (g *GitHubClient) Find(ctx context.Context, symbol string, terms []string) (models.GitHubPresence, error) {
	for _, term := range terms {
		q := url.Values{
			"q":        {term + " in:name,description"},
			"sort":     {"stars"},
			"per_page": {"5"},
		}
		var res repoSearchResponse
		if _, err := g.get(ctx, "/search/repositories?"+q.Encode(), &res); err != nil {
			return models.GitHubPresence{}, err
		}

		for _, item := range res.Items {
			if item.Fork || !mentions(symbol, item.Name, item.Description) {
				continue
			}
			out := models.GitHubPresence{Found: true, Repository: item.FullName, Stars: item.Stars}
			out.Commits, _ = g.count(ctx, "/repos/"+item.FullName+"/commits?per_page=1")
			out.Contributors, _ = g.count(ctx, "/repos/"+item.FullName+"/contributors?per_page=1&anon=true")
			return out, nil
		}
	}
	return models.GitHubPresence{}, nil
}

// count uses the last page of a per_page=1 listing as the total
func (g *GitHubClient) count(ctx context.Context, path string) (int, error) {
	var items []json.RawMessage
	header, err := g.get(ctx, path, &items)
	if err != nil {
		return 0, err
	}
	if m := lastPageRe.FindStringSubmatch(header.Get("Link")); m != nil {
		return strconv.Atoi(m[1])
	}
	return len(items), nil
}

func (g *GitHubClient) get(ctx context.Context, path string, v interface{}) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github: %w", err)
	}
	defer resp.Body.Close()

	// Empty repositories answer 409 on the commit listing
	if resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusNoContent {
		return resp.Header, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github: unexpected status %d for %s", resp.StatusCode, path)
	}
	return resp.Header, json.NewDecoder(resp.Body).Decode(v)
}
