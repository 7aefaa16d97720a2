package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

// Sentiment cutoffs on the [0,1] scale
const (
	PositiveSentimentMin = 0.6
	NegativeSentimentMax = 0.4
)

var (
	hypeWords = []string{
		"100x", "1000x", "moon", "lambo", "pump", "gem", "presale",
		"airdrop", "don't miss", "ape in", "next 1000x", "guaranteed",
	}
	substanceWords = []string{
		"audit", "roadmap", "release", "github", "partnership", "integration",
		"testnet", "mainnet", "documentation", "governance", "changelog",
	}
	positiveWords = []string{
		"bullish", "great", "growth", "love", "success", "milestone", "launch", "thank",
	}
	negativeWords = []string{
		"scam", "rug", "hack", "exploit", "dump", "fraud", "warning", "stolen", "honeypot",
	}
)

func countMatches(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

// classifyPosts counts posts that read mostly as hype versus substance
func classifyPosts(posts []string) (hype, substance int) {
	for _, p := range posts {
		lower := strings.ToLower(p)
		h, s := countMatches(lower, hypeWords), countMatches(lower, substanceWords)
		switch {
		case h > s:
			hype++
		case s > h:
			substance++
		}
	}
	return hype, substance
}

// keywordSentiment scores posts on [0,1]. ok is false when no post carries any signal.
func keywordSentiment(posts []string) (score float64, ok bool) {
	var pos, neg int
	for _, p := range posts {
		lower := strings.ToLower(p)
		pos += countMatches(lower, positiveWords)
		neg += countMatches(lower, negativeWords)
	}
	if pos+neg == 0 {
		return 0, false
	}
	return float64(pos) / float64(pos+neg), true
}

// classifySentiment maps the mean of the available scores to a label
func classifySentiment(scores []float64) (models.Sentiment, *float64) {
	if len(scores) == 0 {
		return models.SentimentNeutral, nil
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))
	switch {
	case mean >= PositiveSentimentMin:
		return models.SentimentPositive, &mean
	case mean <= NegativeSentimentMax:
		return models.SentimentNegative, &mean
	}
	return models.SentimentNeutral, &mean
}

// SentimentSource scores free text on [0,1]
type SentimentSource interface {
	Score(ctx context.Context, texts []string) (float64, error)
}

// SentimentAPI posts texts to an external scoring service that answers {"score": x}
type SentimentAPI struct {
	url        string
	httpClient *http.Client
}

func NewSentimentAPI(url string, httpClient *http.Client) *SentimentAPI {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &SentimentAPI{url: url, httpClient: httpClient}
}

func (s *SentimentAPI) Score(ctx context.Context, texts []string) (float64, error) {
	body, err := json.Marshal(map[string][]string{"texts": texts})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sentiment api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("sentiment api: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Score *float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("sentiment api: decode: %w", err)
	}
	if out.Score == nil || *out.Score < 0 || *out.Score > 1 {
		return 0, fmt.Errorf("sentiment api: score missing or out of range")
	}
	return *out.Score, nil
}
