package social

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

var now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestXAPIProvider_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token on %s", r.URL.Path)
		}
		switch r.URL.Path {
		case "/2/users/by/username/pepe":
			_, _ = w.Write([]byte(`{"data": {
				"id": "123", "name": "PEPE", "username": "pepe",
				"description": "The most memeable memecoin",
				"verified": true, "created_at": "2023-04-14T10:00:00.000Z",
				"public_metrics": {"followers_count": 250000, "tweet_count": 4100}
			}}`))
		case "/2/users/123/tweets":
			_, _ = w.Write([]byte(`{"data": [{"text": "gm"}, {"text": "roadmap update"}]}`))
		case "/2/users/by/username/ghost":
			_, _ = w.Write([]byte(`{"errors": [{"title": "Not Found Error", "detail": "Could not find user"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	x := NewXAPIProvider(srv.URL, "secret", srv.Client())
	p, err := x.Lookup(context.Background(), "pepe")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if p.Handle != "pepe" || p.Followers != 250000 || !p.Verified || p.PostCount != 4100 || len(p.Posts) != 2 {
		t.Errorf("Lookup() = %+v", p)
	}
	if p.CreatedAt == nil || p.CreatedAt.Year() != 2023 {
		t.Errorf("CreatedAt = %v", p.CreatedAt)
	}

	if _, err := x.Lookup(context.Background(), "ghost"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Lookup(ghost) error = %v, want ErrProfileNotFound", err)
	}
	if _, err := x.Lookup(context.Background(), "missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Lookup(missing) error = %v, want ErrProfileNotFound", err)
	}
}

const profilePage = `<html><head>
<meta property="og:title" content="Bonk Inu (@bonk)" />
<meta property="og:description" content="The dog coin of Solana &amp; friends" />
</head><body>
<span class="profile-joindate">Joined March 2022</span>
<li class="posts">8,214 Posts</li>
<li class="followers">1.2M Followers</li>
<div class="tweet-content media-body" dir="auto">BONK to the <b>moon</b></div>
<div class="tweet-content media-body" dir="auto">New audit published</div>
</body></html>`

func TestScrapeProvider_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bonk" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(profilePage))
	}))
	defer srv.Close()

	s := NewScrapeProvider(srv.URL, srv.Client())
	p, err := s.Lookup(context.Background(), "bonk")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	want := Profile{
		Handle:      "bonk",
		DisplayName: "Bonk Inu (@bonk)",
		Bio:         "The dog coin of Solana & friends",
		Followers:   1_200_000,
		PostCount:   8214,
		Posts:       []string{"BONK to the moon", "New audit published"},
	}
	created := p.CreatedAt
	p.CreatedAt = nil
	if !reflect.DeepEqual(p, want) {
		t.Errorf("Lookup() = %+v, want %+v", p, want)
	}
	if created == nil || created.Year() != 2022 || created.Month() != time.March {
		t.Errorf("CreatedAt = %v, want March 2022", created)
	}

	if _, err := s.Lookup(context.Background(), "nobody"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Lookup(nobody) error = %v, want ErrProfileNotFound", err)
	}
}

func TestParseProfilePage_NoProfile(t *testing.T) {
	if _, err := parseProfilePage("x", "<html><body>suspended</body></html>"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("parseProfilePage() error = %v, want ErrProfileNotFound", err)
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		num, suffix string
		want        int
	}{
		{"12,345", "", 12345},
		{"1.5", "k", 1500},
		{"2", "M", 2_000_000},
		{"n/a", "", 0},
	}
	for _, tt := range tests {
		if got := parseCount(tt.num, tt.suffix); got != tt.want {
			t.Errorf("parseCount(%q, %q) = %d, want %d", tt.num, tt.suffix, got, tt.want)
		}
	}
}

func TestGitHubClient_Find(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/repositories":
			if !strings.Contains(r.URL.Query().Get("q"), "in:name,description") {
				t.Errorf("q = %q", r.URL.Query().Get("q"))
			}
			_, _ = w.Write([]byte(`{"items": [
				{"full_name": "someone/pepe-fork", "name": "pepe-fork", "fork": true, "stargazers_count": 900},
				{"full_name": "unrelated/frogs", "name": "frogs", "description": "pond simulator", "stargazers_count": 50},
				{"full_name": "pepe-org/pepe-contracts", "name": "pepe-contracts", "description": "PEPE token", "stargazers_count": 120}
			]}`))
		case "/repos/pepe-org/pepe-contracts/commits":
			w.Header().Set("Link", fmt.Sprintf(
				`<%[1]s/repositories/1/commits?per_page=1&page=2>; rel="next", <%[1]s/repositories/1/commits?per_page=1&page=42>; rel="last"`,
				srv.URL))
			_, _ = w.Write([]byte(`[{"sha": "abc"}]`))
		case "/repos/pepe-org/pepe-contracts/contributors":
			_, _ = w.Write([]byte(`[{"login": "a"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g := NewGitHubClient(srv.URL, "", srv.Client())
	got, err := g.Find(context.Background(), "PEPE", []string{"PEPE"})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	want := models.GitHubPresence{Found: true, Repository: "pepe-org/pepe-contracts", Stars: 120, Commits: 42, Contributors: 1}
	if got != want {
		t.Errorf("Find() = %+v, want %+v", got, want)
	}
}

func TestGitHubClient_FindNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	got, err := NewGitHubClient(srv.URL, "", srv.Client()).Find(context.Background(), "ZZZ", []string{"ZZZ", "Zed"})
	if err != nil || got.Found {
		t.Errorf("Find() = %+v, %v; want not found", got, err)
	}
}

func TestWebsiteProber_Probe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/site/pepe.io":
			_, _ = w.Write([]byte("<html>PEPE</html>"))
		case "/domain/pepe.io":
			_, _ = w.Write([]byte(`{"events": [
				{"eventAction": "last changed", "eventDate": "2025-01-01T00:00:00Z"},
				{"eventAction": "registration", "eventDate": "2026-02-10T00:00:00Z"}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	w := NewWebsiteProber(srv.URL, srv.Client())
	w.siteURL = func(domain string) string { return srv.URL + "/site/" + domain }

	got, err := w.Probe(context.Background(), Domains("pepe"))
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !got.Found || got.Domain != "pepe.io" {
		t.Fatalf("Probe() = %+v, want pepe.io", got)
	}
	if got.RegisteredAt == nil || !got.RegisteredAt.Equal(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("RegisteredAt = %v", got.RegisteredAt)
	}

	none, err := w.Probe(context.Background(), Domains("nothing"))
	if err != nil || none.Found {
		t.Errorf("Probe(nothing) = %+v, %v; want not found", none, err)
	}
}

func TestTelegramProvider_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottok/getChatMemberCount" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("chat_id") == "@pepetoken" {
			_, _ = w.Write([]byte(`{"ok": true, "result": 1200}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok": false, "description": "Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegramProvider(srv.URL, "tok", srv.Client())
	got, err := tg.Lookup(context.Background(), HandleVariants("pepe"))
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	want := models.GroupChatPresence{Found: true, Group: "@pepetoken", Members: 1200}
	if got != want {
		t.Errorf("Lookup() = %+v, want %+v", got, want)
	}
}

func TestStubGroupChat(t *testing.T) {
	if got, _ := (StubGroupChat{}).Lookup(context.Background(), []string{"x"}); got.Found {
		t.Errorf("zero members should not be found: %+v", got)
	}
	if got, _ := (StubGroupChat{Members: 10}).Lookup(context.Background(), []string{"x"}); !got.Found || got.Members != 10 {
		t.Errorf("Lookup() = %+v", got)
	}
}

func TestClassifySentiment(t *testing.T) {
	tests := []struct {
		scores    []float64
		want      models.Sentiment
		wantScore bool
	}{
		{nil, models.SentimentNeutral, false},
		{[]float64{0.9, 0.3}, models.SentimentPositive, true},
		{[]float64{0.5}, models.SentimentNeutral, true},
		{[]float64{0.4}, models.SentimentNegative, true},
		{[]float64{0.1, 0.2, 0.3}, models.SentimentNegative, true},
	}
	for _, tt := range tests {
		got, score := classifySentiment(tt.scores)
		if got != tt.want || (score != nil) != tt.wantScore {
			t.Errorf("classifySentiment(%v) = %s, %v; want %s", tt.scores, got, score, tt.want)
		}
	}
}

func TestSentimentAPI_Score(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		_, _ = w.Write([]byte(`{"score": 0.25}`))
	}))
	defer srv.Close()

	got, err := NewSentimentAPI(srv.URL, srv.Client()).Score(context.Background(), []string{"rug incoming"})
	if err != nil || got != 0.25 {
		t.Errorf("Score() = %v, %v", got, err)
	}
}

type fakeTwitter struct {
	name     string
	profiles map[string]Profile
	err      error
}

func (f fakeTwitter) Name() string { return f.name }

func (f fakeTwitter) Lookup(ctx context.Context, handle string) (Profile, error) {
	if f.err != nil {
		return Profile{}, f.err
	}
	p, ok := f.profiles[handle]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func TestAnalyzer_NoPresence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search/repositories" {
			_, _ = w.Write([]byte(`{"items": []}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	web := NewWebsiteProber(srv.URL, srv.Client())
	web.siteURL = func(domain string) string { return srv.URL + "/site/" + domain }

	var (
		mu       sync.Mutex
		failures []string
	)
	a := NewAnalyzer(Sources{
		Twitter:   []TwitterProvider{NewScrapeProvider(srv.URL, srv.Client())},
		GitHub:    NewGitHubClient(srv.URL, "", srv.Client()),
		Website:   web,
		GroupChat: StubGroupChat{},
	}, time.Second, func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, name)
	}, zerolog.Nop())

	got := a.Analyze(context.Background(), Input{Symbol: "ZQX", Name: "Zqx Finance"})

	wantFlags := []string{FlagNoTwitter, FlagNoGitHub, FlagNoWebsite, FlagMinimalPresence}
	if !reflect.DeepEqual(got.RedFlags, wantFlags) {
		t.Errorf("RedFlags = %v, want %v", got.RedFlags, wantFlags)
	}
	if got.Sentiment != models.SentimentNeutral || got.SentimentScore != nil {
		t.Errorf("Sentiment = %s (%v), want neutral without score", got.Sentiment, got.SentimentScore)
	}
	if len(failures) != 0 {
		t.Errorf("plain misses should not count as failures: %v", failures)
	}
}

func TestAnalyzer_WebsiteHonoursTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	web := NewWebsiteProber(srv.URL, srv.Client())
	web.siteURL = func(domain string) string { return srv.URL + "/site/" + domain }

	var (
		mu       sync.Mutex
		failures []string
	)
	a := NewAnalyzer(Sources{Website: web}, 50*time.Millisecond, func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, name)
	}, zerolog.Nop())

	start := time.Now()
	got := a.Analyze(context.Background(), Input{Symbol: "ZQX", Name: "Zqx Finance"})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Analyze() took %v with a hanging website", elapsed)
	}

	if got.Website.Found {
		t.Errorf("Website = %+v, want not found", got.Website)
	}
	found := false
	for _, f := range got.RedFlags {
		if f == FlagNoWebsite {
			found = true
		}
	}
	if !found {
		t.Errorf("RedFlags = %v, want %s", got.RedFlags, FlagNoWebsite)
	}
	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(failures, []string{"website"}) {
		t.Errorf("failures = %v, want [website]", failures)
	}
}

func TestAnalyzer_YoungHypeAccount(t *testing.T) {
	created := now.Add(-10 * 24 * time.Hour)
	tw := fakeTwitter{name: "fake", profiles: map[string]Profile{
		// Handle taken by something unrelated
		"pepe": {Handle: "pepe", DisplayName: "Frog Pizza", Bio: "best slices in town", Followers: 9000},
		"pepetoken": {
			Handle:      "pepetoken",
			DisplayName: "PEPE Token",
			Followers:   50,
			CreatedAt:   &created,
			PostCount:   2,
			Posts:       []string{"to the moon 100x bullish", "pump it, great launch"},
		},
	}}

	a := NewAnalyzer(Sources{
		Twitter:   []TwitterProvider{fakeTwitter{name: "down", err: errors.New("503")}, tw},
		GroupChat: StubGroupChat{Members: 100},
	}, time.Second, nil, zerolog.Nop())
	a.now = func() time.Time { return now }

	got := a.Analyze(context.Background(), Input{Symbol: "PEPE"})

	if !got.Twitter.Found || got.Twitter.Handle != "pepetoken" || got.Twitter.Provider != "fake" {
		t.Fatalf("Twitter = %+v, want pepetoken via fake", got.Twitter)
	}
	if got.Twitter.HypePosts != 2 || got.Twitter.Substance != 0 {
		t.Errorf("hype/substance = %d/%d, want 2/0", got.Twitter.HypePosts, got.Twitter.Substance)
	}
	wantFlags := []string{
		FlagNewTwitter, FlagLowFollowers, FlagHypeHeavy, FlagLowPostVolume,
		FlagNoGitHub, FlagNoWebsite, FlagSmallCommunity,
	}
	if !reflect.DeepEqual(got.RedFlags, wantFlags) {
		t.Errorf("RedFlags = %v, want %v", got.RedFlags, wantFlags)
	}
	if got.Sentiment != models.SentimentPositive || got.SentimentScore == nil || *got.SentimentScore != 1 {
		t.Errorf("Sentiment = %s (%v), want positive 1.0", got.Sentiment, got.SentimentScore)
	}
}

func TestAnalyzer_EstablishedProject(t *testing.T) {
	created := now.AddDate(-3, 0, 0)
	registered := now.AddDate(-2, 0, 0)
	a := &Analyzer{now: func() time.Time { return now }, log: zerolog.Nop()}
	flags := a.redFlags(models.SocialAnalysis{
		Twitter:   models.TwitterPresence{Found: true, Followers: 500_000, CreatedAt: &created, PostCount: 9000, Substance: 3},
		GitHub:    models.GitHubPresence{Found: true, Commits: 800, Contributors: 12},
		Website:   models.WebsitePresence{Found: true, RegisteredAt: &registered},
		GroupChat: models.GroupChatPresence{Found: true, Members: 40_000},
	}, &Profile{PostCount: 9000})

	// Only the unverified large account stands out
	if want := []string{FlagUnverifiedLarge}; !reflect.DeepEqual(flags, want) {
		t.Errorf("redFlags() = %v, want %v", flags, want)
	}
}

func TestHandleVariants(t *testing.T) {
	want := []string{"wif", "wiftoken", "wifcoin", "wif_official", "wifofficial"}
	if got := HandleVariants(normalize("$WIF")); !reflect.DeepEqual(got, want) {
		t.Errorf("HandleVariants() = %v, want %v", got, want)
	}
	if HandleVariants(normalize("***")) != nil {
		t.Error("symbol without letters should yield no variants")
	}
}
