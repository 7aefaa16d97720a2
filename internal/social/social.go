// Package social measures the off-chain footprint of a token: its
// microblogging account, source repository, website and community group.
// Every lookup is best-effort. A source that cannot be reached counts as
// absent and the analysis still completes.
package social

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/provider"
)

// Red flags raised by Analyze
const (
	FlagNoTwitter          = "no_twitter_presence"
	FlagNewTwitter         = "new_twitter_account"
	FlagLowFollowers       = "low_follower_count"
	FlagUnverifiedLarge    = "unverified_large_account"
	FlagHypeHeavy          = "hype_heavy_posts"
	FlagLowPostVolume      = "low_post_volume"
	FlagNoGitHub           = "no_github_repository"
	FlagMinimalDevActivity = "minimal_dev_activity"
	FlagNoWebsite          = "no_official_website"
	FlagVeryNewDomain      = "very_new_domain"
	FlagSmallCommunity     = "small_community"
	FlagMinimalPresence    = "minimal_social_presence"
)

const (
	NewAccountAge         = 30 * 24 * time.Hour
	NewDomainAge          = 90 * 24 * time.Hour
	MinFollowers          = 1000
	LargeAccountFollowers = 100_000
	MinPosts              = 5
	MinCommits            = 10
	MinContributors       = 2
	MinCommunityMembers   = 500
	MinPresenceSignals    = 2
)

// Sources are the lookups available to an Analyzer. Nil entries are skipped.
type Sources struct {
	Twitter   []TwitterProvider
	GitHub    *GitHubClient
	Website   *WebsiteProber
	GroupChat GroupChatProvider
	Sentiment SentimentSource
}

type Analyzer struct {
	src     Sources
	timeout time.Duration
	onFail  provider.FailureHook
	log     zerolog.Logger
	now     func() time.Time
}

// NewAnalyzer returns an Analyzer; timeout bounds each provider call
func NewAnalyzer(src Sources, timeout time.Duration, onFail provider.FailureHook, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		src:     src,
		timeout: timeout,
		onFail:  onFail,
		log:     log.With().Str("component", "social").Logger(),
		now:     time.Now,
	}
}

type Input struct {
	Symbol         string
	Name           string
	CreatorAddress string
}

// Analyze never fails. Lookups that error or time out are treated as absent.
func (a *Analyzer) Analyze(ctx context.Context, in Input) models.SocialAnalysis {
	sym := normalize(in.Symbol)
	out := models.SocialAnalysis{Sentiment: models.SentimentNeutral, RedFlags: []string{}}

	var (
		profile  *Profile
		mu       sync.Mutex
		scores   []float64
		g, gctx  = errgroup.WithContext(ctx)
		variants = HandleVariants(sym)
	)
	addScore := func(s float64) {
		mu.Lock()
		scores = append(scores, s)
		mu.Unlock()
	}

	if sym != "" && len(a.src.Twitter) > 0 {
		g.Go(func() error {
			p, name, ok := a.findProfile(gctx, in.Symbol, variants)
			if !ok {
				return nil
			}
			profile = &p
			hype, substance := classifyPosts(p.Posts)
			out.Twitter = models.TwitterPresence{
				Found:     true,
				Handle:    p.Handle,
				Followers: p.Followers,
				Verified:  p.Verified,
				CreatedAt: p.CreatedAt,
				PostCount: p.PostCount,
				HypePosts: hype,
				Substance: substance,
				Provider:  name,
			}
			if s, ok := keywordSentiment(p.Posts); ok {
				addScore(s)
			}
			if a.src.Sentiment != nil && len(p.Posts) > 0 {
				if s, err := a.src.Sentiment.Score(gctx, p.Posts); err == nil {
					addScore(s)
				} else {
					a.failed("sentiment_api", err)
				}
			}
			return nil
		})
	}

	if sym != "" && a.src.GitHub != nil {
		g.Go(func() error {
			gh, err := bounded(gctx, a, "github", func(ctx context.Context) (models.GitHubPresence, error) {
				return a.src.GitHub.Find(ctx, in.Symbol, searchTerms(in))
			})
			if err != nil {
				a.failed("github", err)
				return nil
			}
			out.GitHub = gh
			return nil
		})
	}

	if sym != "" && a.src.Website != nil {
		g.Go(func() error {
			ws, err := bounded(gctx, a, "website", func(ctx context.Context) (models.WebsitePresence, error) {
				return a.src.Website.Probe(ctx, Domains(sym))
			})
			if err != nil {
				a.failed("website", err)
				return nil
			}
			out.Website = ws
			return nil
		})
	}

	if sym != "" && a.src.GroupChat != nil {
		g.Go(func() error {
			gc, err := bounded(gctx, a, "group_chat", func(ctx context.Context) (models.GroupChatPresence, error) {
				return a.src.GroupChat.Lookup(ctx, variants)
			})
			if err != nil {
				a.failed("group_chat", err)
				return nil
			}
			out.GroupChat = gc
			return nil
		})
	}

	// Goroutines only report failures through a.failed, never through the group.
	_ = g.Wait()

	out.Sentiment, out.SentimentScore = classifySentiment(scores)
	out.RedFlags = a.redFlags(out, profile)

	a.log.Debug().
		Str("symbol", in.Symbol).
		Bool("twitter", out.Twitter.Found).
		Bool("github", out.GitHub.Found).
		Bool("website", out.Website.Found).
		Bool("group_chat", out.GroupChat.Found).
		Strs("red_flags", out.RedFlags).
		Msg("social analysis complete")
	return out
}

// findProfile tries each handle variant across the provider chain and keeps
// the first profile whose name or bio mentions the symbol.
func (a *Analyzer) findProfile(ctx context.Context, symbol string, variants []string) (Profile, string, bool) {
	for _, handle := range variants {
		if ctx.Err() != nil {
			return Profile{}, "", false
		}
		chain := make([]provider.Provider[Profile], 0, len(a.src.Twitter))
		for _, tp := range a.src.Twitter {
			tp, handle := tp, handle
			chain = append(chain, provider.Provider[Profile]{
				Name:    tp.Name(),
				Timeout: a.timeout,
				Fetch: func(ctx context.Context) (Profile, error) {
					return tp.Lookup(ctx, handle)
				},
			})
		}
		p, name, err := provider.FirstSuccess(ctx, a.log, a.notFoundAware, chain...)
		if err != nil {
			continue
		}
		if mentions(symbol, p.DisplayName, p.Bio) {
			return p, name, true
		}
	}
	return Profile{}, "", false
}

// notFoundAware skips the failure hook for plain misses
func (a *Analyzer) notFoundAware(name string, err error) {
	if errors.Is(err, ErrProfileNotFound) {
		return
	}
	a.failed(name, err)
}

func (a *Analyzer) failed(name string, err error) {
	a.log.Debug().Err(err).Str("service", name).Msg("social lookup failed")
	if a.onFail != nil {
		a.onFail(name, err)
	}
}

// bounded runs fn under the analyzer's per-call timeout
func bounded[T any](ctx context.Context, a *Analyzer, name string, fn func(context.Context) (T, error)) (T, error) {
	v, _, err := provider.FirstSuccess(ctx, a.log, nil, provider.Provider[T]{Name: name, Timeout: a.timeout, Fetch: fn})
	return v, err
}

func (a *Analyzer) redFlags(s models.SocialAnalysis, p *Profile) []string {
	flags := []string{}
	now := a.now()

	if !s.Twitter.Found {
		flags = append(flags, FlagNoTwitter)
	} else {
		tw := s.Twitter
		if tw.CreatedAt != nil && now.Sub(*tw.CreatedAt) < NewAccountAge {
			flags = append(flags, FlagNewTwitter)
		}
		if tw.Followers < MinFollowers {
			flags = append(flags, FlagLowFollowers)
		}
		if tw.Followers >= LargeAccountFollowers && !tw.Verified {
			flags = append(flags, FlagUnverifiedLarge)
		}
		if tw.HypePosts > tw.Substance {
			flags = append(flags, FlagHypeHeavy)
		}
		if p != nil && max(tw.PostCount, len(p.Posts)) < MinPosts {
			flags = append(flags, FlagLowPostVolume)
		}
	}

	if !s.GitHub.Found {
		flags = append(flags, FlagNoGitHub)
	} else if s.GitHub.Commits < MinCommits || s.GitHub.Contributors < MinContributors {
		flags = append(flags, FlagMinimalDevActivity)
	}

	if !s.Website.Found {
		flags = append(flags, FlagNoWebsite)
	} else if s.Website.RegisteredAt != nil && now.Sub(*s.Website.RegisteredAt) < NewDomainAge {
		flags = append(flags, FlagVeryNewDomain)
	}

	if s.GroupChat.Found && s.GroupChat.Members < MinCommunityMembers {
		flags = append(flags, FlagSmallCommunity)
	}

	present := 0
	for _, found := range []bool{s.Twitter.Found, s.GitHub.Found, s.Website.Found, s.GroupChat.Found} {
		if found {
			present++
		}
	}
	if present < MinPresenceSignals {
		flags = append(flags, FlagMinimalPresence)
	}
	return flags
}

// normalize lowercases a symbol and drops everything but letters and digits
func normalize(symbol string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(symbol) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HandleVariants lists the account handles tried for a normalized symbol
func HandleVariants(sym string) []string {
	if sym == "" {
		return nil
	}
	return []string{sym, sym + "token", sym + "coin", sym + "_official", sym + "official"}
}

func searchTerms(in Input) []string {
	terms := []string{in.Symbol}
	if in.Name != "" && !strings.EqualFold(in.Name, in.Symbol) {
		terms = append(terms, in.Name)
	}
	return terms
}

// mentions reports whether any field contains the symbol, ignoring case
func mentions(symbol string, fields ...string) bool {
	sym := normalize(symbol)
	if sym == "" {
		return false
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), sym) {
			return true
		}
	}
	return false
}
