package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

const DefaultRDAPURL = "https://rdap.org"

// WebsiteProber guesses a token's official domain and dates its registration
type WebsiteProber struct {
	rdapURL    string
	httpClient *http.Client
	// siteURL maps a domain to the URL probed for it
	siteURL func(domain string) string
}

func NewWebsiteProber(rdapURL string, httpClient *http.Client) *WebsiteProber {
	if rdapURL == "" {
		rdapURL = DefaultRDAPURL
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 5 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	return &WebsiteProber{
		rdapURL:    strings.TrimRight(rdapURL, "/"),
		httpClient: httpClient,
		siteURL:    func(domain string) string { return "https://" + domain },
	}
}

// Domains lists the guesses for a normalized symbol, most likely first
func Domains(sym string) []string {
	if sym == "" {
		return nil
	}
	return []string{
		sym + ".com",
		sym + ".io",
		sym + ".finance",
		sym + ".xyz",
		sym + "token.com",
		sym + "coin.com",
	}
}

// Probe returns the first reachable domain with its registration date when known
func (w *WebsiteProber) Probe(ctx context.Context, domains []string) (models.WebsitePresence, error) {
	for _, d := range domains {
		if !w.reachable(ctx, d) {
			continue
		}
		out := models.WebsitePresence{Found: true, Domain: d}
		if reg, err := w.registeredAt(ctx, d); err == nil {
			out.RegisteredAt = &reg
		}
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return models.WebsitePresence{}, err
	}
	return models.WebsitePresence{}, nil
}

func (w *WebsiteProber) reachable(ctx context.Context, domain string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.siteURL(domain), nil)
	if err != nil {
		return false
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusBadRequest
}

type rdapResponse struct {
	Events []struct {
		Action string    `json:"eventAction"`
		Date   time.Time `json:"eventDate"`
	} `json:"events"`
}

func (w *WebsiteProber) registeredAt(ctx context.Context, domain string) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.rdapURL+"/domain/"+domain, nil)
	if err != nil {
		return time.Time{}, err
	}
	req.Header.Set("Accept", "application/rdap+json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("rdap: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("rdap: unexpected status %d", resp.StatusCode)
	}

	var r rdapResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return time.Time{}, fmt.Errorf("rdap: decode: %w", err)
	}
	for _, e := range r.Events {
		if e.Action == "registration" {
			return e.Date, nil
		}
	}
	return time.Time{}, fmt.Errorf("rdap: no registration event for %s", domain)
}
