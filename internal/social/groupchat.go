package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

// GroupChatProvider finds a token's community group
type GroupChatProvider interface {
	Lookup(ctx context.Context, handles []string) (models.GroupChatPresence, error)
}

const DefaultTelegramURL = "https://api.telegram.org"

// TelegramProvider counts members of public groups through the Bot API
type TelegramProvider struct {
	baseURL    string
	botToken   string
	httpClient *http.Client
}

func NewTelegramProvider(baseURL, botToken string, httpClient *http.Client) *TelegramProvider {
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &TelegramProvider{baseURL: strings.TrimRight(baseURL, "/"), botToken: botToken, httpClient: httpClient}
}

type telegramCountResponse struct {
	OK          bool   `json:"ok"`
	Result      int    `json:"result"`
	Description string `json:"description"`
}

func (t *TelegramProvider) Lookup(ctx context.Context, handles []string) (models.GroupChatPresence, error) {
	var lastErr error
	for _, h := range handles {
		q := url.Values{"chat_id": {"@" + h}}
		u := fmt.Sprintf("%s/bot%s/getChatMemberCount?%s", t.baseURL, t.botToken, q.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return models.GroupChatPresence{}, err
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("telegram: %w", err)
			continue
		}
		var r telegramCountResponse
		err = json.NewDecoder(resp.Body).Decode(&r)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("telegram: decode: %w", err)
			continue
		}
		// Unknown chats answer ok=false with "chat not found"
		if r.OK {
			return models.GroupChatPresence{Found: true, Group: "@" + h, Members: r.Result}, nil
		}
	}
	if lastErr != nil {
		return models.GroupChatPresence{}, lastErr
	}
	return models.GroupChatPresence{}, nil
}

// StubGroupChat reports a fixed member count. Zero means no group.
type StubGroupChat struct {
	Members int
}

func (s StubGroupChat) Lookup(ctx context.Context, handles []string) (models.GroupChatPresence, error) {
	if s.Members <= 0 || len(handles) == 0 {
		return models.GroupChatPresence{}, nil
	}
	return models.GroupChatPresence{Found: true, Group: "@" + handles[0], Members: s.Members}, nil
}
