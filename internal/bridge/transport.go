package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const slackAPIBase = "https://slack.com/api"

// Message is an inbound or outbound chat message, trimmed to the fields the
// bridge's classification and addressing rules need (spec.md §6).
type Message struct {
	ChannelID string
	UserID    string
	Text      string
	Ts        string
	ThreadTS  string
	BotID     string
	Subtype   string
}

// IsFromBot reports whether this message should be ignored to avoid
// self-loops (spec.md §6: "skip any message with a bot_id or subtype field").
func (m Message) IsFromBot() bool {
	return m.BotID != "" || m.Subtype != ""
}

// Transport is the chat-service client the bridge drives: post, discover
// channels by prefix, and receive either via a real-time socket listener or
// periodic history polling (spec.md §4.3.1).
type Transport interface {
	PostMessage(ctx context.Context, channelID, text, threadTS string) (ts string, err error)
	ChannelsByPrefix(ctx context.Context, prefix string) (map[string]string, error)
	History(ctx context.Context, channelID string, oldest string, limit int) ([]Message, error)
	Listen(ctx context.Context, wsURL string, handler func(Message)) error
}

// SlackTransport implements Transport with plain net/http Bearer-token REST
// calls for posting/history/channel discovery, and a gorilla/websocket
// Socket Mode client for the real-time listener, matching spec.md §6's
// "HTTPS with Bearer token... optional websocket for real-time inbound"
// exactly. The websocket dial idiom is grounded on
// cklxx-elephant.ai's `websocket.DefaultDialer.Dial` usage.
type SlackTransport struct {
	botToken string
	client   *http.Client
}

// NewSlackTransport builds a transport bound to a bot token, with a bounded
// HTTP client timeout (the teacher's subprocess calls are all
// context/timeout bounded; REST calls follow the same discipline).
func NewSlackTransport(botToken string) *SlackTransport {
	return &SlackTransport{
		botToken: botToken,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *SlackTransport) do(ctx context.Context, method, path string, body map[string]any, query map[string]string) (map[string]any, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal slack request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := slackAPIBase + "/" + path
	if len(query) > 0 {
		q := make([]string, 0, len(query))
		for k, v := range query {
			q = append(q, k+"="+v)
		}
		url += "?" + strings.Join(q, "&")
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build slack request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+t.botToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack request %s: %w", path, err)
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode slack response %s: %w", path, err)
	}
	if ok, _ := result["ok"].(bool); !ok {
		return nil, fmt.Errorf("slack api %s error: %v", path, result["error"])
	}
	return result, nil
}

// PostMessage sends chat.postMessage, optionally threaded (spec.md §6).
func (t *SlackTransport) PostMessage(ctx context.Context, channelID, text, threadTS string) (string, error) {
	body := map[string]any{"channel": channelID, "text": text}
	if threadTS != "" {
		body["thread_ts"] = threadTS
	}
	result, err := t.do(ctx, http.MethodPost, "chat.postMessage", body, nil)
	if err != nil {
		return "", err
	}
	ts, _ := result["ts"].(string)
	return ts, nil
}

// ChannelsByPrefix discovers channels via conversations.list and returns a
// map of full channel name (e.g. "<prefix>-features") to channel ID for
// every channel whose name starts with prefix followed by "-" (spec.md
// §4.3.2).
func (t *SlackTransport) ChannelsByPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	result, err := t.do(ctx, http.MethodGet, "conversations.list", nil, map[string]string{"limit": "200"})
	if err != nil {
		return nil, err
	}
	channels, _ := result["channels"].([]any)
	out := make(map[string]string)
	for _, c := range channels {
		entry, ok := c.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		id, _ := entry["id"].(string)
		if strings.HasPrefix(name, prefix+"-") {
			out[name] = id
		}
	}
	return out, nil
}

// History polls conversations.history for messages since oldest (spec.md
// §4.3.1's fallback inbound mode when the socket listener is unavailable).
func (t *SlackTransport) History(ctx context.Context, channelID string, oldest string, limit int) ([]Message, error) {
	query := map[string]string{"channel": channelID, "limit": fmt.Sprintf("%d", limit)}
	if oldest != "" {
		query["oldest"] = oldest
	}
	result, err := t.do(ctx, http.MethodGet, "conversations.history", nil, query)
	if err != nil {
		return nil, err
	}
	raw, _ := result["messages"].([]any)
	msgs := make([]Message, 0, len(raw))
	for _, r := range raw {
		entry, ok := r.(map[string]any)
		if !ok {
			continue
		}
		msgs = append(msgs, Message{
			ChannelID: channelID,
			UserID:    stringField(entry, "user"),
			Text:      stringField(entry, "text"),
			Ts:        stringField(entry, "ts"),
			ThreadTS:  stringField(entry, "thread_ts"),
			BotID:     stringField(entry, "bot_id"),
			Subtype:   stringField(entry, "subtype"),
		})
	}
	return msgs, nil
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

// socketEnvelope is the minimal Socket Mode event wrapper this bridge reads:
// events_api payloads wrapping a message event.
type socketEnvelope struct {
	Type    string `json:"type"`
	Payload struct {
		Event struct {
			Type      string `json:"type"`
			Channel   string `json:"channel"`
			User      string `json:"user"`
			Text      string `json:"text"`
			Ts        string `json:"ts"`
			ThreadTS  string `json:"thread_ts"`
			BotID     string `json:"bot_id"`
			Subtype   string `json:"subtype"`
		} `json:"event"`
	} `json:"payload"`
	EnvelopeID string `json:"envelope_id"`
}

// Listen connects the Socket Mode websocket (spec.md §4.3.1's preferred
// real-time listener) and invokes handler for every inbound message event
// until ctx is cancelled. It never panics the caller: a frame that fails to
// decode is skipped silently, and only a dial or socket read failure is
// returned as an error (nil once ctx is cancelled), matching the
// daemon-thread discipline of spec.md §4.3.1 ("a daemon thread that catches
// all exceptions").
func (t *SlackTransport) Listen(ctx context.Context, wsURL string, handler func(Message)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial slack socket mode: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read slack socket message: %w", err)
		}

		var env socketEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.EnvelopeID != "" {
			ack, _ := json.Marshal(map[string]string{"envelope_id": env.EnvelopeID})
			_ = conn.WriteMessage(websocket.TextMessage, ack)
		}
		if env.Payload.Event.Type != "message" {
			continue
		}
		handler(Message{
			ChannelID: env.Payload.Event.Channel,
			UserID:    env.Payload.Event.User,
			Text:      env.Payload.Event.Text,
			Ts:        env.Payload.Event.Ts,
			ThreadTS:  env.Payload.Event.ThreadTS,
			BotID:     env.Payload.Event.BotID,
			Subtype:   env.Payload.Event.Subtype,
		})
	}
}

// OpenSocketURL calls apps.connections.open with the app-level token to
// obtain the ephemeral wss:// URL Socket Mode requires (Slack's documented
// handshake; app_token is distinct from bot_token per spec.md §6's config
// shape, so this uses its own request rather than SlackTransport.do, which
// is bound to the bot token).
func OpenSocketURL(ctx context.Context, appToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, slackAPIBase+"/apps.connections.open", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+appToken)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("open slack socket connection: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		OK    bool   `json:"ok"`
		URL   string `json:"url"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode socket open response: %w", err)
	}
	if !result.OK {
		return "", fmt.Errorf("slack apps.connections.open error: %s", result.Error)
	}
	return result.URL, nil
}
