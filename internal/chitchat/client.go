// Package chitchat provides the chit-chat fallback service client used when
// the goal-oriented path runs out of patience.
package chitchat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bankbot/internal/metrics"
)

var (
	// ErrUnavailable indicates the chit-chat service rejected or failed the
	// request.
	ErrUnavailable = errors.New("chitchat service unavailable")
)

// fallbackReplies keep the dialog moving when no service is configured.
var fallbackReplies = []string{
	"Let's talk about something else.",
	"Interesting! Tell me more.",
	"I'm better with banking questions, but go on.",
}

// Config holds the chit-chat client configuration. An empty BaseURL puts the
// client in fallback mode with canned replies.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the external chit-chat service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	turn    int
}

// New creates a chit-chat client.
func New(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "chitchat"),
		metrics: m,
	}
}

type replyRequest struct {
	Text string `json:"text"`
}

type replyResponse struct {
	Reply string `json:"reply"`
}

// Reply returns a conversational response for the utterance.
func (c *Client) Reply(ctx context.Context, utterance string) (string, error) {
	if c.baseURL == "" {
		reply := fallbackReplies[c.turn%len(fallbackReplies)]
		c.turn++
		c.countCall("fallback")
		return reply, nil
	}

	body, err := json.Marshal(replyRequest{Text: utterance})
	if err != nil {
		return "", fmt.Errorf("marshal chitchat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reply", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new chitchat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.countCall("error")
		return "", fmt.Errorf("chitchat http: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.countCall("error")
		return "", fmt.Errorf("read chitchat body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.countCall(fmt.Sprintf("%d", resp.StatusCode))
		return "", fmt.Errorf("%w: status=%d", ErrUnavailable, resp.StatusCode)
	}

	var decoded replyResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		c.countCall("decode_error")
		return "", fmt.Errorf("decode chitchat response: %w", err)
	}

	c.countCall("success")
	return strings.TrimSpace(decoded.Reply), nil
}

func (c *Client) countCall(status string) {
	if c.metrics != nil {
		c.metrics.ChitChatCalls.WithLabelValues(status).Inc()
	}
}
