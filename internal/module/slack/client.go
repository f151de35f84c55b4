package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

const postMessageURL = "https://slack.com/api/chat.postMessage"

// Client posts to the Slack Web API behind a circuit breaker so a
// degraded Slack does not stall request handling.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*apiResponse]
	baseURL string
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// NewClient creates a Slack Web API client.
func NewClient() *Client {
	settings := gobreaker.Settings{
		Name:        "slack",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[*apiResponse](settings),
		baseURL: postMessageURL,
	}
}

// PostMessage posts a message to a channel on behalf of an installation.
func (c *Client) PostMessage(ctx context.Context, accessToken, channel, text string) error {
	_, err := c.breaker.Execute(func() (*apiResponse, error) {
		return c.postMessage(ctx, accessToken, channel, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

func (c *Client) postMessage(ctx context.Context, accessToken, channel, text string) (*apiResponse, error) {
	payload, err := json.Marshal(map[string]string{
		"channel": channel,
		"text":    text,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSlackAPI, resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !body.OK {
		return nil, fmt.Errorf("%w: %s", ErrSlackAPI, body.Error)
	}
	return &body, nil
}
