// Package client is a thin HTTP wrapper over the backend's route groups,
// used by the session manager and tooling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aikawa-dev/companion/backend/internal/service/agent"
	"github.com/aikawa-dev/companion/backend/internal/service/summary"
)

// APIError is a non-2xx backend reply.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// Options configures the client.
type Options struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client calls the backend API.
type Client struct {
	opts Options
	http *http.Client
}

// New creates a client for the backend at opts.BaseURL.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout},
	}
}

// ChannelInfo fetches join material for a channel and uid.
func (c *Client) ChannelInfo(ctx context.Context, channel string, uid int) (agent.ChannelInfo, error) {
	query := url.Values{"channel": {channel}, "uid": {strconv.Itoa(uid)}}
	var info agent.ChannelInfo
	err := c.do(ctx, http.MethodGet, "/api/agora/channel-info?"+query.Encode(), nil, &info)
	return info, err
}

// StartConversation asks the backend to instantiate the remote agent.
func (c *Client) StartConversation(ctx context.Context, req agent.StartRequest) (agent.StartResult, error) {
	var result agent.StartResult
	err := c.do(ctx, http.MethodPost, "/api/agora/start", req, &result)
	return result, err
}

// StopConversation asks the backend to tear down the remote agent.
func (c *Client) StopConversation(ctx context.Context, agentID string) (agent.StopResult, error) {
	var result agent.StopResult
	err := c.do(ctx, http.MethodDelete, "/api/agora/stop/"+url.PathEscape(agentID), nil, &result)
	return result, err
}

// AvatarConfig reports the avatar vendor configuration.
func (c *Client) AvatarConfig(ctx context.Context) (map[string]any, error) {
	var cfg map[string]any
	err := c.do(ctx, http.MethodGet, "/api/avatar/config", nil, &cfg)
	return cfg, err
}

// ValidateAvatar reports which avatar environment variables are missing.
func (c *Client) ValidateAvatar(ctx context.Context) (map[string]any, error) {
	var result map[string]any
	err := c.do(ctx, http.MethodGet, "/api/avatar/validate", nil, &result)
	return result, err
}

// DefaultSystemPrompt fetches the server-side default prompt.
func (c *Client) DefaultSystemPrompt(ctx context.Context) (string, error) {
	var reply struct {
		Success      bool   `json:"success"`
		SystemPrompt string `json:"systemPrompt"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/settings/system-prompt/default", nil, &reply); err != nil {
		return "", err
	}
	return reply.SystemPrompt, nil
}

// SummarizeAndRate submits a transcript for coaching feedback. A non-empty
// coachRatingPrompt replaces the server's built-in coaching instructions.
func (c *Client) SummarizeAndRate(ctx context.Context, transcript []summary.TranscriptEntry, coachRatingPrompt string) (summary.Result, error) {
	payload := struct {
		Transcript        []summary.TranscriptEntry `json:"transcript"`
		CoachRatingPrompt string                    `json:"coachRatingPrompt,omitempty"`
	}{Transcript: transcript, CoachRatingPrompt: coachRatingPrompt}

	var result summary.Result
	err := c.do(ctx, http.MethodPost, "/api/ai-summary/summarize-and-rate", payload, &result)
	return result, err
}

// Health checks backend liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.Username != "" {
		req.SetBasicAuth(c.opts.Username, c.opts.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errReply struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(payload, &errReply)
		return &APIError{Status: resp.StatusCode, Message: errReply.Error}
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
