// Package agent proxies the conversational-AI vendor API: it assembles the
// join request (ASR, LLM, TTS, avatar and behavior configuration) from the
// environment and forwards it with basic-auth headers.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/aikawa-dev/companion/backend/internal/config"
	"github.com/aikawa-dev/companion/backend/internal/model/convo"
)

var (
	ErrChannelRequired = errors.New("channel, agentName, and remoteUid are required")
	ErrAgentIDRequired = errors.New("agent id is required")
)

// VendorError carries the vendor's error payload for the details field of
// 500 responses.
type VendorError struct {
	Status  int
	Details json.RawMessage
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("vendor request failed with status %d", e.Status)
}

// TranscriptEntry is one prior turn forwarded for conversational continuity.
type TranscriptEntry struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// StartRequest captures the client's session-start payload.
type StartRequest struct {
	Channel               string            `json:"channel"`
	AgentName             string            `json:"agentName"`
	RemoteUID             int               `json:"remoteUid"`
	UserName              string            `json:"userName,omitempty"`
	SystemPrompt          string            `json:"systemPrompt,omitempty"`
	PreviousConversations []TranscriptEntry `json:"previousConversations,omitempty"`
}

// StartResult is returned to the client after a successful (or demo) start.
type StartResult struct {
	Success   bool   `json:"success"`
	AgentID   string `json:"agentId"`
	AgentUID  int    `json:"agentUid"`
	AvatarUID int    `json:"avatarUid"`
	Channel   string `json:"channel"`
	Demo      bool   `json:"demo,omitempty"`
	Message   string `json:"message,omitempty"`
}

// StopResult reports the outcome of an agent teardown.
type StopResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Demo    bool   `json:"demo,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ChannelInfo is the join material handed to the transport client.
type ChannelInfo struct {
	AppID   string `json:"appId"`
	Channel string `json:"channel"`
	UID     int    `json:"uid"`
}

// Service issues conversational-AI agent join/leave calls to the vendor.
type Service struct {
	agora  config.AgoraConfig
	llm    config.LLMConfig
	tts    config.TTSConfig
	avatar config.AvatarConfig
	client *http.Client
}

// NewService builds the vendor client from configuration.
func NewService(agora config.AgoraConfig, llm config.LLMConfig, tts config.TTSConfig, avatar config.AvatarConfig) *Service {
	return &Service{
		agora:  agora,
		llm:    llm,
		tts:    tts,
		avatar: avatar,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// ChannelInfo returns the app id alongside the requested channel and uid.
func (s *Service) ChannelInfo(channel string, uid int) ChannelInfo {
	return ChannelInfo{AppID: s.agora.AppID, Channel: channel, UID: uid}
}

// randomUID draws from [base, base+99999], matching the uid ranges the agent
// and avatar participants are expected to land in.
func randomUID(base int) int {
	return rand.Intn(100000) + base
}

// StartConversation instantiates the remote agent for the given channel.
// Without vendor credentials it returns a demo-flagged response and performs
// no outbound call.
func (s *Service) StartConversation(ctx context.Context, req StartRequest) (StartResult, error) {
	if req.Channel == "" || req.AgentName == "" || req.RemoteUID == 0 {
		return StartResult{}, ErrChannelRequired
	}

	hasHistory := len(req.PreviousConversations) > 0
	log.Printf("[agent] user %s - has history: %v (%d messages)", req.UserName, hasHistory, len(req.PreviousConversations))

	agentUID := randomUID(1000)
	avatarUID := randomUID(2000)

	if !s.agora.Enabled() {
		log.Println("[agent] vendor credentials not configured, returning demo response")
		return StartResult{
			Success:   true,
			AgentID:   fmt.Sprintf("DEMO_AGENT_%d", time.Now().UnixMilli()),
			AgentUID:  agentUID,
			AvatarUID: avatarUID,
			Channel:   req.Channel,
			Demo:      true,
			Message:   "Demo mode - configure API credentials for full functionality",
		}, nil
	}

	body := s.buildJoinBody(req, agentUID, avatarUID, hasHistory)

	url := fmt.Sprintf("%s/projects/%s/join", s.agora.BaseURL, s.agora.AppID)
	var joined struct {
		AgentID string `json:"agent_id"`
	}
	if err := s.post(ctx, url, body, &joined); err != nil {
		return StartResult{}, err
	}

	return StartResult{
		Success:   true,
		AgentID:   joined.AgentID,
		AgentUID:  agentUID,
		AvatarUID: avatarUID,
		Channel:   req.Channel,
	}, nil
}

// StopConversation tears down the remote agent. Vendor failures degrade to a
// demo-flagged success so client cleanup is never blocked.
func (s *Service) StopConversation(ctx context.Context, agentID string) (StopResult, error) {
	if agentID == "" {
		return StopResult{}, ErrAgentIDRequired
	}

	if !s.agora.Enabled() {
		log.Println("[agent] vendor credentials not configured, simulating stop")
		return StopResult{
			Success: true,
			Message: "Conversation stopped (demo mode - no API credentials)",
			Demo:    true,
		}, nil
	}

	url := fmt.Sprintf("%s/projects/%s/agents/%s/leave", s.agora.BaseURL, s.agora.AppID, agentID)
	var left struct {
		Message string `json:"message"`
	}
	if err := s.post(ctx, url, struct{}{}, &left); err != nil {
		log.Printf("[agent] stop conversation error: %v", err)
		return StopResult{
			Success: true,
			Message: "Conversation stopped (demo mode - API error handled)",
			Error:   err.Error(),
			Demo:    true,
		}, nil
	}

	return StopResult{Success: true, Message: "Conversation stopped " + left.Message}, nil
}

func (s *Service) post(ctx context.Context, url string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode vendor request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build vendor request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(s.agora.APIKey, s.agora.APISecret)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("vendor request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read vendor response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &VendorError{Status: resp.StatusCode, Details: payload}
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("failed to decode vendor response: %w", err)
		}
	}
	return nil
}

// BuildSystemPrompt resolves the effective system prompt and appends prior
// conversation context when the user is returning.
func (s *Service) BuildSystemPrompt(req StartRequest, hasHistory bool) string {
	prompt := req.SystemPrompt
	if prompt == "" {
		prompt = s.llm.SystemPrompt
	}

	if !hasHistory {
		return prompt
	}

	var context bytes.Buffer
	for i, msg := range req.PreviousConversations {
		if i > 0 {
			context.WriteByte('\n')
		}
		role := "Assistant"
		if convo.NormalizeSender(msg.Sender) == convo.SenderUser {
			role = "User"
		}
		context.WriteString(role + ": " + msg.Content)
	}

	return prompt + fmt.Sprintf("\n\nPrevious conversation context with %s:\n%s\n\nRemember this context when responding to continue the conversation naturally.", req.UserName, context.String())
}
