package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/aikawa-dev/companion/backend/internal/config"
)

func demoService() *Service {
	return NewService(config.AgoraConfig{}, config.LLMConfig{Model: "gpt-4o-mini", SystemPrompt: config.DefaultSystemPrompt}, config.TTSConfig{}, config.AvatarConfig{AvatarID: "dvp_Emma_agora"})
}

func TestStartValidatesRequiredFields(t *testing.T) {
	svc := demoService()

	_, err := svc.StartConversation(context.Background(), StartRequest{Channel: "c1"})
	if !errors.Is(err, ErrChannelRequired) {
		t.Fatalf("expected ErrChannelRequired, got %v", err)
	}
}

func TestStartWithoutCredentialsReturnsDemo(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	// Base URL points at the test server, but credentials are unset: the
	// service must never call out.
	svc := NewService(config.AgoraConfig{BaseURL: server.URL}, config.LLMConfig{}, config.TTSConfig{}, config.AvatarConfig{})

	result, err := svc.StartConversation(context.Background(), StartRequest{Channel: "c1", AgentName: "a1", RemoteUID: 42})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if !result.Success || !result.Demo {
		t.Fatalf("expected demo success, got %+v", result)
	}
	if result.Channel != "c1" {
		t.Fatalf("expected channel c1, got %q", result.Channel)
	}
	if !strings.HasPrefix(result.AgentID, "DEMO_AGENT_") {
		t.Fatalf("expected demo agent id, got %q", result.AgentID)
	}
	if calls != 0 {
		t.Fatalf("expected no outbound vendor call, got %d", calls)
	}
}

func TestStartUIDsWithinConfiguredRanges(t *testing.T) {
	svc := demoService()

	for i := 0; i < 200; i++ {
		result, err := svc.StartConversation(context.Background(), StartRequest{Channel: "c1", AgentName: "a1", RemoteUID: 42})
		if err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if result.AgentUID < 1000 || result.AgentUID > 100999 {
			t.Fatalf("agent uid %d out of range", result.AgentUID)
		}
		if result.AvatarUID < 2000 || result.AvatarUID > 101999 {
			t.Fatalf("avatar uid %d out of range", result.AvatarUID)
		}
	}
}

func TestStartForwardsVendorRequest(t *testing.T) {
	var captured joinRequest
	var authorized bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/app1/join" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		authorized = ok && user == "key1" && pass == "secret1"

		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode vendor body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"agent_id": "AGENT_42"})
	}))
	defer server.Close()

	svc := NewService(
		config.AgoraConfig{AppID: "app1", APIKey: "key1", APISecret: "secret1", BaseURL: server.URL},
		config.LLMConfig{URL: "https://llm.example/v1/chat/completions", APIKey: "llm-key", Model: "gpt-4o-mini", SystemPrompt: "be nice"},
		config.TTSConfig{APIKey: "tts-key", GroupID: "g1", VoiceID: "v1"},
		config.AvatarConfig{APIKey: "ak", AvatarID: "emma"},
	)

	result, err := svc.StartConversation(context.Background(), StartRequest{
		Channel:   "room-1",
		AgentName: "agent_Alice_1",
		RemoteUID: 7,
		UserName:  "Alice",
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if !authorized {
		t.Fatal("expected basic auth header with vendor credentials")
	}
	if result.AgentID != "AGENT_42" {
		t.Fatalf("expected vendor agent id, got %q", result.AgentID)
	}
	if result.Demo {
		t.Fatal("expected real response, got demo")
	}

	props := captured.Properties
	if props.Channel != "room-1" {
		t.Fatalf("expected channel room-1, got %q", props.Channel)
	}
	if len(props.RemoteRTCUIDs) != 1 || props.RemoteRTCUIDs[0] != "7" {
		t.Fatalf("unexpected remote uids %v", props.RemoteRTCUIDs)
	}
	if agentUID, err := strconv.Atoi(props.AgentRTCUID); err != nil || agentUID != result.AgentUID {
		t.Fatalf("agent uid mismatch: body %q result %d", props.AgentRTCUID, result.AgentUID)
	}
	if props.LLM.URL != "https://llm.example/v1/chat/completions" {
		t.Fatalf("unexpected llm url %q", props.LLM.URL)
	}
	if props.TTS.Vendor != "minimax" || props.TTS.Params.GroupID != "g1" {
		t.Fatalf("unexpected tts config %+v", props.TTS)
	}
	if props.Avatar.Vendor != "akool" || !props.Avatar.Enable {
		t.Fatalf("unexpected avatar config %+v", props.Avatar)
	}
	if props.Parameters.DataChannel != "rtm" {
		t.Fatalf("expected rtm data channel, got %q", props.Parameters.DataChannel)
	}
}

func TestStartSurfacesVendorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"reason":"invalid project"}`))
	}))
	defer server.Close()

	svc := NewService(config.AgoraConfig{AppID: "app1", APIKey: "k", APISecret: "s", BaseURL: server.URL}, config.LLMConfig{}, config.TTSConfig{}, config.AvatarConfig{})

	_, err := svc.StartConversation(context.Background(), StartRequest{Channel: "c", AgentName: "a", RemoteUID: 1})

	var vendorErr *VendorError
	if !errors.As(err, &vendorErr) {
		t.Fatalf("expected VendorError, got %v", err)
	}
	if vendorErr.Status != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", vendorErr.Status)
	}
	if !strings.Contains(string(vendorErr.Details), "invalid project") {
		t.Fatalf("expected vendor payload attached, got %s", vendorErr.Details)
	}
}

func TestStopWithoutCredentialsReturnsDemo(t *testing.T) {
	svc := demoService()

	result, err := svc.StopConversation(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if !result.Success || !result.Demo {
		t.Fatalf("expected demo success, got %+v", result)
	}
}

func TestStopDegradesVendorFailureToSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewService(config.AgoraConfig{AppID: "app1", APIKey: "k", APISecret: "s", BaseURL: server.URL}, config.LLMConfig{}, config.TTSConfig{}, config.AvatarConfig{})

	result, err := svc.StopConversation(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("expected degraded success, got error %v", err)
	}
	if !result.Success || !result.Demo {
		t.Fatalf("expected demo-flagged success, got %+v", result)
	}
	if result.Error == "" {
		t.Fatal("expected the vendor error to be reported")
	}
}

func TestStopRequiresAgentID(t *testing.T) {
	svc := demoService()
	if _, err := svc.StopConversation(context.Background(), ""); !errors.Is(err, ErrAgentIDRequired) {
		t.Fatalf("expected ErrAgentIDRequired, got %v", err)
	}
}

func TestBuildSystemPromptAppendsHistory(t *testing.T) {
	svc := demoService()

	req := StartRequest{
		UserName:     "Alice",
		SystemPrompt: "base prompt",
		PreviousConversations: []TranscriptEntry{
			{Sender: "user", Content: "hi"},
			{Sender: "ai", Content: "hello"},
		},
	}

	prompt := svc.BuildSystemPrompt(req, true)
	if !strings.HasPrefix(prompt, "base prompt") {
		t.Fatalf("expected base prompt preserved, got %q", prompt)
	}
	if !strings.Contains(prompt, "User: hi") || !strings.Contains(prompt, "Assistant: hello") {
		t.Fatalf("expected history context, got %q", prompt)
	}
	if !strings.Contains(prompt, "Alice") {
		t.Fatalf("expected user name in context, got %q", prompt)
	}
}

func TestGreetingVariants(t *testing.T) {
	if got := Greeting("", false); !strings.Contains(got, "AI companion") {
		t.Fatalf("unexpected anonymous greeting %q", got)
	}
	if got := Greeting("User", true); !strings.Contains(got, "AI companion") {
		t.Fatalf("placeholder name should greet anonymously, got %q", got)
	}
	if got := Greeting("Alice", true); !strings.Contains(got, "Alice") {
		t.Fatalf("expected returning greeting to address Alice, got %q", got)
	}
	if got := Greeting("Bob", false); !strings.Contains(got, "Bob") {
		t.Fatalf("expected first-time greeting to address Bob, got %q", got)
	}
}
