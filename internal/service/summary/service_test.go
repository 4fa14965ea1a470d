package summary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aikawa-dev/companion/backend/internal/config"
)

func TestParseVerdictClampsHighRating(t *testing.T) {
	result, err := parseVerdict(`{"summary":"Friendly greeting","rating":7,"ratingDescription":"x"}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if result.Rating != 5 {
		t.Fatalf("expected rating clamped to 5, got %d", result.Rating)
	}
}

func TestParseVerdictClampsLowRating(t *testing.T) {
	result, err := parseVerdict(`{"summary":"s","rating":-3,"ratingDescription":"d"}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if result.Rating != 1 {
		t.Fatalf("expected rating clamped to 1, got %d", result.Rating)
	}
}

func TestParseVerdictHandlesMarkdownFences(t *testing.T) {
	reply := "```json\n{\"summary\":\"good\",\"rating\":3,\"ratingDescription\":\"ok\"}\n```"

	result, err := parseVerdict(reply)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if result.Summary != "good" || result.Rating != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestParseVerdictRejectsNonJSON(t *testing.T) {
	if _, err := parseVerdict("I cannot rate this conversation."); !errors.Is(err, ErrUnparseableReply) {
		t.Fatalf("expected ErrUnparseableReply, got %v", err)
	}
}

func TestParseVerdictRejectsIncompleteObject(t *testing.T) {
	if _, err := parseVerdict(`{"summary":"only a summary"}`); !errors.Is(err, ErrIncompleteReply) {
		t.Fatalf("expected ErrIncompleteReply, got %v", err)
	}
}

func TestBuildPromptEmbedsTranscript(t *testing.T) {
	transcript := []TranscriptEntry{
		{Sender: "user", Content: "hi"},
		{Sender: "ai", Content: "hello"},
	}

	prompt := buildPrompt(transcript, "")
	if !strings.Contains(prompt, "User: hi") || !strings.Contains(prompt, "AI: hello") {
		t.Fatalf("expected formatted transcript in prompt, got %q", prompt)
	}
	if !strings.Contains(prompt, "AI Dating Coach") {
		t.Fatal("expected default coaching instructions")
	}

	custom := buildPrompt(transcript, "Rate strictly.")
	if !strings.Contains(custom, "Rate strictly.") {
		t.Fatal("expected custom instructions to replace the default")
	}
	if strings.Contains(custom, "AI Dating Coach") {
		t.Fatal("expected default instructions dropped with custom prompt")
	}
}

func TestNewServiceRequiresAPIKey(t *testing.T) {
	if _, err := NewService(context.Background(), config.LLMConfig{Model: "gpt-4o-mini"}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestSummarizeAndRateRejectsEmptyTranscript(t *testing.T) {
	svc := newMockedService(t, `{"summary":"s","rating":3,"ratingDescription":"d"}`)

	if _, err := svc.SummarizeAndRate(context.Background(), nil, ""); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestSummarizeAndRateEndToEnd(t *testing.T) {
	svc := newMockedService(t, `{"summary":"Friendly greeting","rating":7,"ratingDescription":"x"}`)

	result, err := svc.SummarizeAndRate(context.Background(), []TranscriptEntry{
		{Sender: "user", Content: "hi"},
		{Sender: "ai", Content: "hello"},
	}, "")
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}

	if result.Summary != "Friendly greeting" {
		t.Fatalf("unexpected summary %q", result.Summary)
	}
	if result.Rating != 5 {
		t.Fatalf("expected rating clamped to 5, got %d", result.Rating)
	}
}

// newMockedService compiles the chain against a local completion endpoint
// that always answers with reply.
func newMockedService(t *testing.T, reply string) *Service {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": reply,
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(server.Close)

	svc, err := NewService(context.Background(), config.LLMConfig{
		URL:     server.URL + "/chat/completions",
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return svc
}
