package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "AUTH_USERNAME", "AUTH_PASSWORD",
		"AGORA_APP_ID", "AGORA_API_KEY", "AGORA_API_SECRET",
		"LLM_MODEL", "LLM_SYSTEM_PROMPT", "AKOOL_AVATAR_ID",
		"PENDING_ECHO_TTL_MS", "CHAT_HISTORY_LIMIT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Addr != ":3000" {
		t.Fatalf("expected default addr :3000, got %q", cfg.Server.Addr)
	}
	if cfg.Auth.Enabled() {
		t.Fatal("auth should be disabled without credentials")
	}
	if cfg.Agora.Enabled() {
		t.Fatal("vendor should be disabled without credentials")
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected default model %q", cfg.LLM.Model)
	}
	if cfg.LLM.SystemPrompt != DefaultSystemPrompt {
		t.Fatal("expected default system prompt")
	}
	if cfg.Avatar.AvatarID != "dvp_Emma_agora" {
		t.Fatalf("unexpected default avatar id %q", cfg.Avatar.AvatarID)
	}
	if cfg.Session.PendingEchoTTL != 5*time.Second {
		t.Fatalf("unexpected default echo ttl %v", cfg.Session.PendingEchoTTL)
	}
	if cfg.Session.HistoryLimit != 50 {
		t.Fatalf("unexpected default history limit %d", cfg.Session.HistoryLimit)
	}
}

func TestLoadPortForms(t *testing.T) {
	cases := []struct {
		value string
		want  string
	}{
		{"8080", ":8080"},
		{":8080", ":8080"},
		{"127.0.0.1:8080", "127.0.0.1:8080"},
	}

	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("PORT", tc.value)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if cfg.Server.Addr != tc.want {
				t.Fatalf("expected addr %q, got %q", tc.want, cfg.Server.Addr)
			}
		})
	}
}

func TestAgoraEnabledNeedsAllCredentials(t *testing.T) {
	t.Setenv("AGORA_APP_ID", "app")
	t.Setenv("AGORA_API_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Agora.Enabled() {
		t.Fatal("vendor must stay disabled without the api secret")
	}

	t.Setenv("AGORA_API_SECRET", "secret")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.Agora.Enabled() {
		t.Fatal("vendor should be enabled with full credentials")
	}
}

func TestLLMBaseURLStripsCompletionsPath(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://api.openai.com/v1/chat/completions", "https://api.openai.com/v1"},
		{"https://api.openai.com/v1/chat/completions/", "https://api.openai.com/v1"},
		{"https://llm.internal/v1", "https://llm.internal/v1"},
	}

	for _, tc := range cases {
		got := LLMConfig{URL: tc.url}.BaseURL()
		if got != tc.want {
			t.Fatalf("BaseURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestSessionOverrides(t *testing.T) {
	t.Setenv("PENDING_ECHO_TTL_MS", "250")
	t.Setenv("CHAT_HISTORY_LIMIT", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Session.PendingEchoTTL != 250*time.Millisecond {
		t.Fatalf("unexpected echo ttl %v", cfg.Session.PendingEchoTTL)
	}
	if cfg.Session.HistoryLimit != 10 {
		t.Fatalf("unexpected history limit %d", cfg.Session.HistoryLimit)
	}
}

func TestSessionRejectsBadOverrides(t *testing.T) {
	t.Setenv("PENDING_ECHO_TTL_MS", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric ttl")
	}

	t.Setenv("PENDING_ECHO_TTL_MS", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}

func TestAvatarMissingKeys(t *testing.T) {
	t.Setenv("AKOOL_API_KEY", "")
	t.Setenv("AKOOL_AVATAR_ID", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	missing := cfg.Avatar.MissingKeys()
	if len(missing) != 2 {
		t.Fatalf("expected both avatar keys missing, got %v", missing)
	}

	t.Setenv("AKOOL_API_KEY", "k")
	t.Setenv("AKOOL_AVATAR_ID", "id")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if missing := cfg.Avatar.MissingKeys(); len(missing) != 0 {
		t.Fatalf("expected no missing keys, got %v", missing)
	}
}
