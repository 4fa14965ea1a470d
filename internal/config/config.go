package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the service reads from the environment.
type Config struct {
	Server  ServerConfig
	Auth    AuthConfig
	Agora   AgoraConfig
	LLM     LLMConfig
	TTS     TTSConfig
	Avatar  AvatarConfig
	Session SessionConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Auth:    loadAuthConfig(),
		Agora:   loadAgoraConfig(),
		LLM:     loadLLMConfig(),
		TTS:     loadTTSConfig(),
		Avatar:  loadAvatarConfig(),
		Session: session,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3000"
	}

	if strings.Contains(port, ":") {
		// Accept ":3000" or "127.0.0.1:3000" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AuthConfig carries the HTTP basic credentials protecting the API surface.
type AuthConfig struct {
	Username string
	Password string
}

// Enabled reports whether basic auth should be enforced.
func (c AuthConfig) Enabled() bool {
	return c.Username != "" && c.Password != ""
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		Username: strings.TrimSpace(os.Getenv("AUTH_USERNAME")),
		Password: strings.TrimSpace(os.Getenv("AUTH_PASSWORD")),
	}
}

// AgoraConfig describes the conversational-AI vendor project.
type AgoraConfig struct {
	AppID     string
	APIKey    string
	APISecret string
	BaseURL   string
}

// Enabled reports whether vendor credentials are fully configured. Without
// them start/stop run in demo mode and never call out.
func (c AgoraConfig) Enabled() bool {
	return c.AppID != "" && c.APIKey != "" && c.APISecret != ""
}

func loadAgoraConfig() AgoraConfig {
	return AgoraConfig{
		AppID:     strings.TrimSpace(os.Getenv("AGORA_APP_ID")),
		APIKey:    strings.TrimSpace(os.Getenv("AGORA_API_KEY")),
		APISecret: strings.TrimSpace(os.Getenv("AGORA_API_SECRET")),
		BaseURL:   getEnvOrDefault("AGORA_CONVO_BASE_URL", "https://api.agora.io/api/conversational-ai-agent/v2"),
	}
}

// DefaultSystemPrompt is used when neither the request nor the environment
// provides one.
const DefaultSystemPrompt = "You are a friendly AI anime girlfriend. Respond naturally in a caring, playful manner. Keep responses brief and conversational since this is voice-to-voice communication. Avoid long paragraphs and speak as if having a real conversation. Only output plain text responses, without any markdown, HTML tags, or emojis."

// LLMConfig describes the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	URL          string
	APIKey       string
	Model        string
	SystemPrompt string
	Timeout      time.Duration
}

// Enabled reports whether the summary endpoint can reach a model.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// BaseURL strips the chat-completions suffix so the value can feed an
// OpenAI-style client that appends the path itself.
func (c LLMConfig) BaseURL() string {
	return strings.TrimSuffix(strings.TrimSuffix(c.URL, "/"), "/chat/completions")
}

func loadLLMConfig() LLMConfig {
	return LLMConfig{
		URL:          getEnvOrDefault("LLM_URL", "https://api.openai.com/v1/chat/completions"),
		APIKey:       strings.TrimSpace(os.Getenv("LLM_API_KEY")),
		Model:        getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
		SystemPrompt: getEnvOrDefault("LLM_SYSTEM_PROMPT", DefaultSystemPrompt),
		Timeout:      30 * time.Second,
	}
}

// TTSConfig carries the minimax text-to-speech settings forwarded to the
// vendor agent request.
type TTSConfig struct {
	APIKey  string
	GroupID string
	VoiceID string
}

func loadTTSConfig() TTSConfig {
	return TTSConfig{
		APIKey:  strings.TrimSpace(os.Getenv("TTS_MINIMAX_API_KEY")),
		GroupID: strings.TrimSpace(os.Getenv("TTS_MINIMAX_GROUP_ID")),
		VoiceID: strings.TrimSpace(os.Getenv("TTS_MINIMAX_VOICE_ID")),
	}
}

// AvatarConfig carries the akool avatar vendor settings.
type AvatarConfig struct {
	APIKey     string
	AvatarID   string
	SampleRate int
}

// Enabled reports whether avatar rendering is configured.
func (c AvatarConfig) Enabled() bool {
	return c.APIKey != ""
}

// MissingKeys lists the environment variables still required for a complete
// avatar setup.
func (c AvatarConfig) MissingKeys() []string {
	missing := []string{}
	if c.APIKey == "" {
		missing = append(missing, "AKOOL_API_KEY")
	}
	if strings.TrimSpace(os.Getenv("AKOOL_AVATAR_ID")) == "" {
		missing = append(missing, "AKOOL_AVATAR_ID")
	}
	return missing
}

func loadAvatarConfig() AvatarConfig {
	return AvatarConfig{
		APIKey:     strings.TrimSpace(os.Getenv("AKOOL_API_KEY")),
		AvatarID:   getEnvOrDefault("AKOOL_AVATAR_ID", "dvp_Emma_agora"),
		SampleRate: 16000,
	}
}

// SessionConfig tunes the client-side session bookkeeping.
type SessionConfig struct {
	// PendingEchoTTL bounds how long a locally sent text suppresses the
	// matching transcription echo. Best-effort heuristic, not a guarantee.
	PendingEchoTTL time.Duration
	HistoryLimit   int
}

func loadSessionConfig() (SessionConfig, error) {
	ttl := 5 * time.Second
	if override, err := parseOptionalIntEnv("PENDING_ECHO_TTL_MS"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return SessionConfig{}, fmt.Errorf("invalid PENDING_ECHO_TTL_MS value: %d", *override)
		}
		ttl = time.Duration(*override) * time.Millisecond
	}

	limit := 50
	if override, err := parseOptionalIntEnv("CHAT_HISTORY_LIMIT"); err != nil {
		return SessionConfig{}, err
	} else if override != nil && *override > 0 {
		limit = *override
	}

	return SessionConfig{PendingEchoTTL: ttl, HistoryLimit: limit}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
