package agent

import (
	"fmt"
	"math/rand"
	"strconv"
)

// joinRequest mirrors the vendor's agent-join body.
type joinRequest struct {
	Name       string         `json:"name"`
	Properties joinProperties `json:"properties"`
}

type joinProperties struct {
	Channel          string           `json:"channel"`
	Token            string           `json:"token"`
	AgentRTCUID      string           `json:"agent_rtc_uid"`
	RemoteRTCUIDs    []string         `json:"remote_rtc_uids"`
	EnableStringUID  bool             `json:"enable_string_uid"`
	IdleTimeout      int              `json:"idle_timeout"`
	ASR              asrProperties    `json:"asr"`
	LLM              llmProperties    `json:"llm"`
	TTS              ttsProperties    `json:"tts"`
	Avatar           avatarProperties `json:"avatar"`
	AdvancedFeatures advancedFeatures `json:"advanced_features"`
	Parameters       agentParameters  `json:"parameters"`
}

type asrProperties struct {
	Vendor   string `json:"vendor"`
	Language string `json:"language"`
}

type systemMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmProperties struct {
	URL              string          `json:"url"`
	APIKey           string          `json:"api_key"`
	SystemMessages   []systemMessage `json:"system_messages"`
	GreetingMessage  string          `json:"greeting_message"`
	FailureMessage   string          `json:"failure_message"`
	Params           llmParams       `json:"params"`
	InputModalities  []string        `json:"input_modalities"`
	OutputModalities []string        `json:"output_modalities"`
}

type llmParams struct {
	Model string `json:"model"`
}

type ttsProperties struct {
	Vendor string    `json:"vendor"`
	Params ttsParams `json:"params"`
}

type ttsParams struct {
	URL          string       `json:"url"`
	Key          string       `json:"key"`
	GroupID      string       `json:"group_id"`
	Model        string       `json:"model"`
	VoiceSetting voiceSetting `json:"voice_setting"`
	AudioSetting audioSetting `json:"audio_setting"`
}

type voiceSetting struct {
	VoiceID string `json:"voice_id"`
}

type audioSetting struct {
	SampleRate int `json:"sample_rate"`
}

type avatarProperties struct {
	Vendor string       `json:"vendor"`
	Enable bool         `json:"enable"`
	Params avatarParams `json:"params"`
}

type avatarParams struct {
	APIKey   string `json:"api_key"`
	Quality  string `json:"quality"`
	AgoraUID string `json:"agora_uid"`
	AvatarID string `json:"avatar_id"`
}

type advancedFeatures struct {
	EnableAIVAD bool `json:"enable_aivad"`
	EnableBHVS  bool `json:"enable_bhvs"`
	EnableRTM   bool `json:"enable_rtm"`
}

type agentParameters struct {
	DataChannel   string           `json:"data_channel"`
	Transcript    transcriptParams `json:"transcript"`
	SilenceConfig silenceConfig    `json:"silence_config"`
}

type transcriptParams struct {
	Redundant bool `json:"redundant"`
}

type silenceConfig struct {
	TimeoutMS int    `json:"timeout_ms"`
	Action    string `json:"action"`
	Content   string `json:"content"`
}

func (s *Service) buildJoinBody(req StartRequest, agentUID, avatarUID int, hasHistory bool) joinRequest {
	return joinRequest{
		Name: req.AgentName,
		Properties: joinProperties{
			Channel: req.Channel,
			// Empty token for testing, a proper token should be generated
			// for production.
			Token:           "",
			AgentRTCUID:     strconv.Itoa(agentUID),
			RemoteRTCUIDs:   []string{strconv.Itoa(req.RemoteUID)},
			EnableStringUID: false,
			IdleTimeout:     30,
			ASR: asrProperties{
				Vendor:   "ares",
				Language: "en-US",
			},
			LLM: llmProperties{
				URL:    s.llm.URL,
				APIKey: s.llm.APIKey,
				SystemMessages: []systemMessage{
					{Role: "system", Content: s.BuildSystemPrompt(req, hasHistory)},
				},
				GreetingMessage:  Greeting(req.UserName, hasHistory),
				FailureMessage:   "Sorry, I'm having some trouble right now. Let me try again!",
				Params:           llmParams{Model: s.llm.Model},
				InputModalities:  []string{"text", "image"},
				OutputModalities: []string{"text"},
			},
			TTS: ttsProperties{
				Vendor: "minimax",
				Params: ttsParams{
					URL:          "wss://api-uw.minimax.io/ws/v1/t2a_v2",
					Key:          s.tts.APIKey,
					GroupID:      s.tts.GroupID,
					Model:        "speech-2.6-turbo",
					VoiceSetting: voiceSetting{VoiceID: s.tts.VoiceID},
					AudioSetting: audioSetting{SampleRate: 16000},
				},
			},
			Avatar: avatarProperties{
				Vendor: "akool",
				Enable: true,
				Params: avatarParams{
					APIKey:   s.avatar.APIKey,
					Quality:  "medium",
					AgoraUID: strconv.Itoa(avatarUID),
					AvatarID: s.avatar.AvatarID,
				},
			},
			AdvancedFeatures: advancedFeatures{
				EnableAIVAD: true,
				EnableBHVS:  true,
				EnableRTM:   true,
			},
			Parameters: agentParameters{
				DataChannel: "rtm",
				Transcript:  transcriptParams{Redundant: false},
				SilenceConfig: silenceConfig{
					TimeoutMS: 10000,
					Action:    "think",
					Content:   "User hasn't spoken for a while. Engage the user with a question or prompt.",
				},
			},
		},
	}
}

// Greeting picks a personalized opening line depending on whether the user
// has prior chat history.
func Greeting(userName string, hasHistory bool) string {
	name := userName
	if name == "User" {
		name = ""
	}

	if name == "" {
		return "Hi there! I'm your AI companion. How can I make your day better?"
	}

	if hasHistory {
		greetings := []string{
			fmt.Sprintf("Hi %s! Good to see you again! How has your day been?", name),
			fmt.Sprintf("Welcome back, %s! I've missed you! How can I brighten your day?", name),
			fmt.Sprintf("%s! You're back! I'm so happy to see you again!", name),
			fmt.Sprintf("Hey %s! Great to have you back! What's been on your mind?", name),
		}
		return greetings[rand.Intn(len(greetings))]
	}

	greetings := []string{
		fmt.Sprintf("Hi %s! I'm your AI companion. How can I make your day better?", name),
		fmt.Sprintf("Hello %s! It's wonderful to meet you! I'm here to chat and help brighten your day!", name),
		fmt.Sprintf("Hey there, %s! I'm your AI girlfriend and I'm excited to get to know you!", name),
		fmt.Sprintf("Hi %s! Welcome! I'm here to be your companion. What would you like to talk about?", name),
	}
	return greetings[rand.Intn(len(greetings))]
}
