package convo

import "encoding/json"

// Object discriminators used on the messaging data channel.
const (
	ObjectUserTranscription      = "user.transcription"
	ObjectAssistantTranscription = "assistant.transcription"
)

// Transcription is the wire shape of an inbound transcription event.
// User echoes carry Final; assistant chunks carry TurnID.
type Transcription struct {
	Object string `json:"object"`
	Text   string `json:"text"`
	Final  bool   `json:"final"`
	TurnID string `json:"turn_id,omitempty"`
}

// ParseTranscription decodes a raw data-channel payload. The second return
// value is false for non-JSON payloads or unrecognized object types.
func ParseTranscription(raw []byte) (Transcription, bool) {
	var t Transcription
	if err := json.Unmarshal(raw, &t); err != nil {
		return Transcription{}, false
	}
	switch t.Object {
	case ObjectUserTranscription, ObjectAssistantTranscription:
		return t, true
	}
	return Transcription{}, false
}

// AgentState labels the remote agent's presence state.
type AgentState string

const (
	AgentIdle      AgentState = "idle"
	AgentListening AgentState = "listening"
	AgentThinking  AgentState = "thinking"
	AgentSpeaking  AgentState = "speaking"
	AgentSilent    AgentState = "silent"
)

// KnownAgentState reports whether label is one of the vendor presence states.
func KnownAgentState(label string) (AgentState, bool) {
	switch AgentState(label) {
	case AgentIdle, AgentListening, AgentThinking, AgentSpeaking, AgentSilent:
		return AgentState(label), true
	}
	return "", false
}

// EventKind discriminates session events on the subscription stream.
type EventKind string

const (
	EventParticipantJoined EventKind = "participant.joined"
	EventParticipantLeft   EventKind = "participant.left"
	EventMediaPublished    EventKind = "media.published"
	EventMediaUnpublished  EventKind = "media.unpublished"
	EventAvatarOnline      EventKind = "avatar.online"
	EventAvatarOffline     EventKind = "avatar.offline"
	EventAgentStateChanged EventKind = "agent.state"
	EventTranscription     EventKind = "transcription"
)

// SessionEvent is published on the session manager's subscription stream in
// place of a single mutable callback.
type SessionEvent struct {
	Kind          EventKind     `json:"kind"`
	UID           int           `json:"uid,omitempty"`
	MediaType     string        `json:"mediaType,omitempty"`
	AgentState    AgentState    `json:"agentState,omitempty"`
	Transcription Transcription `json:"transcription,omitempty"`
}
