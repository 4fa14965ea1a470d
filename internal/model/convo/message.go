package convo

import "time"

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// NormalizeSender maps wire aliases onto the canonical sender values.
// The summary endpoint historically accepted "ai" for assistant turns.
func NormalizeSender(raw string) Sender {
	switch raw {
	case "ai", "assistant":
		return SenderAssistant
	case "system":
		return SenderSystem
	default:
		return SenderUser
	}
}

// Message is a single transcript entry. Streamed assistant chunks that share
// a TurnID replace the content of the existing entry instead of appending.
type Message struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	TurnID    string    `json:"turnId,omitempty"`
}
