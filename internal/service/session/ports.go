package session

import (
	"context"

	"github.com/aikawa-dev/companion/backend/internal/service/agent"
)

// API is the slice of the backend surface the manager needs: join material
// plus agent lifecycle. Implemented by pkg/client.
type API interface {
	ChannelInfo(ctx context.Context, channel string, uid int) (agent.ChannelInfo, error)
	StartConversation(ctx context.Context, req agent.StartRequest) (agent.StartResult, error)
	StopConversation(ctx context.Context, agentID string) (agent.StopResult, error)
}

// MediaTrack is a local capture track owned by the transport SDK.
type MediaTrack interface {
	SetEnabled(enabled bool) error
	Enabled() bool
	Stop()
	Close()
}

// RTCEventKind discriminates transport callbacks.
type RTCEventKind string

const (
	RTCUserJoined      RTCEventKind = "user-joined"
	RTCUserLeft        RTCEventKind = "user-left"
	RTCUserPublished   RTCEventKind = "user-published"
	RTCUserUnpublished RTCEventKind = "user-unpublished"
)

// RTCEvent is a remote-participant callback from the transport client.
type RTCEvent struct {
	Kind      RTCEventKind
	UID       int
	MediaType string // "audio" or "video"
}

// RTCClient is the transport port. The media pipeline itself is owned by the
// vendor SDK; the manager only drives join/publish/subscribe and consumes
// participant events.
type RTCClient interface {
	Join(ctx context.Context, appID, channel string, uid int) error
	Leave(ctx context.Context) error
	CreateMicrophoneTrack(ctx context.Context) (MediaTrack, error)
	CreateCameraTrack(ctx context.Context) (MediaTrack, error)
	Publish(ctx context.Context, tracks ...MediaTrack) error
	Subscribe(ctx context.Context, uid int, mediaType string) error
	Events() <-chan RTCEvent
}

// Messaging event types.
const (
	MessagingMessage  = "message"
	MessagingPresence = "presence"
)

// MessagingEvent is an inbound frame from the messaging channel.
type MessagingEvent struct {
	Channel   string
	Publisher int
	Type      string // MessagingMessage or MessagingPresence
	Payload   []byte // message payload, JSON for transcription events
	State     string // presence state label
}

// Messaging is the data-channel port carrying transcriptions and presence.
// Implemented over websocket in internal/rtm; faked in tests.
type Messaging interface {
	Login(ctx context.Context) error
	Subscribe(ctx context.Context, channel string) error
	Publish(ctx context.Context, channel, payload, customType string) error
	Unsubscribe(ctx context.Context, channel string) error
	Logout(ctx context.Context) error
	Events() <-chan MessagingEvent
}
