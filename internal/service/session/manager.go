// Package session mediates one real-time audio/video/messaging session with
// a remote AI agent and its avatar: an explicit state machine over the
// transport and messaging ports, with a typed event stream for consumers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aikawa-dev/companion/backend/internal/model/convo"
	"github.com/aikawa-dev/companion/backend/internal/service/agent"
	"github.com/aikawa-dev/companion/backend/internal/service/transcript"
)

// State is the session lifecycle phase. Transitions are strictly
// idle -> starting -> active -> stopping -> idle; Start is rejected unless
// idle and Stop unless active, closing the concurrent start/stop gap the
// UI-level button disabling used to paper over.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateStopping State = "stopping"
)

var (
	ErrNotIdle   = errors.New("session already starting or active")
	ErrNotActive = errors.New("no active session")
	ErrNoTrack   = errors.New("no local track available")
)

// localUID is the fixed uid the local participant joins with.
const localUID = 123

// Settings configures a session start.
type Settings struct {
	ChannelName     string
	UserDisplayName string
	EnableVoice     bool
	EnableAvatar    bool
	VoiceID         string
	SystemPrompt    string
}

// StartInfo reports the connected session's identifiers.
type StartInfo struct {
	Success   bool   `json:"success"`
	AgentID   string `json:"agentId"`
	Channel   string `json:"channel"`
	LocalUID  int    `json:"localUid"`
	AvatarUID int    `json:"avatarUid"`
}

// Manager owns the transport and messaging clients for at most one session.
type Manager struct {
	api        API
	rtc        RTCClient
	messaging  Messaging
	transcript *transcript.Manager

	mu          sync.Mutex
	state       State
	channel     string
	agentID     string
	avatarUID   int
	agentState  convo.AgentState
	remote      map[int]struct{}
	audioTrack  MediaTrack
	videoTrack  MediaTrack
	avatarLive  bool
	done        chan struct{}
	subscribers map[int]chan convo.SessionEvent
	nextSubID   int
}

// NewManager wires the manager to its collaborators.
func NewManager(api API, rtc RTCClient, messaging Messaging, transcripts *transcript.Manager) *Manager {
	return &Manager{
		api:         api,
		rtc:         rtc,
		messaging:   messaging,
		transcript:  transcripts,
		state:       StateIdle,
		agentState:  convo.AgentIdle,
		remote:      make(map[int]struct{}),
		subscribers: make(map[int]chan convo.SessionEvent),
	}
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AgentState returns the last presence label reported for the remote agent.
func (m *Manager) AgentState() convo.AgentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agentState
}

// AvatarLive reports whether the avatar participant is publishing video.
func (m *Manager) AvatarLive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.avatarLive
}

// Subscribe returns a channel of session events plus a cancel function.
// Slow consumers drop events rather than blocking the pumps.
func (m *Manager) Subscribe() (<-chan convo.SessionEvent, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan convo.SessionEvent, 16)
	m.subscribers[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (m *Manager) emitLocked(event convo.SessionEvent) {
	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// GenerateChannelName produces a unique channel identifier.
func GenerateChannelName() string {
	return "companion-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Start brings up a full session: join the transport channel, publish local
// media, open the messaging channel and request the remote agent. Any
// failure tears down what was already brought up and leaves the manager
// idle.
func (m *Manager) Start(ctx context.Context, settings Settings) (StartInfo, error) {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return StartInfo{}, ErrNotIdle
	}
	m.state = StateStarting
	m.mu.Unlock()

	info, err := m.start(ctx, settings)
	if err != nil {
		m.teardown(context.Background())
		m.setState(StateIdle)
		return StartInfo{}, err
	}

	m.mu.Lock()
	m.state = StateActive
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	m.transcript.StartSession()
	go m.pumpRTC(done)
	go m.pumpMessaging(done)

	return info, nil
}

func (m *Manager) start(ctx context.Context, settings Settings) (StartInfo, error) {
	channel := settings.ChannelName
	if channel == "" {
		channel = GenerateChannelName()
	}
	userName := settings.UserDisplayName
	if userName == "" {
		userName = "User"
	}

	log.Printf("[session] starting conversation on channel %s", channel)

	info, err := m.api.ChannelInfo(ctx, channel, localUID)
	if err != nil {
		return StartInfo{}, fmt.Errorf("failed to fetch channel info: %w", err)
	}

	if err := m.rtc.Join(ctx, info.AppID, channel, localUID); err != nil {
		return StartInfo{}, fmt.Errorf("failed to join channel: %w", err)
	}

	m.mu.Lock()
	m.channel = channel
	m.mu.Unlock()

	tracks := make([]MediaTrack, 0, 2)
	audio, err := m.rtc.CreateMicrophoneTrack(ctx)
	if err != nil {
		return StartInfo{}, fmt.Errorf("failed to create microphone track: %w", err)
	}
	tracks = append(tracks, audio)

	var video MediaTrack
	if settings.EnableAvatar {
		video, err = m.rtc.CreateCameraTrack(ctx)
		if err != nil {
			return StartInfo{}, fmt.Errorf("failed to create camera track: %w", err)
		}
		tracks = append(tracks, video)
	}

	if err := m.rtc.Publish(ctx, tracks...); err != nil {
		return StartInfo{}, fmt.Errorf("failed to publish local tracks: %w", err)
	}

	m.mu.Lock()
	m.audioTrack = audio
	m.videoTrack = video
	m.mu.Unlock()

	if err := m.messaging.Login(ctx); err != nil {
		return StartInfo{}, fmt.Errorf("failed to log in to messaging: %w", err)
	}
	if err := m.messaging.Subscribe(ctx, channel); err != nil {
		return StartInfo{}, fmt.Errorf("failed to subscribe to messaging channel: %w", err)
	}

	history := m.recentHistory()
	result, err := m.api.StartConversation(ctx, agent.StartRequest{
		Channel:               channel,
		AgentName:             fmt.Sprintf("agent_%s_%d", userName, time.Now().UnixMilli()),
		RemoteUID:             localUID,
		UserName:              userName,
		SystemPrompt:          settings.SystemPrompt,
		PreviousConversations: history,
	})
	if err != nil {
		return StartInfo{}, fmt.Errorf("failed to start agent: %w", err)
	}

	m.mu.Lock()
	m.agentID = result.AgentID
	m.avatarUID = result.AvatarUID
	m.mu.Unlock()

	log.Printf("[session] conversation started: agent=%s avatar_uid=%d", result.AgentID, result.AvatarUID)

	return StartInfo{
		Success:   true,
		AgentID:   result.AgentID,
		Channel:   channel,
		LocalUID:  localUID,
		AvatarUID: result.AvatarUID,
	}, nil
}

// recentHistory collects prior user/assistant turns for conversational
// continuity across sessions.
func (m *Manager) recentHistory() []agent.TranscriptEntry {
	messages := m.transcript.Messages()
	entries := make([]agent.TranscriptEntry, 0, len(messages))
	for _, msg := range messages {
		if msg.Sender != convo.SenderUser && msg.Sender != convo.SenderAssistant {
			continue
		}
		entries = append(entries, agent.TranscriptEntry{Sender: string(msg.Sender), Content: msg.Content})
	}
	return entries
}

// Stop tears the session down. The remote agent stop is best-effort; local
// cleanup always runs and the manager always ends idle.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateIdle {
		// Already down; still reset local flags for idempotency.
		m.resetLocked()
		m.mu.Unlock()
		return nil
	}
	if m.state != StateActive {
		m.mu.Unlock()
		return ErrNotActive
	}
	m.state = StateStopping
	agentID := m.agentID
	m.mu.Unlock()

	log.Println("[session] stopping conversation")

	if agentID != "" {
		if _, err := m.api.StopConversation(ctx, agentID); err != nil {
			// Backend stop failures must not block client cleanup.
			log.Printf("[session] agent stop failed (continuing cleanup): %v", err)
		}
	}

	m.teardown(ctx)
	m.setState(StateIdle)
	log.Println("[session] conversation stopped")
	return nil
}

func (m *Manager) teardown(ctx context.Context) {
	m.mu.Lock()
	audio, video := m.audioTrack, m.videoTrack
	channel := m.channel
	done := m.done
	m.done = nil
	m.mu.Unlock()

	if done != nil {
		close(done)
	}

	if audio != nil {
		audio.Stop()
		audio.Close()
	}
	if video != nil {
		video.Stop()
		video.Close()
	}

	if channel != "" {
		if err := m.messaging.Unsubscribe(ctx, channel); err != nil {
			log.Printf("[session] messaging unsubscribe error: %v", err)
		}
	}
	if err := m.messaging.Logout(ctx); err != nil {
		log.Printf("[session] messaging logout error: %v", err)
	}

	if err := m.rtc.Leave(ctx); err != nil {
		log.Printf("[session] transport leave error: %v", err)
	}

	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()
}

func (m *Manager) resetLocked() {
	m.channel = ""
	m.agentID = ""
	m.avatarUID = 0
	m.agentState = convo.AgentIdle
	m.remote = make(map[int]struct{})
	m.audioTrack = nil
	m.videoTrack = nil
	m.avatarLive = false
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

// ToggleAudioMute flips the microphone track and returns the new muted flag.
func (m *Manager) ToggleAudioMute() (bool, error) {
	return m.toggleTrack(func() MediaTrack { return m.audioTrack })
}

// ToggleVideoMute flips the camera track and returns the new muted flag.
func (m *Manager) ToggleVideoMute() (bool, error) {
	return m.toggleTrack(func() MediaTrack { return m.videoTrack })
}

func (m *Manager) toggleTrack(pick func() MediaTrack) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	track := pick()
	if track == nil {
		return false, ErrNoTrack
	}

	muted := track.Enabled()
	if err := track.SetEnabled(!track.Enabled()); err != nil {
		return false, err
	}
	return muted, nil
}

// SendText publishes user text on the messaging channel, tagged as a user
// transcription, and records it locally so the vendor echo is suppressed.
func (m *Manager) SendText(ctx context.Context, text string) error {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return ErrNotActive
	}
	channel := m.channel
	m.mu.Unlock()

	if err := m.messaging.Publish(ctx, channel, text, convo.ObjectUserTranscription); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}

	m.transcript.MarkPending(text)
	m.transcript.Append(text, convo.SenderUser)
	return nil
}

func (m *Manager) pumpRTC(done <-chan struct{}) {
	events := m.rtc.Events()
	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.handleRTCEvent(event)
		}
	}
}

func (m *Manager) handleRTCEvent(event RTCEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch event.Kind {
	case RTCUserJoined:
		m.remote[event.UID] = struct{}{}
		m.emitLocked(convo.SessionEvent{Kind: convo.EventParticipantJoined, UID: event.UID})

	case RTCUserLeft:
		delete(m.remote, event.UID)
		m.emitLocked(convo.SessionEvent{Kind: convo.EventParticipantLeft, UID: event.UID})
		if event.UID == m.avatarUID && m.avatarLive {
			m.avatarLive = false
			m.emitLocked(convo.SessionEvent{Kind: convo.EventAvatarOffline, UID: event.UID})
		}

	case RTCUserPublished:
		m.emitLocked(convo.SessionEvent{Kind: convo.EventMediaPublished, UID: event.UID, MediaType: event.MediaType})
		go m.subscribeMedia(event.UID, event.MediaType)
		if event.UID == m.avatarUID && event.MediaType == "video" {
			m.avatarLive = true
			m.emitLocked(convo.SessionEvent{Kind: convo.EventAvatarOnline, UID: event.UID})
		}

	case RTCUserUnpublished:
		m.emitLocked(convo.SessionEvent{Kind: convo.EventMediaUnpublished, UID: event.UID, MediaType: event.MediaType})
		if event.UID == m.avatarUID && event.MediaType == "video" {
			m.avatarLive = false
			m.emitLocked(convo.SessionEvent{Kind: convo.EventAvatarOffline, UID: event.UID})
		}
	}
}

func (m *Manager) subscribeMedia(uid int, mediaType string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.rtc.Subscribe(ctx, uid, mediaType); err != nil {
		log.Printf("[session] failed to subscribe to uid=%d media=%s: %v", uid, mediaType, err)
	}
}

func (m *Manager) pumpMessaging(done <-chan struct{}) {
	events := m.messaging.Events()
	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.handleMessagingEvent(event)
		}
	}
}

func (m *Manager) handleMessagingEvent(event MessagingEvent) {
	m.mu.Lock()
	channel := m.channel
	m.mu.Unlock()

	if event.Channel != "" && event.Channel != channel {
		return
	}
	if event.Publisher == localUID {
		// Our own publishes echo back; ignore to avoid self-feedback.
		return
	}

	switch event.Type {
	case MessagingMessage:
		transcription, ok := convo.ParseTranscription(event.Payload)
		if !ok {
			return
		}
		m.transcript.Receive(transcription)
		m.mu.Lock()
		m.emitLocked(convo.SessionEvent{Kind: convo.EventTranscription, UID: event.Publisher, Transcription: transcription})
		m.mu.Unlock()

	case MessagingPresence:
		state, ok := convo.KnownAgentState(event.State)
		if !ok {
			return
		}
		m.mu.Lock()
		if m.agentState != state {
			m.agentState = state
			m.emitLocked(convo.SessionEvent{Kind: convo.EventAgentStateChanged, UID: event.Publisher, AgentState: state})
		}
		m.mu.Unlock()
	}
}
