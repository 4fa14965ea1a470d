// Package transcript maintains the ordered message log for the active and
// past sessions, reconciling locally sent text against transcription echoes
// so the same message is not displayed twice.
package transcript

import (
	"log"
	"sync"
	"time"

	"github.com/aikawa-dev/companion/backend/internal/config"
	"github.com/aikawa-dev/companion/backend/internal/model/convo"
	"github.com/aikawa-dev/companion/backend/internal/storage"
)

// DefaultPendingTTL bounds the echo-suppression window when no override is
// configured. The suppression is a best-effort heuristic, not a guarantee:
// the vendor does not echo a correlation id, so matching is by exact text
// within the window.
const DefaultPendingTTL = 5 * time.Second

// DefaultHistoryLimit caps how many trailing messages are persisted.
const DefaultHistoryLimit = 50

const clearedPlaceholder = "Hi! I'm your AI companion. Start chatting with voice or text!"

// Options tunes the manager.
type Options struct {
	PendingTTL   time.Duration
	HistoryLimit int
	Now          func() time.Time
}

// OptionsFromConfig maps the environment-driven session settings onto
// manager options.
func OptionsFromConfig(cfg config.SessionConfig) Options {
	return Options{
		PendingTTL:   cfg.PendingEchoTTL,
		HistoryLimit: cfg.HistoryLimit,
	}
}

// Manager owns the message log. Safe for concurrent use: user actions and
// inbound messaging events interleave.
type Manager struct {
	mu           sync.Mutex
	store        *storage.Store
	messages     []convo.Message
	pending      map[string]time.Time
	sessionStart int
	nextID       int64
	pendingTTL   time.Duration
	historyLimit int
	now          func() time.Time
}

// NewManager loads any persisted history from the store and resumes the log
// from there.
func NewManager(store *storage.Store, opts Options) *Manager {
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = DefaultPendingTTL
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Manager{
		store:        store,
		pending:      make(map[string]time.Time),
		pendingTTL:   opts.PendingTTL,
		historyLimit: opts.HistoryLimit,
		now:          opts.Now,
	}

	var history []convo.Message
	if err := store.Get(storage.KeyChatHistory, &history); err == nil && len(history) > 0 {
		m.messages = history
		m.nextID = history[len(history)-1].ID + 1
		m.sessionStart = len(history)
	}
	return m
}

// Append records a new message and persists the trailing window.
func (m *Manager) Append(content string, sender convo.Sender) convo.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(content, sender, "")
}

func (m *Manager) appendLocked(content string, sender convo.Sender, turnID string) convo.Message {
	msg := convo.Message{
		ID:        m.nextID,
		Content:   content,
		Sender:    sender,
		Timestamp: m.now().UTC(),
		TurnID:    turnID,
	}
	m.nextID++
	m.messages = append(m.messages, msg)
	m.persistLocked()
	return msg
}

// MarkPending registers a locally displayed text so the vendor's echo of the
// same text is suppressed. The entry expires on match or after the TTL.
func (m *Manager) MarkPending(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[text] = m.now().Add(m.pendingTTL)
}

// ReceiveInbound dispatches a raw data-channel payload. Unrecognized shapes
// are ignored.
func (m *Manager) ReceiveInbound(raw []byte) {
	event, ok := convo.ParseTranscription(raw)
	if !ok {
		return
	}
	m.Receive(event)
}

// Receive applies one transcription event to the log.
func (m *Manager) Receive(event convo.Transcription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch event.Object {
	case convo.ObjectUserTranscription:
		if !event.Final {
			log.Printf("[transcript] partial user transcription: %q", event.Text)
			return
		}
		if m.consumePendingLocked(event.Text) {
			// Echo of a message the user already sees.
			return
		}
		m.appendLocked(event.Text, convo.SenderUser, "")

	case convo.ObjectAssistantTranscription:
		if last := m.lastLocked(); last != nil && last.TurnID != "" && last.TurnID == event.TurnID {
			// Streamed chunk of the turn already on screen: replace in place.
			last.Content = event.Text
			m.persistLocked()
			return
		}
		m.appendLocked(event.Text, convo.SenderAssistant, event.TurnID)
	}
}

func (m *Manager) consumePendingLocked(text string) bool {
	now := m.now()
	for candidate, deadline := range m.pending {
		if now.After(deadline) {
			delete(m.pending, candidate)
		}
	}

	if _, ok := m.pending[text]; ok {
		delete(m.pending, text)
		return true
	}
	return false
}

func (m *Manager) lastLocked() *convo.Message {
	if len(m.messages) == 0 {
		return nil
	}
	return &m.messages[len(m.messages)-1]
}

// Clear empties the log and resets the persisted entry, leaving a single
// system placeholder.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = nil
	m.sessionStart = 0
	m.appendLocked(clearedPlaceholder, convo.SenderSystem, "")
	m.sessionStart = len(m.messages)
}

// StartSession marks the boundary of a new conversation so summaries do not
// bleed in history from prior sessions.
func (m *Manager) StartSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionStart = len(m.messages)
}

// Messages returns a copy of the full log.
func (m *Manager) Messages() []convo.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]convo.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// SessionMessages returns the user/assistant turns recorded since the last
// StartSession call, which is the transcript fed to the summary endpoint.
func (m *Manager) SessionMessages() []convo.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]convo.Message, 0, len(m.messages)-m.sessionStart)
	for _, msg := range m.messages[m.sessionStart:] {
		if msg.Sender == convo.SenderUser || msg.Sender == convo.SenderAssistant {
			out = append(out, msg)
		}
	}
	return out
}

func (m *Manager) persistLocked() {
	tail := m.messages
	if len(tail) > m.historyLimit {
		tail = tail[len(tail)-m.historyLimit:]
	}
	if err := m.store.Set(storage.KeyChatHistory, tail); err != nil {
		log.Printf("[transcript] failed to persist history: %v", err)
	}
}
