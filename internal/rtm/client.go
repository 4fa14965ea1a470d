// Package rtm implements the messaging port over a websocket gateway. Frames
// are JSON envelopes carrying channel messages (transcriptions) and presence
// updates.
package rtm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aikawa-dev/companion/backend/internal/service/session"
)

// Frame ops exchanged with the gateway.
const (
	opLogin       = "login"
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
	opPublish     = "publish"
	opMessage     = "message"
	opPresence    = "presence"
)

var ErrNotConnected = errors.New("rtm: not connected")

// frame is the wire envelope.
type frame struct {
	Op         string `json:"op"`
	Channel    string `json:"channel,omitempty"`
	Publisher  string `json:"publisher,omitempty"`
	Payload    string `json:"payload,omitempty"`
	CustomType string `json:"customType,omitempty"`
	State      string `json:"state,omitempty"`
}

// Options configures the client.
type Options struct {
	Endpoint     string
	UID          int
	WriteTimeout time.Duration
}

// Client is a websocket-backed implementation of the session.Messaging port.
type Client struct {
	opts   Options
	events chan session.MessagingEvent

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
}

// NewClient prepares a client; the connection is established on Login.
func NewClient(opts Options) *Client {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Client{
		opts:   opts,
		events: make(chan session.MessagingEvent, 64),
	}
}

// Events exposes the inbound event stream. The channel stays open across
// login/logout cycles so one consumer loop can span sessions.
func (c *Client) Events() <-chan session.MessagingEvent {
	return c.events
}

// Login dials the gateway and announces the local uid.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.opts.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("rtm dial failed: %w", err)
	}

	c.conn = conn
	c.done = make(chan struct{})
	go c.readLoop(conn, c.done)

	if err := c.writeLocked(frame{Op: opLogin, Publisher: strconv.Itoa(c.opts.UID)}); err != nil {
		c.closeLocked()
		return err
	}

	log.Printf("[rtm] logged in as uid=%d", c.opts.UID)
	return nil
}

// Subscribe joins a message channel.
func (c *Client) Subscribe(ctx context.Context, channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(frame{Op: opSubscribe, Channel: channel})
}

// Unsubscribe leaves a message channel.
func (c *Client) Unsubscribe(ctx context.Context, channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.writeLocked(frame{Op: opUnsubscribe, Channel: channel})
}

// Publish sends a payload on a channel with the given custom type.
func (c *Client) Publish(ctx context.Context, channel, payload, customType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(frame{
		Op:         opPublish,
		Channel:    channel,
		Publisher:  strconv.Itoa(c.opts.UID),
		Payload:    payload,
		CustomType: customType,
	})
}

// Logout closes the connection. The event stream stays open so the client
// can log in again for a later session.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	c.closeLocked()
	log.Println("[rtm] logged out")
	return nil
}

func (c *Client) writeLocked(f frame) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("rtm encode failed: %w", err)
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("rtm write failed: %w", err)
	}
	return nil
}

func (c *Client) closeLocked() {
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.conn.Close()
	c.conn = nil
}

func (c *Client) readLoop(conn *websocket.Conn, done <-chan struct{}) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				log.Printf("[rtm] read error: %v", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			log.Printf("[rtm] ignoring malformed frame: %v", err)
			continue
		}

		event, ok := c.toEvent(f)
		if !ok {
			continue
		}

		select {
		case c.events <- event:
		default:
			// Consumer is behind; drop rather than stall the socket.
		}
	}
}

func (c *Client) toEvent(f frame) (session.MessagingEvent, bool) {
	publisher, _ := strconv.Atoi(f.Publisher)

	switch f.Op {
	case opMessage, opPublish:
		return session.MessagingEvent{
			Channel:   f.Channel,
			Publisher: publisher,
			Type:      session.MessagingMessage,
			Payload:   []byte(f.Payload),
		}, true
	case opPresence:
		return session.MessagingEvent{
			Channel:   f.Channel,
			Publisher: publisher,
			Type:      session.MessagingPresence,
			State:     f.State,
		}, true
	}
	return session.MessagingEvent{}, false
}
