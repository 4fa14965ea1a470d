// sessiontester drives a full session lifecycle against a running backend:
// start, optional text sends, then stop, printing the event stream. The
// transport is headless (no real media capture); messaging goes over the
// websocket gateway when -rtm is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/aikawa-dev/companion/backend/internal/config"
	"github.com/aikawa-dev/companion/backend/internal/rtm"
	"github.com/aikawa-dev/companion/backend/internal/service/session"
	"github.com/aikawa-dev/companion/backend/internal/service/transcript"
	"github.com/aikawa-dev/companion/backend/internal/storage"
	"github.com/aikawa-dev/companion/backend/pkg/client"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] failed to load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	baseURL := flag.String("base", "http://localhost:3000", "backend base URL")
	username := flag.String("user", "", "basic auth username")
	password := flag.String("pass", "", "basic auth password")
	rtmEndpoint := flag.String("rtm", "", "messaging gateway websocket URL (loopback when empty)")
	displayName := flag.String("name", "Tester", "user display name")
	text := flag.String("text", "hello there", "text message to send during the session")
	hold := flag.Duration("hold", 10*time.Second, "how long to keep the session open")

	flag.Parse()

	api := client.New(client.Options{
		BaseURL:  *baseURL,
		Username: *username,
		Password: *password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *hold+30*time.Second)
	defer cancel()

	if err := api.Health(ctx); err != nil {
		log.Fatalf("backend unreachable at %s: %v", *baseURL, err)
	}

	var messaging session.Messaging
	if *rtmEndpoint != "" {
		messaging = rtm.NewClient(rtm.Options{Endpoint: *rtmEndpoint, UID: 123})
	} else {
		messaging = newLoopbackMessaging()
	}

	transcripts := transcript.NewManager(storage.NewMemory(), transcript.OptionsFromConfig(cfg.Session))
	manager := session.NewManager(api, newHeadlessRTC(), messaging, transcripts)

	events, unsubscribe := manager.Subscribe()
	defer unsubscribe()
	go func() {
		for event := range events {
			log.Printf("[event] %s uid=%d media=%s state=%s", event.Kind, event.UID, event.MediaType, event.AgentState)
		}
	}()

	info, err := manager.Start(ctx, session.Settings{
		UserDisplayName: *displayName,
		EnableVoice:     true,
		EnableAvatar:    true,
	})
	if err != nil {
		log.Fatalf("start failed: %v", err)
	}
	log.Printf("session up: agent=%s channel=%s avatar_uid=%d", info.AgentID, info.Channel, info.AvatarUID)

	if *text != "" {
		if err := manager.SendText(ctx, *text); err != nil {
			log.Printf("[WARN] send text failed: %v", err)
		}
	}

	time.Sleep(*hold)

	if err := manager.Stop(ctx); err != nil {
		log.Fatalf("stop failed: %v", err)
	}

	for i, msg := range transcripts.Messages() {
		fmt.Printf("%2d %-9s %s\n", i, msg.Sender, msg.Content)
	}
}

// headlessRTC satisfies the transport port without real media capture.
type headlessRTC struct {
	events chan session.RTCEvent
}

func newHeadlessRTC() *headlessRTC {
	return &headlessRTC{events: make(chan session.RTCEvent, 8)}
}

func (r *headlessRTC) Join(ctx context.Context, appID, channel string, uid int) error {
	log.Printf("[rtc] joined channel=%s uid=%d", channel, uid)
	return nil
}

func (r *headlessRTC) Leave(ctx context.Context) error {
	log.Println("[rtc] left channel")
	return nil
}

func (r *headlessRTC) CreateMicrophoneTrack(ctx context.Context) (session.MediaTrack, error) {
	return &softTrack{enabled: true}, nil
}

func (r *headlessRTC) CreateCameraTrack(ctx context.Context) (session.MediaTrack, error) {
	return &softTrack{enabled: true}, nil
}

func (r *headlessRTC) Publish(ctx context.Context, tracks ...session.MediaTrack) error {
	log.Printf("[rtc] published %d local tracks", len(tracks))
	return nil
}

func (r *headlessRTC) Subscribe(ctx context.Context, uid int, mediaType string) error {
	return nil
}

func (r *headlessRTC) Events() <-chan session.RTCEvent {
	return r.events
}

type softTrack struct {
	enabled bool
}

func (t *softTrack) SetEnabled(enabled bool) error {
	t.enabled = enabled
	return nil
}

func (t *softTrack) Enabled() bool { return t.enabled }
func (t *softTrack) Stop()         {}
func (t *softTrack) Close()        {}

// loopbackMessaging keeps the tool usable without a gateway: publishes are
// dropped, the event stream stays silent.
type loopbackMessaging struct {
	events chan session.MessagingEvent
}

func newLoopbackMessaging() *loopbackMessaging {
	return &loopbackMessaging{events: make(chan session.MessagingEvent)}
}

func (m *loopbackMessaging) Login(ctx context.Context) error                  { return nil }
func (m *loopbackMessaging) Subscribe(ctx context.Context, ch string) error   { return nil }
func (m *loopbackMessaging) Unsubscribe(ctx context.Context, ch string) error { return nil }
func (m *loopbackMessaging) Logout(ctx context.Context) error                 { return nil }

func (m *loopbackMessaging) Publish(ctx context.Context, channel, payload, customType string) error {
	log.Printf("[loopback] dropped publish on %s (%s)", channel, customType)
	return nil
}

func (m *loopbackMessaging) Events() <-chan session.MessagingEvent {
	return m.events
}
