// ABOUTME: Bridge between mixer notifications and the event client
// ABOUTME: Queues outbound events off the mix path and dispatches commands
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Sendspin/mixbus/pkg/mixer"
	"github.com/Sendspin/mixbus/pkg/protocol"
)

// Event names handled by the bridge
const (
	EventPrefix       = "mixer:"
	EventVolumeMain   = "new-volume-main"
	EventCommand      = "mixer-command"
	EventCommandError = "mixer:commandError"
)

const (
	defaultQueueSize        = 256
	defaultProgressInterval = 100 * time.Millisecond
)

// Bus is the part of *protocol.Client the bridge uses
type Bus interface {
	Subscribe(eventName string, fn protocol.Handler) *protocol.Subscription
	Unsubscribe(sub *protocol.Subscription)
	Publish(eventName string, payload interface{}) error
}

// Mixer is the part of *mixer.Mixer the bridge drives
type Mixer interface {
	Subscribe(fn mixer.Observer) func()
	StreamIDs() []string
	PauseStream(id string)
	ResumeStream(id string)
	StopStream(id string)
	RemoveStream(id string)
	SetStreamVolume(id string, volume float64)
	FadeOutAndPause(id string, d time.Duration) error
	FadeInAndResume(id string, d time.Duration) error
	CrossfadeStreams(outID, inID string, d time.Duration) error
}

// Config holds bridge configuration
type Config struct {
	QueueSize int

	// ProgressInterval limits fadeProgress events per stream; the final
	// progress update is always sent
	ProgressInterval time.Duration

	Debug bool
}

// Payload is the JSON body of every mixer:* event
type Payload struct {
	StreamID   string            `json:"streamId,omitempty"`
	Time       int64             `json:"time"` // unix milliseconds
	Metadata   map[string]string `json:"metadata,omitempty"`
	Volume     *float64          `json:"volume,omitempty"`
	Progress   *float64          `json:"progress,omitempty"`
	FadeState  string            `json:"fadeState,omitempty"`
	PartnerID  string            `json:"partnerId,omitempty"`
	Direction  string            `json:"direction,omitempty"`
	DurationMs int64             `json:"durationMs,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// VolumeMain is the new-volume-main payload
type VolumeMain struct {
	NewVolume *float64 `json:"newVolume"`
}

// Command is the mixer-command payload
type Command struct {
	Action     string   `json:"action"`
	StreamID   string   `json:"streamId"`
	OutID      string   `json:"outId"`
	InID       string   `json:"inId"`
	DurationMs int64    `json:"durationMs"`
	Volume     *float64 `json:"volume"`
}

// CommandError is published when a command cannot be applied
type CommandError struct {
	Action   string `json:"action"`
	StreamID string `json:"streamId,omitempty"`
	Error    string `json:"error"`
}

type outbound struct {
	name    string
	payload interface{}
}

// Bridge forwards between a mixer and an event bus
type Bridge struct {
	config Config
	mixer  Mixer
	bus    Bus

	queue chan outbound

	mu           sync.Mutex
	lastProgress map[string]time.Time
	dropped      uint64

	unsubscribeMixer func()
	subs             []*protocol.Subscription
}

// New creates a bridge; Run starts it
func New(config Config, m Mixer, bus Bus) *Bridge {
	if config.QueueSize <= 0 {
		config.QueueSize = defaultQueueSize
	}
	if config.ProgressInterval == 0 {
		config.ProgressInterval = defaultProgressInterval
	}

	return &Bridge{
		config:       config,
		mixer:        m,
		bus:          bus,
		queue:        make(chan outbound, config.QueueSize),
		lastProgress: make(map[string]time.Time),
	}
}

// Run subscribes both sides and publishes queued events until ctx is done
func (b *Bridge) Run(ctx context.Context) error {
	b.unsubscribeMixer = b.mixer.Subscribe(b.onMixerEvent)
	b.subs = []*protocol.Subscription{
		b.bus.Subscribe(EventVolumeMain, b.handleVolumeMain),
		b.bus.Subscribe(EventCommand, b.handleCommand),
	}
	defer b.detach()

	log.Printf("Bridge: forwarding mixer events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-b.queue:
			if err := b.bus.Publish(msg.name, msg.payload); err != nil {
				log.Printf("Bridge: failed to publish %s: %v", msg.name, err)
			}
		}
	}
}

func (b *Bridge) detach() {
	b.unsubscribeMixer()
	for _, sub := range b.subs {
		b.bus.Unsubscribe(sub)
	}
	b.subs = nil
}

// Dropped returns how many events were discarded on a full queue
func (b *Bridge) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// onMixerEvent runs on the mixer's dispatch path and must not block
func (b *Bridge) onMixerEvent(ev mixer.Event) {
	if ev.Type == mixer.EventFadeProgress && !b.progressDue(ev) {
		return
	}
	if ev.Type == mixer.EventStreamRemoved {
		b.mu.Lock()
		delete(b.lastProgress, ev.StreamID)
		b.mu.Unlock()
	}

	b.enqueue(EventPrefix+string(ev.Type), PayloadFor(ev))
}

func (b *Bridge) progressDue(ev mixer.Event) bool {
	if ev.Progress >= 1 || b.config.ProgressInterval < 0 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	last, ok := b.lastProgress[ev.StreamID]
	if ok && ev.Time.Sub(last) < b.config.ProgressInterval {
		return false
	}
	b.lastProgress[ev.StreamID] = ev.Time
	return true
}

func (b *Bridge) enqueue(name string, payload interface{}) {
	select {
	case b.queue <- outbound{name: name, payload: payload}:
	default:
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
		log.Printf("Bridge: queue full, dropping %s", name)
	}
}

// PayloadFor converts a mixer notification to its wire payload
func PayloadFor(ev mixer.Event) Payload {
	p := Payload{
		StreamID: ev.StreamID,
		Time:     ev.Time.UnixMilli(),
		Metadata: ev.Metadata,
	}

	switch ev.Type {
	case mixer.EventStreamVolumeChanged:
		p.Volume = &ev.Volume
	case mixer.EventFadeProgress:
		p.Volume = &ev.Volume
		p.Progress = &ev.Progress
		p.FadeState = ev.FadeState.String()
	case mixer.EventCrossfadeStarted:
		p.PartnerID = ev.PartnerID
		p.DurationMs = ev.Duration.Milliseconds()
	case mixer.EventCrossfadeComplete:
		p.Direction = ev.Direction
	case mixer.EventStreamError:
		if ev.Err != nil {
			p.Error = ev.Err.Error()
		}
	}
	return p
}

// handleVolumeMain applies a 0..100 volume to every stream
func (b *Bridge) handleVolumeMain(raw json.RawMessage) {
	var msg VolumeMain
	if err := json.Unmarshal(raw, &msg); err != nil || msg.NewVolume == nil {
		log.Printf("Bridge: invalid %s payload: %s", EventVolumeMain, raw)
		return
	}

	volume := *msg.NewVolume
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}

	ids := b.mixer.StreamIDs()
	for _, id := range ids {
		b.mixer.SetStreamVolume(id, volume/100)
	}
	if b.config.Debug {
		log.Printf("[DEBUG] Bridge: main volume %.0f applied to %d streams", volume, len(ids))
	}
}

// handleCommand dispatches a mixer-command
func (b *Bridge) handleCommand(raw json.RawMessage) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		log.Printf("Bridge: invalid %s payload: %v", EventCommand, err)
		return
	}

	if err := b.Apply(cmd); err != nil {
		log.Printf("Bridge: command %s failed: %v", cmd.Action, err)
		b.enqueue(EventCommandError, CommandError{Action: cmd.Action, StreamID: cmd.StreamID, Error: err.Error()})
	}
}

// Apply runs one command against the mixer
func (b *Bridge) Apply(cmd Command) error {
	duration := time.Duration(cmd.DurationMs) * time.Millisecond

	switch cmd.Action {
	case "pause", "resume", "stop", "remove", "volume", "fade-out", "fade-in":
		if cmd.StreamID == "" {
			return fmt.Errorf("%s requires streamId", cmd.Action)
		}
	}

	switch cmd.Action {
	case "pause":
		b.mixer.PauseStream(cmd.StreamID)
	case "resume":
		b.mixer.ResumeStream(cmd.StreamID)
	case "stop":
		b.mixer.StopStream(cmd.StreamID)
	case "remove":
		b.mixer.RemoveStream(cmd.StreamID)
	case "volume":
		if cmd.Volume == nil {
			return fmt.Errorf("volume requires volume")
		}
		b.mixer.SetStreamVolume(cmd.StreamID, *cmd.Volume)
	case "fade-out":
		return b.mixer.FadeOutAndPause(cmd.StreamID, duration)
	case "fade-in":
		return b.mixer.FadeInAndResume(cmd.StreamID, duration)
	case "crossfade":
		if cmd.OutID == "" || cmd.InID == "" {
			return fmt.Errorf("crossfade requires outId and inId")
		}
		return b.mixer.CrossfadeStreams(cmd.OutID, cmd.InID, duration)
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
	return nil
}
