// ABOUTME: Lifecycle notifications emitted by the mixer
// ABOUTME: Observer registry dispatching over a snapshot of handlers
package mixer

import (
	"sync"
	"time"
)

// EventType names a lifecycle notification
type EventType string

const (
	EventStreamAdded         EventType = "streamAdded"
	EventStreamRemoved       EventType = "streamRemoved"
	EventStreamError         EventType = "streamError"
	EventStreamEnded         EventType = "streamEnded"
	EventStreamPaused        EventType = "streamPaused"
	EventStreamResumed       EventType = "streamResumed"
	EventStreamStopped       EventType = "streamStopped"
	EventStreamVolumeChanged EventType = "streamVolumeChanged"
	EventFadeOutStarted      EventType = "streamFadeOutStarted"
	EventFadeInStarted       EventType = "streamFadeInStarted"
	EventFadedAndPaused      EventType = "streamFadedAndPaused"
	EventFadedAndResumed     EventType = "streamFadedAndResumed"
	EventCrossfadeStarted    EventType = "crossfadeStarted"
	EventCrossfadeComplete   EventType = "streamCrossfadeComplete"
	EventFadeProgress        EventType = "fadeProgress"
)

// Crossfade directions reported with EventCrossfadeComplete
const (
	DirectionOut = "out"
	DirectionIn  = "in"
)

// Event is a single lifecycle notification. Fields beyond Type and
// StreamID are set only where they apply to the event type.
type Event struct {
	Type     EventType
	StreamID string
	Time     time.Time

	Metadata  map[string]string // added, removed
	Volume    float64           // volume changed, fade progress
	Progress  float64           // fade progress
	FadeState FadeState         // fade progress
	PartnerID string            // crossfade started: incoming stream
	Direction string            // crossfade complete: "out" or "in"
	Duration  time.Duration     // crossfade started
	Err       error             // stream error
}

// Observer receives notifications. It runs without the mixer lock held and
// may call back into the mixer.
type Observer func(Event)

type observerEntry struct {
	id int
	fn Observer
}

// observers is an ordered observer list safe for concurrent use
type observers struct {
	mu      sync.RWMutex
	entries []observerEntry
	nextID  int
}

func (o *observers) add(fn Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	id := o.nextID
	o.entries = append(o.entries, observerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { o.remove(id) })
	}
}

func (o *observers) remove(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range o.entries {
		if e.id == id {
			o.entries = append(o.entries[:i:i], o.entries[i+1:]...)
			return
		}
	}
}

// dispatch delivers events in order to a snapshot of the observers
func (o *observers) dispatch(events []Event) {
	if len(events) == 0 {
		return
	}
	o.mu.RLock()
	snapshot := make([]observerEntry, len(o.entries))
	copy(snapshot, o.entries)
	o.mu.RUnlock()

	for _, ev := range events {
		for _, e := range snapshot {
			e.fn(ev)
		}
	}
}
