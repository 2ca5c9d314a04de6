// ABOUTME: Real-time multi-stream PCM mixer
// ABOUTME: Stream registry, fade control API and the periodic mixing tick
package mixer

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Sendspin/mixbus/pkg/audio"
	"github.com/Sendspin/mixbus/pkg/audio/output"
	"github.com/benbjohnson/clock"
)

const (
	DefaultFrameDuration = 20 * time.Millisecond
	DefaultMaxBuffer     = 2 * time.Second
	DefaultFade          = 2 * time.Second
	DefaultRemovalGrace  = 100 * time.Millisecond
)

// Metrics receives mixer measurements. Implementations must be safe for
// concurrent use.
type Metrics interface {
	// ObserveTick records one mix cycle
	ObserveTick(streams, contributing, clipped int, elapsed time.Duration)
	// SinkError counts a failed frame write
	SinkError()
	// Event counts a lifecycle notification
	Event(t EventType)
}

// Config configures a Mixer. Zero values select defaults.
type Config struct {
	Format        audio.Format
	FrameDuration time.Duration // audio per mixed frame
	TickInterval  time.Duration // ticker period, defaults to FrameDuration
	MaxBuffer     time.Duration // per-stream read-ahead before the pump blocks
	DefaultFade   time.Duration // used when a fade duration of 0 is requested
	RemovalGrace  time.Duration // delay before removing a drained, ended stream

	// KeepAlive keeps ticking silence when no streams remain
	KeepAlive bool

	Sink    output.Sink
	Clock   clock.Clock
	Metrics Metrics
	Debug   bool
}

func (c *Config) applyDefaults() {
	if !c.Format.Valid() {
		c.Format = audio.DefaultFormat()
	}
	if c.FrameDuration <= 0 {
		c.FrameDuration = DefaultFrameDuration
	}
	if c.TickInterval <= 0 {
		c.TickInterval = c.FrameDuration
	}
	if c.MaxBuffer <= 0 {
		c.MaxBuffer = DefaultMaxBuffer
	}
	if c.DefaultFade <= 0 {
		c.DefaultFade = DefaultFade
	}
	if c.RemovalGrace <= 0 {
		c.RemovalGrace = DefaultRemovalGrace
	}
	if c.Sink == nil {
		c.Sink = output.NullSink{}
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
}

// Mixer blends any number of PCM streams into one continuous frame stream
type Mixer struct {
	cfg        Config
	clock      clock.Clock
	frameBytes int
	highWater  int
	silence    []byte

	mu      sync.Mutex
	streams map[string]*stream
	order   []string
	counter uint64
	running bool
	closed  bool
	stopCh  chan struct{}

	// work collected under mu and performed by unlockAndFlush
	pending      []Event
	toClose      []io.Closer
	flushSilence bool

	observers observers
	sinkMu    sync.Mutex
	wg        sync.WaitGroup // ticker goroutine

	mixAcc   []int16
	mixChunk []byte
}

// New creates a mixer. The ticker starts with the first stream or Start.
func New(cfg Config) *Mixer {
	cfg.applyDefaults()

	frameBytes := cfg.Format.BytesFor(cfg.FrameDuration)
	highWater := cfg.Format.BytesFor(cfg.MaxBuffer)
	if highWater < frameBytes {
		highWater = frameBytes
	}

	return &Mixer{
		cfg:        cfg,
		clock:      cfg.Clock,
		frameBytes: frameBytes,
		highWater:  highWater,
		silence:    audio.Silence(frameBytes),
		streams:    make(map[string]*stream),
		mixAcc:     make([]int16, frameBytes/audio.BytesPerSample),
		mixChunk:   make([]byte, frameBytes),
	}
}

// Format returns the PCM format every stream must supply
func (m *Mixer) Format() audio.Format {
	return m.cfg.Format
}

// FrameBytes returns the size of each mixed frame
func (m *Mixer) FrameBytes() int {
	return m.frameBytes
}

// Subscribe registers an observer for lifecycle notifications.
// The returned function unregisters it.
func (m *Mixer) Subscribe(fn Observer) func() {
	return m.observers.add(fn)
}

// Running reports whether the periodic tick is active
func (m *Mixer) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start starts the periodic mixing tick if it is not running
func (m *Mixer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.startLocked()
	return nil
}

func (m *Mixer) startLocked() {
	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	ticker := m.clock.Ticker(m.cfg.TickInterval)

	m.wg.Add(1)
	go m.run(ticker, m.stopCh)
	m.logf("mixing started (%v frames, %d bytes)", m.cfg.FrameDuration, m.frameBytes)
}

func (m *Mixer) run(ticker *clock.Ticker, stop chan struct{}) {
	defer m.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			m.Tick()
		case <-stop:
			return
		}
	}
}

// stopLocked cancels the ticker; the caller decides whether silence follows
func (m *Mixer) stopLocked() {
	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
	m.logf("mixing stopped")
}

// Stop stops the periodic tick and writes a final silence frame
func (m *Mixer) Stop() {
	m.mu.Lock()
	if m.running {
		m.stopLocked()
		m.flushSilence = true
	}
	m.unlockAndFlush(nil)
}

// Close removes every stream, stops the tick and waits for the ticker
// goroutine to exit. Source pumps are not waited for: a pump blocked in
// Read exits once that Read returns, and sources added with CloseSource
// are closed here, which usually unblocks them.
func (m *Mixer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	ids := append([]string(nil), m.order...)
	for _, id := range ids {
		m.removeLocked(id)
	}
	if m.running {
		m.stopLocked()
		m.flushSilence = true
	}
	m.closed = true
	m.unlockAndFlush(nil)

	m.wg.Wait()
	return nil
}

// AddStream registers a PCM source and returns its id. The source must
// deliver interleaved s16le at the mixer's format.
func (m *Mixer) AddStream(source io.Reader, opts StreamOptions) (string, error) {
	if source == nil {
		return "", errors.New("mixer: nil source")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}

	now := m.clock.Now()
	m.counter++
	volume := 1.0
	if opts.Volume != nil {
		volume = clampVolume(*opts.Volume)
	}

	s := &stream{
		id:         fmt.Sprintf("stream_%d", m.counter),
		source:     source,
		queue:      newByteQueue(),
		volume:     volume,
		baseVolume: volume,
		active:     true,
		closeSrc:   opts.CloseSource,
		metadata:   copyMetadata(opts.Metadata),
		duration:   opts.Duration,
		startTime:  now,
	}
	if opts.StartPaused {
		s.pause(now)
	}

	m.streams[s.id] = s
	m.order = append(m.order, s.id)
	m.emitLocked(Event{Type: EventStreamAdded, StreamID: s.id, Metadata: copyMetadata(s.metadata)})
	m.startLocked()

	go m.pump(s)

	id := s.id
	m.debugf("added %s (volume %.2f, %d streams)", id, volume, len(m.streams))
	m.unlockAndFlush(nil)
	return id, nil
}

// RemoveStream deletes a stream. Unknown ids are ignored.
func (m *Mixer) RemoveStream(id string) {
	m.mu.Lock()
	m.removeLocked(id)
	m.unlockAndFlush(nil)
}

// removeLocked deletes the stream and stops the tick when the registry empties
func (m *Mixer) removeLocked(id string) {
	s, ok := m.streams[id]
	if !ok {
		return
	}
	delete(m.streams, id)
	for i, sid := range m.order {
		if sid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	s.queue.Close()
	if s.closeSrc {
		if c, ok := s.source.(io.Closer); ok {
			m.toClose = append(m.toClose, c)
		}
	}

	m.emitLocked(Event{Type: EventStreamRemoved, StreamID: id, Metadata: copyMetadata(s.metadata)})
	m.debugf("removed %s (%d streams left)", id, len(m.streams))

	if len(m.streams) == 0 && !m.cfg.KeepAlive && m.running {
		m.stopLocked()
		m.flushSilence = true
	}
}

// PauseStream freezes a stream without draining its buffer
func (m *Mixer) PauseStream(id string) {
	m.mu.Lock()
	if s, ok := m.streams[id]; ok && s.pause(m.clock.Now()) {
		m.emitLocked(Event{Type: EventStreamPaused, StreamID: id})
	}
	m.unlockAndFlush(nil)
}

// ResumeStream unfreezes a paused stream. A stream paused by a fade-out
// comes back at its base volume.
func (m *Mixer) ResumeStream(id string) {
	m.mu.Lock()
	if s, ok := m.streams[id]; ok && s.unpause(m.clock.Now()) {
		if s.fadedOut {
			s.fadedOut = false
			s.volume = s.baseVolume
		}
		m.emitLocked(Event{Type: EventStreamResumed, StreamID: id})
	}
	m.unlockAndFlush(nil)
}

// SetStreamVolume sets the base and current volume, clamped to [0,2].
// An in-progress fade keeps driving the current volume until it completes.
func (m *Mixer) SetStreamVolume(id string, volume float64) {
	m.mu.Lock()
	if s, ok := m.streams[id]; ok {
		volume = clampVolume(volume)
		s.volume = volume
		s.baseVolume = volume
		m.emitLocked(Event{Type: EventStreamVolumeChanged, StreamID: id, Volume: volume})
	}
	m.unlockAndFlush(nil)
}

// StopStream marks a stream inactive and removes it immediately
func (m *Mixer) StopStream(id string) {
	m.mu.Lock()
	m.stopStreamLocked(id)
	m.unlockAndFlush(nil)
}

func (m *Mixer) stopStreamLocked(id string) {
	s, ok := m.streams[id]
	if !ok {
		return
	}
	s.active = false
	m.emitLocked(Event{Type: EventStreamStopped, StreamID: id})
	m.removeLocked(id)
}

// FadeOutAndPause fades a playing stream to silence then pauses it.
// A zero duration uses the configured default.
func (m *Mixer) FadeOutAndPause(id string, duration time.Duration) error {
	const op = "fade out"
	m.mu.Lock()
	s, ok := m.streams[id]
	switch {
	case !ok:
		m.mu.Unlock()
		return notFound(op, id)
	case s.paused:
		m.mu.Unlock()
		return invalidState(op, id, "stream is paused")
	case s.fade.active():
		m.mu.Unlock()
		return invalidState(op, id, "stream is already fading ("+s.fade.state.String()+")")
	}

	m.startFadeLocked(s, FadingOut, s.volume, 0, duration, func() {
		s.fade = fade{}
		s.pause(m.clock.Now())
		s.fadedOut = true
		m.emitLocked(Event{Type: EventFadedAndPaused, StreamID: id})
	})
	m.emitLocked(Event{Type: EventFadeOutStarted, StreamID: id})
	m.unlockAndFlush(nil)
	return nil
}

// FadeInAndResume resumes a paused stream from silence up to its base volume.
// A zero duration uses the configured default.
func (m *Mixer) FadeInAndResume(id string, duration time.Duration) error {
	const op = "fade in"
	m.mu.Lock()
	s, ok := m.streams[id]
	switch {
	case !ok:
		m.mu.Unlock()
		return notFound(op, id)
	case !s.paused:
		m.mu.Unlock()
		return invalidState(op, id, "stream is not paused")
	case s.fade.active():
		m.mu.Unlock()
		return invalidState(op, id, "stream is already fading ("+s.fade.state.String()+")")
	}

	s.unpause(m.clock.Now())
	s.fadedOut = false
	m.startFadeLocked(s, FadingIn, 0, s.baseVolume, duration, func() {
		s.fade = fade{}
		m.emitLocked(Event{Type: EventFadedAndResumed, StreamID: id})
	})
	m.emitLocked(Event{Type: EventFadeInStarted, StreamID: id})
	m.unlockAndFlush(nil)
	return nil
}

// CrossfadeStreams fades outID to silence and removes it while fading inID
// up to its base volume over the same duration. Both streams must exist
// and neither may be fading.
func (m *Mixer) CrossfadeStreams(outID, inID string, duration time.Duration) error {
	const op = "crossfade"
	m.mu.Lock()
	out, outOK := m.streams[outID]
	in, inOK := m.streams[inID]
	switch {
	case !outOK:
		m.mu.Unlock()
		return notFound(op, outID)
	case !inOK:
		m.mu.Unlock()
		return notFound(op, inID)
	case outID == inID:
		m.mu.Unlock()
		return invalidState(op, outID, "cannot crossfade a stream with itself")
	case out.fade.active():
		m.mu.Unlock()
		return invalidState(op, outID, "stream is already fading ("+out.fade.state.String()+")")
	case in.fade.active():
		m.mu.Unlock()
		return invalidState(op, inID, "stream is already fading ("+in.fade.state.String()+")")
	}

	if duration <= 0 {
		duration = m.cfg.DefaultFade
	}
	out.partner = inID
	in.partner = outID

	m.startFadeLocked(out, CrossfadeOut, out.volume, 0, duration, func() {
		out.fade = fade{}
		out.partner = ""
		m.emitLocked(Event{Type: EventCrossfadeComplete, StreamID: outID, Direction: DirectionOut})
		m.stopStreamLocked(outID)
	})

	in.unpause(m.clock.Now())
	in.fadedOut = false
	m.startFadeLocked(in, CrossfadeIn, 0, in.baseVolume, duration, func() {
		in.fade = fade{}
		in.partner = ""
		m.emitLocked(Event{Type: EventCrossfadeComplete, StreamID: inID, Direction: DirectionIn})
	})

	m.emitLocked(Event{Type: EventCrossfadeStarted, StreamID: outID, PartnerID: inID, Duration: duration})
	m.unlockAndFlush(nil)
	return nil
}

func (m *Mixer) startFadeLocked(s *stream, state FadeState, from, to float64, duration time.Duration, onComplete func()) {
	if duration <= 0 {
		duration = m.cfg.DefaultFade
	}
	s.fade = fade{
		state:      state,
		start:      m.clock.Now(),
		duration:   duration,
		from:       from,
		to:         to,
		onComplete: onComplete,
	}
	s.volume = from
	m.debugf("%s %s %.2f -> %.2f over %v", s.id, state, from, to, duration)
}

// GetStreamInfo returns a snapshot of one stream
func (m *Mixer) GetStreamInfo(id string) (StreamInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[id]
	if !ok {
		return StreamInfo{}, false
	}
	return s.info(m.clock.Now()), true
}

// GetAllStreamsInfo returns snapshots of every stream in insertion order
func (m *Mixer) GetAllStreamsInfo() []StreamInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	infos := make([]StreamInfo, 0, len(m.order))
	for _, id := range m.order {
		infos = append(infos, m.streams[id].info(now))
	}
	return infos
}

// StreamIDs returns the registered ids in insertion order
func (m *Mixer) StreamIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Tick performs one mix cycle and writes exactly one frame to the sink.
// It is called by the internal ticker and may be called directly by a
// transport that owns the frame clock.
func (m *Mixer) Tick() {
	started := time.Now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()

	m.updateFadesLocked(now)

	for i := range m.mixAcc {
		m.mixAcc[i] = 0
	}
	contributing, clipped := 0, 0
	for _, id := range m.order {
		s := m.streams[id]
		if !s.active || s.paused || s.volume == 0 {
			continue
		}
		if !s.queue.Take(m.mixChunk) {
			continue
		}
		contributing++
		for i := range m.mixAcc {
			sum := int32(m.mixAcc[i]) + audio.Scale(audio.ReadSample(m.mixChunk, i), s.volume)
			v := audio.Clamp16(sum)
			if int32(v) != sum {
				clipped++
			}
			m.mixAcc[i] = v
		}
	}

	var frame []byte
	if contributing > 0 {
		frame = make([]byte, m.frameBytes)
		for i, v := range m.mixAcc {
			audio.PutSample(frame, i, v)
		}
	} else {
		frame = m.silence
	}

	for _, id := range m.order {
		s := m.streams[id]
		if s.ended && !s.removing && s.queue.Len() < m.frameBytes {
			s.removing = true
			m.clock.AfterFunc(m.cfg.RemovalGrace, func() {
				m.RemoveStream(id)
			})
		}
	}

	if m.cfg.Metrics != nil {
		m.cfg.Metrics.ObserveTick(len(m.streams), contributing, clipped, time.Since(started))
	}
	m.unlockAndFlush(frame)
}

// updateFadesLocked recomputes fade volumes and fires completions once
func (m *Mixer) updateFadesLocked(now time.Time) {
	var completions []func()
	for _, id := range m.order {
		s := m.streams[id]
		if !s.fade.active() {
			continue
		}
		progress := s.fade.progress(now)
		s.volume = s.fade.volumeAt(now)
		m.emitLocked(Event{
			Type:      EventFadeProgress,
			StreamID:  id,
			Progress:  progress,
			Volume:    s.volume,
			FadeState: s.fade.state,
		})
		if progress >= 1 && s.fade.onComplete != nil {
			completions = append(completions, s.fade.onComplete)
			s.fade.onComplete = nil
		}
	}
	for _, fn := range completions {
		fn()
	}
}

func (m *Mixer) emitLocked(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = m.clock.Now()
	}
	m.pending = append(m.pending, ev)
}

// unlockAndFlush releases mu then performs the deferred work: frame and
// silence writes, source closes and event dispatch. sinkMu is taken before
// mu is released so frames reach the sink in registry order.
func (m *Mixer) unlockAndFlush(frame []byte) {
	events := m.pending
	closers := m.toClose
	silence := m.flushSilence
	m.pending = nil
	m.toClose = nil
	m.flushSilence = false

	write := frame != nil || silence
	if write {
		m.sinkMu.Lock()
	}
	m.mu.Unlock()

	if write {
		if frame != nil {
			m.writeFrameLocked(frame)
		}
		if silence {
			m.writeFrameLocked(m.silence)
		}
		m.sinkMu.Unlock()
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			m.logf("closing source: %v", err)
		}
	}
	if m.cfg.Metrics != nil {
		for _, ev := range events {
			m.cfg.Metrics.Event(ev.Type)
		}
	}
	m.observers.dispatch(events)
}

// writeFrameLocked writes one frame; sinkMu must be held
func (m *Mixer) writeFrameLocked(frame []byte) {
	if err := m.cfg.Sink.WriteFrame(frame); err != nil {
		m.logf("sink write failed: %v", err)
		if m.cfg.Metrics != nil {
			m.cfg.Metrics.SinkError()
		}
	}
}

func (m *Mixer) logf(format string, args ...interface{}) {
	log.Printf("Mixer: "+format, args...)
}

func (m *Mixer) debugf(format string, args ...interface{}) {
	if m.cfg.Debug {
		log.Printf("[DEBUG] Mixer: "+format, args...)
	}
}
