// Package session orchestrates capture, transport, playback and transcript
// aggregation behind a small external contract: connect, disconnect, update
// the answer length, and observe state, transcript and loudness.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/user/interview-copilot/internal/audio"
	"github.com/user/interview-copilot/internal/live"
	"github.com/user/interview-copilot/internal/playback"
	"github.com/user/interview-copilot/internal/transcript"
)

// State is the connection lifecycle state. Transitions happen only inside
// the controller.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

var (
	// ErrMissingAPIKey reports an unconfigured credential. Fatal, no retry.
	ErrMissingAPIKey = errors.New("API key is not configured")

	// ErrAlreadyConnected reports a connect while a session is live.
	ErrAlreadyConnected = errors.New("session already connecting or connected")
)

// Transport is the controller's view of an open live session.
type Transport interface {
	Events() <-chan live.Event
	SendAudio(pcm []byte) error
	SendText(text string) error
	Close() error
	Err() error
}

// Dialer opens the transport. Swappable for tests.
type Dialer func(ctx context.Context, cfg live.Config) (Transport, error)

// SourceFactory acquires the capture stream. Swappable for tests.
type SourceFactory func() (audio.Source, error)

// Options configures a Controller.
type Options struct {
	APIKey    string
	Endpoint  string
	Model     string
	Voice     string
	Interview InterviewContext
	Length    AnswerLength

	// Dial and NewSource default to the real transport and microphone.
	Dial      Dialer
	NewSource SourceFactory
}

// Controller is the session state machine. All per-session entities live
// from Connect to Disconnect and are fully discarded in between.
type Controller struct {
	opts Options

	dial      Dialer
	newSource SourceFactory

	scheduler  *playback.Scheduler
	aggregator *transcript.Aggregator
	meter      *audio.LevelMeter

	// active is the single source of truth for "is this session still the
	// one we care about"; asynchronous continuations consult it and
	// discard their results when it no longer holds.
	active atomic.Bool

	mu       sync.Mutex
	state    State
	length   AnswerLength
	sess     Transport
	source   audio.Source
	outbound chan []byte
	stop     chan struct{}
}

// NewController wires a controller around the given scheduler, aggregator
// and meter. Those collaborators are owned by the controller for the
// lifetime of each session.
func NewController(opts Options, scheduler *playback.Scheduler, aggregator *transcript.Aggregator, meter *audio.LevelMeter) *Controller {
	c := &Controller{
		opts:       opts,
		dial:       opts.Dial,
		newSource:  opts.NewSource,
		scheduler:  scheduler,
		aggregator: aggregator,
		meter:      meter,
		state:      StateDisconnected,
		length:     opts.Length,
	}
	if c.length == "" {
		c.length = AnswerMedium
	}
	if c.dial == nil {
		c.dial = func(ctx context.Context, cfg live.Config) (Transport, error) {
			return live.Dial(ctx, cfg)
		}
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	log.Info().Str("state", string(s)).Msg("Session state changed")
}

// Segments returns the transcript so far.
func (c *Controller) Segments() []transcript.Segment {
	return c.aggregator.Segments()
}

// ClearSegments empties the transcript. Meant for use while disconnected
// or between turns; it touches neither the scheduler nor the transport.
func (c *Controller) ClearSegments() {
	c.aggregator.Clear()
}

// Level returns the throttled capture loudness estimate.
func (c *Controller) Level() float64 {
	return c.meter.Level()
}

// Speaking reports the capture speech hint.
func (c *Controller) Speaking() bool {
	return c.meter.Speaking()
}

// Length returns the configured answer length.
func (c *Controller) Length() AnswerLength {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.length
}

// Connect acquires the capture stream, opens the transport and starts
// streaming. Safe to race with Disconnect: whichever continuation finds the
// session no longer wanted discards its handle instead of using it.
func (c *Controller) Connect(ctx context.Context) error {
	if c.opts.APIKey == "" {
		c.setState(StateError)
		return ErrMissingAPIKey
	}

	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()
	log.Info().Str("state", string(StateConnecting)).Msg("Session state changed")

	src, err := c.newSource()
	if err != nil {
		if errors.Is(err, audio.ErrNoAudioInput) {
			// A missing audio track is the user's choice, not a fault.
			c.setState(StateDisconnected)
			return err
		}
		c.setState(StateError)
		return err
	}

	cfg := live.Config{
		Endpoint:          c.opts.Endpoint,
		APIKey:            c.opts.APIKey,
		Model:             c.opts.Model,
		Voice:             c.opts.Voice,
		SystemInstruction: BuildSystemInstruction(c.opts.Interview, c.Length()),
	}
	sess, err := c.dial(ctx, cfg)
	if err != nil {
		_ = src.Stop()
		c.setState(StateError)
		return fmt.Errorf("failed to open live session: %w", err)
	}

	// A disconnect may have raced ahead while the open was pending; in
	// that case the now-unwanted handle is closed, never used.
	c.mu.Lock()
	if c.state != StateConnecting && c.state != StateConnected {
		c.mu.Unlock()
		_ = sess.Close()
		_ = src.Stop()
		return nil
	}
	c.sess = sess
	c.source = src
	outbound := make(chan []byte, 32)
	stop := make(chan struct{})
	c.outbound = outbound
	c.stop = stop
	// Activation happens under the same lock as the re-check: a racing
	// disconnect either flips the state before this point, or finds the
	// session active and runs the full teardown.
	c.active.Store(true)
	c.state = StateConnected
	c.mu.Unlock()
	log.Info().Str("state", string(StateConnected)).Msg("Session state changed")

	go c.senderLoop(sess, outbound, stop)
	go c.eventLoop(sess)
	go c.watchCapture(src)

	if err := src.Start(c.onFrame); err != nil {
		c.Disconnect()
		c.setState(StateError)
		return fmt.Errorf("failed to start capture: %w", err)
	}

	return nil
}

// onFrame runs on the capture callback. It never blocks: the frame is
// resampled, encoded and handed to the sender, or dropped if the sender
// is behind.
func (c *Controller) onFrame(frame audio.Frame) {
	c.mu.Lock()
	src := c.source
	outbound := c.outbound
	c.mu.Unlock()
	if src == nil || outbound == nil {
		return
	}

	c.meter.Observe(frame, src.Rate())

	if !c.active.Load() {
		return
	}

	pcm := frame
	if src.Rate() != audio.TransportRate {
		pcm = audio.Downsample(frame, src.Rate(), audio.TransportRate)
	}

	select {
	case outbound <- audio.EncodePCM16(pcm):
	default:
		log.Warn().Msg("Outbound audio queue full, dropping frame")
	}
}

// senderLoop is the single writer for captured frames, preserving capture
// order on the wire. The active flag is consulted immediately before each
// transmission.
func (c *Controller) senderLoop(sess Transport, outbound <-chan []byte, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case pcm := <-outbound:
			if !c.active.Load() {
				continue
			}
			if err := sess.SendAudio(pcm); err != nil {
				// At-most-once: log and move on, never retry a stale frame.
				log.Warn().Err(err).Msg("Dropping outbound audio frame")
			}
		}
	}
}

// eventLoop applies every inbound event in arrival order. A single frame's
// audio and transcript effects are both applied before the next frame.
func (c *Controller) eventLoop(sess Transport) {
	var failure error

	for ev := range sess.Events() {
		switch e := ev.(type) {
		case live.AudioEvent:
			c.scheduler.Enqueue(e.Chunk)
		case live.TranscriptEvent:
			c.aggregator.Add(e.Role, e.Text)
		case live.InterruptedEvent:
			c.scheduler.Interrupt()
			c.aggregator.Interrupt()
		case live.TurnCompleteEvent:
			c.aggregator.TurnComplete()
		case live.ErrorEvent:
			failure = e.Err
		case live.CloseEvent:
			log.Info().Int("code", e.Code).Str("reason", e.Reason).Msg("Live session closed")
		}
	}

	// The stream has ended. If the session is still nominally active this
	// was remote-initiated; run the same teardown as Disconnect.
	if c.active.CompareAndSwap(true, false) {
		c.teardown()
		if failure != nil {
			log.Error().Err(failure).Msg("Live session failed")
			c.setState(StateError)
		} else {
			c.setState(StateDisconnected)
		}
	}
}

// watchCapture routes externally-ended capture (device lost, sharing
// revoked) through the regular disconnect path.
func (c *Controller) watchCapture(src audio.Source) {
	<-src.Done()
	if c.active.Load() {
		log.Info().Msg("Capture stream ended, disconnecting")
		c.Disconnect()
	}
}

// Disconnect is idempotent. The session is marked inactive first so
// in-flight continuations become no-ops, then everything is torn down.
// It always ends in Disconnected regardless of prior state.
func (c *Controller) Disconnect() {
	if !c.active.CompareAndSwap(true, false) {
		// Not active: either never connected or a connect is still
		// pending. Moving to Disconnected makes a pending connect
		// discard its handle when it resolves.
		c.mu.Lock()
		changed := c.state != StateDisconnected
		c.state = StateDisconnected
		c.mu.Unlock()
		if changed {
			log.Info().Str("state", string(StateDisconnected)).Msg("Session state changed")
		}
		return
	}

	c.teardown()
	c.setState(StateDisconnected)
}

func (c *Controller) teardown() {
	c.mu.Lock()
	sess := c.sess
	src := c.source
	stop := c.stop
	c.sess = nil
	c.source = nil
	c.outbound = nil
	c.stop = nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if sess != nil {
		_ = sess.Close()
	}
	if src != nil {
		_ = src.Stop()
	}
	c.scheduler.Reset()
	c.meter.Reset()

	log.Info().Msg("Session torn down")
}

// UpdateAnswerLength stores the new preference and, when connected, sends
// a fire-and-forget instruction update. In-flight audio is unaffected.
func (c *Controller) UpdateAnswerLength(length AnswerLength) {
	c.mu.Lock()
	c.length = length
	sess := c.sess
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || sess == nil || !c.active.Load() {
		return
	}

	go func() {
		if err := sess.SendText(UpdateDirective(length)); err != nil {
			log.Warn().Err(err).Msg("Failed to send answer length update")
		}
	}()
}
