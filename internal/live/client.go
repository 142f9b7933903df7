// Package live owns the single logical duplex channel to the remote
// speech-to-speech service: it opens the connection, forwards outbound
// audio and control text, and demultiplexes inbound frames into an ordered
// event stream.
package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/user/interview-copilot/internal/audio"
	"github.com/user/interview-copilot/internal/transcript"
)

const (
	// DefaultEndpoint is the bidirectional streaming endpoint of the
	// generative language service.
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	defaultDialTimeout = 15 * time.Second
)

// Config describes one live session.
type Config struct {
	Endpoint          string // defaults to DefaultEndpoint
	APIKey            string
	Model             string
	Voice             string
	SystemInstruction string
}

// Event is an inbound occurrence demultiplexed from the stream. A single
// server frame may yield several events; they are emitted in frame order.
type Event interface {
	liveEventType() string
}

// AudioEvent carries one decoded PCM chunk of model speech.
type AudioEvent struct {
	Chunk audio.Chunk
}

func (AudioEvent) liveEventType() string { return "audio" }

// TranscriptEvent carries one incremental transcription fragment.
type TranscriptEvent struct {
	Role transcript.Role
	Text string
}

func (TranscriptEvent) liveEventType() string { return "transcript" }

// TurnCompleteEvent signals the model finished its turn.
type TurnCompleteEvent struct{}

func (TurnCompleteEvent) liveEventType() string { return "turn_complete" }

// InterruptedEvent signals the model's in-progress turn was cut off.
type InterruptedEvent struct{}

func (InterruptedEvent) liveEventType() string { return "interrupted" }

// CloseEvent is the terminal event for a clean remote close.
type CloseEvent struct {
	Code   int
	Reason string
}

func (CloseEvent) liveEventType() string { return "close" }

// ErrorEvent is the terminal event for a mid-stream failure.
type ErrorEvent struct {
	Err error
}

func (ErrorEvent) liveEventType() string { return "error" }

// Session is an open live connection. Events must be drained until the
// channel closes.
type Session struct {
	conn *websocket.Conn

	events chan Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

// Dial opens the connection, sends the setup frame and waits for the
// remote ready signal before returning a usable session.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	url := endpoint + "?key=" + cfg.APIKey

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, defaultDialTimeout)
		defer cancel()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial live endpoint: %w", err)
	}

	setup := setupMessage{Setup: setupPayload{
		Model: cfg.Model,
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: &voiceConfig{
					PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: cfg.Voice},
				},
			},
		},
		SystemInstruction:        &content{Parts: []part{{Text: cfg.SystemInstruction}}},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}}
	if err := conn.WriteJSON(setup); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send setup: %w", err)
	}

	// The handle is only usable after the explicit ready signal.
	_ = conn.SetReadDeadline(time.Now().Add(defaultDialTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to read setup ack: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	var first serverMessage
	if err := json.Unmarshal(payload, &first); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to decode setup ack: %w", err)
	}
	if first.SetupComplete == nil {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected first frame before setup ack")
	}

	s := &Session{
		conn:   conn,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	go s.readLoop()

	log.Info().Str("model", cfg.Model).Str("voice", cfg.Voice).Msg("Live session established")
	return s, nil
}

// SendAudio forwards one 16 kHz mono PCM frame. Delivery is at-most-once:
// if the channel is closing the frame is silently discarded, and any other
// failure drops the frame with an error for the caller to log. Frames are
// never retried.
func (s *Session) SendAudio(pcm []byte) error {
	if s.closed.Load() {
		return nil
	}

	msg := realtimeInputMessage{RealtimeInput: realtimeInput{
		MediaChunks: []blob{{
			MimeType: "audio/pcm;rate=" + strconv.Itoa(audio.TransportRate),
			Data:     base64.StdEncoding.EncodeToString(pcm),
		}},
	}}

	if err := s.writeJSON(msg); err != nil {
		if isBenignCloseErr(err) {
			// Expected race: the server closed while a frame was in
			// flight. Not a fault.
			return nil
		}
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

// SendText delivers an out-of-band instruction update on the same channel.
func (s *Session) SendText(text string) error {
	if s.closed.Load() {
		return fmt.Errorf("live session is closed")
	}
	msg := clientContentMessage{ClientContent: clientContent{
		Turns:        []content{{Parts: []part{{Text: text}}}},
		TurnComplete: true,
	}}
	if err := s.writeJSON(msg); err != nil {
		return fmt.Errorf("failed to send control text: %w", err)
	}
	return nil
}

func (s *Session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// Events yields demultiplexed inbound events in arrival order. The channel
// closes when the connection ends.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Close shuts the connection down and waits for the read loop to finish.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

// Err returns the terminal session error, if any, once the session ends.
func (s *Session) Err() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Session) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Session) readLoop() {
	defer close(s.done)
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok &&
				(closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway) {
				s.events <- CloseEvent{Code: closeErr.Code, Reason: closeErr.Text}
				return
			}
			if s.closed.Load() {
				// Local close tore the connection down.
				s.events <- CloseEvent{Code: websocket.CloseNormalClosure}
				return
			}
			s.setErr(err)
			s.events <- ErrorEvent{Err: err}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("Skipping undecodable server frame")
			continue
		}
		s.demux(msg)
	}
}

// demux emits every effect a single frame carries, in order: audio, then
// transcription, then interruption, then turn completion. A frame may
// carry audio and transcription at once; both are emitted.
func (s *Session) demux(msg serverMessage) {
	sc := msg.ServerContent
	if sc == nil {
		return
	}

	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil || !strings.HasPrefix(p.InlineData.MimeType, "audio/pcm") {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				// One bad chunk does not end the session.
				log.Warn().Err(err).Msg("Skipping undecodable audio payload")
				continue
			}
			s.events <- AudioEvent{Chunk: audio.Chunk{
				Data: data,
				Rate: rateFromMime(p.InlineData.MimeType),
			}}
		}
	}

	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		s.events <- TranscriptEvent{Role: transcript.RoleUser, Text: sc.InputTranscription.Text}
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		s.events <- TranscriptEvent{Role: transcript.RoleModel, Text: sc.OutputTranscription.Text}
	}

	if sc.Interrupted {
		s.events <- InterruptedEvent{}
	}
	if sc.TurnComplete {
		s.events <- TurnCompleteEvent{}
	}
}

func rateFromMime(mime string) int {
	const marker = "rate="
	if i := strings.Index(mime, marker); i >= 0 {
		if rate, err := strconv.Atoi(strings.TrimSpace(mime[i+len(marker):])); err == nil && rate > 0 {
			return rate
		}
	}
	return audio.PlaybackRate
}

// isBenignCloseErr matches failures caused by racing a send against a
// closing channel.
func isBenignCloseErr(err error) bool {
	if err == nil {
		return false
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "close sent") ||
		strings.Contains(msg, "closed network connection") ||
		strings.Contains(msg, "closing")
}
