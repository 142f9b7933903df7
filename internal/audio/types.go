package audio

import "time"

const (
	// TransportRate is the sample rate the remote service ingests.
	TransportRate = 16000
	// PlaybackRate is the sample rate the remote service speaks at.
	PlaybackRate = 24000
)

// Frame is a single capture window of mono samples in [-1, 1].
type Frame []float32

// Chunk is little-endian 16-bit mono PCM tagged with its sample rate.
type Chunk struct {
	Data []byte
	Rate int
}

// Duration returns the playback time of the chunk.
func (c Chunk) Duration() time.Duration {
	rate := c.Rate
	if rate <= 0 {
		rate = PlaybackRate
	}
	samples := len(c.Data) / 2
	return time.Duration(samples) * time.Second / time.Duration(rate)
}

// Source delivers capture frames on a periodic callback. Implementations must
// not block the callback on downstream work.
type Source interface {
	Start(onFrame func(Frame)) error
	Rate() int
	// Done is closed when the stream ends outside the caller's control
	// (device lost, capture revoked).
	Done() <-chan struct{}
	Stop() error
}

// Sink is an audio output device accepting 16-bit little-endian PCM.
type Sink interface {
	Write(pcm []byte) error
	// Flush discards anything buffered but not yet played.
	Flush()
	Close() error
}

// SpeechDetector reports whether a quantized frame contains speech.
type SpeechDetector interface {
	IsSpeech(pcm []int16, sampleRate int) bool
	Close() error
}
