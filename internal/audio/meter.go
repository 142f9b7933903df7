package audio

import (
	"sync"
	"time"
)

// MeterInterval is the minimum time between published level updates. The
// throttle bounds presentation refresh cost; it is a rate-limit policy, not
// a correctness requirement.
const MeterInterval = 50 * time.Millisecond

// LevelMeter publishes a coarse loudness estimate (and an optional speech
// hint) for the presentation layer, throttled by wall clock.
type LevelMeter struct {
	interval time.Duration
	detector SpeechDetector

	mu       sync.RWMutex
	level    float64
	speaking bool
	last     time.Time
}

// NewLevelMeter creates a meter with the default publish interval. The
// detector may be nil, in which case the speech hint stays false.
func NewLevelMeter(detector SpeechDetector) *LevelMeter {
	return &LevelMeter{
		interval: MeterInterval,
		detector: detector,
	}
}

// Observe feeds a raw (pre-resample) capture frame through the meter.
// Updates more frequent than the interval are discarded.
func (m *LevelMeter) Observe(frame Frame, sampleRate int) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.last.IsZero() && now.Sub(m.last) < m.interval {
		return
	}
	m.last = now
	m.level = RMS(frame)

	if m.detector != nil {
		m.speaking = m.detector.IsSpeech(QuantizePCM16(frame), sampleRate)
	}
}

// Level returns the most recently published loudness estimate.
func (m *LevelMeter) Level() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// Speaking reports the most recent speech hint.
func (m *LevelMeter) Speaking() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.speaking
}

// Reset zeroes the meter. Called on session teardown.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = 0
	m.speaking = false
	m.last = time.Time{}
}
