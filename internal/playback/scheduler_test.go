package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/interview-copilot/internal/audio"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

type recordSink struct {
	mu      sync.Mutex
	writes  [][]byte
	flushes int
}

func (s *recordSink) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, pcm)
	return nil
}

func (s *recordSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes = s.flushes + 1
}

func (s *recordSink) Close() error { return nil }

func (s *recordSink) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

// chunkOf builds a chunk lasting the given time at the playback rate.
func chunkOf(d time.Duration) audio.Chunk {
	samples := int(d * audio.PlaybackRate / time.Second)
	return audio.Chunk{Data: make([]byte, samples*2), Rate: audio.PlaybackRate}
}

func TestSchedulerCursorAdvancesGaplessly(t *testing.T) {
	clock := &fakeClock{}
	sink := &recordSink{}
	s := NewScheduler(clock, sink)

	s.Enqueue(chunkOf(100 * time.Millisecond))
	s.Enqueue(chunkOf(50 * time.Millisecond))

	// Second chunk starts exactly where the first ends.
	assert.Equal(t, 150*time.Millisecond, s.Cursor())
}

func TestSchedulerClampsLateCursor(t *testing.T) {
	clock := &fakeClock{}
	sink := &recordSink{}
	s := NewScheduler(clock, sink)

	s.Enqueue(chunkOf(20 * time.Millisecond))

	// The stream stalls past the end of the scheduled audio. The next chunk
	// starts now, not at the stale cursor.
	clock.advance(500 * time.Millisecond)
	s.Enqueue(chunkOf(20 * time.Millisecond))

	assert.Equal(t, 520*time.Millisecond, s.Cursor())
}

func TestSchedulerCursorNeverMovesBack(t *testing.T) {
	clock := &fakeClock{}
	s := NewScheduler(clock, &recordSink{})

	s.Enqueue(chunkOf(200 * time.Millisecond))
	clock.advance(10 * time.Millisecond)
	s.Enqueue(chunkOf(100 * time.Millisecond))

	assert.Equal(t, 300*time.Millisecond, s.Cursor())
}

func TestSchedulerIgnoresEmptyChunk(t *testing.T) {
	s := NewScheduler(&fakeClock{}, &recordSink{})

	s.Enqueue(audio.Chunk{Rate: audio.PlaybackRate})

	assert.Zero(t, s.Cursor())
	assert.Zero(t, s.Pending())
}

func TestSchedulerDeliversDueChunk(t *testing.T) {
	clock := &fakeClock{}
	sink := &recordSink{}
	s := NewScheduler(clock, sink)

	// Due immediately: the cursor starts at now.
	s.Enqueue(chunkOf(10 * time.Millisecond))

	require.Eventually(t, func() bool {
		return sink.writeCount() == 1
	}, time.Second, time.Millisecond)
	assert.Zero(t, s.Pending())
}

func TestSchedulerInterruptStopsEverything(t *testing.T) {
	clock := &fakeClock{}
	sink := &recordSink{}
	s := NewScheduler(clock, sink)

	// Position the cursor in the future so neither chunk comes due during
	// the test.
	s.mu.Lock()
	s.next = time.Hour
	s.mu.Unlock()

	s.Enqueue(chunkOf(10 * time.Second))
	s.Enqueue(chunkOf(10 * time.Second))
	require.Equal(t, 2, s.Pending())

	s.Interrupt()

	assert.Zero(t, s.Pending())
	assert.Zero(t, s.Cursor(), "cursor resets so the next answer starts immediately")

	sink.mu.Lock()
	flushes := sink.flushes
	sink.mu.Unlock()
	assert.Equal(t, 1, flushes)

	// The next chunk schedules against the fresh cursor.
	s.Enqueue(chunkOf(time.Second))
	assert.Equal(t, clock.Now()+time.Second, s.Cursor())
}

func TestSchedulerResetClearsState(t *testing.T) {
	clock := &fakeClock{}
	sink := &recordSink{}
	s := NewScheduler(clock, sink)

	s.mu.Lock()
	s.next = time.Hour
	s.mu.Unlock()

	s.Enqueue(chunkOf(time.Minute))
	s.Reset()

	assert.Zero(t, s.Pending())
	assert.Zero(t, s.Cursor())
	assert.Zero(t, sink.writeCount(), "far-future chunk never reaches the sink")
}
