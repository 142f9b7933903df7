// Package playback schedules decoded PCM chunks for gapless output: each
// chunk starts exactly when the previous one ends, never earlier, with no
// unnecessary silence in between.
package playback

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/interview-copilot/internal/audio"
)

// Clock is the output time base. Now reports time elapsed since the clock
// started; it must be monotonic.
type Clock interface {
	Now() time.Duration
}

type monotonicClock struct {
	start time.Time
}

// NewClock returns a wall-clock-backed monotonic output clock.
func NewClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() time.Duration {
	return time.Since(c.start)
}

type unit struct {
	timer *time.Timer
	data  []byte
}

// Scheduler owns the playback cursor and the set of scheduled-but-unfinished
// units. It is the only component that mutates either.
type Scheduler struct {
	clock Clock
	sink  audio.Sink

	mu    sync.Mutex
	next  time.Duration // earliest start time for the next chunk
	units map[*unit]struct{}
}

func NewScheduler(clock Clock, sink audio.Sink) *Scheduler {
	return &Scheduler{
		clock: clock,
		sink:  sink,
		units: make(map[*unit]struct{}),
	}
}

// Enqueue schedules a chunk to start at max(cursor, now) and advances the
// cursor by the chunk duration. Chunks play in arrival order and never
// overlap.
func (s *Scheduler) Enqueue(chunk audio.Chunk) {
	if len(chunk.Data) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.next < now {
		// Clamp upward only; the cursor never moves back.
		s.next = now
	}
	start := s.next
	s.next += chunk.Duration()

	u := &unit{data: chunk.Data}
	s.units[u] = struct{}{}
	u.timer = time.AfterFunc(start-now, func() { s.fire(u) })

	log.Debug().
		Dur("start", start).
		Dur("duration", chunk.Duration()).
		Int("pending", len(s.units)).
		Msg("Scheduled playback chunk")
}

func (s *Scheduler) fire(u *unit) {
	s.mu.Lock()
	if _, ok := s.units[u]; !ok {
		// Interrupted or reset between scheduling and firing.
		s.mu.Unlock()
		return
	}
	delete(s.units, u)
	s.mu.Unlock()

	// A single chunk failing to play is not a session fault.
	if err := s.sink.Write(u.data); err != nil {
		log.Warn().Err(err).Int("bytes", len(u.data)).Msg("Dropping playback chunk")
	}
}

// Interrupt stops every scheduled unit immediately and resets the cursor to
// zero so the next chunk starts right away instead of at a stale offset.
func (s *Scheduler) Interrupt() {
	s.stopAll()
}

// Reset tears the scheduler back to its initial state. Scheduler state never
// survives a disconnect.
func (s *Scheduler) Reset() {
	s.stopAll()
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	stopped := len(s.units)
	for u := range s.units {
		u.timer.Stop()
	}
	s.units = make(map[*unit]struct{})
	s.next = 0
	s.mu.Unlock()

	s.sink.Flush()

	if stopped > 0 {
		log.Debug().Int("stopped", stopped).Msg("Stopped scheduled playback")
	}
}

// Cursor returns the earliest start time for the next chunk.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Pending returns the number of scheduled units that have not finished.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.units)
}
