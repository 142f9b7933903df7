// Package transcript reconstructs a readable turn-by-turn transcript from
// the incremental text fragments the live service streams for both sides of
// the conversation.
package transcript

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Role identifies which side of the conversation produced a fragment.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Segment is a contiguous single-role span of transcript text. While
// Complete is false the segment is still accumulating; once true it is
// frozen for the rest of the session.
type Segment struct {
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	Text     string `json:"text"`
	Complete bool   `json:"complete"`
}

// Aggregator merges streaming fragments into an ordered segment sequence.
// At most the last segment is ever incomplete.
type Aggregator struct {
	mu       sync.Mutex
	segments []Segment
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add appends the fragment text to the open segment when the role matches,
// otherwise it closes over to a fresh segment. Empty fragments are ignored.
func (a *Aggregator) Add(role Role, text string) {
	if text == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.segments)
	if n == 0 || a.segments[n-1].Role != role || a.segments[n-1].Complete {
		// Handing over to the other role seals the open segment, keeping
		// at most the last segment incomplete.
		a.closeLastLocked()
		a.segments = append(a.segments, Segment{
			ID:   uuid.NewString(),
			Role: role,
			Text: text,
		})
		log.Debug().
			Str("role", string(role)).
			Int("segments", len(a.segments)).
			Msg("Opened transcript segment")
		return
	}

	a.segments[n-1].Text += text
}

// TurnComplete marks the last segment complete. Calling it again, or with
// no segments, is a no-op.
func (a *Aggregator) TurnComplete() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLastLocked()
}

// Interrupt force-closes the last open segment. A truncated answer is
// presented as complete rather than left open forever.
func (a *Aggregator) Interrupt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLastLocked()
}

func (a *Aggregator) closeLastLocked() {
	n := len(a.segments)
	if n == 0 || a.segments[n-1].Complete {
		return
	}
	a.segments[n-1].Complete = true
}

// Clear empties the sequence. Intended for use while disconnected or
// between turns.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.segments = nil
}

// Segments returns a copy of the ordered segment sequence.
func (a *Aggregator) Segments() []Segment {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Segment, len(a.segments))
	copy(out, a.segments)
	return out
}

// Len returns the number of segments.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.segments)
}
