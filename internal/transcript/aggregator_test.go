package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorAccumulatesSameRole(t *testing.T) {
	a := NewAggregator()

	a.Add(RoleUser, "What")
	a.Add(RoleUser, " is Go?")

	segments := a.Segments()
	require.Len(t, segments, 1)
	assert.Equal(t, "What is Go?", segments[0].Text)
	assert.Equal(t, RoleUser, segments[0].Role)
	assert.False(t, segments[0].Complete)
}

func TestAggregatorRoleSwitchOpensSegment(t *testing.T) {
	a := NewAggregator()

	a.Add(RoleUser, "Tell me about yourself.")
	a.Add(RoleModel, "I am a backend engineer")
	a.Add(RoleModel, " with five years of Go.")

	segments := a.Segments()
	require.Len(t, segments, 2)
	assert.Equal(t, RoleUser, segments[0].Role)
	assert.Equal(t, RoleModel, segments[1].Role)
	assert.Equal(t, "I am a backend engineer with five years of Go.", segments[1].Text)
}

func TestAggregatorTurnComplete(t *testing.T) {
	a := NewAggregator()

	a.Add(RoleUser, "What")
	a.Add(RoleUser, " is Go?")
	a.TurnComplete()

	segments := a.Segments()
	require.Len(t, segments, 1)
	assert.True(t, segments[0].Complete)

	// A fragment after the close opens a new segment even for the same role.
	a.Add(RoleUser, "And why?")
	segments = a.Segments()
	require.Len(t, segments, 2)
	assert.False(t, segments[1].Complete)
}

func TestAggregatorTurnCompleteIdempotent(t *testing.T) {
	a := NewAggregator()

	// No segments at all.
	a.TurnComplete()
	assert.Zero(t, a.Len())

	a.Add(RoleModel, "Answer.")
	a.TurnComplete()
	a.TurnComplete()
	a.Interrupt()

	segments := a.Segments()
	require.Len(t, segments, 1)
	assert.True(t, segments[0].Complete)
}

func TestAggregatorInterruptClosesOpenSegment(t *testing.T) {
	a := NewAggregator()

	a.Add(RoleModel, "I was about to say")
	a.Interrupt()

	segments := a.Segments()
	require.Len(t, segments, 1)
	assert.True(t, segments[0].Complete)
	assert.Equal(t, "I was about to say", segments[0].Text)
}

func TestAggregatorIgnoresEmptyFragments(t *testing.T) {
	a := NewAggregator()

	a.Add(RoleUser, "")
	assert.Zero(t, a.Len())

	a.Add(RoleUser, "Hello")
	a.Add(RoleUser, "")
	segments := a.Segments()
	require.Len(t, segments, 1)
	assert.Equal(t, "Hello", segments[0].Text)
}

func TestAggregatorOnlyLastSegmentIncomplete(t *testing.T) {
	a := NewAggregator()

	a.Add(RoleUser, "Question one.")
	a.Add(RoleModel, "Answer one.")
	a.TurnComplete()
	a.Add(RoleUser, "Question two.")

	segments := a.Segments()
	require.Len(t, segments, 3)
	for i, seg := range segments[:len(segments)-1] {
		assert.True(t, seg.Complete, "segment %d should be closed", i)
	}
	assert.False(t, segments[len(segments)-1].Complete)
}

func TestAggregatorClear(t *testing.T) {
	a := NewAggregator()

	a.Add(RoleUser, "Hello")
	a.Clear()

	assert.Zero(t, a.Len())
	assert.Empty(t, a.Segments())
}

func TestAggregatorSegmentsReturnsCopy(t *testing.T) {
	a := NewAggregator()
	a.Add(RoleUser, "Hello")

	segments := a.Segments()
	segments[0].Text = "mutated"

	assert.Equal(t, "Hello", a.Segments()[0].Text)
}

func TestAggregatorSegmentIDsUnique(t *testing.T) {
	a := NewAggregator()

	a.Add(RoleUser, "one")
	a.Add(RoleModel, "two")
	a.Add(RoleUser, "three")

	segments := a.Segments()
	seen := make(map[string]bool)
	for _, seg := range segments {
		require.NotEmpty(t, seg.ID)
		assert.False(t, seen[seg.ID])
		seen[seg.ID] = true
	}
}
