package ccsynth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueOrdering(t *testing.T) {
	evtq := CreateEventQueue()
	evtq.Schedule(30)
	evtq.Schedule(10)
	evtq.Schedule(20)

	assert.Equal(t, Time(10), evtq.Pop())
	assert.Equal(t, Time(20), evtq.Pop())
	assert.Equal(t, Time(30), evtq.Pop())
	assert.True(t, evtq.Empty())
}

func TestEventQueueDeduplicates(t *testing.T) {
	evtq := CreateEventQueue()
	evtq.Schedule(10)
	evtq.Schedule(10)
	evtq.Schedule(10)

	assert.Equal(t, Time(10), evtq.Pop())
	assert.True(t, evtq.Empty())
}

func TestEventQueueIgnoresPastTimes(t *testing.T) {
	evtq := CreateEventQueue()
	evtq.Schedule(10)
	evtq.Schedule(20)
	require.Equal(t, Time(10), evtq.Pop())

	// at or before the current time: both are no-ops
	evtq.Schedule(10)
	evtq.Schedule(5)

	assert.Equal(t, Time(20), evtq.Pop())
	assert.True(t, evtq.Empty())
}

func TestEventQueueCurrentTime(t *testing.T) {
	evtq := CreateEventQueue()
	assert.Equal(t, Time(0), evtq.CurrentTime())

	evtq.Schedule(15)
	assert.Equal(t, Time(0), evtq.CurrentTime())

	evtq.Pop()
	assert.Equal(t, Time(15), evtq.CurrentTime())
}

func TestEventQueuePopsNonDecreasing(t *testing.T) {
	evtq := CreateEventQueue()
	for _, eventTime := range []Time{50, 7, 91, 23, 7, 64, 8} {
		evtq.Schedule(eventTime)
	}

	prev := Time(0)
	for !evtq.Empty() {
		popped := evtq.Pop()
		assert.Greater(t, popped, prev)
		prev = popped
	}
}

func TestEventQueuePopEmptyPanics(t *testing.T) {
	evtq := CreateEventQueue()
	require.Panics(t, func() { evtq.Pop() })
}
