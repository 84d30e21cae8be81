package ccsynth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineTopology(t *testing.T) *Topology {
	t.Helper()
	topo := CreateTopology()
	topo.SetNpusCount(3)
	topo.Connect(0, 1, 0.0, 1.0, true)
	topo.Connect(1, 2, 0.0, 1.0, true)
	topo.SetChunkSize(mib)
	return topo
}

func TestBacktrackOneHop(t *testing.T) {
	topo := lineTopology(t)
	ten := CreateTimeExpandedNetwork(topo)

	assert.Equal(t, []int{0, 2}, ten.Backtrack(1))
	assert.Equal(t, []int{1}, ten.Backtrack(0))
	assert.Equal(t, []int{1}, ten.Backtrack(2))
}

func TestMarkLinkOccupied(t *testing.T) {
	topo := lineTopology(t)
	ten := CreateTimeExpandedNetwork(topo)
	delay := topo.LinkDelay(0, 1)

	ten.MarkLinkOccupied(0, 1)
	assert.NotContains(t, ten.Backtrack(1), 0)
	assert.Contains(t, ten.Backtrack(1), 2, "reverse and sibling links unaffected")
	assert.Contains(t, ten.Backtrack(0), 1)

	// busy until currentTime + delay: one tick short leaves it busy
	ten.UpdateCurrentTime(delay - 1)
	assert.NotContains(t, ten.Backtrack(1), 0)

	ten.UpdateCurrentTime(delay)
	assert.Contains(t, ten.Backtrack(1), 0)
}

func TestMarkOccupiedInvariants(t *testing.T) {
	topo := lineTopology(t)
	ten := CreateTimeExpandedNetwork(topo)

	ten.MarkLinkOccupied(0, 1)
	require.Panics(t, func() { ten.MarkLinkOccupied(0, 1) }, "link already busy")
	require.Panics(t, func() { ten.MarkLinkOccupied(0, 2) }, "link not in topology")
}

func TestAvailabilityTracksBusyUntil(t *testing.T) {
	topo := lineTopology(t)
	ten := CreateTimeExpandedNetwork(topo)
	delay := topo.LinkDelay(1, 2)

	ten.UpdateCurrentTime(delay)
	ten.MarkLinkOccupied(1, 2)
	ten.MarkLinkOccupied(1, 0)

	// available[s][d] <=> busyUntil[s][d] <= t, for every connected pair
	ten.UpdateCurrentTime(2 * delay)
	for _, src := range []int{0, 1, 2} {
		for _, dest := range []int{0, 1, 2} {
			if src == dest || !topo.IsConnected(src, dest) {
				continue
			}
			assert.Contains(t, ten.Backtrack(dest), src)
		}
	}
	assert.Equal(t, Time(2*delay), ten.CurrentTime())
}
