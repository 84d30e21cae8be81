package ccsynth

// ten.go holds the TimeExpandedNetwork, the per-link availability
// snapshot of the topology at the engine's current simulated time

import (
	"fmt"
)

// TimeExpandedNetwork tracks, for every connected link, the time at
// which it next becomes free and whether it is free at the current
// time.  Backtracking from a destination yields the NPUs that could
// reach it through one free hop right now; multi-hop movement emerges
// across event ticks, never within one.
type TimeExpandedNetwork struct {
	topo      *Topology
	npusCount int

	currentTime Time

	linkBusyUntil [][]Time
	linkAvailable [][]bool
}

// CreateTimeExpandedNetwork is a constructor.  Every connected link
// starts free.
func CreateTimeExpandedNetwork(topo *Topology) *TimeExpandedNetwork {
	ten := new(TimeExpandedNetwork)
	ten.topo = topo
	ten.npusCount = topo.NpusCount()

	ten.linkBusyUntil = make([][]Time, ten.npusCount)
	ten.linkAvailable = make([][]bool, ten.npusCount)
	for src := 0; src < ten.npusCount; src++ {
		ten.linkBusyUntil[src] = make([]Time, ten.npusCount)
		ten.linkAvailable[src] = make([]bool, ten.npusCount)
		for dest := 0; dest < ten.npusCount; dest++ {
			if topo.IsConnected(src, dest) {
				ten.linkAvailable[src][dest] = true
			}
		}
	}
	return ten
}

// UpdateCurrentTime advances the network to the given time and
// recomputes the availability of every connected link
func (ten *TimeExpandedNetwork) UpdateCurrentTime(newCurrentTime Time) {
	ten.currentTime = newCurrentTime
	for src := 0; src < ten.npusCount; src++ {
		for dest := 0; dest < ten.npusCount; dest++ {
			if !ten.topo.IsConnected(src, dest) {
				continue
			}
			ten.linkAvailable[src][dest] = ten.linkBusyUntil[src][dest] <= newCurrentTime
		}
	}
}

// Backtrack returns the NPUs from which a chunk could hop to dest over
// a link that is free at the current time, in ascending NPU order
func (ten *TimeExpandedNetwork) Backtrack(dest int) []int {
	sources := make([]int, 0)
	for src := 0; src < ten.npusCount; src++ {
		if src == dest {
			continue
		}
		if ten.topo.IsConnected(src, dest) && ten.linkAvailable[src][dest] {
			sources = append(sources, src)
		}
	}
	return sources
}

// MarkLinkOccupied commits link (src,dest) to one chunk transmission
// starting now: the link stays busy for its delay and is unavailable
// until then.  Committing on an unavailable link is an invariant
// violation.
func (ten *TimeExpandedNetwork) MarkLinkOccupied(src, dest int) {
	if !ten.topo.IsConnected(src, dest) {
		panic(fmt.Errorf("link (%d,%d) not in topology", src, dest))
	}
	if !ten.linkAvailable[src][dest] {
		panic(fmt.Errorf("link (%d,%d) occupied while busy until %d", src, dest, ten.linkBusyUntil[src][dest]))
	}

	ten.linkBusyUntil[src][dest] = ten.currentTime + ten.topo.LinkDelay(src, dest)
	ten.linkAvailable[src][dest] = false
}

// CurrentTime returns the network's current simulated time
func (ten *TimeExpandedNetwork) CurrentTime() Time {
	return ten.currentTime
}
