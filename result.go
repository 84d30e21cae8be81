package ccsynth

// result.go holds the per-NPU and whole-collective records of the
// transmissions a synthesis run committed, and the final collective time

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// LinkEvent records one committed chunk transmission over one link.
// Start is always Arrival minus the link's delay.
type LinkEvent struct {
	Chunk   int
	Arrival Time
	Start   Time
}

// NpuResult gathers the transmissions touching one NPU, keyed by the
// peer on the other end of the link.  Ingress events are deliveries to
// this NPU, egress events are sends from it.  For each chunk delivered
// here the index of the ingress event that delivered it is kept, so a
// consumer can reconstruct the dependency chain of the schedule.
type NpuResult struct {
	npu         int
	npusCount   int
	chunksCount int

	ingressLinks map[int][]LinkEvent
	egressLinks  map[int][]LinkEvent

	// chunk -> index into ingressLinks[src] of the delivering event
	dependency map[int]int
}

// CreateNpuResult is a constructor.  Event lists exist only for links
// the topology actually has.
func CreateNpuResult(npu int, topo *Topology, coll *Collective) *NpuResult {
	nr := new(NpuResult)
	nr.npu = npu
	nr.npusCount = topo.NpusCount()
	nr.chunksCount = coll.ChunksCount()
	nr.ingressLinks = make(map[int][]LinkEvent)
	nr.egressLinks = make(map[int][]LinkEvent)
	nr.dependency = make(map[int]int)

	for peer := 0; peer < nr.npusCount; peer++ {
		if peer == npu {
			continue
		}
		if topo.IsConnected(npu, peer) {
			nr.egressLinks[peer] = make([]LinkEvent, 0)
		}
		if topo.IsConnected(peer, npu) {
			nr.ingressLinks[peer] = make([]LinkEvent, 0)
		}
	}
	return nr
}

// addIngress records delivery of chunk from src at the given times
func (nr *NpuResult) addIngress(chunk, src int, arrival, start Time) {
	nr.checkChunk(chunk)
	if _, present := nr.ingressLinks[src]; !present {
		panic(fmt.Errorf("no ingress link from %d to %d", src, nr.npu))
	}
	nr.ingressLinks[src] = append(nr.ingressLinks[src], LinkEvent{Chunk: chunk, Arrival: arrival, Start: start})
	nr.dependency[chunk] = len(nr.ingressLinks[src]) - 1
}

// addEgress records a send of chunk to dest at the given times
func (nr *NpuResult) addEgress(chunk, dest int, arrival, start Time) {
	nr.checkChunk(chunk)
	if _, present := nr.egressLinks[dest]; !present {
		panic(fmt.Errorf("no egress link from %d to %d", nr.npu, dest))
	}
	nr.egressLinks[dest] = append(nr.egressLinks[dest], LinkEvent{Chunk: chunk, Arrival: arrival, Start: start})
}

func (nr *NpuResult) checkChunk(chunk int) {
	if chunk < 0 || chunk >= nr.chunksCount {
		panic(fmt.Errorf("chunk id %d outside [0,%d)", chunk, nr.chunksCount))
	}
}

// IngressEvents returns the ordered deliveries to this NPU from src,
// empty when no such link exists
func (nr *NpuResult) IngressEvents(src int) []LinkEvent {
	events, present := nr.ingressLinks[src]
	if !present {
		return nil
	}
	return events
}

// EgressEvents returns the ordered sends from this NPU to dest, empty
// when no such link exists
func (nr *NpuResult) EgressEvents(dest int) []LinkEvent {
	events, present := nr.egressLinks[dest]
	if !present {
		return nil
	}
	return events
}

// DependencyIndex returns the index of the ingress event that delivered
// chunk here, if any arrived by link
func (nr *NpuResult) DependencyIndex(chunk int) (int, bool) {
	idx, present := nr.dependency[chunk]
	return idx, present
}

// IngressPeers returns the NPUs with a link into this one, ascending
func (nr *NpuResult) IngressPeers() []int {
	peers := make([]int, 0, len(nr.ingressLinks))
	for peer := range nr.ingressLinks {
		peers = append(peers, peer)
	}
	slices.Sort(peers)
	return peers
}

// EgressPeers returns the NPUs this one has a link to, ascending
func (nr *NpuResult) EgressPeers() []int {
	peers := make([]int, 0, len(nr.egressLinks))
	for peer := range nr.egressLinks {
		peers = append(peers, peer)
	}
	slices.Sort(peers)
	return peers
}

// SynthesisResult is the full schedule one synthesis run produced: the
// per-NPU transmission logs and the collective completion time
type SynthesisResult struct {
	npusCount   int
	chunksCount int

	npuResults []*NpuResult

	collectiveTime Time
}

// CreateSynthesisResult is a constructor
func CreateSynthesisResult(topo *Topology, coll *Collective) *SynthesisResult {
	sr := new(SynthesisResult)
	sr.npusCount = topo.NpusCount()
	sr.chunksCount = coll.ChunksCount()
	sr.npuResults = make([]*NpuResult, 0, sr.npusCount)
	for npu := 0; npu < sr.npusCount; npu++ {
		sr.npuResults = append(sr.npuResults, CreateNpuResult(npu, topo, coll))
	}
	return sr
}

// MarkLinkChunkMatch records one committed transmission of chunk over
// link (src,dest), arriving at arrival and started at start
func (sr *SynthesisResult) MarkLinkChunkMatch(chunk, src, dest int, arrival, start Time) {
	if src < 0 || src >= sr.npusCount || dest < 0 || dest >= sr.npusCount {
		panic(fmt.Errorf("link (%d,%d) outside [0,%d)", src, dest, sr.npusCount))
	}
	sr.npuResults[src].addEgress(chunk, dest, arrival, start)
	sr.npuResults[dest].addIngress(chunk, src, arrival, start)
}

// SetCollectiveTime finalizes the completion time.  It is set at most once.
func (sr *SynthesisResult) SetCollectiveTime(newCollectiveTime Time) {
	if sr.collectiveTime != 0 {
		panic("collective time set twice")
	}
	sr.collectiveTime = newCollectiveTime
}

// CollectiveTime returns the completion time, zero until finalized
func (sr *SynthesisResult) CollectiveTime() Time {
	return sr.collectiveTime
}

// NpusCount returns the number of NPUs covered by the result
func (sr *SynthesisResult) NpusCount() int {
	return sr.npusCount
}

// Npu returns the per-NPU record for the given NPU
func (sr *SynthesisResult) Npu(npu int) *NpuResult {
	if npu < 0 || npu >= sr.npusCount {
		panic(fmt.Errorf("NPU id %d outside [0,%d)", npu, sr.npusCount))
	}
	return sr.npuResults[npu]
}

// EgressEvents returns the ordered transmissions committed on link (src,dest)
func (sr *SynthesisResult) EgressEvents(src, dest int) []LinkEvent {
	return sr.Npu(src).EgressEvents(dest)
}

// IngressEvents returns the ordered deliveries over link (src,dest) as
// seen from the destination; identical content to EgressEvents
func (sr *SynthesisResult) IngressEvents(src, dest int) []LinkEvent {
	return sr.Npu(dest).IngressEvents(src)
}

// MaxArrival returns the latest arrival among all committed
// transmissions, zero when nothing was committed
func (sr *SynthesisResult) MaxArrival() Time {
	var maxArrival Time
	for _, nr := range sr.npuResults {
		for _, events := range nr.ingressLinks {
			for _, ev := range events {
				if ev.Arrival > maxArrival {
					maxArrival = ev.Arrival
				}
			}
		}
	}
	return maxArrival
}

// TransmissionsCount returns the total number of committed transmissions
func (sr *SynthesisResult) TransmissionsCount() int {
	count := 0
	for _, nr := range sr.npuResults {
		for _, events := range nr.ingressLinks {
			count += len(events)
		}
	}
	return count
}
