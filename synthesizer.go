package ccsynth

// synthesizer.go holds the synthesis engine: the event loop over the
// time-expanded network and the link-chunk matching sweep that, tick by
// tick, transforms the collective's precondition into its postcondition.
// The engine is parameterized by a source-selection strategy; the
// baseline and greedy variants differ only there.

import (
	"fmt"
	"sort"

	"github.com/iti/rngstream"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"k8s.io/klog/v2"
)

// greedyIndex is the position taken from the candidate list after
// sorting by link delay descending.  Index 1 picks the second-slowest
// link; skipping the extreme-slow link leaves more concurrency for
// later rounds, while pure fastest-first piles contention onto the
// quick links.
const greedyIndex = 1

// SourceSelector picks the source NPU for a transmission when more than
// one candidate holds the wanted chunk and has a free link to the
// destination
type SourceSelector interface {
	SelectSourceNpu(candidates []int, dest int) int
}

// randomSelect draws the source uniformly from the candidates
type randomSelect struct {
	rng *rngstream.RngStream
}

func (rs *randomSelect) SelectSourceNpu(candidates []int, dest int) int {
	idx := rs.rng.RandInt(0, len(candidates)-1)
	return candidates[idx]
}

// greedyNthSelect sorts the candidates by the delay of their link to
// the destination, slowest first, and takes the nth entry.  When fewer
// than nth+1 candidates exist the last (fastest) one is taken.
type greedyNthSelect struct {
	topo *Topology
	nth  int
}

func (gs *greedyNthSelect) SelectSourceNpu(candidates []int, dest int) int {
	ranked := make([]int, len(candidates))
	copy(ranked, candidates)
	sort.Slice(ranked, func(i, j int) bool {
		di := gs.topo.LinkDelay(ranked[i], dest)
		dj := gs.topo.LinkDelay(ranked[j], dest)
		if di != dj {
			return di > dj
		}
		return ranked[i] < ranked[j]
	})

	if klog.V(2).Enabled() {
		for _, src := range ranked {
			klog.Infof("candidate %d -> %d (%d ps)", src, dest, gs.topo.LinkDelay(src, dest))
		}
	}

	idx := gs.nth
	if idx > len(ranked)-1 {
		idx = len(ranked) - 1
	}
	return ranked[idx]
}

// Synthesizer drives one randomized synthesis instance.  It owns a
// time-expanded network and working copies of the collective's pre- and
// postcondition; the event queue may be private or, under the beam
// engine, shared with sibling instances.
type Synthesizer struct {
	topo *Topology
	coll *Collective

	evtq        *EventQueue
	currentTime Time

	ten *TimeExpandedNetwork

	npusCount   int
	chunksCount int

	result *SynthesisResult

	precondition  CollectivePrecondition
	postcondition CollectivePostcondition

	distinctLinkDelays []Time

	rng      *rngstream.RngStream
	selector SourceSelector

	// 0 means run until completion
	tickLimit int

	traceMgr *TraceManager
	beamIdx  int
}

// CreateSynthesizer builds the baseline engine: uniform-random source
// selection driven by the given RNG stream
func CreateSynthesizer(topo *Topology, coll *Collective, rng *rngstream.RngStream) *Synthesizer {
	return createSynthesizer(topo, coll, rng, &randomSelect{rng: rng}, CreateEventQueue())
}

// CreateGreedySynthesizer builds the greedy engine: deterministic
// delay-ranked source selection; randomness remains in the
// postcondition sweep order
func CreateGreedySynthesizer(topo *Topology, coll *Collective, rng *rngstream.RngStream) *Synthesizer {
	selector := &greedyNthSelect{topo: topo, nth: greedyIndex}
	return createSynthesizer(topo, coll, rng, selector, CreateEventQueue())
}

// createSynthesizer wires one engine instance to the given event queue,
// which the beam engine shares across instances
func createSynthesizer(topo *Topology, coll *Collective, rng *rngstream.RngStream,
	selector SourceSelector, evtq *EventQueue) *Synthesizer {

	if topo == nil || coll == nil {
		panic("synthesizer needs a topology and a collective")
	}

	syn := new(Synthesizer)
	syn.topo = topo
	syn.coll = coll
	syn.evtq = evtq
	syn.rng = rng
	syn.selector = selector

	syn.npusCount = topo.NpusCount()

	bindChunkSize(topo, coll)
	syn.distinctLinkDelays = topo.DistinctLinkDelays()

	syn.chunksCount = coll.ChunksCount()
	syn.ten = CreateTimeExpandedNetwork(topo)
	syn.result = CreateSynthesisResult(topo, coll)
	syn.precondition = coll.Precondition()
	syn.postcondition = coll.Postcondition()

	syn.currentTime = evtq.CurrentTime()
	syn.scheduleNextEvents()

	return syn
}

// bindChunkSize binds the collective's chunk size to the topology, or
// checks it when an earlier engine on the same topology already did
func bindChunkSize(topo *Topology, coll *Collective) {
	if !topo.ChunkSizeBound() {
		topo.SetChunkSize(coll.ChunkSize())
		return
	}
	if topo.ChunkSize() != coll.ChunkSize() {
		panic(fmt.Errorf("topology bound to chunk size %d, collective uses %d",
			topo.ChunkSize(), coll.ChunkSize()))
	}
}

// SetTickLimit bounds the number of event ticks Synthesize may take.
// Zero removes the bound.  A topology that cannot deliver the
// postcondition otherwise loops forever.
func (syn *Synthesizer) SetTickLimit(ticks int) {
	syn.tickLimit = ticks
}

// SetTraceManager attaches a trace manager that receives every
// committed match
func (syn *Synthesizer) SetTraceManager(tm *TraceManager) {
	syn.traceMgr = tm
}

// Synthesize runs the event loop to completion and returns the
// schedule.  An error is returned only when a tick limit is set and
// exhausted.
func (syn *Synthesizer) Synthesize() (*SynthesisResult, error) {
	ticks := 0
	for !syn.evtq.Empty() {
		syn.currentTime = syn.evtq.Pop()
		syn.ten.UpdateCurrentTime(syn.currentTime)

		syn.linkChunkMatching()

		if syn.completed() {
			break
		}

		ticks++
		if syn.tickLimit > 0 && ticks >= syn.tickLimit {
			return nil, errors.Errorf("postcondition not satisfied after %d event ticks", ticks)
		}

		syn.scheduleNextEvents()
	}

	if !syn.completed() {
		panic("event queue drained with postcondition remaining")
	}

	syn.result.SetCollectiveTime(syn.currentTime)
	return syn.result, nil
}

// scheduleNextEvents queues one wake-up per distinct link delay beyond
// the current time
func (syn *Synthesizer) scheduleNextEvents() {
	if len(syn.distinctLinkDelays) == 0 {
		panic("topology has no links")
	}
	for _, linkDelay := range syn.distinctLinkDelays {
		syn.evtq.Schedule(syn.currentTime + linkDelay)
	}
}

// linkChunkMatching runs one matching sweep: every remaining (dest,
// chunk) requirement is visited once in random order, and committed when
// a free link from a chunk holder exists.  Requirements skipped this
// round stay in the authoritative postcondition for later rounds.
// Candidate sources are judged against the precondition as it stood
// when the sweep began, so a chunk delivered this tick does not forward
// again within the same tick.
func (syn *Synthesizer) linkChunkMatching() {
	sweepPrecondition := clonePrecondition(syn.precondition)
	sweepPostcondition := clonePostcondition(syn.postcondition)

	for len(sweepPostcondition) > 0 {
		dest, chunk := syn.selectPostcondition(sweepPostcondition)

		sourceNpus := syn.ten.Backtrack(dest)

		candidates := candidateSourceNpus(chunk, sweepPrecondition, sourceNpus)
		if len(candidates) == 0 {
			continue
		}

		var src int
		if len(candidates) == 1 {
			src = candidates[0]
		} else {
			src = syn.selector.SelectSourceNpu(candidates, dest)
		}

		syn.markLinkChunkMatch(src, dest, chunk)
	}
}

// selectPostcondition removes and returns one uniformly chosen (dest,
// chunk) pair from the sweep's work set
func (syn *Synthesizer) selectPostcondition(sweepPostcondition CollectivePostcondition) (int, int) {
	if len(sweepPostcondition) == 0 {
		panic("selection from an empty postcondition")
	}

	dests := sortedKeys(sweepPostcondition)
	dest := dests[syn.rng.RandInt(0, len(dests)-1)]

	chunks := sortedKeys(sweepPostcondition[dest])
	chunk := chunks[syn.rng.RandInt(0, len(chunks)-1)]

	delete(sweepPostcondition[dest], chunk)
	if len(sweepPostcondition[dest]) == 0 {
		delete(sweepPostcondition, dest)
	}
	return dest, chunk
}

// candidateSourceNpus filters the backtracked sources down to those
// that actually hold the chunk
func candidateSourceNpus(chunk int, precondition CollectivePrecondition, sourceNpus []int) []int {
	candidates := make([]int, 0, len(sourceNpus))
	for _, src := range sourceNpus {
		if _, holds := precondition[src][chunk]; holds {
			candidates = append(candidates, src)
		}
	}
	return candidates
}

// markLinkChunkMatch commits a match: the link goes busy, the result
// and trace record the transmission, the destination now holds the
// chunk, and the requirement disappears
func (syn *Synthesizer) markLinkChunkMatch(src, dest, chunk int) {
	linkDelay := syn.topo.LinkDelay(src, dest)
	start := syn.currentTime - linkDelay

	klog.V(2).Infof("[event time %d ps] chunk %d: %d -> %d", syn.currentTime, chunk, src, dest)

	syn.result.MarkLinkChunkMatch(chunk, src, dest, syn.currentTime, start)
	syn.ten.MarkLinkOccupied(src, dest)

	if syn.traceMgr != nil && syn.traceMgr.Active() {
		syn.traceMgr.AddMatchTrace(syn.beamIdx, MatchTrace{
			Time: syn.currentTime, Beam: syn.beamIdx,
			Chunk: chunk, Src: src, Dest: dest, Start: start,
		})
	}

	syn.precondition[dest][chunk] = syn.currentTime

	delete(syn.postcondition[dest], chunk)
	if len(syn.postcondition[dest]) == 0 {
		delete(syn.postcondition, dest)
	}
}

// completed reports whether every requirement has been delivered
func (syn *Synthesizer) completed() bool {
	return len(syn.postcondition) == 0
}

// Result exposes the schedule built so far; the beam engine finalizes
// through it
func (syn *Synthesizer) Result() *SynthesisResult {
	return syn.result
}

// SynthesizeMultiple runs the baseline engine the given number of times
// independently, each with its own RNG stream, and returns the result
// with the smallest collective time
func SynthesizeMultiple(topo *Topology, coll *Collective, runs int) (*SynthesisResult, error) {
	if runs <= 0 {
		panic(fmt.Errorf("non-positive run count %d", runs))
	}

	var best *SynthesisResult
	for idx := 0; idx < runs; idx++ {
		rng := rngstream.New(fmt.Sprintf("multiple-%d", idx))
		syn := CreateSynthesizer(topo, coll, rng)
		result, err := syn.Synthesize()
		if err != nil {
			return nil, err
		}
		klog.V(1).Infof("run %d: collective time %d ps", idx, result.CollectiveTime())
		if best == nil || result.CollectiveTime() < best.CollectiveTime() {
			best = result
		}
	}
	return best, nil
}

// sortedKeys returns a map's keys in ascending order, so random index
// draws are reproducible for a fixed RNG stream
func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// clonePrecondition deep-copies a precondition
func clonePrecondition(pre CollectivePrecondition) CollectivePrecondition {
	cloned := make(CollectivePrecondition, len(pre))
	for npu, held := range pre {
		chunks := make(map[int]Time, len(held))
		for chunk, avail := range held {
			chunks[chunk] = avail
		}
		cloned[npu] = chunks
	}
	return cloned
}

// clonePostcondition deep-copies a postcondition
func clonePostcondition(post CollectivePostcondition) CollectivePostcondition {
	cloned := make(CollectivePostcondition, len(post))
	for npu, wanted := range post {
		chunks := make(map[int]bool, len(wanted))
		for chunk := range wanted {
			chunks[chunk] = true
		}
		cloned[npu] = chunks
	}
	return cloned
}
