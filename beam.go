package ccsynth

// beam.go holds the beam engine: K randomized synthesis instances run
// in lockstep on one shared event clock, and the earliest finisher wins

import (
	"fmt"

	"github.com/iti/rngstream"
	"k8s.io/klog/v2"
)

// BeamSynthesizer runs beamsCount independent baseline instances over a
// single shared EventQueue.  The instances see identical event times;
// only their RNG streams differ, which is what spreads them across
// different schedules.  Each instance owns its TEN, pre/postcondition,
// and result.
type BeamSynthesizer struct {
	topo *Topology
	coll *Collective

	evtq        *EventQueue
	currentTime Time

	beams []*Synthesizer

	distinctLinkDelays []Time

	// 0 means run until completion
	tickLimit int
}

// CreateBeamSynthesizer is a constructor.  Each beam gets its own RNG
// stream; sharing one would collapse the beams onto the same schedule.
func CreateBeamSynthesizer(topo *Topology, coll *Collective, beamsCount int) *BeamSynthesizer {
	if beamsCount <= 0 {
		panic(fmt.Errorf("non-positive beam count %d", beamsCount))
	}

	bs := new(BeamSynthesizer)
	bs.topo = topo
	bs.coll = coll
	bs.evtq = CreateEventQueue()

	bs.beams = make([]*Synthesizer, 0, beamsCount)
	for idx := 0; idx < beamsCount; idx++ {
		rng := rngstream.New(fmt.Sprintf("beam-%d", idx))
		beam := createSynthesizer(topo, coll, rng, &randomSelect{rng: rng}, bs.evtq)
		beam.beamIdx = idx
		bs.beams = append(bs.beams, beam)
	}

	bs.distinctLinkDelays = topo.DistinctLinkDelays()
	return bs
}

// SetTickLimit bounds the number of shared event ticks; zero removes
// the bound
func (bs *BeamSynthesizer) SetTickLimit(ticks int) {
	bs.tickLimit = ticks
}

// SetTraceManager attaches a trace manager to every beam
func (bs *BeamSynthesizer) SetTraceManager(tm *TraceManager) {
	for _, beam := range bs.beams {
		beam.SetTraceManager(tm)
	}
}

// Synthesize runs the lockstep loop until every beam has satisfied its
// postcondition, then returns the beam with the smallest collective
// time.  A beam that completes on one tick is finalized with the time
// of the tick on which its completion is observed.
func (bs *BeamSynthesizer) Synthesize() (*SynthesisResult, error) {
	ticks := 0
	for !bs.evtq.Empty() {
		bs.currentTime = bs.evtq.Pop()

		for _, beam := range bs.beams {
			if !beam.completed() {
				beam.currentTime = bs.currentTime
				beam.ten.UpdateCurrentTime(bs.currentTime)
				beam.linkChunkMatching()
			} else if beam.result.CollectiveTime() == 0 {
				beam.result.SetCollectiveTime(bs.currentTime)
			}
		}

		if bs.allCompleted() {
			break
		}

		ticks++
		if bs.tickLimit > 0 && ticks >= bs.tickLimit {
			return nil, fmt.Errorf("beam postconditions not satisfied after %d event ticks", ticks)
		}

		for _, linkDelay := range bs.distinctLinkDelays {
			bs.evtq.Schedule(bs.currentTime + linkDelay)
		}
	}

	if !bs.allCompleted() {
		panic("event queue drained with beam postconditions remaining")
	}

	for _, beam := range bs.beams {
		if beam.result.CollectiveTime() == 0 {
			beam.result.SetCollectiveTime(bs.currentTime)
		}
	}

	best := bs.beams[0].result
	for _, beam := range bs.beams[1:] {
		klog.V(1).Infof("beam %d: collective time %d ps", beam.beamIdx, beam.result.CollectiveTime())
		if beam.result.CollectiveTime() < best.CollectiveTime() {
			best = beam.result
		}
	}
	return best, nil
}

// allCompleted reports whether every beam has emptied its postcondition
func (bs *BeamSynthesizer) allCompleted() bool {
	for _, beam := range bs.beams {
		if !beam.completed() {
			return false
		}
	}
	return true
}

// BeamsCount returns the number of lockstep instances
func (bs *BeamSynthesizer) BeamsCount() int {
	return len(bs.beams)
}

// BeamResult returns the schedule of one beam, for inspection after
// Synthesize has run
func (bs *BeamSynthesizer) BeamResult(idx int) *SynthesisResult {
	if idx < 0 || idx >= len(bs.beams) {
		panic(fmt.Errorf("beam index %d outside [0,%d)", idx, len(bs.beams)))
	}
	return bs.beams[idx].result
}
