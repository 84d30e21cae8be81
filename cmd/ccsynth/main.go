package main

// ccsynth synthesizes a collective-communication schedule for an NPU
// interconnect topology read from a csv, yaml, or json description.
//
//	ccsynth <topology.{csv,yaml,json}> [--greedy] [--beam K] [--multiple K]
//	        [--seed S] [--out FILE] [--trace FILE]

import (
	"flag"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/iti/ccsynth"
	"github.com/iti/rngstream"
	"k8s.io/klog/v2"
)

const chunkSize = 1048576 // B
const initChunksPerNpu = 1

func usage() {
	fmt.Fprintf(os.Stderr,
		"usage: %s <topology.{csv,yaml,json}> [--greedy] [--beam K] [--multiple K] [--seed S] [--out FILE] [--trace FILE]\n",
		os.Args[0])
}

func main() {
	if len(os.Args) < 2 || len(os.Args[1]) == 0 || os.Args[1][0] == '-' {
		usage()
		os.Exit(1)
	}
	topoFile := os.Args[1]

	fs := flag.NewFlagSet("ccsynth", flag.ContinueOnError)
	greedy := fs.Bool("greedy", false, "use deterministic delay-ranked source selection")
	beams := fs.Int("beam", 0, "run K lockstep beams, keep the earliest finisher")
	multiple := fs.Int("multiple", 0, "run K independent baseline runs, keep the best")
	seed := fs.Uint64("seed", 0, "master RNG seed; 0 leaves the package default")
	out := fs.String("out", "ccsynth_result.csv", "result csv file")
	traceFile := fs.String("trace", "", "write a match trace to this yaml or json file")
	klog.InitFlags(nil)
	if err := fs.Parse(os.Args[2:]); err != nil {
		usage()
		os.Exit(1)
	}

	modes := 0
	for _, selected := range []bool{*greedy, *beams > 0, *multiple > 0} {
		if selected {
			modes++
		}
	}
	if modes > 1 || *beams < 0 || *multiple < 0 {
		usage()
		os.Exit(1)
	}

	if *seed != 0 {
		rngstream.SetRngStreamMasterSeed(*seed)
	}

	fmt.Println("[ccsynth]")
	fmt.Println()

	topoDesc, err := readTopoDesc(topoFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	topo := topoDesc.BuildTopology()
	npusCount := topo.NpusCount()

	fmt.Println("[Topology Information]")
	fmt.Printf("\t- NPUs Count: %d\n", npusCount)
	fmt.Printf("\t- Links Count: %d\n", topo.LinksCount())
	fmt.Println()

	coll := ccsynth.CreateAllGather(npusCount, chunkSize, initChunksPerNpu)

	fmt.Println("[Collective Information]")
	fmt.Printf("\t- Chunks Count: %d\n", coll.ChunksCount())
	fmt.Printf("\t- Chunk Size: %d B (%d MB)\n", chunkSize, chunkSize/(1<<20))
	fmt.Println()

	if err := ccsynth.ValidateCollective(topo, coll); err != nil {
		fmt.Fprintf(os.Stderr, "collective cannot be satisfied: %v\n", err)
		os.Exit(1)
	}

	var traceMgr *ccsynth.TraceManager
	if *traceFile != "" {
		traceMgr = ccsynth.CreateTraceManager(topoDesc.Name, true)
	}

	fmt.Println("[Synthesis Process]")
	started := time.Now()
	result, err := synthesize(topo, coll, *greedy, *beams, *multiple, traceMgr)
	elapsed := time.Since(started)
	if err != nil {
		fmt.Fprintf(os.Stderr, "synthesis failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()

	fmt.Println("[Synthesis Result]")
	elapsedUSec := float64(elapsed.Microseconds())
	fmt.Printf("\t- Time to solve: %.2f us (%.2f s)\n", elapsedUSec, elapsed.Seconds())
	collectiveTimePS := int64(result.CollectiveTime())
	fmt.Printf("\t- Synthesized Collective Time: %d ps (%.2f us)\n",
		collectiveTimePS, float64(collectiveTimePS)/1e6)
	fmt.Println()

	fmt.Println("[Synthesis Result Dump]")
	if err := result.WriteCSV(*out); err != nil {
		fmt.Fprintf(os.Stderr, "writing %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("\t- Written to %s\n", *out)

	if traceMgr != nil {
		traceMgr.WriteToFile(*traceFile)
		fmt.Printf("\t- Trace written to %s\n", *traceFile)
	}

	fmt.Println()
	fmt.Println("[ccsynth] Done!")
}

// readTopoDesc picks the description codec from the file extension
func readTopoDesc(filename string) (*ccsynth.TopoDesc, error) {
	switch path.Ext(filename) {
	case ".yaml", ".YAML", ".yml":
		return ccsynth.ReadTopoDesc(filename, true, nil)
	case ".json", ".JSON":
		return ccsynth.ReadTopoDesc(filename, false, nil)
	default:
		return ccsynth.ReadTopoCSV(filename)
	}
}

// synthesize dispatches to the selected engine variant
func synthesize(topo *ccsynth.Topology, coll *ccsynth.Collective,
	greedy bool, beams, multiple int, traceMgr *ccsynth.TraceManager) (*ccsynth.SynthesisResult, error) {

	switch {
	case beams > 0:
		fmt.Printf("\t- Using beam engine, %d beams\n", beams)
		bs := ccsynth.CreateBeamSynthesizer(topo, coll, beams)
		if traceMgr != nil {
			bs.SetTraceManager(traceMgr)
		}
		return bs.Synthesize()
	case multiple > 0:
		fmt.Printf("\t- Using %d independent baseline runs\n", multiple)
		return ccsynth.SynthesizeMultiple(topo, coll, multiple)
	case greedy:
		fmt.Println("\t- Using greedy engine")
		syn := ccsynth.CreateGreedySynthesizer(topo, coll, rngstream.New("greedy"))
		if traceMgr != nil {
			syn.SetTraceManager(traceMgr)
		}
		return syn.Synthesize()
	default:
		fmt.Println("\t- Using baseline engine")
		syn := ccsynth.CreateSynthesizer(topo, coll, rngstream.New("baseline"))
		if traceMgr != nil {
			syn.SetTraceManager(traceMgr)
		}
		return syn.Synthesize()
	}
}
