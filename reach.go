package ccsynth

// reach.go provides functions that check a collective against a
// topology before synthesis starts: every chunk required somewhere must
// be able to travel from some holder to that destination.  The engine
// itself never verifies this and loops forever on an undeliverable
// input, so the check runs up front.

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// The approach mirrors how network routes are found elsewhere: convert
// the dense topology into the data structures of a graph package with
// built-in path discovery, weight every link by 1, and ask Dijkstra for
// shortest-path trees.  A tree rooted in a source answers reachability
// to every destination, so trees are cached per source NPU.

// reachChecker holds the graph representation of a topology and the
// shortest-path trees computed so far
type reachChecker struct {
	topo *Topology

	gNodes    map[int]simple.Node
	connGraph graph.Graph

	// key is the NPU id of the tree root
	cachedSP map[int]path.Shortest
}

// createReachChecker builds the graph/path representation of the topology
func createReachChecker(topo *Topology) *reachChecker {
	rc := new(reachChecker)
	rc.topo = topo
	rc.gNodes = make(map[int]simple.Node)
	rc.cachedSP = make(map[int]path.Shortest)

	connGraph := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	npusCount := topo.NpusCount()
	for npu := 0; npu < npusCount; npu++ {
		rc.gNodes[npu] = simple.Node(npu)
		connGraph.AddNode(rc.gNodes[npu])
	}
	for src := 0; src < npusCount; src++ {
		for dest := 0; dest < npusCount; dest++ {
			if src == dest || !topo.IsConnected(src, dest) {
				continue
			}
			weightedEdge := simple.WeightedEdge{F: rc.gNodes[src], T: rc.gNodes[dest], W: 1.0}
			connGraph.SetWeightedEdge(weightedEdge)
		}
	}
	rc.connGraph = connGraph
	return rc
}

// spTree returns the shortest path tree rooted in input argument 'from'.
// If the tree is found in the cache it is returned, if not it is
// computed, saved, and returned.
func (rc *reachChecker) spTree(from int) path.Shortest {
	spTree, present := rc.cachedSP[from]
	if present {
		return spTree
	}

	spTree = path.DijkstraFrom(rc.gNodes[from], rc.connGraph)
	rc.cachedSP[from] = spTree
	return spTree
}

// reachable reports whether any directed path leads from src to dest
func (rc *reachChecker) reachable(src, dest int) bool {
	if src == dest {
		return true
	}
	_, weight := rc.spTree(src).To(int64(dest))
	return !math.IsInf(weight, 1)
}

// ValidateCollective checks that every (dest, chunk) requirement of the
// collective can be met: some NPU holding the chunk in the precondition
// has a directed path to dest.  The error lists every failing pair.
func ValidateCollective(topo *Topology, coll *Collective) error {
	rc := createReachChecker(topo)
	pre := coll.Precondition()
	post := coll.Postcondition()

	failures := make([]string, 0)
	for _, dest := range sortedKeys(post) {
		for _, chunk := range sortedKeys(post[dest]) {
			if !rc.deliverable(pre, chunk, dest) {
				failures = append(failures,
					fmt.Sprintf("chunk %d cannot reach NPU %d", chunk, dest))
			}
		}
	}

	if len(failures) > 0 {
		return errors.New(strings.Join(failures, ","))
	}
	return nil
}

// deliverable reports whether some holder of the chunk can reach dest
func (rc *reachChecker) deliverable(pre CollectivePrecondition, chunk, dest int) bool {
	for src, held := range pre {
		if _, holds := held[chunk]; !holds {
			continue
		}
		if rc.reachable(src, dest) {
			return true
		}
	}
	return false
}
