package ccsynth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkLinkChunkMatchRecordsBothEnds(t *testing.T) {
	topo := lineTopology(t)
	coll := CreateAllGather(3, mib, 1)
	sr := CreateSynthesisResult(topo, coll)
	delay := topo.LinkDelay(0, 1)

	sr.MarkLinkChunkMatch(0, 0, 1, delay, 0)

	egress := sr.EgressEvents(0, 1)
	require.Len(t, egress, 1)
	assert.Equal(t, LinkEvent{Chunk: 0, Arrival: delay, Start: 0}, egress[0])
	assert.Equal(t, egress, sr.IngressEvents(0, 1))

	assert.Empty(t, sr.EgressEvents(1, 0))
	assert.Equal(t, 1, sr.TransmissionsCount())
	assert.Equal(t, delay, sr.MaxArrival())
}

func TestDependencyIndex(t *testing.T) {
	topo := lineTopology(t)
	coll := CreateAllGather(3, mib, 1)
	sr := CreateSynthesisResult(topo, coll)
	delay := topo.LinkDelay(0, 1)

	sr.MarkLinkChunkMatch(0, 0, 1, delay, 0)
	sr.MarkLinkChunkMatch(2, 2, 1, delay, 0)
	sr.MarkLinkChunkMatch(0, 1, 2, 2*delay, delay)

	idx, present := sr.Npu(1).DependencyIndex(0)
	require.True(t, present)
	assert.Equal(t, 0, idx)

	idx, present = sr.Npu(1).DependencyIndex(2)
	require.True(t, present)
	assert.Equal(t, 0, idx, "first delivery on the 2->1 link")

	_, present = sr.Npu(0).DependencyIndex(0)
	assert.False(t, present, "chunk 0 never delivered to its origin")
}

func TestResultInvariants(t *testing.T) {
	topo := lineTopology(t)
	coll := CreateAllGather(3, mib, 1)
	sr := CreateSynthesisResult(topo, coll)

	require.Panics(t, func() { sr.MarkLinkChunkMatch(0, 0, 2, 10, 0) }, "no 0->2 link")
	require.Panics(t, func() { sr.MarkLinkChunkMatch(9, 0, 1, 10, 0) }, "chunk outside universe")

	sr.SetCollectiveTime(42)
	assert.Equal(t, Time(42), sr.CollectiveTime())
	require.Panics(t, func() { sr.SetCollectiveTime(43) })
}

func TestPeerLists(t *testing.T) {
	topo := lineTopology(t)
	coll := CreateAllGather(3, mib, 1)
	sr := CreateSynthesisResult(topo, coll)

	assert.Equal(t, []int{0, 2}, sr.Npu(1).IngressPeers())
	assert.Equal(t, []int{0, 2}, sr.Npu(1).EgressPeers())
	assert.Equal(t, []int{1}, sr.Npu(0).IngressPeers())
}

func TestWriteCSV(t *testing.T) {
	topo := lineTopology(t)
	coll := CreateAllGather(3, mib, 1)
	sr := CreateSynthesisResult(topo, coll)
	delay := topo.LinkDelay(0, 1)

	sr.MarkLinkChunkMatch(0, 0, 1, delay, 0)

	filename := filepath.Join(t.TempDir(), "result.csv")
	require.Error(t, sr.WriteCSV(filename), "unfinalized result refuses to write")

	sr.SetCollectiveTime(delay)
	require.NoError(t, sr.WriteCSV(filename))

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "collective_time_ps,976562500", lines[0])
	assert.Equal(t, "npu,src,chunk,arrival_ps,start_ps", lines[1])
	assert.Equal(t, "1,0,0,976562500,0", lines[2])
}
