package ccsynth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllGatherConditions(t *testing.T) {
	coll := CreateAllGather(3, mib, 1)

	assert.Equal(t, 3, coll.ChunksCount())
	assert.Equal(t, mib, coll.ChunkSize())

	pre := coll.Precondition()
	post := coll.Postcondition()
	for npu := 0; npu < 3; npu++ {
		require.Contains(t, pre, npu)
		assert.Contains(t, pre[npu], npu, "NPU starts with its own chunk")
		assert.Len(t, pre[npu], 1)

		require.Contains(t, post, npu)
		assert.Len(t, post[npu], 2)
		assert.NotContains(t, post[npu], npu, "own chunk is not a requirement")
	}
}

func TestAllGatherMultipleChunksPerNpu(t *testing.T) {
	coll := CreateAllGather(2, mib, 3)

	assert.Equal(t, 6, coll.ChunksCount())
	pre := coll.Precondition()
	assert.Len(t, pre[0], 3)
	assert.Contains(t, pre[1], 3)
	assert.Contains(t, pre[1], 5)

	post := coll.Postcondition()
	assert.Len(t, post[0], 3)
	assert.Contains(t, post[0], 4)
}

func TestConditionCopiesAreIndependent(t *testing.T) {
	coll := CreateAllGather(2, mib, 1)

	pre := coll.Precondition()
	pre[0][99] = 5
	assert.NotContains(t, coll.Precondition()[0], 99)

	post := coll.Postcondition()
	delete(post[0], 1)
	assert.Contains(t, coll.Postcondition()[0], 1)
}

func TestCollectiveAdd(t *testing.T) {
	coll := CreateCollective(3, mib)
	coll.Add(7, 0, 2)
	coll.Add(7, 0, 1)

	assert.Equal(t, 1, coll.ChunksCount())
	assert.Contains(t, coll.Precondition()[0], 7)
	assert.Contains(t, coll.Postcondition()[1], 7)
	assert.Contains(t, coll.Postcondition()[2], 7)

	// precondition availability time of an initial chunk is zero
	assert.Equal(t, Time(0), coll.Precondition()[0][7])

	require.Panics(t, func() { coll.Add(-1, 0, 1) })
	require.Panics(t, func() { coll.Add(0, 3, 1) })
	require.Panics(t, func() { CreateCollective(0, mib) })
	require.Panics(t, func() { CreateCollective(2, 0) })
}

func TestPostconditionOmitsSatisfiedNpus(t *testing.T) {
	coll := CreateCollective(3, mib)
	coll.Add(0, 0, 1)

	post := coll.Postcondition()
	assert.Contains(t, post, 1)
	assert.NotContains(t, post, 0, "nothing required at the source")
	assert.NotContains(t, post, 2)
}
