package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, items []int, n int) [][]int {
	t.Helper()

	batches, err := Chunks(FromSlice(items), n)
	require.NoError(t, err)

	var out [][]int
	for b := range batches {
		out = append(out, b)
	}
	return out
}

func TestChunks_ExactDivision(t *testing.T) {
	out := collect(t, []int{1, 2, 3, 4, 5, 6}, 3)

	require.Len(t, out, 2)
	assert.Equal(t, []int{1, 2, 3}, out[0])
	assert.Equal(t, []int{4, 5, 6}, out[1])
}

func TestChunks_Remainder(t *testing.T) {
	out := collect(t, []int{1, 2, 3, 4, 5, 6, 7}, 3)

	require.Len(t, out, 3)
	assert.Equal(t, []int{1, 2, 3}, out[0])
	assert.Equal(t, []int{4, 5, 6}, out[1])
	assert.Equal(t, []int{7}, out[2])
}

func TestChunks_BatchLargerThanInput(t *testing.T) {
	out := collect(t, []int{1, 2}, 10)

	require.Len(t, out, 1)
	assert.Equal(t, []int{1, 2}, out[0])
}

func TestChunks_EmptyInput(t *testing.T) {
	out := collect(t, nil, 3)
	assert.Empty(t, out)
}

func TestChunks_PreservesOrder(t *testing.T) {
	items := make([]int, 101)
	for i := range items {
		items[i] = i
	}

	var flat []int
	for _, b := range collect(t, items, 7) {
		flat = append(flat, b...)
	}
	assert.Equal(t, items, flat)
}

func TestChunks_InvalidSize(t *testing.T) {
	for _, n := range []int{0, -1} {
		_, err := Chunks(FromSlice([]int{1}), n)
		assert.Error(t, err)
	}
}

func TestChunks_LazyConsumption(t *testing.T) {
	// The source should only be pulled as far as the consumer reads.
	pulled := 0
	src := func(yield func(int) bool) {
		for i := 0; ; i++ {
			pulled++
			if !yield(i) {
				return
			}
		}
	}

	batches, err := Chunks(src, 5)
	require.NoError(t, err)

	for b := range batches {
		require.Len(t, b, 5)
		break
	}

	// One full batch plus at most one read-ahead element.
	assert.LessOrEqual(t, pulled, 6)
}

func TestChunks_EarlyStopDoesNotYieldPartial(t *testing.T) {
	batches, err := Chunks(FromSlice([]int{1, 2, 3, 4, 5}), 2)
	require.NoError(t, err)

	count := 0
	for range batches {
		count++
		if count == 1 {
			break
		}
	}
	assert.Equal(t, 1, count)
}
