package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEach(t *testing.T) {
	var seen [100]int32
	var running, peak int32
	ForEach(len(seen), 4, func(i int) {
		cur := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
				break
			}
		}
		atomic.AddInt32(&seen[i], 1)
		atomic.AddInt32(&running, -1)
	})
	for i, n := range seen {
		assert.EqualValues(t, 1, n, "index %d", i)
	}
	assert.LessOrEqual(t, peak, int32(4))
}

func TestForEachNoWork(t *testing.T) {
	called := false
	ForEach(0, 0, func(int) { called = true })
	assert.False(t, called)
}

func TestChunks(t *testing.T) {
	chunks := Chunks(10, 3)
	require.Equal(t, [][2]int{{0, 4}, {4, 7}, {7, 10}}, chunks)

	require.Equal(t, [][2]int{{0, 1}, {1, 2}}, Chunks(2, 8))
	require.Nil(t, Chunks(0, 4))
	require.Equal(t, [][2]int{{0, 5}}, Chunks(5, 0))
}
