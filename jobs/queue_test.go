package jobs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	var q Queue[int]
	assert.True(t, q.Empty())
	_, ok := q.TryDequeue()
	assert.False(t, ok)
	for i := 0; i < 5; i++ {
		q.Enqueue(i)
	}
	assert.Equal(t, 5, q.Len())
	for i := 0; i < 5; i++ {
		v, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.True(t, q.Empty())
	q.Enqueue(7)
	v, ok := q.Dequeue()
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	_, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestQueueTryDequeueContended(t *testing.T) {
	var q Queue[string]
	q.Enqueue("job")
	q.mu.Lock()
	_, ok := q.TryDequeue()
	assert.False(t, ok, "must not block while lock is held")
	assert.False(t, q.Empty())
	q.mu.Unlock()
	v, ok := q.TryDequeue()
	assert.True(t, ok)
	assert.Equal(t, "job", v)
}

func TestQueueConcurrent(t *testing.T) {
	const producers, perProducer = 4, 250
	var q Queue[int]
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(i)
			}
		}()
	}
	wg.Wait()
	seen := 0
	for !q.Empty() {
		if _, ok := q.TryDequeue(); ok {
			seen++
		}
	}
	assert.Equal(t, producers*perProducer, seen)
}
