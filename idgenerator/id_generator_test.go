package idgenerator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdGenerator(t *testing.T) {
	t.Run("first id is start plus one", func(t *testing.T) {
		gen := NewIdGenerator(100)
		require.NotNil(t, gen)
		assert.Equal(t, uint32(100), gen.Last())
		assert.Equal(t, uint32(101), gen.Id())
		assert.Equal(t, uint32(101), gen.Last())
	})

	t.Run("wraps after max uint32", func(t *testing.T) {
		gen := NewIdGenerator(^uint32(0))
		assert.Equal(t, uint32(0), gen.Id())
	})

	t.Run("sequential ids are monotonic", func(t *testing.T) {
		gen := NewIdGenerator(0)
		for want := uint32(1); want <= 10; want++ {
			assert.Equal(t, want, gen.Id())
		}
	})
}

func TestIdGenerator_Concurrent(t *testing.T) {
	gen := NewIdGenerator(0)
	const goroutines, perG = 20, 100

	var mu sync.Mutex
	seen := make(map[uint32]struct{}, goroutines*perG)
	var wg sync.WaitGroup

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perG {
				id := gen.Id()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perG)
	assert.Equal(t, uint32(goroutines*perG), gen.Last())
}
