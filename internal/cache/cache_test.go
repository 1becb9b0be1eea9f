package cache

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := New(10)
	c.Put("a", []byte("1"))
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)
}

func TestPutReplaceKeepsIdentity(t *testing.T) {
	c := New(10)
	c.Put("a", []byte("1"))
	c.Put("a", []byte("2"))
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("2"), v)
	assert.Equal(t, 1, c.Len())
}

func TestRemoveThenGetIsAbsent(t *testing.T) {
	c := New(10)
	c.Put("a", []byte("1"))
	c.Remove("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestRemoveMissingIsNoop(t *testing.T) {
	c := New(10)
	c.Remove("missing")
	c.Remove("missing")
	assert.Equal(t, 0, c.Len())
}

func TestZeroCapacityNeverStores(t *testing.T) {
	c := New(0)
	c.Put("a", []byte("1"))
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Snapshot().Size)
}

func TestEviction(t *testing.T) {
	c := New(2)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	c.Put("c", []byte("3"))

	_, ok := c.Get("a")
	assert.False(t, ok, "a should have been evicted as the coldest entry")

	snap := c.Snapshot()
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, Key("c"), snap.Entries[0].Key)
	assert.Equal(t, Key("b"), snap.Entries[1].Key)
}

func TestPromotionOnGetProtectsFromEviction(t *testing.T) {
	c := New(2)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	_, _ = c.Get("a") // promote a to MRU
	c.Put("c", []byte("3"))

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted, not a")

	snap := c.Snapshot()
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, Key("c"), snap.Entries[0].Key)
	assert.Equal(t, Key("a"), snap.Entries[1].Key)
}

func TestMaxSizeOneKeepsOnlyMostRecent(t *testing.T) {
	c := New(1)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))

	snap := c.Snapshot()
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, Key("b"), snap.Entries[0].Key)
}

func TestCapacityEqualToInsertionsHasNoEvictions(t *testing.T) {
	c := New(3)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	c.Put("c", []byte("3"))

	snap := c.Snapshot()
	require.Len(t, snap.Entries, 3)
	assert.Equal(t, Key("c"), snap.Entries[0].Key)
	assert.Equal(t, Key("b"), snap.Entries[1].Key)
	assert.Equal(t, Key("a"), snap.Entries[2].Key)
}

func TestRepeatedGetDoesNotGrowCache(t *testing.T) {
	c := New(2)
	c.Put("a", []byte("1"))
	for i := 0; i < 5; i++ {
		_, _ = c.Get("a")
	}
	assert.Equal(t, 1, c.Len())
	snap := c.Snapshot()
	assert.Equal(t, Key("a"), snap.Entries[0].Key)
}

func TestPutOfMRUKeyStillReplacesValue(t *testing.T) {
	c := New(2)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	c.Put("b", []byte("2b")) // b is already MRU; value must still be replaced
	v, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, []byte("2b"), v)
}

func TestSnapshotIsAPureObservation(t *testing.T) {
	c := New(3)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))

	first := c.Snapshot()
	for i := 0; i < 3; i++ {
		_ = c.Snapshot()
	}
	second := c.Snapshot()

	assert.Equal(t, first, second)
}

func TestConcurrentAccessPreservesCapacityInvariant(t *testing.T) {
	c := New(50)
	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := strconv.Itoa(worker*200 + i)
				c.Put(key, []byte(key))
				c.Get(key)
				if i%7 == 0 {
					c.Remove(key)
				}
				if c.Len() > 50 {
					t.Errorf("cache exceeded max size: %d", c.Len())
				}
			}
		}(w)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}
