package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kvstore/internal/apperrors"
	"kvstore/internal/cache"
	"kvstore/internal/store"
)

// fakeBackend is an in-memory Backend double with hooks to inject
// failures and to count calls (for the stampede-coalescing test).
type fakeBackend struct {
	mu          sync.Mutex
	data        map[string][]byte
	upsertErr   error
	deleteErr   error
	selectErr   error
	selectCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[string][]byte)}
}

func (b *fakeBackend) Upsert(ctx context.Context, key string, value []byte) error {
	if b.upsertErr != nil {
		return b.upsertErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

func (b *fakeBackend) Select(ctx context.Context, key string) (store.ReadResult, error) {
	b.mu.Lock()
	b.selectCalls++
	b.mu.Unlock()

	if b.selectErr != nil {
		return store.ReadResult{}, b.selectErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	if !ok {
		return store.ReadResult{Found: false}, nil
	}
	return store.ReadResult{Value: v, Found: true}, nil
}

func (b *fakeBackend) Delete(ctx context.Context, key string) error {
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

func newTestCoordinator(backend Backend) *Coordinator {
	return New(cache.New(100), backend, zap.NewNop())
}

func TestWriteThenReadIsAHit(t *testing.T) {
	backend := newFakeBackend()
	c := newTestCoordinator(backend)

	require.NoError(t, c.Write(context.Background(), "a", []byte("1")))

	value, source, err := c.Read(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, source)
	assert.Equal(t, []byte("1"), value)
}

func TestReadMissThenFillPromotesToCacheHit(t *testing.T) {
	backend := newFakeBackend()
	backend.data["b"] = []byte("2")
	c := newTestCoordinator(backend)

	value, source, err := c.Read(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, SourceBackend, source)
	assert.Equal(t, []byte("2"), value)

	value, source, err = c.Read(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, source)
	assert.Equal(t, []byte("2"), value)
}

func TestReadOfAbsentKeyIsNotFound(t *testing.T) {
	backend := newFakeBackend()
	c := newTestCoordinator(backend)

	_, _, err := c.Read(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestWriteThroughFailureLeavesCacheUntouched(t *testing.T) {
	backend := newFakeBackend()
	backend.upsertErr = errors.New("backend down")
	c := newTestCoordinator(backend)

	err := c.Write(context.Background(), "x", []byte("v"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindBackendFailed))

	_, _, readErr := c.Read(context.Background(), "x")
	assert.True(t, apperrors.Is(readErr, apperrors.KindNotFound))
}

func TestDeletePropagatesToCache(t *testing.T) {
	backend := newFakeBackend()
	backend.data["y"] = []byte("9")
	c := newTestCoordinator(backend)

	_, _, err := c.Read(context.Background(), "y") // primes the cache
	require.NoError(t, err)

	require.NoError(t, c.Delete(context.Background(), "y"))

	_, _, err = c.Read(context.Background(), "y")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestDeleteThroughFailureLeavesCacheUntouched(t *testing.T) {
	backend := newFakeBackend()
	backend.data["z"] = []byte("1")
	c := newTestCoordinator(backend)

	_, _, err := c.Read(context.Background(), "z") // primes the cache
	require.NoError(t, err)

	backend.deleteErr = errors.New("backend down")
	err = c.Delete(context.Background(), "z")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindBackendFailed))

	value, source, err := c.Read(context.Background(), "z")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, source)
	assert.Equal(t, []byte("1"), value)
}

func TestConcurrentReadMissesOnSameKeyCoalesceToOneBackendCall(t *testing.T) {
	backend := newFakeBackend()
	backend.data["hot"] = []byte("v")
	c := newTestCoordinator(backend)

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			value, _, err := c.Read(context.Background(), "hot")
			assert.NoError(t, err)
			assert.Equal(t, []byte("v"), value)
		}()
	}
	wg.Wait()

	backend.mu.Lock()
	calls := backend.selectCalls
	backend.mu.Unlock()
	assert.Less(t, calls, workers, "singleflight should coalesce concurrent misses on the same key")
}

func TestSnapshotReflectsCacheState(t *testing.T) {
	backend := newFakeBackend()
	c := newTestCoordinator(backend)

	require.NoError(t, c.Write(context.Background(), "a", []byte("1")))
	snap := c.Snapshot()
	assert.Equal(t, 1, snap.Size)
	assert.Equal(t, 100, snap.MaxSize)
}
