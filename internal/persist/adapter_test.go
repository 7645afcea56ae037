package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendlyapp/selfcheckout/internal/cache"
	"github.com/vendlyapp/selfcheckout/internal/domain"
	"github.com/vendlyapp/selfcheckout/internal/repository"
)

type mockRepository struct {
	m    sync.RWMutex
	docs map[string]repository.RegistryDocument
	err  error
	gets int
}

func newMockRepository() *mockRepository {
	return &mockRepository{docs: make(map[string]repository.RegistryDocument)}
}

func (m *mockRepository) GetRegistry(_ context.Context, sessionID string) (*repository.RegistryDocument, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	doc, ok := m.docs[sessionID]
	if !ok {
		return nil, repository.ErrRegistryNotFound
	}
	return &doc, nil
}

func (m *mockRepository) SaveRegistry(_ context.Context, doc *repository.RegistryDocument) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.docs[doc.SessionID] = *doc
	return nil
}

func (m *mockRepository) DeleteRegistry(_ context.Context, sessionID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.docs, sessionID)
	return nil
}

func (m *mockRepository) getCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.gets
}

func setupAdapter(t *testing.T) (*Adapter, *mockRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := newMockRepository()
	return NewAdapter(repo, cache.NewRedisCache(client), nil), repo, mr
}

func TestLoad_UnknownSessionIsEmpty(t *testing.T) {
	a, _, _ := setupAdapter(t)

	reg, err := a.Load(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, "", reg.ActiveStoreID)
	assert.Empty(t, reg.Carts)
}

func TestSaveThenLoad(t *testing.T) {
	a, repo, _ := setupAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "s1", populatedRegistry()))

	doc := repo.docs["s1"]
	assert.Equal(t, SchemaVersion, doc.Version)

	reg, err := a.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "store-b", reg.ActiveStoreID)
	assert.Len(t, reg.Carts, 2)
	assert.Equal(t, 3, reg.Carts["store-a"].Lines[0].Quantity)
}

func TestLoad_PopulatesCache(t *testing.T) {
	a, repo, mr := setupAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.Save(ctx, "s1", populatedRegistry()))
	mr.Del("cart-registry:s1")

	_, err := a.Load(ctx, "s1")
	require.NoError(t, err)

	assert.True(t, mr.Exists("cart-registry:s1"))

	reg, err := a.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "store-b", reg.ActiveStoreID)
	assert.Equal(t, 1, repo.getCount())
}

func TestSave_WritesThroughCache(t *testing.T) {
	a, repo, mr := setupAdapter(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("cart-registry:s1", `{"version":1,"activeStoreId":"old","carts":{}}`))

	require.NoError(t, a.Save(ctx, "s1", populatedRegistry()))

	cached, err := mr.Get("cart-registry:s1")
	require.NoError(t, err)
	assert.Equal(t, repo.docs["s1"].Payload, cached)

	reg, err := a.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "store-b", reg.ActiveStoreID)
	assert.Equal(t, 0, repo.getCount())
}

// slowCache stores payloads only after a delay, like a cache write stuck on the network.
type slowCache struct {
	mu     sync.Mutex
	delay  time.Duration
	data   map[string][]byte
	setErr error
}

func newSlowCache(delay time.Duration) *slowCache {
	return &slowCache{delay: delay, data: make(map[string][]byte)}
}

func (c *slowCache) Get(_ context.Context, sessionID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[sessionID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return data, nil
}

func (c *slowCache) Set(_ context.Context, sessionID string, payload []byte) error {
	time.Sleep(c.delay)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.data[sessionID] = payload
	return nil
}

func (c *slowCache) Delete(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, sessionID)
	return nil
}

func TestLoadThenSave_SlowCacheNeverServesOlderRegistry(t *testing.T) {
	repo := newMockRepository()
	c := newSlowCache(50 * time.Millisecond)
	a := NewAdapter(repo, c, nil)
	ctx := context.Background()

	old := domain.NewRegistry()
	old.ActiveStoreID = "store-a"
	require.NoError(t, a.Save(ctx, "s1", old))
	delete(c.data, "s1")

	_, err := a.Load(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, "s1", populatedRegistry()))

	// give any late cache write time to land
	time.Sleep(150 * time.Millisecond)

	reg, err := a.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "store-b", reg.ActiveStoreID)
}

func TestSave_FailedCacheWriteDropsCachedCopy(t *testing.T) {
	repo := newMockRepository()
	c := newSlowCache(0)
	c.data["s1"] = []byte(`{"version":1,"activeStoreId":"old","carts":{}}`)
	c.setErr = errors.New("redis down")
	a := NewAdapter(repo, c, nil)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "s1", populatedRegistry()))

	_, err := c.Get(ctx, "s1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestLoad_CorruptStoredPayloadFailsOverToEmpty(t *testing.T) {
	a, repo, _ := setupAdapter(t)
	repo.docs["s1"] = repository.RegistryDocument{SessionID: "s1", Version: 1, Payload: "{garbage"}

	reg, err := a.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, reg.Carts)
}

func TestLoad_IncompatibleVersionFailsOverToEmpty(t *testing.T) {
	a, repo, _ := setupAdapter(t)
	repo.docs["s1"] = repository.RegistryDocument{SessionID: "s1", Version: 7, Payload: `{"version":7,"activeStoreId":"x","carts":{}}`}

	reg, err := a.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "", reg.ActiveStoreID)
}

func TestLoad_CorruptCacheFallsBackToRepository(t *testing.T) {
	a, _, mr := setupAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.Save(ctx, "s1", populatedRegistry()))
	require.NoError(t, mr.Set("cart-registry:s1", "nope"))

	reg, err := a.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "store-b", reg.ActiveStoreID)
}

func TestLoad_RepositoryError(t *testing.T) {
	a, repo, _ := setupAdapter(t)
	repo.err = errors.New("mongo down")

	_, err := a.Load(context.Background(), "s1")
	assert.ErrorContains(t, err, "mongo down")
}

func TestSave_RepositoryError(t *testing.T) {
	a, repo, _ := setupAdapter(t)
	repo.err = errors.New("mongo down")

	err := a.Save(context.Background(), "s1", populatedRegistry())
	assert.ErrorContains(t, err, "save cart registry")
}

func TestLoad_WithoutCache(t *testing.T) {
	repo := newMockRepository()
	a := NewAdapter(repo, nil, nil)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "s1", populatedRegistry()))

	reg, err := a.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "store-b", reg.ActiveStoreID)
}
