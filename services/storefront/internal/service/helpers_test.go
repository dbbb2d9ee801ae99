package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/repository"
	"github.com/utafrali/storefront/services/storefront/internal/repository/memory"
)

// --- Mock KV store ---

type mockKVStore struct {
	mock.Mock
}

func (m *mockKVStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockKVStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *mockKVStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// blockingKVStore wraps a memory store and holds every write until release
// is closed.
type blockingKVStore struct {
	*memory.KVStore
	release chan struct{}

	mu     sync.Mutex
	writes []string
}

func newBlockingKVStore() *blockingKVStore {
	return &blockingKVStore{KVStore: memory.NewKVStore(), release: make(chan struct{})}
}

func (b *blockingKVStore) Set(ctx context.Context, key, value string) error {
	<-b.release
	b.mu.Lock()
	b.writes = append(b.writes, value)
	b.mu.Unlock()
	return b.KVStore.Set(ctx, key, value)
}

func (b *blockingKVStore) Delete(ctx context.Context, key string) error {
	<-b.release
	b.mu.Lock()
	b.writes = append(b.writes, "<delete>")
	b.mu.Unlock()
	return b.KVStore.Delete(ctx, key)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMirror(t *testing.T, kv repository.KVStore) *CartMirror {
	t.Helper()
	m := NewCartMirror(kv, MirrorConfig{Key: "cart", WriteTimeout: time.Second}, newTestLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m
}

// newPersistentStore wires a store to a mirror over kv and initializes it,
// the way the application does at startup.
func newPersistentStore(t *testing.T, kv *memory.KVStore) (*CartStore, *CartMirror) {
	t.Helper()
	m := newTestMirror(t, kv)
	s := NewCartStore(m, newTestLogger())
	s.Subscribe(m.OnChange)
	s.Init(context.Background())
	return s, m
}

func flush(t *testing.T, m *CartMirror) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Flush(ctx))
}

func itemA() domain.ProductRef {
	return domain.ProductRef{ID: 1, Title: "A", Price: 10, Thumbnail: "x"}
}

func itemB() domain.ProductRef {
	return domain.ProductRef{ID: 2, Title: "B", Price: 5, Thumbnail: "y"}
}
