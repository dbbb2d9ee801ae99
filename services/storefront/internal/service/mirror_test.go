package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/repository/memory"
)

// ---------------------------------------------------------------------------
// Rehydrate
// ---------------------------------------------------------------------------

func TestCartMirror_Rehydrate_Missing(t *testing.T) {
	m := newTestMirror(t, memory.NewKVStore())

	items, ok := m.Rehydrate(context.Background())
	assert.False(t, ok)
	assert.Nil(t, items)
	assert.Nil(t, m.LastError())
}

func TestCartMirror_Rehydrate_Valid(t *testing.T) {
	kv := memory.NewKVStore()
	require.NoError(t, kv.Set(context.Background(), "cart",
		`[{"id":2,"title":"B","price":5,"thumbnail":"y","quantity":3}]`))
	m := newTestMirror(t, kv)

	items, ok := m.Rehydrate(context.Background())
	require.True(t, ok)
	assert.Equal(t, []domain.LineItem{{ID: 2, Title: "B", Price: 5, Thumbnail: "y", Quantity: 3}}, items)
}

func TestCartMirror_Rehydrate_CorruptionDiscarded(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "not json"},
		{"object", "{}"},
		{"null", "null"},
		{"wrong field type", `[{"id":1,"title":"A","price":"ten","thumbnail":"x","quantity":1}]`},
		{"quantity zero", `[{"id":1,"title":"A","price":10,"thumbnail":"x","quantity":0}]`},
		{"missing field", `[{"id":1,"title":"A","price":10,"quantity":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := memory.NewKVStore()
			require.NoError(t, kv.Set(ctx, "cart", tt.raw))
			before := testutil.ToFloat64(persistErrorsTotal.WithLabelValues(opDecode))

			s, _ := newPersistentStore(t, kv)

			assert.True(t, s.Initialized())
			assert.True(t, s.State().IsEmpty())
			assert.Equal(t, 0, s.State().TotalItems)
			_, err := kv.Get(ctx, "cart")
			assert.ErrorIs(t, err, apperrors.ErrNotFound, "corrupt value must be deleted")
			assert.Equal(t, before+1, testutil.ToFloat64(persistErrorsTotal.WithLabelValues(opDecode)))
		})
	}
}

func TestCartMirror_Rehydrate_ReadFailure(t *testing.T) {
	kv := new(mockKVStore)
	kv.On("Get", mock.Anything, "cart").Return("", errors.New("connection refused"))
	m := newTestMirror(t, kv)

	items, ok := m.Rehydrate(context.Background())
	assert.False(t, ok)
	assert.Nil(t, items)
	kv.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)

	last := m.LastError()
	require.NotNil(t, last)
	assert.Equal(t, opRead, last.Op)
	assert.Contains(t, last.Error(), "connection refused")
}

func TestCartMirror_ReadFailureKeepsStoredCart(t *testing.T) {
	ctx := context.Background()
	kv := new(mockKVStore)
	kv.On("Get", mock.Anything, "cart").Return("", errors.New("connection refused")).Once()
	m := newTestMirror(t, kv)
	s := NewCartStore(m, newTestLogger())
	s.Subscribe(m.OnChange)

	s.Init(ctx)
	flush(t, m)

	assert.True(t, s.Initialized())
	assert.True(t, s.State().IsEmpty())
	kv.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)

	// Later changes are persisted as usual, an explicit clear included.
	kv.On("Set", mock.Anything, "cart", mock.Anything).Return(nil).Once()
	kv.On("Delete", mock.Anything, "cart").Return(nil).Once()
	s.AddItem(ctx, itemA())
	flush(t, m)
	s.ClearCart(ctx)
	flush(t, m)
	kv.AssertExpectations(t)
}

func TestCartMirror_Rehydrate_CorruptAndDeleteFails(t *testing.T) {
	kv := new(mockKVStore)
	kv.On("Get", mock.Anything, "cart").Return("{}", nil)
	kv.On("Delete", mock.Anything, "cart").Return(errors.New("read-only replica"))
	m := newTestMirror(t, kv)

	_, ok := m.Rehydrate(context.Background())
	assert.False(t, ok)
	require.NotNil(t, m.LastError())
	assert.Equal(t, opDelete, m.LastError().Op)
	kv.AssertExpectations(t)
}

// ---------------------------------------------------------------------------
// OnChange / writer
// ---------------------------------------------------------------------------

func TestCartMirror_WritesLatestSnapshot(t *testing.T) {
	kv := memory.NewKVStore()
	ctx := context.Background()
	s, m := newPersistentStore(t, kv)

	s.AddItem(ctx, itemA())
	s.AddItem(ctx, itemB())
	s.SetQuantity(ctx, 2, 4)
	flush(t, m)

	raw, err := kv.Get(ctx, "cart")
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"id":1,"title":"A","price":10,"thumbnail":"x","quantity":1},
		{"id":2,"title":"B","price":5,"thumbnail":"y","quantity":4}
	]`, raw)
}

func TestCartMirror_ClearAfterNonEmptyRemovesKey(t *testing.T) {
	kv := memory.NewKVStore()
	ctx := context.Background()
	s, m := newPersistentStore(t, kv)

	s.AddItem(ctx, itemA())
	flush(t, m)
	s.ClearCart(ctx)
	flush(t, m)

	_, err := kv.Get(ctx, "cart")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	raw, ok, err := m.Raw(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, raw)
}

func TestCartMirror_SlowStorageNeverBlocksCommands(t *testing.T) {
	kv := newBlockingKVStore()
	m := newTestMirror(t, kv)
	s := NewCartStore(m, newTestLogger())
	s.Subscribe(m.OnChange)
	ctx := context.Background()
	s.Init(ctx)

	done := make(chan domain.CartState)
	go func() {
		for i := 0; i < 20; i++ {
			s.AddItem(ctx, itemA())
		}
		done <- s.AddItem(ctx, itemB())
	}()

	var final domain.CartState
	select {
	case final = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("commands blocked on storage")
	}

	close(kv.release)
	flush(t, m)

	kv.mu.Lock()
	writes := append([]string(nil), kv.writes...)
	kv.mu.Unlock()

	require.NotEmpty(t, writes)
	assert.Less(t, len(writes), 22, "snapshots must coalesce")

	items, err := domain.DecodeItems(writes[len(writes)-1])
	require.NoError(t, err)
	assert.Equal(t, final.Items, items, "the last write is the latest state")
}

func TestCartMirror_WriteFailureKeepsState(t *testing.T) {
	kv := new(mockKVStore)
	kv.On("Get", mock.Anything, "cart").Return("", apperrors.NotFound("key", "cart"))
	kv.On("Set", mock.Anything, "cart", mock.Anything).Return(errors.New("quota exceeded"))
	kv.On("Delete", mock.Anything, "cart").Return(nil)
	m := newTestMirror(t, kv)
	s := NewCartStore(m, newTestLogger())
	s.Subscribe(m.OnChange)
	ctx := context.Background()
	s.Init(ctx)
	flush(t, m)

	before := testutil.ToFloat64(persistErrorsTotal.WithLabelValues(opWrite))
	st := s.AddItem(ctx, itemA())
	flush(t, m)

	assert.Len(t, st.Items, 1)
	assert.Len(t, s.State().Items, 1, "in-memory state is not rolled back")
	last := m.LastError()
	require.NotNil(t, last)
	assert.Equal(t, opWrite, last.Op)
	assert.Contains(t, last.Error(), "quota exceeded")
	assert.Equal(t, before+1, testutil.ToFloat64(persistErrorsTotal.WithLabelValues(opWrite)))
}

func TestCartMirror_SuccessClearsLastError(t *testing.T) {
	kv := new(mockKVStore)
	m := newTestMirror(t, kv)
	ctx := context.Background()

	kv.On("Set", mock.Anything, "cart", mock.Anything).Return(errors.New("timeout")).Once()
	m.OnChange(ctx, domain.EmptyCart().AddItem(itemA()))
	flush(t, m)
	require.NotNil(t, m.LastError())

	kv.On("Set", mock.Anything, "cart", mock.Anything).Return(nil).Once()
	m.OnChange(ctx, domain.EmptyCart().AddItem(itemB()))
	flush(t, m)
	assert.Nil(t, m.LastError())
	kv.AssertExpectations(t)
}

// ---------------------------------------------------------------------------
// Flush / Close / Discard
// ---------------------------------------------------------------------------

func TestCartMirror_FlushHonoursContext(t *testing.T) {
	kv := newBlockingKVStore()
	m := NewCartMirror(kv, MirrorConfig{}, newTestLogger())
	t.Cleanup(func() {
		close(kv.release)
		_ = m.Close(context.Background())
	})

	m.OnChange(context.Background(), domain.EmptyCart().AddItem(itemA()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Flush(ctx), context.DeadlineExceeded)
	assert.Equal(t, DefaultStorageKey, m.Key())
}

func TestCartMirror_CloseFlushesAndDropsLaterChanges(t *testing.T) {
	kv := memory.NewKVStore()
	m := NewCartMirror(kv, MirrorConfig{Key: "cart"}, newTestLogger())
	ctx := context.Background()

	m.OnChange(ctx, domain.EmptyCart().AddItem(itemA()))
	require.NoError(t, m.Close(ctx))
	require.NoError(t, m.Close(ctx), "close is idempotent")

	_, err := kv.Get(ctx, "cart")
	require.NoError(t, err, "pending snapshot written on close")

	m.OnChange(ctx, domain.EmptyCart())
	assert.NoError(t, m.Flush(ctx))
	_, err = kv.Get(ctx, "cart")
	assert.NoError(t, err, "changes after close are dropped")
}

func TestCartMirror_DiscardLeavesState(t *testing.T) {
	kv := memory.NewKVStore()
	ctx := context.Background()
	s, m := newPersistentStore(t, kv)

	s.AddItem(ctx, itemA())
	flush(t, m)
	raw, ok, err := m.Raw(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"id":1`)

	require.NoError(t, m.Discard(ctx))
	_, ok, err = m.Raw(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, s.State().Items, 1)

	s.AddItem(ctx, itemA())
	flush(t, m)
	_, ok, _ = m.Raw(ctx)
	assert.True(t, ok, "next change writes the key again")
}

func TestCartMirror_RawReadError(t *testing.T) {
	kv := new(mockKVStore)
	kv.On("Get", mock.Anything, "cart").Return("", errors.New("boom"))
	m := newTestMirror(t, kv)

	_, _, err := m.Raw(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
