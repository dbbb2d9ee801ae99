package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/tracing"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/repository"
)

// DefaultStorageKey is the key the cart is persisted under.
const DefaultStorageKey = "cart"

// PersistError records a failed storage operation.
type PersistError struct {
	Op  string
	At  time.Time
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("cart %s failed: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// MirrorConfig configures a CartMirror.
type MirrorConfig struct {
	Key          string
	WriteTimeout time.Duration
}

// CartMirror keeps the durable copy of the cart in step with the store.
// OnChange never blocks on storage: snapshots are handed to a single writer
// goroutine and coalesced so that only the latest pending one is written.
type CartMirror struct {
	kv      repository.KVStore
	key     string
	timeout time.Duration
	logger  *slog.Logger

	mu         sync.Mutex
	pending    *domain.CartState
	pendingCtx context.Context
	enqueued   uint64
	applied    uint64
	appliedCh  chan struct{}
	lastErr    *PersistError
	closed     bool
	// keepStored is set when the startup read failed: the stored value is
	// unknown, so the first empty snapshot must not delete it.
	keepStored bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewCartMirror creates a mirror and starts its writer goroutine. Call Close
// to stop it.
func NewCartMirror(kv repository.KVStore, cfg MirrorConfig, log *slog.Logger) *CartMirror {
	if cfg.Key == "" {
		cfg.Key = DefaultStorageKey
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	m := &CartMirror{
		kv:        kv,
		key:       cfg.Key,
		timeout:   cfg.WriteTimeout,
		logger:    log,
		appliedCh: make(chan struct{}),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go m.run()
	return m
}

// Key returns the storage key.
func (m *CartMirror) Key() string { return m.key }

// Rehydrate reads the persisted cart. It reports false when nothing usable
// is stored. A corrupt value is deleted so the next start is clean.
func (m *CartMirror) Rehydrate(ctx context.Context) ([]domain.LineItem, bool) {
	ctx, span := tracing.StartSpan(ctx, "cart.rehydrate")
	defer span.End()
	log := logger.WithContext(ctx, m.logger)

	raw, err := m.kv.Get(ctx, m.key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.DebugContext(ctx, "no persisted cart", slog.String("key", m.key))
			return nil, false
		}
		m.fail(ctx, opRead, err)
		m.mu.Lock()
		m.keepStored = true
		m.mu.Unlock()
		return nil, false
	}

	items, err := domain.DecodeItems(raw)
	if err != nil {
		m.fail(ctx, opDecode, err)
		if derr := m.kv.Delete(ctx, m.key); derr != nil {
			m.fail(ctx, opDelete, derr)
		} else {
			log.WarnContext(ctx, "discarded corrupt persisted cart", slog.String("key", m.key))
		}
		return nil, false
	}
	return items, true
}

// OnChange queues state for persistence. It is meant to be registered with
// CartStore.Subscribe.
func (m *CartMirror) OnChange(ctx context.Context, state domain.CartState) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.logger.WarnContext(ctx, "cart change dropped, mirror closed")
		return
	}
	if m.keepStored {
		m.keepStored = false
		if state.IsEmpty() {
			m.mu.Unlock()
			m.logger.WarnContext(ctx, "persisted cart left in place, startup read failed", slog.String("key", m.key))
			return
		}
	}
	m.pending = &state
	m.pendingCtx = context.WithoutCancel(ctx)
	m.enqueued++
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *CartMirror) run() {
	defer close(m.done)
	for {
		select {
		case <-m.wake:
			m.drain()
		case <-m.stop:
			m.drain()
			return
		}
	}
}

// drain writes the latest pending snapshot, if any.
func (m *CartMirror) drain() {
	m.mu.Lock()
	snap, ctx, seq := m.pending, m.pendingCtx, m.enqueued
	m.pending, m.pendingCtx = nil, nil
	m.mu.Unlock()

	if snap != nil {
		m.apply(ctx, *snap)
	}

	m.mu.Lock()
	if seq > m.applied {
		m.applied = seq
	}
	close(m.appliedCh)
	m.appliedCh = make(chan struct{})
	m.mu.Unlock()
}

func (m *CartMirror) apply(ctx context.Context, state domain.CartState) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	op := opWrite
	if state.IsEmpty() {
		op = opDelete
	}
	ctx, span := tracing.StartSpan(ctx, "cart.persist."+op)
	start := time.Now()

	var err error
	if op == opDelete {
		err = m.kv.Delete(ctx, m.key)
	} else {
		var raw string
		raw, err = domain.EncodeItems(state.Items)
		if err == nil {
			err = m.kv.Set(ctx, m.key, raw)
		}
	}

	persistDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	tracing.EndSpan(span, err)

	if err != nil {
		m.fail(ctx, op, err)
		return
	}
	persistWritesTotal.WithLabelValues(op).Inc()

	m.mu.Lock()
	m.lastErr = nil
	m.mu.Unlock()
}

func (m *CartMirror) fail(ctx context.Context, op string, err error) {
	persistErrorsTotal.WithLabelValues(op).Inc()

	log := logger.WithContext(ctx, m.logger)
	attrs := []any{
		slog.String("op", op),
		slog.String("key", m.key),
		slog.String("error", err.Error()),
	}
	if op == opDecode {
		log.WarnContext(ctx, "persisted cart is corrupt", attrs...)
	} else {
		log.ErrorContext(ctx, "cart storage operation failed", attrs...)
	}

	m.mu.Lock()
	m.lastErr = &PersistError{Op: op, At: time.Now().UTC(), Err: err}
	m.mu.Unlock()
}

// LastError returns the most recent storage failure, or nil if the last
// operation succeeded.
func (m *CartMirror) LastError() *PersistError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Flush waits until every snapshot queued before the call has been written.
func (m *CartMirror) Flush(ctx context.Context) error {
	m.mu.Lock()
	target := m.enqueued
	for m.applied < target {
		ch := m.appliedCh
		m.mu.Unlock()
		select {
		case <-ch:
		case <-m.done:
			m.mu.Lock()
			flushed := m.applied >= target
			m.mu.Unlock()
			if !flushed {
				return errors.New("cart mirror stopped before flush completed")
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
		m.mu.Lock()
	}
	m.mu.Unlock()
	return nil
}

// Close flushes pending writes and stops the writer goroutine.
func (m *CartMirror) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stop)
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close cart mirror: %w", ctx.Err())
	}
}

// Raw returns the value currently stored, bypassing decoding.
func (m *CartMirror) Raw(ctx context.Context) (string, bool, error) {
	raw, err := m.kv.Get(ctx, m.key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read persisted cart: %w", err)
	}
	return raw, true, nil
}

// Discard deletes the stored value without touching in-memory state. The
// next committed change writes it again.
func (m *CartMirror) Discard(ctx context.Context) error {
	if err := m.kv.Delete(ctx, m.key); err != nil {
		m.fail(ctx, opDelete, err)
		return fmt.Errorf("discard persisted cart: %w", err)
	}
	logger.WithContext(ctx, m.logger).InfoContext(ctx, "persisted cart discarded", slog.String("key", m.key))
	return nil
}
