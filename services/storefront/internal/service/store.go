package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
)

// Command names, used in logs and metrics.
const (
	CmdAddItem     = "add_item"
	CmdRemoveItem  = "remove_item"
	CmdSetQuantity = "set_quantity"
	CmdClearCart   = "clear_cart"
	CmdLoadCart    = "load_cart"
)

// Listener is notified after every committed transition once the store is
// initialized. It is called with the dispatch lock held, so it must return
// quickly and must not call back into the store.
type Listener func(ctx context.Context, state domain.CartState)

// Rehydrator reads the previously persisted cart.
type Rehydrator interface {
	Rehydrate(ctx context.Context) ([]domain.LineItem, bool)
}

// CartStore owns the session's cart. Commands are serialised: each one runs
// to completion before the next starts, and listeners observe commits in
// order.
type CartStore struct {
	mu          sync.RWMutex
	state       domain.CartState
	version     int64
	initialized bool
	listeners   []Listener

	initOnce   sync.Once
	rehydrator Rehydrator
	logger     *slog.Logger
}

// NewCartStore creates an empty, uninitialized store. rehydrator may be nil,
// in which case Init starts from an empty cart.
func NewCartStore(rehydrator Rehydrator, logger *slog.Logger) *CartStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartStore{
		state:      domain.EmptyCart(),
		rehydrator: rehydrator,
		logger:     logger,
	}
}

// Subscribe registers an onChange listener.
func (s *CartStore) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Init rehydrates the cart from storage, marks the store initialized and
// notifies listeners once with the settled state. Only the first call has
// any effect.
func (s *CartStore) Init(ctx context.Context) {
	s.initOnce.Do(func() {
		var (
			items []domain.LineItem
			ok    bool
		)
		if s.rehydrator != nil {
			items, ok = s.rehydrator.Rehydrate(ctx)
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if ok {
			s.commit(CmdLoadCart, domain.LoadCart(items))
		}
		s.initialized = true
		s.notify(ctx)

		logger.WithContext(ctx, s.logger).InfoContext(ctx, "cart store initialized",
			slog.Bool("rehydrated", ok),
			slog.Int("lines", len(s.state.Items)),
			slog.Int("total_items", s.state.TotalItems),
		)
	})
}

// Initialized reports whether Init has completed.
func (s *CartStore) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// State returns a copy of the current cart.
func (s *CartStore) State() domain.CartState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Version returns the number of committed transitions.
func (s *CartStore) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// AddItem adds one unit of the product.
func (s *CartStore) AddItem(ctx context.Context, ref domain.ProductRef) domain.CartState {
	return s.dispatch(ctx, CmdAddItem, func(st domain.CartState) domain.CartState {
		return st.AddItem(ref)
	})
}

// RemoveItem deletes the line for id if present. The removed line is
// returned, or nil when id was not in the cart.
func (s *CartStore) RemoveItem(ctx context.Context, id int) (domain.CartState, *domain.LineItem) {
	return s.dispatchRemoval(ctx, CmdRemoveItem, id, func(st domain.CartState) domain.CartState {
		return st.RemoveItem(id)
	})
}

// SetQuantity sets the quantity for id. Zero or less removes the line, which
// is then returned; otherwise the returned line is nil.
func (s *CartStore) SetQuantity(ctx context.Context, id, quantity int) (domain.CartState, *domain.LineItem) {
	return s.dispatchRemoval(ctx, CmdSetQuantity, id, func(st domain.CartState) domain.CartState {
		return st.SetQuantity(id, quantity)
	})
}

// ClearCart empties the cart.
func (s *CartStore) ClearCart(ctx context.Context) domain.CartState {
	return s.dispatch(ctx, CmdClearCart, func(domain.CartState) domain.CartState {
		return domain.EmptyCart()
	})
}

// LoadCart replaces the cart wholesale.
func (s *CartStore) LoadCart(ctx context.Context, items []domain.LineItem) domain.CartState {
	return s.dispatch(ctx, CmdLoadCart, func(domain.CartState) domain.CartState {
		return domain.LoadCart(items)
	})
}

func (s *CartStore) dispatch(ctx context.Context, cmd string, transition func(domain.CartState) domain.CartState) domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(ctx, cmd, transition)
}

// dispatchRemoval runs transition and reports the line for id if the
// transition dropped it. Both happen under one lock.
func (s *CartStore) dispatchRemoval(ctx context.Context, cmd string, id int, transition func(domain.CartState) domain.CartState) (domain.CartState, *domain.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, existed := s.state.Find(id)
	next := s.apply(ctx, cmd, transition)
	if _, still := next.Find(id); existed && !still {
		return next, &before
	}
	return next, nil
}

// apply must be called with mu held.
func (s *CartStore) apply(ctx context.Context, cmd string, transition func(domain.CartState) domain.CartState) domain.CartState {
	s.commit(cmd, transition(s.state))
	if s.initialized {
		s.notify(ctx)
	}

	logger.WithContext(ctx, s.logger).DebugContext(ctx, "cart command committed",
		slog.String("command", cmd),
		slog.Int64("version", s.version),
		slog.Int("total_items", s.state.TotalItems),
	)
	return s.state.Clone()
}

// commit must be called with mu held.
func (s *CartStore) commit(cmd string, next domain.CartState) {
	s.state = next
	s.version++

	cartCommandsTotal.WithLabelValues(cmd).Inc()
	cartItemsGauge.Set(float64(next.TotalItems))
	cartTotalPriceGauge.Set(next.TotalPrice)
}

// notify must be called with mu held.
func (s *CartStore) notify(ctx context.Context) {
	for _, l := range s.listeners {
		l(ctx, s.state.Clone())
	}
}
