// Package cart implements a session-scoped shopping cart: an ordered mapping
// of line-item identifier to quantity and unit price, persisted to a session
// store on every mutation and fanned out to subscribed listeners.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/session-cart/internal/checkout"
	"github.com/noah-isme/session-cart/internal/obs"
	"github.com/noah-isme/session-cart/internal/session"
)

// ErrInvalidItemID is returned when a mutation is attempted without an item
// identifier. It is the only failure the mutating surface reports to callers.
var ErrInvalidItemID = errors.New("item id is required")

// DefaultStorageKey is the session key the cart state is stored under when no
// key is configured.
const DefaultStorageKey = "cart_items"

// LineItem holds the quantity and unit price tracked for one identifier.
type LineItem struct {
	Quantity  int
	UnitPrice float64
}

// Item is a line item together with its identifier, in cart order.
type Item struct {
	ID        string  `json:"id"`
	Quantity  int     `json:"qty"`
	UnitPrice float64 `json:"unitPrice"`
}

// Options configures a Store.
type Options struct {
	// Sessions persists the cart state. A nil store keeps the cart in memory
	// only; mutations still succeed.
	Sessions session.Store
	// Key is the session key for the serialized state. Defaults to
	// DefaultStorageKey.
	Key string
	// CheckoutBaseURL is the external commerce platform's cart endpoint.
	CheckoutBaseURL string
	Logger          zerolog.Logger
}

// Store is a session-scoped cart. State is loaded once at construction and
// written back in full, under the mutex and so in mutation order, after every
// mutation. Storage failures degrade: a failed load yields an empty cart, a
// failed save keeps the in-memory mutation and still notifies listeners.
type Store struct {
	mu        sync.Mutex
	items     map[string]LineItem
	order     []string
	listeners []Listener

	// notification queue; mutations performed by a listener mid-fan-out are
	// applied immediately but their own fan-out waits until the current one
	// drains, keeping deliveries ordered and the recursion bounded.
	notifying bool
	queue     []Snapshot

	sessions session.Store
	key      string
	base     string
	log      zerolog.Logger
}

// New constructs a Store and loads any state persisted for the session.
func New(ctx context.Context, opts Options) *Store {
	key := strings.TrimSpace(opts.Key)
	if key == "" {
		key = DefaultStorageKey
	}
	s := &Store{
		items:    make(map[string]LineItem),
		sessions: opts.Sessions,
		key:      key,
		base:     opts.CheckoutBaseURL,
		log:      opts.Logger,
	}
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	if s.sessions == nil {
		return
	}
	data, ok, err := s.sessions.Get(ctx, s.key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("load cart state, starting empty")
		obs.CountCartStorageFailure("load")
		return
	}
	if !ok {
		return
	}
	items, order, err := decodeItems(data)
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("corrupt cart state, starting empty")
		obs.CountCartStorageFailure("decode")
		return
	}
	s.items = items
	s.order = order
}

// AddItem creates the entry when missing and increments its quantity by one.
// A positive price overwrites the stored unit price; zero keeps it. Returns
// the new quantity.
func (s *Store) AddItem(ctx context.Context, id string, price float64) (int, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, fmt.Errorf("add item: %w", ErrInvalidItemID)
	}
	s.mu.Lock()
	li, ok := s.items[id]
	if !ok {
		s.order = append(s.order, id)
	}
	li.Quantity++
	if price > 0 {
		li.UnitPrice = price
	}
	s.items[id] = li
	qty := li.Quantity
	snap := s.snapshotLocked()
	s.persistLocked(ctx, snap.Items)
	s.mu.Unlock()

	obs.CountCartMutation("add")
	s.publish(snap)
	return qty, nil
}

// RemoveItem decrements the quantity by one, deleting the entry when it
// reaches zero. Removing an unknown identifier is a no-op returning zero with
// no save and no notification.
func (s *Store) RemoveItem(ctx context.Context, id string) int {
	s.mu.Lock()
	li, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return 0
	}
	li.Quantity--
	qty := li.Quantity
	if qty <= 0 {
		qty = 0
		delete(s.items, id)
		for i, existing := range s.order {
			if existing == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	} else {
		s.items[id] = li
	}
	snap := s.snapshotLocked()
	s.persistLocked(ctx, snap.Items)
	s.mu.Unlock()

	obs.CountCartMutation("remove")
	s.publish(snap)
	return qty
}

// Clear resets the cart to empty and removes the persisted session state, the
// stored form of an empty cart.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.items = make(map[string]LineItem)
	s.order = nil
	snap := s.snapshotLocked()
	if s.sessions != nil {
		if err := s.sessions.Delete(ctx, s.key); err != nil {
			s.log.Error().Err(err).Str("key", s.key).Msg("clear cart state")
			obs.CountCartStorageFailure("clear")
		}
	}
	s.mu.Unlock()

	obs.CountCartMutation("clear")
	s.publish(snap)
}

// ItemQuantity returns the stored quantity, or zero when absent.
func (s *Store) ItemQuantity(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id].Quantity
}

// TotalQuantity sums all line-item quantities.
func (s *Store) TotalQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, li := range s.items {
		total += li.Quantity
	}
	return total
}

// TotalPrice sums quantity times unit price over all entries.
func (s *Store) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0.0
	for _, li := range s.items {
		total += float64(li.Quantity) * li.UnitPrice
	}
	return total
}

// Items returns an independent copy of the cart contents in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsLocked()
}

// IsEmpty reports whether the cart has no entries.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
}

// CheckoutURL returns the redirect target for the external checkout: the bare
// base URL for an empty cart, otherwise base/id1:q1,id2:q2 in cart order.
func (s *Store) CheckoutURL() string {
	items := s.Items()
	lines := make([]checkout.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, checkout.Line{ID: it.ID, Qty: it.Quantity})
	}
	return checkout.URL(s.base, lines)
}

// Subscribe registers a listener for mutation snapshots. Nil listeners are
// ignored.
func (s *Store) Subscribe(l Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Unsubscribe removes a previously subscribed listener. Unknown listeners are
// ignored.
func (s *Store) Unsubscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.listeners {
		if sameListener(existing, l) {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *Store) itemsLocked() []Item {
	items := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		li := s.items[id]
		items = append(items, Item{ID: id, Quantity: li.Quantity, UnitPrice: li.UnitPrice})
	}
	return items
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Items: s.itemsLocked()}
	for _, li := range s.items {
		snap.TotalQuantity += li.Quantity
		snap.TotalPrice += float64(li.Quantity) * li.UnitPrice
	}
	return snap
}

// persistLocked writes the serialized state to the session backend. The
// caller holds s.mu, which keeps concurrent mutations reaching the backend in
// mutation order; a stale snapshot can never overwrite a newer one.
func (s *Store) persistLocked(ctx context.Context, items []Item) {
	if s.sessions == nil {
		return
	}
	data, err := encodeItems(items)
	if err != nil {
		s.log.Error().Err(err).Str("key", s.key).Msg("encode cart state")
		obs.CountCartStorageFailure("encode")
		return
	}
	if err := s.sessions.Set(ctx, s.key, data); err != nil {
		s.log.Error().Err(err).Str("key", s.key).Msg("persist cart state")
		obs.CountCartStorageFailure("save")
	}
}

func (s *Store) publish(snap Snapshot) {
	s.mu.Lock()
	s.queue = append(s.queue, snap)
	if s.notifying {
		s.mu.Unlock()
		return
	}
	s.notifying = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		listeners := append([]Listener(nil), s.listeners...)
		s.mu.Unlock()
		for _, l := range listeners {
			s.dispatch(l, next)
		}
		s.mu.Lock()
	}
	s.notifying = false
	s.mu.Unlock()
}

func (s *Store) dispatch(l Listener, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("cart listener panicked")
			obs.CountCartListenerFailure()
		}
	}()
	l.CartChanged(snap)
}
