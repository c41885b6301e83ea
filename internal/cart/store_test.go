package cart_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/session-cart/internal/cart"
	"github.com/noah-isme/session-cart/internal/session"
)

const baseURL = "https://shop.example.com/cart"

// countingStore wraps a session store and counts writes.
type countingStore struct {
	session.Store
	sets int
}

func (c *countingStore) Set(ctx context.Context, key string, value []byte) error {
	c.sets++
	return c.Store.Set(ctx, key, value)
}

// gatedWrites blocks the first Set until released, letting tests hold one
// write in flight while other mutations arrive.
type gatedWrites struct {
	session.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedWrites) Set(ctx context.Context, key string, value []byte) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Store.Set(ctx, key, value)
}

// failingStore always errors, simulating an unavailable backend.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, session.ErrUnavailable
}
func (failingStore) Set(context.Context, string, []byte) error { return session.ErrUnavailable }
func (failingStore) Delete(context.Context, string) error      { return session.ErrUnavailable }
func (failingStore) Ping(context.Context) error                { return session.ErrUnavailable }

type recordingListener struct {
	snapshots []cart.Snapshot
}

func (r *recordingListener) CartChanged(s cart.Snapshot) {
	r.snapshots = append(r.snapshots, s)
}

func newStore(t *testing.T, sessions session.Store) *cart.Store {
	t.Helper()
	return cart.New(context.Background(), cart.Options{
		Sessions:        sessions,
		CheckoutBaseURL: baseURL,
		Logger:          zerolog.Nop(),
	})
}

func TestAddItemWithoutPriceAccumulates(t *testing.T) {
	s := newStore(t, session.NewMemory())
	ctx := context.Background()

	qty, err := s.AddItem(ctx, "v1", 0)
	require.NoError(t, err)
	require.Equal(t, 1, qty)

	qty, err = s.AddItem(ctx, "v1", 0)
	require.NoError(t, err)
	require.Equal(t, 2, qty)

	require.Equal(t, 2, s.TotalQuantity())
	require.Zero(t, s.TotalPrice())
}

func TestAddItemPreservesPriceOverZero(t *testing.T) {
	s := newStore(t, session.NewMemory())
	ctx := context.Background()

	_, err := s.AddItem(ctx, "v1", 10)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, "v1", 0)
	require.NoError(t, err)

	require.Equal(t, 2, s.ItemQuantity("v1"))
	require.Equal(t, 20.0, s.TotalPrice())
}

func TestAddItemOverwritesPositivePrice(t *testing.T) {
	s := newStore(t, session.NewMemory())
	ctx := context.Background()

	_, err := s.AddItem(ctx, "v1", 10)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, "v1", 12)
	require.NoError(t, err)

	require.Equal(t, 24.0, s.TotalPrice())
}

func TestAddItemRejectsEmptyID(t *testing.T) {
	s := newStore(t, session.NewMemory())

	_, err := s.AddItem(context.Background(), "", 5)
	require.ErrorIs(t, err, cart.ErrInvalidItemID)
	_, err = s.AddItem(context.Background(), "   ", 5)
	require.ErrorIs(t, err, cart.ErrInvalidItemID)
	require.True(t, s.IsEmpty())
}

func TestRemoveItemToZeroDeletesEntry(t *testing.T) {
	s := newStore(t, session.NewMemory())
	ctx := context.Background()

	_, err := s.AddItem(ctx, "v1", 5)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, "v1", 0)
	require.NoError(t, err)

	require.Equal(t, 1, s.RemoveItem(ctx, "v1"))
	require.Equal(t, 0, s.RemoveItem(ctx, "v1"))
	require.Empty(t, s.Items())
	require.True(t, s.IsEmpty())
}

func TestRemoveSingleItemTwice(t *testing.T) {
	s := newStore(t, session.NewMemory())
	ctx := context.Background()

	_, err := s.AddItem(ctx, "v1", 5)
	require.NoError(t, err)

	require.Equal(t, 0, s.RemoveItem(ctx, "v1"))
	require.Equal(t, 0, s.RemoveItem(ctx, "v1"))
	require.Empty(t, s.Items())
}

func TestRemoveUnknownItemIsSilent(t *testing.T) {
	backing := &countingStore{Store: session.NewMemory()}
	s := newStore(t, backing)
	listener := &recordingListener{}
	s.Subscribe(listener)

	require.Equal(t, 0, s.RemoveItem(context.Background(), "ghost"))
	require.Zero(t, backing.sets)
	require.Empty(t, listener.snapshots)
}

func TestClear(t *testing.T) {
	s := newStore(t, session.NewMemory())
	ctx := context.Background()

	_, err := s.AddItem(ctx, "v1", 3)
	require.NoError(t, err)
	listener := &recordingListener{}
	s.Subscribe(listener)

	s.Clear(ctx)
	require.True(t, s.IsEmpty())
	require.Len(t, listener.snapshots, 1)
	require.Empty(t, listener.snapshots[0].Items)
	require.Zero(t, listener.snapshots[0].TotalQuantity)
}

func TestCheckoutURL(t *testing.T) {
	s := newStore(t, session.NewMemory())
	ctx := context.Background()

	require.Equal(t, baseURL, s.CheckoutURL())

	_, err := s.AddItem(ctx, "v1", 0)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, "v2", 0)
	require.NoError(t, err)
	require.Equal(t, baseURL+"/v1:1,v2:1", s.CheckoutURL())

	_, err = s.AddItem(ctx, "v1", 0)
	require.NoError(t, err)
	require.Equal(t, baseURL+"/v1:2,v2:1", s.CheckoutURL())
}

func TestItemsReturnsDefensiveCopy(t *testing.T) {
	s := newStore(t, session.NewMemory())
	ctx := context.Background()

	_, err := s.AddItem(ctx, "v1", 5)
	require.NoError(t, err)

	items := s.Items()
	items[0].Quantity = 99
	items[0].ID = "mutated"

	require.Equal(t, 1, s.ItemQuantity("v1"))
	require.Equal(t, []cart.Item{{ID: "v1", Quantity: 1, UnitPrice: 5}}, s.Items())
}

func TestNotificationSnapshot(t *testing.T) {
	s := newStore(t, session.NewMemory())
	listener := &recordingListener{}
	s.Subscribe(listener)

	_, err := s.AddItem(context.Background(), "v1", 10)
	require.NoError(t, err)

	require.Len(t, listener.snapshots, 1)
	snap := listener.snapshots[0]
	require.Equal(t, []cart.Item{{ID: "v1", Quantity: 1, UnitPrice: 10}}, snap.Items)
	require.Equal(t, 1, snap.TotalQuantity)
	require.Equal(t, 10.0, snap.TotalPrice)
}

func TestPanickingListenerDoesNotBlockOthers(t *testing.T) {
	s := newStore(t, session.NewMemory())

	panicking := 0
	s.Subscribe(cart.ListenerFunc(func(cart.Snapshot) {
		panicking++
		panic("listener exploded")
	}))
	second := &recordingListener{}
	s.Subscribe(second)

	_, err := s.AddItem(context.Background(), "v1", 0)
	require.NoError(t, err)

	require.Equal(t, 1, panicking)
	require.Len(t, second.snapshots, 1)
	require.Equal(t, 1, second.snapshots[0].TotalQuantity)
}

func TestUnsubscribe(t *testing.T) {
	s := newStore(t, session.NewMemory())
	listener := &recordingListener{}
	s.Subscribe(listener)
	s.Unsubscribe(listener)
	s.Unsubscribe(listener)
	s.Unsubscribe(&recordingListener{})
	s.Subscribe(nil)

	_, err := s.AddItem(context.Background(), "v1", 0)
	require.NoError(t, err)
	require.Empty(t, listener.snapshots)
}

func TestReentrantMutationIsQueued(t *testing.T) {
	s := newStore(t, session.NewMemory())
	ctx := context.Background()

	var order []int
	reentered := false
	s.Subscribe(cart.ListenerFunc(func(snap cart.Snapshot) {
		order = append(order, snap.TotalQuantity)
		if !reentered {
			reentered = true
			_, err := s.AddItem(ctx, "v2", 0)
			require.NoError(t, err)
			// The nested mutation has applied but its fan-out is queued
			// behind the one in flight.
			require.Equal(t, []int{1}, order)
		}
	}))

	_, err := s.AddItem(ctx, "v1", 0)
	require.NoError(t, err)

	require.Equal(t, []int{1, 2}, order)
	require.Equal(t, 1, s.ItemQuantity("v2"))
}

func TestRoundTripThroughSessionStore(t *testing.T) {
	backing := session.NewMemory()
	ctx := context.Background()

	first := newStore(t, backing)
	_, err := first.AddItem(ctx, "v1", 10)
	require.NoError(t, err)
	_, err = first.AddItem(ctx, "v2", 2.5)
	require.NoError(t, err)
	_, err = first.AddItem(ctx, "v2", 0)
	require.NoError(t, err)

	second := newStore(t, backing)
	require.Equal(t, first.Items(), second.Items())
	require.Equal(t, first.TotalQuantity(), second.TotalQuantity())
	require.Equal(t, first.TotalPrice(), second.TotalPrice())
	require.Equal(t, first.CheckoutURL(), second.CheckoutURL())
}

func TestConcurrentMutationsPersistInOrder(t *testing.T) {
	backing := session.NewMemory()
	gate := &gatedWrites{
		Store:   backing,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newStore(t, gate)
	ctx := context.Background()

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = s.AddItem(ctx, "v1", 0)
	}()
	<-gate.entered

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		_, _ = s.AddItem(ctx, "v2", 0)
	}()

	// The second mutation must not reach the backend while an earlier write
	// is still in flight, or its state would be overwritten by a stale
	// snapshot.
	select {
	case <-secondDone:
		t.Fatal("second mutation persisted ahead of an in-flight earlier write")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	<-firstDone
	<-secondDone

	reloaded := newStore(t, backing)
	require.Equal(t, 1, reloaded.ItemQuantity("v1"))
	require.Equal(t, 1, reloaded.ItemQuantity("v2"))
	require.Equal(t, 2, reloaded.TotalQuantity())
}

func TestClearRemovesPersistedState(t *testing.T) {
	backing := session.NewMemory()
	s := newStore(t, backing)
	ctx := context.Background()

	_, err := s.AddItem(ctx, "v1", 5)
	require.NoError(t, err)
	_, ok, err := backing.Get(ctx, cart.DefaultStorageKey)
	require.NoError(t, err)
	require.True(t, ok)

	s.Clear(ctx)
	_, ok, err = backing.Get(ctx, cart.DefaultStorageKey)
	require.NoError(t, err)
	require.False(t, ok)

	reloaded := newStore(t, backing)
	require.True(t, reloaded.IsEmpty())
}

func TestCorruptStateLoadsEmpty(t *testing.T) {
	backing := session.NewMemory()
	ctx := context.Background()
	require.NoError(t, backing.Set(ctx, cart.DefaultStorageKey, []byte("{not json")))

	s := newStore(t, backing)
	require.True(t, s.IsEmpty())
}

func TestStorageFailureDoesNotBlockMutation(t *testing.T) {
	s := newStore(t, failingStore{})
	listener := &recordingListener{}
	s.Subscribe(listener)

	qty, err := s.AddItem(context.Background(), "v1", 10)
	require.NoError(t, err)
	require.Equal(t, 1, qty)
	require.Len(t, listener.snapshots, 1)
	require.Equal(t, 10.0, s.TotalPrice())
}

func TestListenerErrorsAreIsolatedPerMutation(t *testing.T) {
	s := newStore(t, session.NewMemory())
	ctx := context.Background()

	calls := 0
	s.Subscribe(cart.ListenerFunc(func(cart.Snapshot) {
		calls++
		if calls == 1 {
			panic(errors.New("first delivery failed"))
		}
	}))

	_, err := s.AddItem(ctx, "v1", 0)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, "v1", 0)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
