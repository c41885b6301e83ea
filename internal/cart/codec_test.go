package cart_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/session-cart/internal/cart"
	"github.com/noah-isme/session-cart/internal/session"
)

// State written by an older or buggy client must never reintroduce entries
// that violate the cart invariants.
func TestLoadDropsInvalidEntries(t *testing.T) {
	backing := session.NewMemory()
	ctx := context.Background()
	payload := `[
		{"id":"v1","qty":2,"unitPrice":10},
		{"id":"","qty":3,"unitPrice":1},
		{"id":"v2","qty":0,"unitPrice":1},
		{"id":"v3","qty":-1,"unitPrice":1},
		{"id":"v1","qty":9,"unitPrice":99},
		{"id":"v4","qty":1,"unitPrice":-5}
	]`
	require.NoError(t, backing.Set(ctx, cart.DefaultStorageKey, []byte(payload)))

	s := cart.New(ctx, cart.Options{Sessions: backing, CheckoutBaseURL: "https://shop.example.com/cart"})

	require.Equal(t, []cart.Item{
		{ID: "v1", Quantity: 2, UnitPrice: 10},
		{ID: "v4", Quantity: 1, UnitPrice: 0},
	}, s.Items())
	require.Equal(t, 3, s.TotalQuantity())
	require.Equal(t, 20.0, s.TotalPrice())
}
