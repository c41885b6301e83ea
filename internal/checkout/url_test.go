package checkout_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/session-cart/internal/checkout"
)

func TestURLEmptyCart(t *testing.T) {
	require.Equal(t, "https://shop.example.com/cart", checkout.URL("https://shop.example.com/cart", nil))
	require.Equal(t, "https://shop.example.com/cart", checkout.URL("https://shop.example.com/cart/", nil))
}

func TestURLJoinsLinesInOrder(t *testing.T) {
	lines := []checkout.Line{
		{ID: "v1", Qty: 1},
		{ID: "v2", Qty: 3},
	}
	require.Equal(t, "https://shop.example.com/cart/v1:1,v2:3", checkout.URL("https://shop.example.com/cart", lines))
}

func TestURLSingleLine(t *testing.T) {
	require.Equal(t, "https://shop.example.com/cart/v1:2", checkout.URL("https://shop.example.com/cart/", []checkout.Line{{ID: "v1", Qty: 2}}))
}
