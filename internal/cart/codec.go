package cart

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The session payload is a JSON array rather than an object so that cart
// order survives the round trip.
type encodedItem struct {
	ID        string  `json:"id"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unitPrice"`
}

func encodeItems(items []Item) ([]byte, error) {
	encoded := make([]encodedItem, 0, len(items))
	for _, it := range items {
		encoded = append(encoded, encodedItem{ID: it.ID, Qty: it.Quantity, UnitPrice: it.UnitPrice})
	}
	data, err := json.Marshal(encoded)
	if err != nil {
		return nil, fmt.Errorf("encode cart items: %w", err)
	}
	return data, nil
}

// decodeItems rebuilds the item map and its order from a session payload.
// Entries that violate the cart invariants (blank id, quantity below one,
// duplicate id) are dropped instead of failing the whole load.
func decodeItems(data []byte) (map[string]LineItem, []string, error) {
	var encoded []encodedItem
	if err := json.Unmarshal(data, &encoded); err != nil {
		return nil, nil, fmt.Errorf("decode cart items: %w", err)
	}
	items := make(map[string]LineItem, len(encoded))
	order := make([]string, 0, len(encoded))
	for _, e := range encoded {
		id := strings.TrimSpace(e.ID)
		if id == "" || e.Qty < 1 {
			continue
		}
		if _, exists := items[id]; exists {
			continue
		}
		price := e.UnitPrice
		if price < 0 {
			price = 0
		}
		items[id] = LineItem{Quantity: e.Qty, UnitPrice: price}
		order = append(order, id)
	}
	return items, order, nil
}
