package cart

import "reflect"

// Snapshot is the cart state handed to listeners after every mutation. It is
// computed at notify time and independent of internal state.
type Snapshot struct {
	Items         []Item  `json:"items"`
	TotalQuantity int     `json:"totalQuantity"`
	TotalPrice    float64 `json:"totalPrice"`
}

// Listener reacts to cart mutations. Listeners are invoked synchronously in
// subscription order; a failing listener never blocks the others.
type Listener interface {
	CartChanged(Snapshot)
}

// ListenerFunc adapts a plain function to the Listener interface. Use a
// pointer when the listener must also be unsubscribed.
type ListenerFunc func(Snapshot)

// CartChanged implements Listener.
func (f ListenerFunc) CartChanged(s Snapshot) { f(s) }

// sameListener reports whether two listeners share identity. Listeners with
// uncomparable dynamic types (bare funcs) never match, so unsubscribing them
// is a no-op rather than a panic.
func sameListener(a, b Listener) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
