// Package checkout builds the redirect target used to hand a cart over to the
// external commerce platform. No request is made from here; the caller
// navigates the client to the returned URL.
package checkout

import (
	"fmt"
	"strings"
)

// Line is one cart entry as it appears in the redirect URL.
type Line struct {
	ID  string
	Qty int
}

// URL returns the checkout redirect target. An empty cart yields the bare
// base URL; otherwise the lines are appended as a single path segment of
// comma-separated id:quantity pairs, in cart order.
func URL(base string, lines []Line) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if len(lines) == 0 {
		return base
	}
	pairs := make([]string, 0, len(lines))
	for _, line := range lines {
		pairs = append(pairs, fmt.Sprintf("%s:%d", line.ID, line.Qty))
	}
	return base + "/" + strings.Join(pairs, ",")
}
