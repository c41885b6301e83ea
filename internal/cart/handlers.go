package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/session-cart/internal/common"
	"github.com/noah-isme/session-cart/internal/obs"
)

// SessionHeader carries the session identifier for non-browser clients.
const SessionHeader = "X-Session-ID"

// SessionCookie names the cookie carrying the session identifier.
const SessionCookie = "cart_session"

// Handler wires session carts to HTTP.
type Handler struct {
	Manager    *Manager
	Validate   *validator.Validate
	SessionTTL time.Duration
	// CookieSecure marks issued session cookies Secure.
	CookieSecure bool
}

type addItemPayload struct {
	ID    string  `json:"id" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
}

// Get returns the cart snapshot for the caller's session.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	h.writeCart(w, http.StatusOK, store)
}

// AddItem adds or increments a line item.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	var payload addItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			h.writeError(w, common.NewAppError("VALIDATION", "id is required and price must not be negative", http.StatusBadRequest, err).
				WithDetails(validationDetails(err)))
			return
		}
	}
	qty, err := store.AddItem(r.Context(), payload.ID, payload.Price)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":  strings.TrimSpace(payload.ID),
		"qty": qty,
	}})
}

// RemoveItem decrements a line item, deleting it at zero.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	qty := store.RemoveItem(r.Context(), id)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":  id,
		"qty": qty,
	}})
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	store.Clear(r.Context())
	h.writeCart(w, http.StatusOK, store)
}

// CheckoutURL returns the redirect target without navigating.
func (h *Handler) CheckoutURL(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"checkoutUrl": store.CheckoutURL(),
	}})
}

// Checkout hands the session off to the external commerce platform with a
// redirect to the constructed checkout URL.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	obs.CountCheckoutRedirect()
	http.Redirect(w, r, store.CheckoutURL(), http.StatusSeeOther)
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*Store, bool) {
	if h.Manager == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart manager not configured", nil)
		return nil, false
	}
	return h.Manager.ForSession(r.Context(), h.sessionID(w, r)), true
}

// sessionID resolves the caller's session from cookie or header, issuing a
// fresh identifier (with Set-Cookie) when neither is present.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if sid := strings.TrimSpace(cookie.Value); sid != "" {
			return sid
		}
	}
	if sid := strings.TrimSpace(r.Header.Get(SessionHeader)); sid != "" {
		return sid
	}
	sid := uuid.NewString()
	ttl := h.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

func (h *Handler) writeCart(w http.ResponseWriter, status int, store *Store) {
	items := store.Items()
	responseItems := make([]map[string]any, 0, len(items))
	for _, it := range items {
		responseItems = append(responseItems, map[string]any{
			"id":        it.ID,
			"qty":       it.Quantity,
			"unitPrice": it.UnitPrice,
			"subtotal":  float64(it.Quantity) * it.UnitPrice,
		})
	}
	common.JSON(w, status, map[string]any{"data": map[string]any{
		"items":         responseItems,
		"totalQuantity": store.TotalQuantity(),
		"totalPrice":    store.TotalPrice(),
		"empty":         store.IsEmpty(),
		"checkoutUrl":   store.CheckoutURL(),
	}})
}

// validationDetails flattens validator errors into field → failed rule.
func validationDetails(err error) map[string]string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	if errors.Is(err, ErrInvalidItemID) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
}
