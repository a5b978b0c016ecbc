package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/events"
	"github.com/noah-isme/toko-storefront/internal/session"
)

const defaultMaxBodyBytes = 1 << 16

// Handler exposes the session cart over HTTP.
type Handler struct {
	Store        *Store
	Validate     *validator.Validate
	Events       *events.Bus
	Logger       zerolog.Logger
	MaxBodyBytes int64
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) maxBody() int64 {
	if h.MaxBodyBytes <= 0 {
		return defaultMaxBodyBytes
	}
	return h.MaxBodyBytes
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := session.ID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session not established", nil)
		return "", false
	}
	return id, true
}

// Get returns the cart snapshot with derived totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Store.Snapshot(sid)})
}

// AddItem validates and adds a line item, folding quantity into an existing
// line with the same product id.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var item Item
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody())
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(item); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid line item", map[string]any{"error": err.Error()})
			return
		}
	}
	h.Store.AddItem(sid, item)
	if h.Events != nil {
		_, err := h.Events.Emit(r.Context(), events.TopicCartItemAdded, sid, map[string]any{
			"productId": item.ID,
			"quantity":  item.Quantity,
			"source":    item.Source,
		})
		if err != nil {
			h.Logger.Warn().Err(err).Str("session_id", sid).Msg("emit cart event")
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Store.Snapshot(sid)})
}

// UpdateItem sets a line's quantity; zero or below removes the line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")
	if productID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "product id is required", nil)
		return
	}
	var req updateQuantityRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody())
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Store.SetQuantity(sid, productID, req.Quantity); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "line item not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Store.Snapshot(sid)})
}

// RemoveItem deletes a line item.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")
	if productID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "product id is required", nil)
		return
	}
	h.Store.RemoveItem(sid, productID)
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Store.Snapshot(sid)})
}

// Clear empties the cart, leaving the visibility flag alone.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	h.Store.Clear(sid)
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Store.Snapshot(sid)})
}

// Open marks the cart panel visible.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	h.setOpen(w, r, true)
}

// Close marks the cart panel hidden.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.setOpen(w, r, false)
}

// Toggle flips the cart panel visibility.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	h.Store.Toggle(sid)
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Store.Snapshot(sid)})
}

func (h *Handler) setOpen(w http.ResponseWriter, r *http.Request, open bool) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	h.Store.SetOpen(sid, open)
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Store.Snapshot(sid)})
}
