package checkout

import (
	"errors"
	"net/http"

	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// Handler exposes the checkout flow over HTTP.
type Handler struct {
	Svc   *Service
	Carts *cart.Store
}

type summaryResponse struct {
	State
	Cart    cart.Snapshot `json:"cart"`
	Profile *auth.Profile `json:"profile,omitempty"`
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := session.ID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session not established", nil)
		return "", false
	}
	return id, true
}

// Summary returns the current phase alongside the cart snapshot and, when
// authenticated, the profile used to pre-fill the confirmation dialog.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	resp := summaryResponse{
		State: h.Svc.State(sid),
		Cart:  h.Carts.Snapshot(sid),
	}
	if profile, ok := auth.ProfileFromContext(r.Context()); ok {
		resp.Profile = &profile
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

// Begin starts a checkout attempt, branching on the authentication signal.
func (h *Handler) Begin(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	_, authenticated := common.UserID(r.Context())
	state, err := h.Svc.Begin(sid, authenticated)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"phase":         state.Phase,
		"loginRequired": state.Phase == PhaseAwaitingLogin,
	}})
}

// Confirm submits the order.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	state, err := h.Svc.Submit(r.Context(), sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": state})
}

// Cancel abandons the attempt.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	state, err := h.Svc.Cancel(sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": state})
}

// Retry re-enters confirming after a failure.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	state, err := h.Svc.Retry(sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": state})
}

// Dismiss acknowledges a resolved outcome.
func (h *Handler) Dismiss(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	state, err := h.Svc.Dismiss(r.Context(), sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": state})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
	case errors.Is(err, ErrSubmitInFlight):
		common.JSONError(w, http.StatusConflict, "SUBMIT_IN_FLIGHT", "order submission already in progress", nil)
	case errors.Is(err, ErrPhaseConflict):
		common.JSONError(w, http.StatusConflict, "PHASE_CONFLICT", "action not valid in current checkout phase", nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "cart is empty", nil)
	case errors.Is(err, ErrInvalidLineItem):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "cart contains an invalid line item", nil)
	default:
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
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	}
}
