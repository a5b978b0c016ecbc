package promo

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// Handler gates promotional event pages: a page for an event that is not
// currently live redirects to the configured fallback route, as does any
// failure to determine the status.
type Handler struct {
	Svc           *Service
	FallbackRoute string
}

func (h *Handler) fallback() string {
	if h.FallbackRoute == "" {
		return "/"
	}
	return h.FallbackRoute
}

// Gate answers whether the named event page may render.
func (h *Handler) Gate(w http.ResponseWriter, r *http.Request) {
	event := chi.URLParam(r, "event")
	active, err := h.Svc.Active(r.Context(), event)
	if err != nil || !active {
		http.Redirect(w, r, h.fallback(), http.StatusTemporaryRedirect)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"event":  event,
		"active": true,
	}})
}
