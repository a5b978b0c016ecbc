package checkout_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/upstream"
)

func newCheckoutRouter(t *testing.T, api *fakeOrderAPI, authenticated bool) (http.Handler, *cart.Store) {
	t.Helper()
	carts := cart.NewStore(cart.Options{})
	svc, err := checkout.NewService(checkout.ServiceConfig{Carts: carts, Orders: api})
	require.NoError(t, err)
	h := &checkout.Handler{Svc: svc, Carts: carts}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := session.WithID(req.Context(), sid)
			if authenticated {
				ctx = common.WithUserID(ctx, "user-1")
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/checkout", h.Summary)
	r.Post("/checkout/begin", h.Begin)
	r.Post("/checkout/confirm", h.Confirm)
	r.Post("/checkout/cancel", h.Cancel)
	r.Post("/checkout/retry", h.Retry)
	r.Post("/checkout/dismiss", h.Dismiss)
	return r, carts
}

func post(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestConfirmEndpointRequiresToken(t *testing.T) {
	const secret = "test-secret-0123456789"
	api := &fakeOrderAPI{}
	carts := cart.NewStore(cart.Options{})
	svc, err := checkout.NewService(checkout.ServiceConfig{Carts: carts, Orders: api})
	require.NoError(t, err)
	h := &checkout.Handler{Svc: svc, Carts: carts}

	authSvc, err := auth.NewService(auth.Config{Secret: secret, Issuer: "toko"})
	require.NoError(t, err)
	authMw := auth.Middleware{Service: authSvc}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(session.WithID(req.Context(), sid)))
		})
	})
	r.With(authMw.RequireAuth).Post("/checkout/confirm", h.Confirm)

	rr := post(r, "/checkout/confirm")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "UNAUTHORIZED", body.Error.Code)
	require.Equal(t, 0, api.calls())

	// a valid bearer token clears the gate and reaches the flow
	now := time.Now()
	token, err := jwt.NewBuilder().
		Issuer("toko").
		Subject("user-1").
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte(secret)))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/checkout/confirm", nil)
	req.Header.Set("Authorization", "Bearer "+string(signed))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestBeginEndpointSignalsLoginRequirement(t *testing.T) {
	router, _ := newCheckoutRouter(t, &fakeOrderAPI{}, false)

	rr := post(router, "/checkout/begin")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data struct {
			Phase         string `json:"phase"`
			LoginRequired bool   `json:"loginRequired"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "awaiting-login", body.Data.Phase)
	require.True(t, body.Data.LoginRequired)
}

func TestConfirmEndpointMapsValidationErrors(t *testing.T) {
	router, _ := newCheckoutRouter(t, &fakeOrderAPI{}, true)

	rr := post(router, "/checkout/begin")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = post(router, "/checkout/confirm")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "VALIDATION", body.Error.Code)
}

func TestConfirmEndpointConflictOutsideConfirming(t *testing.T) {
	router, carts := newCheckoutRouter(t, &fakeOrderAPI{}, true)
	carts.AddItem(sid, cart.Item{ID: "p1", Price: 100, Quantity: 1})

	rr := post(router, "/checkout/confirm")
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestSummaryEndpoint(t *testing.T) {
	api := &fakeOrderAPI{result: upstream.OrderResult{OrderID: "ord-1"}}
	router, carts := newCheckoutRouter(t, api, true)
	carts.AddItem(sid, cart.Item{ID: "p1", Name: "Kaos", Price: 100, Quantity: 2})

	req := httptest.NewRequest(http.MethodGet, "/checkout", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data struct {
			Phase string `json:"phase"`
			Cart  struct {
				TotalItems int `json:"totalItems"`
			} `json:"cart"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "idle", body.Data.Phase)
	require.Equal(t, 2, body.Data.Cart.TotalItems)
}

func TestFullFlowOverHTTP(t *testing.T) {
	api := &fakeOrderAPI{result: upstream.OrderResult{OrderID: "ord-7"}}
	router, carts := newCheckoutRouter(t, api, true)
	carts.AddItem(sid, cart.Item{ID: "p1", Price: 100, Quantity: 1})

	require.Equal(t, http.StatusOK, post(router, "/checkout/begin").Code)
	rr := post(router, "/checkout/confirm")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data checkout.State `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, checkout.PhaseSucceeded, body.Data.Phase)
	require.Equal(t, "ord-7", body.Data.OrderID)

	// cart intact until dismissal
	require.Len(t, carts.Snapshot(sid).Items, 1)
	require.Equal(t, http.StatusOK, post(router, "/checkout/dismiss").Code)
	require.Empty(t, carts.Snapshot(sid).Items)
}
