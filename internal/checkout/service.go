package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/events"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/upstream"
)

// ErrSubmitInFlight is returned when an action would interrupt an in-flight
// order submission. While a submission is outstanding the phase belongs to
// the request that started it; duplicate submits must not reach the network.
var ErrSubmitInFlight = errors.New("checkout: submission already in flight")

// ErrPhaseConflict is returned when an action is not valid in the session's
// current phase.
var ErrPhaseConflict = errors.New("checkout: action not valid in current phase")

// ErrEmptyCart rejects submission of a cart with no line items.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// ErrInvalidLineItem rejects submission when a line carries a missing product
// id or a quantity below one.
var ErrInvalidLineItem = errors.New("checkout: line item invalid")

// State is the externally visible checkout state for one session. LastError
// is populated only in the failed phase.
type State struct {
	Phase     Phase  `json:"phase"`
	LastError string `json:"lastError,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
}

type sessionState struct {
	State
	lastTouched time.Time
}

func (st *sessionState) transition(next State) {
	if obs.CheckoutPhaseTransitions != nil && st.Phase != next.Phase {
		obs.CheckoutPhaseTransitions.WithLabelValues(st.Phase.String(), next.Phase.String()).Inc()
	}
	st.State = next
}

// OrderAPI is the slice of the upstream client the flow needs.
type OrderAPI interface {
	CreateOrder(ctx context.Context, order upstream.OrderRequest) (upstream.OrderResult, error)
}

// ServiceConfig wires the checkout flow's collaborators.
type ServiceConfig struct {
	Carts  *cart.Store
	Orders OrderAPI
	Events *events.Bus
	Logger zerolog.Logger
	Now    func() time.Time
}

// Service owns the per-session checkout state machines and sequences the
// transition from "cart has items" to "order placed".
type Service struct {
	carts  *cart.Store
	orders OrderAPI
	events *events.Bus
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	states map[string]*sessionState
}

// NewService constructs the checkout flow service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Carts == nil {
		return nil, errors.New("checkout: cart store is required")
	}
	if cfg.Orders == nil {
		return nil, errors.New("checkout: order api is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		carts:  cfg.Carts,
		orders: cfg.Orders,
		events: cfg.Events,
		logger: cfg.Logger,
		now:    now,
		states: make(map[string]*sessionState),
	}, nil
}

func (s *Service) state(sessionID string) *sessionState {
	st, ok := s.states[sessionID]
	if !ok {
		st = &sessionState{State: State{Phase: PhaseIdle}}
		s.states[sessionID] = st
	}
	st.lastTouched = s.now()
	return st
}

// State returns the session's current checkout state.
func (s *Service) State(sessionID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(sessionID).State
}

// Begin starts a fresh checkout attempt. An unauthenticated user lands in
// awaiting-login; an authenticated one goes straight to confirming. A begin
// while a submission is outstanding is refused, and resolved phases must be
// dismissed first; succeeded in particular keeps the cart until dismissal,
// so re-entering confirming from it would resubmit the same order.
func (s *Service) Begin(sessionID string, authenticated bool) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(sessionID)
	switch st.Phase {
	case PhaseSubmitting:
		return st.State, ErrSubmitInFlight
	case PhaseSucceeded, PhaseFailed:
		return st.State, ErrPhaseConflict
	}
	next := State{Phase: PhaseConfirming}
	if !authenticated {
		next = State{Phase: PhaseAwaitingLogin}
	}
	st.transition(next)
	return st.State, nil
}

// Cancel abandons the attempt from awaiting-login or confirming. Cancelling
// an already idle session is a no-op; resolved phases must be dismissed, and
// an in-flight submission owns the phase until it resolves.
func (s *Service) Cancel(sessionID string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(sessionID)
	switch st.Phase {
	case PhaseSubmitting:
		return st.State, ErrSubmitInFlight
	case PhaseSucceeded, PhaseFailed:
		return st.State, ErrPhaseConflict
	}
	st.transition(State{Phase: PhaseIdle})
	return st.State, nil
}

// Retry re-enters confirming after a failure, keeping the cart as it was.
func (s *Service) Retry(sessionID string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(sessionID)
	if st.Phase != PhaseFailed {
		return st.State, ErrPhaseConflict
	}
	st.transition(State{Phase: PhaseConfirming})
	return st.State, nil
}

// Dismiss acknowledges a resolved outcome. Dismissing success is the moment
// the cart is cleared and the panel closed; until then both survive behind
// the acknowledgement. Dismissing failure returns to idle with the cart
// untouched.
func (s *Service) Dismiss(ctx context.Context, sessionID string) (State, error) {
	s.mu.Lock()
	st := s.state(sessionID)
	phase := st.Phase
	if !phase.Resolved() {
		out := st.State
		s.mu.Unlock()
		return out, ErrPhaseConflict
	}
	st.transition(State{Phase: PhaseIdle})
	out := st.State
	s.mu.Unlock()

	if phase == PhaseSucceeded {
		s.carts.Clear(sessionID)
		s.carts.SetOpen(sessionID, false)
	}
	s.emit(ctx, events.TopicCheckoutDismissed, sessionID, map[string]any{"outcome": phase.String()})
	return out, nil
}

// Submit moves confirming into submitting, calls the upstream order API, and
// resolves to succeeded or failed. Validation failures leave the phase at
// confirming and never reach the network; a second submit while one is in
// flight is refused without a second call.
func (s *Service) Submit(ctx context.Context, sessionID string) (State, error) {
	s.mu.Lock()
	st := s.state(sessionID)
	switch st.Phase {
	case PhaseSubmitting:
		out := st.State
		s.mu.Unlock()
		return out, ErrSubmitInFlight
	case PhaseConfirming:
	default:
		out := st.State
		s.mu.Unlock()
		return out, ErrPhaseConflict
	}

	snap := s.carts.Snapshot(sessionID)
	if err := validateForSubmission(snap.Items); err != nil {
		out := st.State
		s.mu.Unlock()
		return out, err
	}
	order := buildOrder(snap.Items)
	st.transition(State{Phase: PhaseSubmitting})
	s.mu.Unlock()

	s.emit(ctx, events.TopicCheckoutSubmitted, sessionID, map[string]any{
		"items": len(order.Items),
		"total": snap.TotalPrice,
	})

	result, err := s.orders.CreateOrder(ctx, order)

	s.mu.Lock()
	st = s.state(sessionID)
	if err != nil {
		message := failureMessage(err)
		st.transition(State{Phase: PhaseFailed, LastError: message})
		out := st.State
		s.mu.Unlock()
		if obs.CheckoutSubmitTotal != nil {
			obs.CheckoutSubmitTotal.WithLabelValues("failed").Inc()
		}
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("order submission failed")
		s.emit(ctx, events.TopicCheckoutFailed, sessionID, map[string]any{"message": message})
		return out, nil
	}
	st.transition(State{Phase: PhaseSucceeded, OrderID: result.OrderID})
	out := st.State
	s.mu.Unlock()
	if obs.CheckoutSubmitTotal != nil {
		obs.CheckoutSubmitTotal.WithLabelValues("succeeded").Inc()
	}
	s.emit(ctx, events.TopicCheckoutSucceeded, sessionID, map[string]any{"orderId": result.OrderID})
	return out, nil
}

// Sweep evicts checkout state for sessions idle past the given TTL.
func (s *Service) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, st := range s.states {
		if st.Phase != PhaseSubmitting && st.lastTouched.Before(cutoff) {
			delete(s.states, id)
			removed++
		}
	}
	return removed
}

func (s *Service) emit(ctx context.Context, topic, sessionID string, payload map[string]any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Emit(ctx, topic, sessionID, payload); err != nil {
		s.logger.Warn().Err(err).Str("topic", topic).Msg("emit checkout event")
	}
}

func validateForSubmission(items []cart.Item) error {
	if len(items) == 0 {
		return ErrEmptyCart
	}
	for _, it := range items {
		if it.ID == "" || it.Quantity < 1 {
			return ErrInvalidLineItem
		}
	}
	return nil
}

func buildOrder(items []cart.Item) upstream.OrderRequest {
	out := make([]upstream.OrderItem, 0, len(items))
	for _, it := range items {
		var source *string
		if it.Source != "" {
			tag := it.Source
			source = &tag
		}
		out = append(out, upstream.OrderItem{
			ProductID: it.ID,
			Quantity:  it.Quantity,
			Source:    source,
		})
	}
	return upstream.OrderRequest{Items: out}
}

func failureMessage(err error) string {
	var rejected *upstream.RejectedError
	if errors.As(err, &rejected) && rejected.Message != "" {
		return rejected.Message
	}
	return "order submission failed, please try again"
}
