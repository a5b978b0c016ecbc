package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// OrderItem is one line of the order submission payload. The field names are
// the upstream contract and must not drift: the API expects product_id, not
// id, and a null source for items without a provenance tag.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Source    *string `json:"source"`
}

// OrderRequest is the createOrder payload.
type OrderRequest struct {
	Items []OrderItem `json:"items"`
}

// OrderResult carries the upstream acknowledgement for a created order.
type OrderResult struct {
	OrderID string
	Message string
}

// EventStatus reports which promotional events are currently live.
type EventStatus struct {
	Success bool            `json:"success"`
	Events  map[string]bool `json:"events"`
	Error   string          `json:"error,omitempty"`
}

// RejectedError is a soft failure: the upstream API answered but refused the
// order. The message is suitable for display.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e == nil || e.Message == "" {
		return "upstream: order rejected"
	}
	return e.Message
}

// Doer abstracts the resilient HTTP client so tests can stub transport.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client talks to the upstream commerce API. All storefront business state of
// consequence (inventory, pricing, order persistence) lives behind it.
type Client struct {
	BaseURL string
	HTTP    Doer
	Logger  zerolog.Logger
}

type orderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"order_id"`
}

// CreateOrder submits the order payload. A transport or server error returns
// a plain error; an answered-but-refused order returns *RejectedError with
// the server-provided message.
func (c *Client) CreateOrder(ctx context.Context, order OrderRequest) (OrderResult, error) {
	if c == nil || c.HTTP == nil {
		return OrderResult{}, errors.New("upstream: client not configured")
	}
	body, err := json.Marshal(order)
	if err != nil {
		return OrderResult{}, fmt.Errorf("upstream: encode order: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/v1/orders"), bytes.NewReader(body))
	if err != nil {
		return OrderResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return OrderResult{}, fmt.Errorf("upstream: create order: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded orderResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return OrderResult{}, fmt.Errorf("upstream: create order: %s", resp.Status)
		}
		return OrderResult{}, fmt.Errorf("upstream: decode order response: %w", err)
	}
	if !decoded.Success {
		message := strings.TrimSpace(decoded.Message)
		c.Logger.Warn().Int("status", resp.StatusCode).Str("message", message).Msg("order rejected")
		return OrderResult{}, &RejectedError{Message: message}
	}
	return OrderResult{OrderID: decoded.OrderID, Message: decoded.Message}, nil
}

// CheckEventStatus fetches the live/ended flags for promotional events.
func (c *Client) CheckEventStatus(ctx context.Context) (EventStatus, error) {
	if c == nil || c.HTTP == nil {
		return EventStatus{}, errors.New("upstream: client not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/v1/events/status"), nil)
	if err != nil {
		return EventStatus{}, err
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return EventStatus{}, fmt.Errorf("upstream: event status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var status EventStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&status); err != nil {
		return EventStatus{}, fmt.Errorf("upstream: decode event status: %w", err)
	}
	if !status.Success {
		message := strings.TrimSpace(status.Error)
		if message == "" {
			message = "event status unavailable"
		}
		return EventStatus{}, fmt.Errorf("upstream: event status: %s", message)
	}
	return status, nil
}

// Ping probes the upstream API for readiness checks. Any answer below 500
// counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.HTTP == nil {
		return errors.New("upstream: client not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/health/live"), nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("upstream: unhealthy: %s", resp.Status)
	}
	return nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}
