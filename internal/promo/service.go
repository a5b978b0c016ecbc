package promo

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/upstream"
)

const statusCacheKey = "promo:events:status"

// Known event types recognised by the storefront's promotional pages.
const (
	EventBlackFriday = "black-friday"
	EventBlackHour   = "black-hour"
	EventSale        = "sale"
)

// EventChecker is the slice of the upstream client the promo gate needs.
type EventChecker interface {
	CheckEventStatus(ctx context.Context) (upstream.EventStatus, error)
}

// Service answers whether a named promotional event is currently live,
// caching the upstream answer briefly.
type Service struct {
	Upstream EventChecker
	Cache    *Cache
	Logger   zerolog.Logger
}

// Active reports whether the named event is live. Unknown events and any
// upstream or cache failure surface as errors so the caller can fall back.
func (s *Service) Active(ctx context.Context, event string) (bool, error) {
	if s == nil || s.Upstream == nil {
		return false, errors.New("promo: service not configured")
	}
	event = strings.ToLower(strings.TrimSpace(event))
	if event == "" {
		return false, errors.New("promo: event is required")
	}

	if flags, ok, err := s.Cache.GetStatus(ctx, statusCacheKey); err == nil && ok {
		if obs.PromoCacheHits != nil {
			obs.PromoCacheHits.Inc()
		}
		return flags[event], nil
	} else if err != nil {
		s.Logger.Warn().Err(err).Msg("promo cache read failed")
	}
	if obs.PromoCacheMisses != nil {
		obs.PromoCacheMisses.Inc()
	}

	status, err := s.Upstream.CheckEventStatus(ctx)
	if err != nil {
		return false, err
	}
	if err := s.Cache.SetStatus(ctx, statusCacheKey, status.Events); err != nil {
		s.Logger.Warn().Err(err).Msg("promo cache write failed")
	}
	return status.Events[event], nil
}
