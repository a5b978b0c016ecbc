package cart

import (
	"sync"
	"time"
)

// Store is the single source of truth for cart contents and visibility,
// keyed by storefront session. All state is process-local; a cart vanishes
// when its session expires or the process restarts. Mutations keep the
// one-line-per-product invariant and never let a quantity drop below one.
type Store struct {
	mu    sync.RWMutex
	carts map[string]*sessionCart

	ttl  time.Duration
	now  func() time.Time
	seed []Item

	onCount func(int)
}

type sessionCart struct {
	items    []Item
	open     bool
	lastSeen time.Time
}

// Options configures a Store.
type Options struct {
	// TTL is how long an idle session cart survives before the sweeper
	// evicts it. Defaults to 30 minutes.
	TTL time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
	// Seed, when set, pre-populates every new cart with the given lines.
	Seed []Item
	// OnCount is invoked with the live cart count after every change, so the
	// composition root can feed a gauge without the store importing metrics.
	OnCount func(int)
}

// NewStore constructs an empty cart store.
func NewStore(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		carts:   make(map[string]*sessionCart),
		ttl:     ttl,
		now:     now,
		seed:    opts.Seed,
		onCount: opts.OnCount,
	}
}

func (s *Store) cart(sessionID string) *sessionCart {
	c, ok := s.carts[sessionID]
	if !ok {
		c = &sessionCart{}
		if len(s.seed) > 0 {
			c.items = append(c.items, s.seed...)
		}
		s.carts[sessionID] = c
		s.reportCountLocked()
	}
	c.lastSeen = s.now()
	return c
}

func (s *Store) reportCountLocked() {
	if s.onCount != nil {
		s.onCount(len(s.carts))
	}
}

// AddItem appends a new line or folds the quantity into an existing line with
// the same product id. Attributes of an existing line are overwritten with
// the supplied values; only the quantity accumulates.
func (s *Store) AddItem(sessionID string, item Item) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cart(sessionID)
	for i := range c.items {
		if c.items[i].ID == item.ID {
			item.Quantity += c.items[i].Quantity
			c.items[i] = item
			return
		}
	}
	c.items = append(c.items, item)
}

// RemoveItem deletes the line with the given product id. Removing an absent
// line is a no-op.
func (s *Store) RemoveItem(sessionID, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cart(sessionID)
	for i := range c.items {
		if c.items[i].ID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// SetQuantity pins the line's quantity to the given value. A value of zero or
// below removes the line entirely. Returns ErrNotFound when no line with the
// product id exists and the quantity is positive.
func (s *Store) SetQuantity(sessionID, productID string, quantity int) error {
	if quantity <= 0 {
		s.RemoveItem(sessionID, productID)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cart(sessionID)
	for i := range c.items {
		if c.items[i].ID == productID {
			c.items[i].Quantity = quantity
			return nil
		}
	}
	return ErrNotFound
}

// Clear empties all line items. The visibility flag is untouched.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cart(sessionID)
	c.items = nil
}

// SetOpen sets the cart panel visibility flag.
func (s *Store) SetOpen(sessionID string, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart(sessionID).open = open
}

// Toggle flips the cart panel visibility flag.
func (s *Store) Toggle(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cart(sessionID)
	c.open = !c.open
	return c.open
}

// Snapshot returns a copy of the session cart with derived totals.
func (s *Store) Snapshot(sessionID string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cart(sessionID)
	snap := Snapshot{
		Items:  make([]Item, len(c.items)),
		IsOpen: c.open,
	}
	copy(snap.Items, c.items)
	for _, it := range c.items {
		snap.TotalItems += it.Quantity
		snap.TotalPrice += it.Price * int64(it.Quantity)
	}
	return snap
}

// TotalItemCount sums the quantities across all lines.
func (s *Store) TotalItemCount(sessionID string) int {
	return s.Snapshot(sessionID).TotalItems
}

// TotalPrice sums price*quantity across all lines.
func (s *Store) TotalPrice(sessionID string) int64 {
	return s.Snapshot(sessionID).TotalPrice
}

// Sweep evicts carts idle for longer than the store TTL and reports how many
// were removed.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, c := range s.carts {
		if c.lastSeen.Before(cutoff) {
			delete(s.carts, id)
			removed++
		}
	}
	if removed > 0 {
		s.reportCountLocked()
	}
	return removed
}

// Len reports the number of live session carts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}
