package cart_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cart"
)

const sid = "11111111-1111-1111-1111-111111111111"

func newStore(opts ...func(*cart.Options)) *cart.Store {
	o := cart.Options{}
	for _, fn := range opts {
		fn(&o)
	}
	return cart.NewStore(o)
}

func TestAddItemAggregatesQuantityPerProduct(t *testing.T) {
	s := newStore()
	s.AddItem(sid, cart.Item{ID: "p1", Name: "Kaos", Price: 100, Quantity: 2})
	s.AddItem(sid, cart.Item{ID: "p1", Name: "Kaos", Price: 100, Quantity: 3})
	s.AddItem(sid, cart.Item{ID: "p2", Name: "Hoodie", Price: 200, Quantity: 1})

	snap := s.Snapshot(sid)
	require.Len(t, snap.Items, 2)
	require.Equal(t, "p1", snap.Items[0].ID)
	require.Equal(t, 5, snap.Items[0].Quantity)
	require.Equal(t, 1, snap.Items[1].Quantity)
}

func TestAddItemOverwritesAttributesButKeepsQuantity(t *testing.T) {
	s := newStore()
	s.AddItem(sid, cart.Item{ID: "p1", Name: "Kaos", Price: 100, Quantity: 1, Size: "M"})
	s.AddItem(sid, cart.Item{ID: "p1", Name: "Kaos", Price: 100, Quantity: 1, Size: "L", Source: "From Black Friday"})

	snap := s.Snapshot(sid)
	require.Len(t, snap.Items, 1)
	require.Equal(t, 2, snap.Items[0].Quantity)
	require.Equal(t, "L", snap.Items[0].Size)
	require.Equal(t, "From Black Friday", snap.Items[0].Source)
}

func TestAddItemFloorsQuantityAtOne(t *testing.T) {
	s := newStore()
	s.AddItem(sid, cart.Item{ID: "p1", Price: 100, Quantity: 0})
	s.AddItem(sid, cart.Item{ID: "p2", Price: 100, Quantity: -4})

	snap := s.Snapshot(sid)
	require.Equal(t, 1, snap.Items[0].Quantity)
	require.Equal(t, 1, snap.Items[1].Quantity)
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	s := newStore()
	s.AddItem(sid, cart.Item{ID: "p1", Price: 100, Quantity: 3})

	require.NoError(t, s.SetQuantity(sid, "p1", 0))
	require.Empty(t, s.Snapshot(sid).Items)

	s.AddItem(sid, cart.Item{ID: "p1", Price: 100, Quantity: 3})
	require.NoError(t, s.SetQuantity(sid, "p1", -2))
	require.Empty(t, s.Snapshot(sid).Items)
}

func TestSetQuantityMissingLine(t *testing.T) {
	s := newStore()
	err := s.SetQuantity(sid, "nope", 2)
	require.ErrorIs(t, err, cart.ErrNotFound)

	// removing a missing line is a no-op
	require.NoError(t, s.SetQuantity(sid, "nope", 0))
}

func TestSnapshotTotals(t *testing.T) {
	s := newStore()
	s.AddItem(sid, cart.Item{ID: "p1", Price: 249000, Quantity: 2})
	s.AddItem(sid, cart.Item{ID: "p2", Price: 399000, Quantity: 1})

	snap := s.Snapshot(sid)
	require.Equal(t, 3, snap.TotalItems)
	require.Equal(t, int64(2*249000+399000), snap.TotalPrice)
	require.Equal(t, 3, s.TotalItemCount(sid))
	require.Equal(t, snap.TotalPrice, s.TotalPrice(sid))
}

func TestClearLeavesVisibilityAlone(t *testing.T) {
	s := newStore()
	s.AddItem(sid, cart.Item{ID: "p1", Price: 100, Quantity: 1})
	s.SetOpen(sid, true)

	s.Clear(sid)
	snap := s.Snapshot(sid)
	require.Empty(t, snap.Items)
	require.True(t, snap.IsOpen)
}

func TestToggleIndependentOfContents(t *testing.T) {
	s := newStore()
	require.True(t, s.Toggle(sid))
	require.False(t, s.Toggle(sid))

	s.AddItem(sid, cart.Item{ID: "p1", Price: 100, Quantity: 1})
	snap := s.Snapshot(sid)
	require.False(t, snap.IsOpen)
	require.Len(t, snap.Items, 1)
}

func TestSeedPopulatesNewCarts(t *testing.T) {
	s := newStore(func(o *cart.Options) { o.Seed = cart.DemoItems() })
	snap := s.Snapshot(sid)
	require.Len(t, snap.Items, len(cart.DemoItems()))
	require.Positive(t, snap.TotalPrice)

	// seeding applies once per session, not per read
	again := s.Snapshot(sid)
	require.Len(t, again.Items, len(cart.DemoItems()))
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newStore()
	s.AddItem(sid, cart.Item{ID: "p1", Price: 100, Quantity: 1})
	snap := s.Snapshot(sid)
	snap.Items[0].Quantity = 99

	require.Equal(t, 1, s.Snapshot(sid).Items[0].Quantity)
}

func TestSweepEvictsIdleCarts(t *testing.T) {
	clock := time.Now()
	s := newStore(func(o *cart.Options) {
		o.TTL = time.Minute
		o.Now = func() time.Time { return clock }
	})
	s.AddItem(sid, cart.Item{ID: "p1", Price: 100, Quantity: 1})
	s.AddItem("22222222-2222-2222-2222-222222222222", cart.Item{ID: "p2", Price: 100, Quantity: 1})
	require.Equal(t, 2, s.Len())

	clock = clock.Add(2 * time.Minute)
	removed := s.Sweep()
	require.Equal(t, 2, removed)
	require.Equal(t, 0, s.Len())
}

func TestOnCountReportsLiveCarts(t *testing.T) {
	var last int
	s := newStore(func(o *cart.Options) { o.OnCount = func(n int) { last = n } })
	s.AddItem(sid, cart.Item{ID: "p1", Price: 100, Quantity: 1})
	require.Equal(t, 1, last)
}
