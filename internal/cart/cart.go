package cart

import (
	"errors"
)

// ErrNotFound indicates the requested line item could not be located.
var ErrNotFound = errors.New("cart: line item not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("cart: invalid input")

// Item is one line in a cart: a distinct product and its aggregated quantity.
// Prices are minor currency units. Size, Color and Source are free-form
// descriptive strings; Source records which storefront page the item was
// added from and is carried through to order submission untouched.
type Item struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Price    int64  `json:"price" validate:"gte=0"`
	Quantity int    `json:"quantity" validate:"gte=1"`
	Image    string `json:"image,omitempty"`
	Size     string `json:"size,omitempty"`
	Color    string `json:"color,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Snapshot is a point-in-time copy of a session cart with derived totals.
type Snapshot struct {
	Items      []Item `json:"items"`
	IsOpen     bool   `json:"isOpen"`
	TotalItems int    `json:"totalItems"`
	TotalPrice int64  `json:"totalPrice"`
}

// DemoItems returns the placeholder lines the original storefront seeds new
// carts with. Only used when CART_SEED_DEMO is enabled.
func DemoItems() []Item {
	return []Item{
		{ID: "demo-tee-black", Name: "Kaos Hitam", Price: 249000, Quantity: 1, Image: "/img/products/kaos-hitam.jpg", Size: "L", Color: "black"},
		{ID: "demo-hoodie-grey", Name: "Hoodie Abu", Price: 399000, Quantity: 2, Image: "/img/products/hoodie-abu.jpg", Size: "M", Color: "grey", Source: "From Black Friday"},
	}
}
