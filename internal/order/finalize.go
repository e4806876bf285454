package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/littlecarts/internal/cart"
)

// FinalizeOrder turns a cart into an order with flat fees. The cart is not modified.
func FinalizeOrder(c cart.Cart, deliveryFee, tax float64) Order {
	items := make([]Item, len(c.Items))
	for i, it := range c.Items {
		items[i] = Item{
			ProductID:       it.ProductID,
			Name:            it.Name,
			PriceAtPurchase: it.Price,
			Quantity:        it.Quantity,
			ImageURL:        it.ImageURL,
		}
	}

	subtotal := cart.ComputeTotal(c.Items)
	return Order{
		ID:              uuid.NewString(),
		UserID:          c.UserID,
		Items:           items,
		Subtotal:        subtotal,
		DeliveryFee:     deliveryFee,
		Tax:             tax,
		TotalAmount:     subtotal + deliveryFee + tax,
		ShippingAddress: DefaultShippingAddress,
		OrderDate:       time.Now().UTC(),
	}
}
