package order

import (
	"errors"
	"time"
)

// Collection holds orders keyed by order id.
const Collection = "orders"

const DefaultShippingAddress = "Default Address"

var (
	ErrEmptyCart = errors.New("cart is empty")
	ErrNotFound  = errors.New("order not found")
)

// Item is a cart line frozen at checkout.
type Item struct {
	ProductID       string  `json:"productId"`
	Name            string  `json:"name"`
	PriceAtPurchase float64 `json:"priceAtPurchase"`
	Quantity        int     `json:"quantity"`
	ImageURL        string  `json:"imageUrl"`
}

type Order struct {
	ID              string    `json:"orderId"`
	UserID          string    `json:"userId"`
	Items           []Item    `json:"items"`
	Subtotal        float64   `json:"subtotal"`
	DeliveryFee     float64   `json:"deliveryFee"`
	Tax             float64   `json:"tax"`
	TotalAmount     float64   `json:"totalAmount"`
	ShippingAddress string    `json:"shippingAddress"`
	OrderDate       time.Time `json:"orderDate"`
}
