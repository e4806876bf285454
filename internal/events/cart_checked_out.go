package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/littlecarts/internal/order"
)

const (
	EventTypeCartCheckedOut = "CartCheckedOut"
	cartCheckedOutSchema    = "contracts/events/cart/CartCheckedOut.v1.payload.schema.json"
)

type CartCheckedOutPayload struct {
	OrderID         string          `json:"orderId"`
	UserID          string          `json:"userId"`
	Items           []CartItemEvent `json:"items"`
	Subtotal        float64         `json:"subtotal"`
	DeliveryFee     float64         `json:"deliveryFee"`
	Tax             float64         `json:"tax"`
	TotalAmount     float64         `json:"totalAmount"`
	ShippingAddress string          `json:"shippingAddress"`
	OrderDate       time.Time       `json:"orderDate"`
}

type CartItemEvent struct {
	ProductID       string  `json:"productId"`
	Name            string  `json:"name"`
	Quantity        int     `json:"quantity"`
	PriceAtPurchase float64 `json:"priceAtPurchase"`
	ImageURL        string  `json:"imageUrl,omitempty"`
}

type CartCheckedOutEvent = EventEnvelope[CartCheckedOutPayload]

// BuildCartCheckedOutEvent wraps an order in a v1 envelope partitioned by user.
func BuildCartCheckedOutEvent(o order.Order, meta EnvelopeMetadata, seq int64, producer string, occurredAt time.Time) CartCheckedOutEvent {
	payload := CartCheckedOutPayload{
		OrderID:         o.ID,
		UserID:          o.UserID,
		Items:           make([]CartItemEvent, 0, len(o.Items)),
		Subtotal:        o.Subtotal,
		DeliveryFee:     o.DeliveryFee,
		Tax:             o.Tax,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		OrderDate:       o.OrderDate,
	}
	for _, it := range o.Items {
		payload.Items = append(payload.Items, CartItemEvent{
			ProductID:       it.ProductID,
			Name:            it.Name,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
			ImageURL:        it.ImageURL,
		})
	}

	return CartCheckedOutEvent{
		EventName:     EventTypeCartCheckedOut,
		EventVersion:  1,
		EventID:       uuid.NewString(),
		CorrelationID: meta.CorrelationID,
		CausationID:   meta.CausationID,
		Producer:      producer,
		PartitionKey:  o.UserID,
		Sequence:      &seq,
		OccurredAt:    occurredAt,
		Schema:        cartCheckedOutSchema,
		Payload:       payload,
	}
}
