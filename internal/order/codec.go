package order

import (
	"github.com/andreasstove999/littlecarts/internal/store"
)

func Encode(o Order) store.Fields {
	items := make([]any, len(o.Items))
	for i, it := range o.Items {
		items[i] = map[string]any{
			"productId":       it.ProductID,
			"name":            it.Name,
			"priceAtPurchase": it.PriceAtPurchase,
			"quantity":        it.Quantity,
			"imageUrl":        it.ImageURL,
		}
	}
	return store.Fields{
		"orderId":         o.ID,
		"userId":          o.UserID,
		"items":           items,
		"subtotal":        o.Subtotal,
		"deliveryFee":     o.DeliveryFee,
		"tax":             o.Tax,
		"totalAmount":     o.TotalAmount,
		"shippingAddress": o.ShippingAddress,
		"orderDate":       o.OrderDate,
	}
}

func Decode(doc store.Document) (Order, []store.Coercion) {
	r := store.NewReader(doc.Fields)
	o := Order{
		ID:              r.String("orderId", doc.Key),
		UserID:          r.String("userId", ""),
		Subtotal:        r.Float("subtotal", 0),
		DeliveryFee:     r.Float("deliveryFee", 0),
		Tax:             r.Float("tax", 0),
		TotalAmount:     r.Float("totalAmount", 0),
		ShippingAddress: r.String("shippingAddress", DefaultShippingAddress),
		OrderDate:       r.Time("orderDate"),
		Items:           []Item{},
	}
	for _, ir := range r.List("items") {
		o.Items = append(o.Items, Item{
			ProductID:       ir.String("productId", ""),
			Name:            ir.String("name", ""),
			PriceAtPurchase: ir.Float("priceAtPurchase", 0),
			Quantity:        ir.Int("quantity", 1),
			ImageURL:        ir.String("imageUrl", ""),
		})
	}
	return o, r.Coercions()
}
