package cart

import (
	"strconv"

	"github.com/andreasstove999/littlecarts/internal/store"
)

// Decode reads a cart document. Items missing a quantity count as one; items with a non-positive quantity
// or no product id are dropped and reported as coercions. Repeated product ids are merged into the first
// line and quantities above MaxQuantity are capped, both reported as coercions. The stored total is ignored.
func Decode(doc store.Document) (Cart, []store.Coercion) {
	r := store.NewReader(doc.Fields)
	userID := r.String("userId", doc.Key)

	var items []LineItem
	var dropped []store.Coercion
	seen := map[string]int{}
	for i, ir := range r.List("items") {
		it := LineItem{
			ProductID: ir.String("productId", ""),
			Name:      ir.String("name", ""),
			Price:     ir.Float("price", 0),
			Quantity:  ir.Int("quantity", 1),
			ImageURL:  ir.String("imageUrl", ""),
		}
		if it.ProductID == "" || it.Quantity <= 0 {
			dropped = append(dropped, store.Coercion{Field: "items[" + strconv.Itoa(i) + "]", Value: it})
			continue
		}
		if it.Quantity > MaxQuantity {
			dropped = append(dropped, store.Coercion{Field: "items[" + strconv.Itoa(i) + "].quantity", Value: it.Quantity})
			it.Quantity = MaxQuantity
		}
		if at, ok := seen[it.ProductID]; ok {
			dropped = append(dropped, store.Coercion{Field: "items[" + strconv.Itoa(i) + "]", Value: it})
			items[at].Quantity = min(items[at].Quantity+it.Quantity, MaxQuantity)
			continue
		}
		seen[it.ProductID] = len(items)
		items = append(items, it)
	}

	return newCart(userID, items, doc.Version), append(r.Coercions(), dropped...)
}

func Encode(userID string, items []LineItem) store.Fields {
	encoded := make([]any, len(items))
	for i, it := range items {
		encoded[i] = map[string]any{
			"productId": it.ProductID,
			"name":      it.Name,
			"price":     it.Price,
			"quantity":  it.Quantity,
			"imageUrl":  it.ImageURL,
		}
	}
	return store.Fields{
		"userId":     userID,
		"items":      encoded,
		"totalPrice": ComputeTotal(items),
	}
}
