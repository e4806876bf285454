package cart

import "github.com/andreasstove999/littlecarts/internal/catalog"

// The functions in this file never modify their input slice.

// ApplyAdd merges quantity units of product into items. An existing line keeps the name, price and image
// captured when it was first added. The merged quantity may not exceed MaxQuantity.
func ApplyAdd(items []LineItem, product catalog.Product, quantity int) ([]LineItem, error) {
	if quantity < 1 || quantity > MaxQuantity {
		return nil, ErrInvalidQuantity
	}

	out := make([]LineItem, len(items), len(items)+1)
	copy(out, items)
	for i := range out {
		if out[i].ProductID == product.ID {
			if out[i].Quantity > MaxQuantity-quantity {
				return nil, ErrInvalidQuantity
			}
			out[i].Quantity += quantity
			return out, nil
		}
	}
	return append(out, LineItem{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Quantity:  quantity,
		ImageURL:  product.ImageURL,
	}), nil
}

// ApplySetQuantity replaces the quantity of productID. A quantity of zero or less removes the line.
func ApplySetQuantity(items []LineItem, productID string, quantity int) ([]LineItem, error) {
	if quantity > MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	if quantity <= 0 {
		return ApplyRemove(items, productID), nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].ProductID == productID {
			out[i].Quantity = quantity
		}
	}
	return out, nil
}

func ApplyRemove(items []LineItem, productID string) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	return out
}

func ApplyClear() []LineItem {
	return []LineItem{}
}

// ComputeTotal sums price times quantity in item order.
func ComputeTotal(items []LineItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// ItemCount is the number of units in the cart, as shown on the cart badge.
func ItemCount(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}
