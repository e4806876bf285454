package cart

import (
	"errors"
	"fmt"
)

// Collection holds one cart document per user, keyed by user id.
const Collection = "carts"

// MaxQuantity is the most units one line may hold.
const MaxQuantity = 1_000_000

var (
	ErrInvalidQuantity    = fmt.Errorf("quantity must be between 1 and %d", MaxQuantity)
	ErrProductUnavailable = errors.New("product is not available")
	ErrInsufficientStock  = errors.New("not enough stock")
)

// LineItem is one product in a cart. Name, price and image are captured when the product is first added.
type LineItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"imageUrl"`
}

type Cart struct {
	UserID    string     `json:"userId"`
	Items     []LineItem `json:"items"`
	Total     float64    `json:"total"`
	ItemCount int        `json:"itemCount"`
	// Version of the stored document the cart was read from. Zero when no document exists.
	Version int64 `json:"-"`
}

// Empty reports whether the cart has no items.
func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

func newCart(userID string, items []LineItem, version int64) Cart {
	if items == nil {
		items = []LineItem{}
	}
	return Cart{
		UserID:    userID,
		Items:     items,
		Total:     ComputeTotal(items),
		ItemCount: ItemCount(items),
		Version:   version,
	}
}
