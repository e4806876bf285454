package catalog

import (
	"errors"
	"time"
)

// Collection is the store collection products live in, keyed by product id.
const Collection = "product"

var ErrNotFound = errors.New("product not found")

// Categories offered by the upload form.
var Categories = []string{"Snacks", "Beverages", "Essential Goods", "Electronics", "Clothing", "Books"}

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	Stock       int       `json:"stock"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}
