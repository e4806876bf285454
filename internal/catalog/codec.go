package catalog

import (
	"github.com/andreasstove999/littlecarts/internal/store"
)

// Decode builds a product from a stored document, substituting defaults for missing or mistyped
// fields. The document key wins over a missing id field.
func Decode(doc store.Document) (Product, []store.Coercion) {
	r := store.NewReader(doc.Fields)
	p := Product{
		ID:          r.String("id", doc.Key),
		Name:        r.String("name", ""),
		Price:       r.Float("price", 0),
		Category:    r.String("category", ""),
		Description: r.String("description", ""),
		ImageURL:    r.String("imageUrl", ""),
		Stock:       r.Int("stock", 0),
		IsActive:    r.Bool("isActive", true),
		CreatedAt:   r.Time("createdAt"),
	}
	if p.ID == "" {
		p.ID = doc.Key
	}
	return p, r.Coercions()
}

func Encode(p Product) store.Fields {
	return store.Fields{
		"id":          p.ID,
		"name":        p.Name,
		"price":       p.Price,
		"category":    p.Category,
		"description": p.Description,
		"imageUrl":    p.ImageURL,
		"stock":       p.Stock,
		"isActive":    p.IsActive,
		"createdAt":   p.CreatedAt,
	}
}
