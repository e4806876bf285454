package catalog

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// UploadRequest mirrors the admin upload form. Numeric fields arrive as text.
type UploadRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Category    string `json:"category"`
	Stock       string `json:"stock"`
	ImageURL    string `json:"imageUrl"`
}

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid product: " + strings.Join(parts, "; ")
}

type validated struct {
	name, description, category, imageURL string
	price                                 float64
	stock                                 int
}

func (req UploadRequest) validate() (validated, error) {
	fields := map[string]string{}
	out := validated{
		name:        strings.TrimSpace(req.Name),
		description: strings.TrimSpace(req.Description),
		imageURL:    strings.TrimSpace(req.ImageURL),
	}

	if out.name == "" {
		fields["name"] = "is required"
	}

	switch raw := strings.TrimSpace(req.Price); {
	case raw == "":
		fields["price"] = "is required"
	default:
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
			fields["price"] = "must be a number"
		} else if price < 0 {
			fields["price"] = "must not be negative"
		}
		out.price = price
	}

	switch raw := strings.TrimSpace(req.Stock); {
	case raw == "":
		fields["stock"] = "is required"
	default:
		stock, err := strconv.Atoi(raw)
		if err != nil {
			fields["stock"] = "must be a whole number"
		} else if stock < 0 {
			fields["stock"] = "must not be negative"
		}
		out.stock = stock
	}

	category, ok := canonicalCategory(req.Category)
	switch {
	case strings.TrimSpace(req.Category) == "":
		fields["category"] = "is required"
	case !ok:
		fields["category"] = fmt.Sprintf("must be one of %s", strings.Join(Categories, ", "))
	}
	out.category = category

	if len(fields) > 0 {
		return validated{}, &ValidationError{Fields: fields}
	}
	return out, nil
}

func canonicalCategory(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	for _, c := range Categories {
		if strings.EqualFold(c, raw) {
			return c, true
		}
	}
	return raw, false
}
